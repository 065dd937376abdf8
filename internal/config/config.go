// Package config loads nutrid configuration from defaults, an optional YAML
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the complete nutrid configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Data      DataConfig      `koanf:"data"`
	Tracking  TrackingConfig  `koanf:"tracking"`
	Events    EventsConfig    `koanf:"events"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	APIPrefix       string   `koanf:"api_prefix"`
	RateLimit       float64  `koanf:"rate_limit"` // requests per second per client IP, 0 disables
	RateBurst       int      `koanf:"rate_burst"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataConfig locates the artifacts loaded at startup.
type DataConfig struct {
	FoodTable   string `koanf:"food_table"`
	ModelBundle string `koanf:"model_bundle"`
}

// TrackingConfig controls the in-memory tracking store.
type TrackingConfig struct {
	Retention     Duration `koanf:"retention"` // 0 keeps records until exit
	SweepInterval Duration `koanf:"sweep_interval"`
}

// EventsConfig controls tracking event publication to NATS.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled        bool    `koanf:"enabled"`
	Endpoint       string  `koanf:"endpoint"`
	Protocol       string  `koanf:"protocol"` // grpc or http
	Insecure       bool    `koanf:"insecure"`
	ServiceName    string  `koanf:"service_name"`
	ServiceVersion string  `koanf:"service_version"`
	SamplingRate   float64 `koanf:"sampling_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: Duration(10 * time.Second),
			APIPrefix:       "/api",
			RateBurst:       20,
		},
		Data: DataConfig{
			FoodTable:   "data/data_baby_food.csv",
			ModelBundle: "models/model.toml",
		},
		Tracking: TrackingConfig{
			SweepInterval: Duration(time.Hour),
		},
		Events: EventsConfig{
			NATSURL:       "nats://localhost:4222",
			SubjectPrefix: "nutrid.tracking",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			ServiceName:    "nutrid",
			ServiceVersion: "0.1.0",
			SamplingRate:   1.0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("server.api_prefix must begin with '/', got %q", c.Server.APIPrefix))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit cannot be negative, got %g", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_burst must be positive when rate limiting, got %d", c.Server.RateBurst))
	}

	if c.Data.FoodTable == "" {
		errs = append(errs, errors.New("data.food_table is required"))
	}
	if c.Data.ModelBundle == "" {
		errs = append(errs, errors.New("data.model_bundle is required"))
	}

	if c.Tracking.Retention > 0 && c.Tracking.SweepInterval <= 0 {
		errs = append(errs, errors.New("tracking.sweep_interval must be positive when retention is set"))
	}

	if c.Events.Enabled {
		if u, err := url.Parse(c.Events.NATSURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("events.nats_url is invalid: %q", c.Events.NATSURL))
		}
		if c.Events.SubjectPrefix == "" {
			errs = append(errs, errors.New("events.subject_prefix is required when events are enabled"))
		}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("telemetry.protocol must be 'grpc' or 'http', got %q", c.Telemetry.Protocol))
		}
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_rate must be between 0 and 1, got %g", c.Telemetry.SamplingRate))
	}

	return errors.Join(errs...)
}
