// Nutrid serves infant nutrition predictions and daily food intake tracking
// over HTTP.
//
// Configuration comes from built-in defaults, an optional YAML file and
// NUTRID_* environment variables, in increasing order of precedence.
//
// Usage:
//
//	# Start with config.yaml in the working directory, if present
//	nutrid
//
//	# Explicit config file and port override
//	NUTRID_SERVER_HTTP_PORT=9090 nutrid -config /etc/nutrid/config.yaml
//
//	# Print version information
//	nutrid version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/nutrid/internal/config"
	"github.com/fyrsmithlabs/nutrid/internal/events"
	"github.com/fyrsmithlabs/nutrid/internal/foods"
	nhttp "github.com/fyrsmithlabs/nutrid/internal/http"
	"github.com/fyrsmithlabs/nutrid/internal/logging"
	"github.com/fyrsmithlabs/nutrid/internal/predictor"
	"github.com/fyrsmithlabs/nutrid/internal/telemetry"
	"github.com/fyrsmithlabs/nutrid/internal/tracking"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  nutrid [-config path]   Start the server\n")
			fmt.Fprintf(os.Stderr, "  nutrid version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "nutrid: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("nutrid by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run loads configuration and artifacts, wires the store, publisher and
// HTTP server, and blocks until ctx is cancelled. On shutdown the server
// drains first, then the NATS connection, then telemetry.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting nutrid",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("telemetry", tel.IsEnabled()),
		zap.Bool("events", cfg.Events.Enabled),
	)
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Error(h.LastErr))
	}

	table, err := foods.LoadCSV(cfg.Data.FoodTable)
	if err != nil {
		return fmt.Errorf("failed to load food table: %w", err)
	}
	if dups := table.Duplicates(); len(dups) > 0 {
		logger.Warn(ctx, "duplicate food names ignored; first row wins", zap.Strings("names", dups))
	}
	logger.Info(ctx, "food table loaded",
		zap.String("path", cfg.Data.FoodTable),
		zap.Int("foods", table.Len()),
	)

	bundle, err := predictor.LoadBundle(cfg.Data.ModelBundle)
	if err != nil {
		return fmt.Errorf("failed to load model bundle: %w", err)
	}
	pred, err := predictor.New(bundle, predictor.WithProviders(tel.TracerProvider(), tel.MeterProvider()))
	if err != nil {
		return fmt.Errorf("failed to create predictor: %w", err)
	}
	logger.Info(ctx, "model bundle loaded",
		zap.String("path", cfg.Data.ModelBundle),
		zap.String("model", bundle.Name),
		zap.String("model_version", bundle.Version),
	)

	var publisher tracking.Publisher = tracking.NopPublisher{}
	if cfg.Events.Enabled {
		pub, err := initPublisher(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logger.Warn(context.Background(), "failed to drain NATS connection", zap.Error(err))
			}
		}()
		publisher = pub
		logger.Info(ctx, "publishing tracking events",
			zap.String("url", cfg.Events.NATSURL),
			zap.String("subject_prefix", cfg.Events.SubjectPrefix),
		)
	}

	store := tracking.NewStore(
		tracking.WithRetention(cfg.Tracking.Retention.Duration()),
		tracking.WithPublisher(publisher),
		tracking.WithLogger(logger.Named("tracking")),
	)
	go store.Run(ctx, cfg.Tracking.SweepInterval.Duration())

	srv, err := nhttp.NewServer(nhttp.Services{
		Predictor: pred,
		Foods:     table,
		Tracking:  store,
		ModelName: bundle.Name,
	}, logger.Named("http"), httpConfig(cfg), nhttp.WithMeterProvider(tel.MeterProvider()))
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	return srv.Start(ctx)
}

func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	lc := logging.NewDefaultConfig()
	lc.Level = level
	lc.Format = cfg.Logging.Format
	lc.Fields["version"] = version

	provider := tel.LoggerProvider()
	lc.Output.OTEL = provider != nil
	return logging.NewLogger(lc, provider)
}

func initPublisher(cfg *config.Config) (*events.Publisher, error) {
	nc, err := events.Connect(cfg.Events.NATSURL)
	if err != nil {
		return nil, err
	}
	pub, err := events.NewPublisher(nc, cfg.Events.SubjectPrefix)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	return pub, nil
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.Protocol = cfg.Telemetry.Protocol
	tc.Insecure = cfg.Telemetry.Insecure
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = cfg.Telemetry.ServiceVersion
	tc.SamplingRate = cfg.Telemetry.SamplingRate
	return tc
}

func httpConfig(cfg *config.Config) *nhttp.Config {
	return &nhttp.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		APIPrefix:       cfg.Server.APIPrefix,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
	}
}
