// Package http serves the nutrid JSON API: prediction, food lookup and
// daily intake tracking, plus /health and /metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/nutrid/internal/foods"
	"github.com/fyrsmithlabs/nutrid/internal/logging"
	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
	"github.com/fyrsmithlabs/nutrid/internal/tracking"
)

// Predictor computes daily nutrient targets for a profile.
type Predictor interface {
	Predict(ctx context.Context, profile nutrition.Profile) (nutrition.Targets, error)
}

// FoodTable resolves food names to portion-scaled nutrients.
type FoodTable interface {
	Lookup(name string, portion float64) (foods.Match, error)
	Names() []string
	Len() int
}

// TrackingStore holds daily intake records.
type TrackingStore interface {
	Initialize(ctx context.Context, userID, date string, targets nutrition.Targets) tracking.Record
	AddFood(ctx context.Context, userID, date string, entry tracking.FoodEntry) (tracking.Record, error)
	Get(ctx context.Context, userID, date string) (tracking.Record, error)
}

// Services are the collaborators the handlers call.
type Services struct {
	Predictor Predictor
	Foods     FoodTable
	Tracking  TrackingStore
	ModelName string // reported by /health
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	APIPrefix       string
	RateLimit       float64 // requests per second per client IP; 0 disables
	RateBurst       int
}

// NewDefaultConfig returns the default server configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
		APIPrefix:       "/api",
		RateBurst:       20,
	}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server provides the nutrid HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	svc     Services
	logger  *logging.Logger
	config  *Config
	metrics *HTTPMetrics
	now     func() time.Time
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	meterProvider metric.MeterProvider
	now           func() time.Time
}

// WithMeterProvider sets the provider for HTTP metrics. Defaults to the
// global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *serverOptions) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithClock overrides the clock used to default the tracking date.
func WithClock(now func() time.Time) Option {
	return func(o *serverOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewServer creates a new HTTP server.
func NewServer(svc Services, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if svc.Predictor == nil {
		return nil, fmt.Errorf("predictor cannot be nil")
	}
	if svc.Foods == nil {
		return nil, fmt.Errorf("food table cannot be nil")
	}
	if svc.Tracking == nil {
		return nil, fmt.Errorf("tracking store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}

	o := serverOptions{
		meterProvider: otel.GetMeterProvider(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		svc:     svc,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(o.meterProvider, logger),
		now:     o.now,
	}

	e.HTTPErrorHandler = s.handleError

	// Order matters: the request logger resolves errors into responses, so
	// metrics sit outside it and see the final status.
	e.Use(middleware.RequestID())
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("1M"))
	if cfg.RateLimit > 0 {
		e.Use(newIPRateLimiter(cfg.RateLimit, cfg.RateBurst).Middleware(logger))
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group(s.config.APIPrefix)

	prediction := api.Group("/prediction")
	prediction.POST("/predict_nutrition", s.handlePredict)

	track := api.Group("/tracking")
	track.POST("/initialize-tracking", s.handleInitialize)
	track.POST("/add-food", s.handleAddFood)
	track.GET("/get-daily/:user_id/:date", s.handleGetDaily)
	track.GET("/foods", s.handleFoods)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ListenAddr returns the bound address once the server is listening, or nil.
func (s *Server) ListenAddr() net.Addr {
	return s.echo.ListenerAddr()
}
