// Package predictor turns an infant profile into daily nutrient targets
// using an externally trained regression model.
//
// The model is opaque to this package: anything implementing Model can be
// plugged in. Bundle is the production implementation, loaded from the TOML
// export of the trained network and its scalers.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
)

const instrumentationName = "github.com/fyrsmithlabs/nutrid/internal/predictor"

// TargetCount is the number of model outputs: calories, proteins, fat,
// carbohydrate, in that order.
const TargetCount = 4

// Model is the narrow contract of the trained regression model.
type Model interface {
	// Scale normalizes encoded features.
	Scale(features []float64) ([]float64, error)
	// Predict evaluates the model on normalized features.
	Predict(normalized []float64) ([]float64, error)
	// InverseScale maps raw model outputs back to nutrient units.
	InverseScale(raw []float64) ([]float64, error)
}

// PredictionError wraps any failure in encoding, scaling or evaluation.
// Callers use errors.Is(err, nutrition.ErrInvalidInput) to tell caller
// mistakes from internal failures.
type PredictionError struct {
	Err error
}

func (e *PredictionError) Error() string {
	return "prediction error: " + e.Err.Error()
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// Predictor wraps a Model with encoding, clamping and instrumentation.
// It holds no mutable state and is safe for concurrent use.
type Predictor struct {
	model    Model
	tracer   trace.Tracer
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// Option configures a Predictor.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithProviders sets the tracer and meter providers. Nil values keep the
// global providers.
func WithProviders(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// New creates a Predictor for model. Without WithProviders, instruments come
// from the global OTel providers.
func New(model Model, opts ...Option) (*Predictor, error) {
	if model == nil {
		return nil, errors.New("model cannot be nil")
	}

	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	duration, err := meter.Float64Histogram(
		"nutrid.predictor.duration_seconds",
		metric.WithDescription("Time spent encoding, scaling and evaluating one prediction."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	failures, err := meter.Int64Counter(
		"nutrid.predictor.errors_total",
		metric.WithDescription("Failed predictions, labeled by kind (input or model)."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	return &Predictor{
		model:    model,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		duration: duration,
		failures: failures,
	}, nil
}

// Predict returns the clamped nutrient targets for profile. Every failure is a
// *PredictionError.
func (p *Predictor) Predict(ctx context.Context, profile nutrition.Profile) (nutrition.Targets, error) {
	ctx, span := p.tracer.Start(ctx, "predictor.Predict")
	defer span.End()
	start := time.Now()

	targets, err := p.predict(profile)

	p.duration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		kind := "model"
		if errors.Is(err, nutrition.ErrInvalidInput) {
			kind = "input"
		}
		p.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		return nutrition.Targets{}, &PredictionError{Err: err}
	}

	span.SetAttributes(
		attribute.Float64("targets.calories", targets.Calories),
		attribute.Int("profile.age_months", profile.AgeMonths),
	)
	return targets, nil
}

func (p *Predictor) predict(profile nutrition.Profile) (nutrition.Targets, error) {
	if err := profile.Validate(); err != nil {
		return nutrition.Targets{}, err
	}
	features, err := nutrition.Encode(profile)
	if err != nil {
		return nutrition.Targets{}, err
	}

	scaled, err := p.model.Scale(features.Slice())
	if err != nil {
		return nutrition.Targets{}, fmt.Errorf("scaling input: %w", err)
	}
	raw, err := p.model.Predict(scaled)
	if err != nil {
		return nutrition.Targets{}, fmt.Errorf("evaluating model: %w", err)
	}
	out, err := p.model.InverseScale(raw)
	if err != nil {
		return nutrition.Targets{}, fmt.Errorf("scaling output: %w", err)
	}

	if len(out) != TargetCount {
		return nutrition.Targets{}, fmt.Errorf("model returned %d values, want %d", len(out), TargetCount)
	}
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nutrition.Targets{}, fmt.Errorf("model output %d is not finite", i)
		}
	}

	return nutrition.Targets{
		Calories:     out[0],
		Proteins:     out[1],
		Fat:          out[2],
		Carbohydrate: out[3],
	}.Clamp(), nil
}
