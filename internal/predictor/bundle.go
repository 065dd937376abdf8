package predictor

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/BurntSushi/toml"

	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
)

// Scaler kinds, named after their scikit-learn counterparts.
const (
	ScalerStandard = "standard" // StandardScaler: x' = (x - mean) / scale
	ScalerMinMax   = "minmax"   // MinMaxScaler:   x' = x*scale + min
)

// Layer activations.
const (
	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationSigmoid = "sigmoid"
	ActivationTanh    = "tanh"
)

// ErrInvalidBundle reports a model bundle that cannot be evaluated.
var ErrInvalidBundle = errors.New("invalid model bundle")

// Scaler holds fitted normalization parameters.
type Scaler struct {
	Kind  string    `toml:"kind"`
	Mean  []float64 `toml:"mean"`
	Scale []float64 `toml:"scale"`
	Min   []float64 `toml:"min"`
}

// Layer is one dense layer. Weights use the Keras kernel layout
// [inputs][units].
type Layer struct {
	Activation string      `toml:"activation"`
	Weights    [][]float64 `toml:"weights"`
	Biases     []float64   `toml:"biases"`
}

// Bundle is the exported regression model: input scaler, dense network and
// output scaler. A validated Bundle is immutable and safe for concurrent use.
type Bundle struct {
	Name    string  `toml:"name"`
	Version string  `toml:"version"`
	ScalerX Scaler  `toml:"scaler_x"`
	ScalerY Scaler  `toml:"scaler_y"`
	Layers  []Layer `toml:"layers"`
}

// LoadBundle decodes and validates the TOML bundle at path.
func LoadBundle(path string) (*Bundle, error) {
	var b Bundle
	if _, err := toml.DecodeFile(path, &b); err != nil {
		return nil, fmt.Errorf("failed to decode model bundle %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// DecodeBundle decodes and validates a TOML bundle from r.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if _, err := toml.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode model bundle: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks that the scalers and layers chain from FeatureCount inputs
// to TargetCount outputs.
func (b *Bundle) Validate() error {
	if err := b.ScalerX.validate("scaler_x", nutrition.FeatureCount); err != nil {
		return err
	}
	if err := b.ScalerY.validate("scaler_y", TargetCount); err != nil {
		return err
	}
	if len(b.Layers) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidBundle)
	}

	width := nutrition.FeatureCount
	for i, l := range b.Layers {
		if len(l.Weights) != width {
			return fmt.Errorf("%w: layer %d has %d weight rows, want %d", ErrInvalidBundle, i, len(l.Weights), width)
		}
		units := len(l.Biases)
		if units == 0 {
			return fmt.Errorf("%w: layer %d has no units", ErrInvalidBundle, i)
		}
		for r, row := range l.Weights {
			if len(row) != units {
				return fmt.Errorf("%w: layer %d row %d has %d weights, want %d", ErrInvalidBundle, i, r, len(row), units)
			}
		}
		switch l.Activation {
		case "", ActivationLinear, ActivationReLU, ActivationSigmoid, ActivationTanh:
		default:
			return fmt.Errorf("%w: layer %d has unknown activation %q", ErrInvalidBundle, i, l.Activation)
		}
		width = units
	}
	if width != TargetCount {
		return fmt.Errorf("%w: network outputs %d values, want %d", ErrInvalidBundle, width, TargetCount)
	}
	return nil
}

// Scale normalizes encoded features with the input scaler.
func (b *Bundle) Scale(features []float64) ([]float64, error) {
	return b.ScalerX.transform(features)
}

// Predict runs the dense network on normalized features.
func (b *Bundle) Predict(normalized []float64) ([]float64, error) {
	x := normalized
	for i, l := range b.Layers {
		if len(x) != len(l.Weights) {
			return nil, fmt.Errorf("layer %d: got %d inputs, want %d", i, len(x), len(l.Weights))
		}
		out := make([]float64, len(l.Biases))
		copy(out, l.Biases)
		for in, v := range x {
			for u, w := range l.Weights[in] {
				out[u] += v * w
			}
		}
		for u := range out {
			out[u] = activate(l.Activation, out[u])
		}
		x = out
	}
	return x, nil
}

// InverseScale maps raw network outputs back to nutrient units.
func (b *Bundle) InverseScale(raw []float64) ([]float64, error) {
	return b.ScalerY.inverse(raw)
}

func (s Scaler) validate(name string, width int) error {
	switch s.Kind {
	case ScalerStandard:
		if len(s.Mean) != width || len(s.Scale) != width {
			return fmt.Errorf("%w: %s needs %d mean and scale values", ErrInvalidBundle, name, width)
		}
	case ScalerMinMax:
		if len(s.Min) != width || len(s.Scale) != width {
			return fmt.Errorf("%w: %s needs %d min and scale values", ErrInvalidBundle, name, width)
		}
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidBundle, name, s.Kind)
	}
	for i, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s scale[%d] must be finite and non-zero", ErrInvalidBundle, name, i)
		}
	}
	return nil
}

func (s Scaler) transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Scale) {
		return nil, fmt.Errorf("scaler: got %d values, want %d", len(x), len(s.Scale))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		if s.Kind == ScalerStandard {
			out[i] = (v - s.Mean[i]) / s.Scale[i]
		} else {
			out[i] = v*s.Scale[i] + s.Min[i]
		}
	}
	return out, nil
}

func (s Scaler) inverse(x []float64) ([]float64, error) {
	if len(x) != len(s.Scale) {
		return nil, fmt.Errorf("scaler: got %d values, want %d", len(x), len(s.Scale))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		if s.Kind == ScalerStandard {
			out[i] = v*s.Scale[i] + s.Mean[i]
		} else {
			out[i] = (v - s.Min[i]) / s.Scale[i]
		}
	}
	return out, nil
}

func activate(kind string, v float64) float64 {
	switch kind {
	case ActivationReLU:
		return math.Max(0, v)
	case ActivationSigmoid:
		return 1 / (1 + math.Exp(-v))
	case ActivationTanh:
		return math.Tanh(v)
	default:
		return v
	}
}
