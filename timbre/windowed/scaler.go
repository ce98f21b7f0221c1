package windowed

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-timbre/algorithms/stats"
)

// ScalerKind selects how selected features are normalised
type ScalerKind int

const (
	// MinMaxScaling maps [min, max] onto [0, 1]
	MinMaxScaling ScalerKind = iota
	// StandardScaling subtracts the mean and divides by the standard deviation
	StandardScaling
)

func (k ScalerKind) String() string {
	if k == StandardScaling {
		return "standard"
	}
	return "minmax"
}

// ParseScalerKind converts "minmax" or "standard" into a ScalerKind
func ParseScalerKind(name string) (ScalerKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "minmax", "min-max", "min_max":
		return MinMaxScaling, nil
	case "standard", "zscore", "z-score":
		return StandardScaling, nil
	default:
		return MinMaxScaling, fmt.Errorf("unknown scaler %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (k ScalerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ScalerKind) UnmarshalText(text []byte) error {
	parsed, err := ParseScalerKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Scaler applies (x - Offset[i]) * Factor[i] to every selected feature. For
// min-max scaling Offset is the minimum and Factor 1/(max-min); for standard
// scaling Offset is the mean and Factor 1/std.
type Scaler struct {
	Kind   ScalerKind
	Offset []float64
	Factor []float64
}

// NewScaler builds a scaler from already computed offsets and factors
func NewScaler(kind ScalerKind, offset, factor []float64) (*Scaler, error) {
	if len(offset) == 0 || len(offset) != len(factor) {
		return nil, fmt.Errorf("%w: %d offsets, %d factors", ErrScalerSize, len(offset), len(factor))
	}

	return &Scaler{
		Kind:   kind,
		Offset: append([]float64(nil), offset...),
		Factor: append([]float64(nil), factor...),
	}, nil
}

// NewMinMaxScaler builds a min-max scaler from per-feature bounds
func NewMinMaxScaler(mins, maxs []float64) (*Scaler, error) {
	if len(mins) != len(maxs) {
		return nil, fmt.Errorf("%w: %d minimums, %d maximums", ErrScalerSize, len(mins), len(maxs))
	}

	factor := make([]float64, len(mins))
	for i := range mins {
		factor[i] = guardedReciprocal(maxs[i] - mins[i])
	}

	return NewScaler(MinMaxScaling, mins, factor)
}

// NewStandardScaler builds a standard scaler from per-feature mean and deviation
func NewStandardScaler(means, stds []float64) (*Scaler, error) {
	if len(means) != len(stds) {
		return nil, fmt.Errorf("%w: %d means, %d deviations", ErrScalerSize, len(means), len(stds))
	}

	factor := make([]float64, len(stds))
	for i, s := range stds {
		factor[i] = guardedReciprocal(s)
	}

	return NewScaler(StandardScaling, means, factor)
}

// FitMinMax derives a min-max scaler from training rows
func FitMinMax(rows [][]float64) (*Scaler, error) {
	mins, maxs, err := stats.ColumnMinMax(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to fit min-max scaler: %w", err)
	}
	return NewMinMaxScaler(mins, maxs)
}

// FitStandard derives a standard scaler from training rows
func FitStandard(rows [][]float64) (*Scaler, error) {
	means, stds, err := stats.ColumnMeanStd(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to fit standard scaler: %w", err)
	}
	return NewStandardScaler(means, stds)
}

// Size returns the number of features scaled
func (s *Scaler) Size() int {
	return len(s.Offset)
}

// Apply scales values in place
func (s *Scaler) Apply(values []float64) error {
	if len(values) != len(s.Offset) {
		return ErrScalerSize
	}

	for i := range values {
		values[i] = (values[i] - s.Offset[i]) * s.Factor[i]
	}
	return nil
}

// guardedReciprocal maps a zero span to a zero factor so constant features scale to 0
func guardedReciprocal(v float64) float64 {
	if v == 0 {
		return 0.0
	}
	return 1.0 / v
}
