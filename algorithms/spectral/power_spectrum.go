package spectral

import (
	"fmt"
	"strings"
)

// SpectrumType selects power (re²+im²) or magnitude (|X|) spectra
type SpectrumType int

const (
	SpectrumPower SpectrumType = iota
	SpectrumMagnitude
)

func (s SpectrumType) String() string {
	if s == SpectrumMagnitude {
		return "magnitude"
	}
	return "power"
}

// ParseSpectrumType converts "power" or "magnitude" into a SpectrumType
func ParseSpectrumType(name string) (SpectrumType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "power", "":
		return SpectrumPower, nil
	case "magnitude", "mag":
		return SpectrumMagnitude, nil
	default:
		return SpectrumPower, fmt.Errorf("unknown spectrum type %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s SpectrumType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *SpectrumType) UnmarshalText(text []byte) error {
	parsed, err := ParseSpectrumType(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseFilterOperation converts "sum" or "average" into a FilterOperation
func ParseFilterOperation(name string) (FilterOperation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sum", "":
		return FilterSum, nil
	case "average", "avg", "mean":
		return FilterAverage, nil
	default:
		return FilterSum, fmt.Errorf("unknown filter operation %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (op FilterOperation) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (op *FilterOperation) UnmarshalText(text []byte) error {
	parsed, err := ParseFilterOperation(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// Energy returns the sum of all bins
func Energy(spectrum []float64) float64 {
	sum := 0.0
	for _, v := range spectrum {
		sum += v
	}
	return sum
}
