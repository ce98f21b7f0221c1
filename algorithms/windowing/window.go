package windowing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

// MinSize is the smallest window length accepted
const MinSize = 4

// ErrInvalidSize is returned for window lengths below MinSize
var ErrInvalidSize = errors.New("invalid window size")

// Type identifies a window function
type Type int

const (
	Rectangular Type = iota
	Blackman
	Cosine
	Hamming
	Hann
)

func (t Type) String() string {
	switch t {
	case Rectangular:
		return "rectangular"
	case Blackman:
		return "blackman"
	case Cosine:
		return "cosine"
	case Hamming:
		return "hamming"
	case Hann:
		return "hann"
	default:
		return "unknown"
	}
}

// ParseType converts a case-insensitive window name into a Type
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rectangular", "rect", "none":
		return Rectangular, nil
	case "blackman":
		return Blackman, nil
	case "cosine", "sine":
		return Cosine, nil
	case "hamming":
		return Hamming, nil
	case "hann", "hanning":
		return Hann, nil
	default:
		return Rectangular, fmt.Errorf("unknown window function %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window holds precomputed coefficients for one window function and length.
// Coefficients are computed once at construction and reused by every Apply call.
type Window struct {
	kind         Type
	coefficients []float64
}

// New computes the coefficient table for the given type and length
func New(kind Type, size int) (*Window, error) {
	if size < MinSize {
		return nil, fmt.Errorf("%w: %d (minimum %d)", ErrInvalidSize, size, MinSize)
	}

	var coeffs []float64
	switch kind {
	case Rectangular:
		coeffs = window.Rectangular(size)
	case Blackman:
		coeffs = window.Blackman(size)
	case Cosine:
		coeffs = cosine(size)
	case Hamming:
		coeffs = window.Hamming(size)
	case Hann:
		coeffs = window.Hann(size)
	default:
		return nil, fmt.Errorf("unsupported window type %d", kind)
	}

	return &Window{
		kind:         kind,
		coefficients: coeffs,
	}, nil
}

// ApplyTo writes the windowed copy of src into dst without allocating.
// Both slices must have the window's length.
func (w *Window) ApplyTo(dst, src []float64) error {
	if len(src) != len(w.coefficients) || len(dst) != len(w.coefficients) {
		return ErrInvalidSize
	}

	for i, c := range w.coefficients {
		dst[i] = src[i] * c
	}

	return nil
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}

	for i, c := range w.coefficients {
		signal[i] *= c
	}

	return nil
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window size
func (w *Window) Size() int {
	return len(w.coefficients)
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.kind
}
