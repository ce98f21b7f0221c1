package filters

import (
	"fmt"
	"math"
)

// PreEmphasis is the first-order FIR y[n] = x[n] - α·x[n-1]. It tilts the
// spectrum toward high frequencies before cepstral analysis.
type PreEmphasis struct {
	alpha float64
	x1    float64
}

// NewPreEmphasis returns a filter with coefficient alpha in [0, 1)
func NewPreEmphasis(alpha float64) (*PreEmphasis, error) {
	if alpha < 0 || alpha >= 1 {
		return nil, fmt.Errorf("%w: pre-emphasis coefficient %g", ErrInvalidParameter, alpha)
	}
	return &PreEmphasis{alpha: alpha}, nil
}

// Coefficient returns α
func (pe *PreEmphasis) Coefficient() float64 {
	return pe.alpha
}

// ProcessInPlace filters buf, carrying the last input sample across calls
func (pe *PreEmphasis) ProcessInPlace(buf []float64) {
	x1, a := pe.x1, pe.alpha
	for i, x := range buf {
		buf[i] = x - a*x1
		x1 = x
	}
	pe.x1 = x1
}

func (pe *PreEmphasis) Reset() {
	pe.x1 = 0
}

// Magnitude returns |1 - α·e^-jw| at freq Hz
func (pe *PreEmphasis) Magnitude(freq, sampleRate float64) float64 {
	w := 2.0 * math.Pi * freq / sampleRate
	return math.Hypot(1.0-pe.alpha*math.Cos(w), pe.alpha*math.Sin(w))
}
