package filters

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
)

// DCBlocker is a one-pole high-pass removing the DC offset of a block stream.
//
// The difference equation is:
// y[n] = x[n] - x[n-1] + R * y[n-1]
//
// References:
//   - J.O. Smith, "Introduction to Digital Filters", Appendix on DC blockers
type DCBlocker struct {
	pole float64
	x1   float64
	y1   float64
}

// NewDCBlocker designs a blocker with its -3 dB point near cutoff Hz.
// R ≈ 1 - 2π·fc/fs holds for fc well below Nyquist.
func NewDCBlocker(sampleRate, cutoff float64) (*DCBlocker, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %g", ErrInvalidParameter, sampleRate)
	}
	if cutoff <= 0 || cutoff >= sampleRate/2 {
		return nil, fmt.Errorf("%w: cutoff %g Hz", ErrInvalidParameter, cutoff)
	}

	pole := 1.0 - 2.0*math.Pi*cutoff/sampleRate
	return &DCBlocker{pole: common.Clamp(pole, 0.001, 0.999999)}, nil
}

// Pole returns R
func (dc *DCBlocker) Pole() float64 {
	return dc.pole
}

// Cutoff returns the approximate -3 dB frequency at sampleRate
func (dc *DCBlocker) Cutoff(sampleRate float64) float64 {
	return (1.0 - dc.pole) * sampleRate / (2.0 * math.Pi)
}

// ProcessInPlace filters buf, carrying state across calls
func (dc *DCBlocker) ProcessInPlace(buf []float64) {
	x1, y1, r := dc.x1, dc.y1, dc.pole
	for i, x := range buf {
		y := x - x1 + r*y1
		x1, y1 = x, y
		buf[i] = y
	}
	dc.x1, dc.y1 = x1, y1
}

// Reset clears the filter history
func (dc *DCBlocker) Reset() {
	dc.x1, dc.y1 = 0, 0
}

// Magnitude returns |H| at freq Hz.
// H(e^jw) = (1 - e^-jw) / (1 - R·e^-jw)
func (dc *DCBlocker) Magnitude(freq, sampleRate float64) float64 {
	w := 2.0 * math.Pi * freq / sampleRate
	cosW, sinW := math.Cos(w), math.Sin(w)

	num := math.Hypot(1.0-cosW, sinW)
	den := math.Hypot(1.0-dc.pole*cosW, dc.pole*sinW)
	return num / den
}
