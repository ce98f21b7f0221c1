package spectral

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrPlanSize is returned when a frame or output slice does not match the transform size
var ErrPlanSize = errors.New("frame size does not match transform plan")

// Transform owns a real FFT plan and its scratch buffers for one frame size.
// Spectrum and Inverse reuse the scratch buffers and do not allocate; Resize is the
// only operation that allocates and must not be called from the audio thread.
type Transform struct {
	size   int
	plan   *fourier.FFT
	coeffs []complex128
}

// NewTransform creates a plan for frames of size samples
func NewTransform(size int) (*Transform, error) {
	t := &Transform{}
	if err := t.Resize(size); err != nil {
		return nil, err
	}
	return t, nil
}

// Resize rebuilds the plan and scratch buffers, discarding the previous plan
func (t *Transform) Resize(size int) error {
	if size < 2 {
		return fmt.Errorf("invalid transform size: %d", size)
	}
	if t.plan != nil && size == t.size {
		return nil
	}

	t.size = size
	t.plan = fourier.NewFFT(size)
	t.coeffs = make([]complex128, size/2+1)
	return nil
}

// Size returns the frame size of the plan
func (t *Transform) Size() int {
	return t.size
}

// NumBins returns the spectrum length produced (size/2+1)
func (t *Transform) NumBins() int {
	return t.size/2 + 1
}

// Coefficients computes the complex spectrum of frame. The returned slice is owned
// by the transform and overwritten by the next call.
func (t *Transform) Coefficients(frame []float64) ([]complex128, error) {
	if len(frame) != t.size {
		return nil, ErrPlanSize
	}
	return t.plan.Coefficients(t.coeffs, frame), nil
}

// Spectrum computes the power (re²+im²) or magnitude spectrum of frame into dst
func (t *Transform) Spectrum(frame, dst []float64, kind SpectrumType) error {
	if len(frame) != t.size || len(dst) != len(t.coeffs) {
		return ErrPlanSize
	}

	t.plan.Coefficients(t.coeffs, frame)
	for i, c := range t.coeffs {
		dst[i] = binValue(c, kind)
	}

	return nil
}

// Inverse treats spectrum as real-valued, zero-phase coefficients and writes the
// normalised inverse transform (size samples) into dst
func (t *Transform) Inverse(spectrum, dst []float64) error {
	if len(spectrum) != len(t.coeffs) || len(dst) != t.size {
		return ErrPlanSize
	}

	for i, v := range spectrum {
		t.coeffs[i] = complex(v, 0)
	}

	t.plan.Sequence(dst, t.coeffs)

	scale := 1.0 / float64(t.size)
	for i := range dst {
		dst[i] *= scale
	}

	return nil
}

// ReferenceSpectrum computes the spectrum of frame with go-dsp's allocating FFT.
// It is meant for offline inspection, not for the audio thread.
func ReferenceSpectrum(frame []float64, kind SpectrumType) []float64 {
	if len(frame) == 0 {
		return []float64{}
	}

	coeffs := fft.FFTReal(frame)
	spectrum := make([]float64, len(frame)/2+1)
	for i := range spectrum {
		spectrum[i] = binValue(coeffs[i], kind)
	}

	return spectrum
}

func binValue(c complex128, kind SpectrumType) float64 {
	re, im := real(c), imag(c)
	power := re*re + im*im
	if kind == SpectrumMagnitude {
		return math.Sqrt(power)
	}
	return power
}
