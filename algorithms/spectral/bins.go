package spectral

import (
	"math"
)

// BinConverter maps between FFT bin indices and frequencies for one window size
// and sample rate. It is a plain value passed to whoever needs the conversion.
type BinConverter struct {
	WindowSize int
	SampleRate float64
}

// NumBins returns the number of non-negative frequency bins (N/2+1)
func (c BinConverter) NumBins() int {
	return c.WindowSize/2 + 1
}

// BinToFreq returns the centre frequency of bin
func (c BinConverter) BinToFreq(bin int) float64 {
	return float64(bin) * c.SampleRate / float64(c.WindowSize)
}

// FreqToBin returns the nearest bin to freq, clamped to [0, N/2]
func (c BinConverter) FreqToBin(freq float64) int {
	if c.SampleRate <= 0 {
		return 0
	}

	bin := int(math.Round(freq * float64(c.WindowSize) / c.SampleRate))
	if bin < 0 {
		return 0
	}
	if nyquist := c.WindowSize / 2; bin > nyquist {
		return nyquist
	}
	return bin
}
