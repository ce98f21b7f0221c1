package spectral

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpacing is returned when a filterbank spacing is outside the scale's bounds
	ErrInvalidSpacing = errors.New("filterbank spacing out of range")

	// ErrSpectrumSize is returned when a spectrum does not match the filterbank's bin count
	ErrSpectrumSize = errors.New("spectrum size does not match filterbank")
)

// Scale is a perceptual frequency scale used to space filterbank boundaries
type Scale int

const (
	ScaleBark Scale = iota
	ScaleMel
)

func (s Scale) String() string {
	switch s {
	case ScaleBark:
		return "bark"
	case ScaleMel:
		return "mel"
	default:
		return "unknown"
	}
}

// ToFreq converts a value on the scale to Hz
func (s Scale) ToFreq(units float64) float64 {
	if s == ScaleMel {
		return MelToFreq(units)
	}
	return BarkToFreq(units)
}

// FromFreq converts Hz to the scale
func (s Scale) FromFreq(freq float64) float64 {
	if s == ScaleMel {
		return FreqToMel(freq)
	}
	return FreqToBark(freq)
}

// SpacingBounds returns the accepted [min, max] spacing for the scale
func (s Scale) SpacingBounds() (float64, float64) {
	if s == ScaleMel {
		return MinMelSpacing, MaxMelSpacing
	}
	return MinBarkSpacing, MaxBarkSpacing
}

// FilterOperation selects how a filter reduces the bins it covers
type FilterOperation int

const (
	FilterSum FilterOperation = iota
	FilterAverage
)

func (op FilterOperation) String() string {
	if op == FilterAverage {
		return "average"
	}
	return "sum"
}

// BuildBoundaries walks the scale from 0 to its value at Nyquist in steps of spacing
// and returns the corresponding frequencies in Hz. A filterbank built from the result
// has len(result)-2 filters.
func BuildBoundaries(scale Scale, spacing float64, sampleRate float64) ([]float64, error) {
	lo, hi := scale.SpacingBounds()
	if spacing < lo || spacing > hi {
		return nil, fmt.Errorf("%w: %s spacing %g outside [%g, %g]", ErrInvalidSpacing, scale, spacing, lo, hi)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %g", sampleRate)
	}

	maxUnits := scale.FromFreq(sampleRate / 2.0)

	freqs := make([]float64, 0, int(maxUnits/spacing)+1)
	for i := 0; float64(i)*spacing < maxUnits; i++ {
		freqs = append(freqs, scale.ToFreq(float64(i)*spacing))
	}

	return freqs, nil
}

// Filter is one triangular weighting window over the bins [Lo, Hi]
type Filter struct {
	Weights    []float64
	Lo         int
	Hi         int
	LoFreq     float64
	CenterFreq float64
	HiFreq     float64

	weightSum float64
}

// Size returns the number of bins covered
func (f Filter) Size() int {
	return len(f.Weights)
}

// Filterbank is an ordered set of triangular filters aligned to FFT bins.
// It is immutable once built.
type Filterbank struct {
	filters []Filter
	freqs   []float64
	numBins int
}

// CreateFilterbank builds one triangular filter for every adjacent boundary triple
// (lo, center, hi). Weights rise linearly from the lo bin to 1.0 at the center bin and
// fall back towards the hi bin. Filters whose bins collapse keep at least one bin.
func CreateFilterbank(freqs []float64, conv BinConverter) (*Filterbank, error) {
	if len(freqs) < 3 {
		return nil, fmt.Errorf("need at least 3 boundary frequencies, got %d", len(freqs))
	}
	if conv.WindowSize <= 0 || conv.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid bin conversion: window %d, sample rate %g", conv.WindowSize, conv.SampleRate)
	}

	filters := make([]Filter, len(freqs)-2)

	for i := range filters {
		loBin := conv.FreqToBin(freqs[i])
		midBin := conv.FreqToBin(freqs[i+1])
		hiBin := conv.FreqToBin(freqs[i+2])

		weights := make([]float64, hiBin-loBin+1)
		sum := 0.0
		for k := loBin; k <= hiBin; k++ {
			var w float64
			switch {
			case k == midBin:
				w = 1.0
			case k < midBin:
				w = float64(k-loBin) / float64(midBin-loBin)
			default:
				w = float64(hiBin-k) / float64(hiBin-midBin)
			}
			weights[k-loBin] = w
			sum += w
		}

		filters[i] = Filter{
			Weights:    weights,
			Lo:         loBin,
			Hi:         hiBin,
			LoFreq:     freqs[i],
			CenterFreq: freqs[i+1],
			HiFreq:     freqs[i+2],
			weightSum:  sum,
		}
	}

	freqsCopy := make([]float64, len(freqs))
	copy(freqsCopy, freqs)

	return &Filterbank{
		filters: filters,
		freqs:   freqsCopy,
		numBins: conv.NumBins(),
	}, nil
}

// NewFilterbank builds boundaries on the given scale and the filterbank over them
func NewFilterbank(scale Scale, spacing float64, conv BinConverter) (*Filterbank, error) {
	freqs, err := BuildBoundaries(scale, spacing, conv.SampleRate)
	if err != nil {
		return nil, err
	}
	return CreateFilterbank(freqs, conv)
}

// Len returns the number of filters
func (fb *Filterbank) Len() int {
	return len(fb.filters)
}

// NumBins returns the spectrum length the filterbank expects
func (fb *Filterbank) NumBins() int {
	return fb.numBins
}

// Filters returns the filters in ascending frequency order
func (fb *Filterbank) Filters() []Filter {
	return fb.filters
}

// Frequencies returns the boundary frequencies used to build the filterbank
func (fb *Filterbank) Frequencies() []float64 {
	return fb.freqs
}

// Apply reduces spectrum to one value per filter in dst.
// normalize divides each filter's output by its weight sum. Does not allocate.
func (fb *Filterbank) Apply(spectrum, dst []float64, op FilterOperation, normalize bool) error {
	if len(spectrum) != fb.numBins || len(dst) != len(fb.filters) {
		return ErrSpectrumSize
	}

	for i := range fb.filters {
		f := &fb.filters[i]

		sum := 0.0
		for j, w := range f.Weights {
			sum += spectrum[f.Lo+j] * w
		}

		if normalize && f.weightSum > 0 {
			sum /= f.weightSum
		}
		if op == FilterAverage {
			sum /= float64(len(f.Weights))
		}

		dst[i] = sum
	}

	return nil
}

// ApplyBands writes the filtered spectrum into dst: every bin is weighted by each
// filter covering it and the contributions are accumulated. Does not allocate.
func (fb *Filterbank) ApplyBands(spectrum, dst []float64) error {
	if len(spectrum) != fb.numBins || len(dst) != fb.numBins {
		return ErrSpectrumSize
	}

	for i := range dst {
		dst[i] = 0.0
	}

	for i := range fb.filters {
		f := &fb.filters[i]
		for j, w := range f.Weights {
			dst[f.Lo+j] += spectrum[f.Lo+j] * w
		}
	}

	return nil
}
