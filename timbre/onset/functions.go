package onset

import (
	"math"

	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
)

// Function turns consecutive spectra into an onset metric
type Function interface {
	Kind() FunctionKind

	// Prepare sizes the function for spectra of conv.NumBins() values
	Prepare(conv spectral.BinConverter, params Params) error

	// Metric consumes the next spectrum. It must not allocate.
	Metric(spectrum []float64) float64

	Reset()
}

// NewFunction returns an unprepared detection function of the given kind
func NewFunction(kind FunctionKind) Function {
	if kind == HFC {
		return &hfc{}
	}
	return &barkGrowth{}
}

// binRange returns the bins inside [MinFreq, MaxFreq]
func binRange(conv spectral.BinConverter, params Params) (int, int) {
	lo := conv.FreqToBin(params.MinFreq)
	hi := conv.NumBins() - 1
	if params.MaxFreq > 0 {
		hi = conv.FreqToBin(params.MaxFreq)
	}
	return lo, hi
}

// barkGrowth sums positive dB changes of Bark band energies
type barkGrowth struct {
	bank        *spectral.Filterbank
	cur         []float64
	prev        []float64
	first, last int
	floor       float64
}

func (b *barkGrowth) Kind() FunctionKind {
	return BarkGrowth
}

func (b *barkGrowth) Prepare(conv spectral.BinConverter, params Params) error {
	bank, err := spectral.NewFilterbank(spectral.ScaleBark, params.BarkSpacing, conv)
	if err != nil {
		return err
	}

	// bands whose centre lies in the analysed range
	first, last := 0, bank.Len()
	for i, f := range bank.Filters() {
		if f.CenterFreq < params.MinFreq {
			first = i + 1
		}
		if params.MaxFreq > 0 && f.CenterFreq > params.MaxFreq && last == bank.Len() {
			last = i
		}
	}
	if first >= last {
		return ErrInvalidRange
	}

	b.bank = bank
	b.cur = make([]float64, bank.Len())
	b.prev = make([]float64, bank.Len())
	b.first, b.last = first, last
	b.floor = params.GrowthFloor
	b.Reset()
	return nil
}

func (b *barkGrowth) Metric(spectrum []float64) float64 {
	if err := b.bank.Apply(spectrum, b.cur, spectral.FilterSum, false); err != nil {
		return 0.0
	}

	growth := spectral.GrowthDB(b.prev[b.first:b.last], b.cur[b.first:b.last], b.floor)
	b.prev, b.cur = b.cur, b.prev
	return growth
}

func (b *barkGrowth) Reset() {
	for i := range b.prev {
		b.prev[i] = 0.0
	}
}

// hfc reports the increase of bin-weighted energy over the previous frame
type hfc struct {
	lo, hi int
	prev   float64
}

func (h *hfc) Kind() FunctionKind {
	return HFC
}

func (h *hfc) Prepare(conv spectral.BinConverter, params Params) error {
	lo, hi := binRange(conv, params)
	if lo > hi {
		return ErrInvalidRange
	}
	h.lo, h.hi = lo, hi
	h.prev = 0.0
	return nil
}

func (h *hfc) Metric(spectrum []float64) float64 {
	content := spectral.HighFrequencyContent(spectrum, h.lo, h.hi)

	growth := math.Max(content-h.prev, 0.0)
	h.prev = content
	return growth
}

func (h *hfc) Reset() {
	h.prev = 0.0
}
