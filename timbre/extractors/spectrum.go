package extractors

import (
	"fmt"
	"math"
	"strconv"

	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
	"github.com/RyanBlaney/sonido-timbre/algorithms/windowing"
)

// logFloor keeps log10/ln finite for empty bands
const logFloor = 1e-10

// spectralCore windows the analysis frame and computes its spectrum into
// preallocated buffers
type spectralCore struct {
	window    *windowing.Window
	transform *spectral.Transform
	windowed  []float64
	spectrum  []float64
}

func newSpectralCore(st *state) (spectralCore, error) {
	w, err := windowing.New(st.params.WindowFunction, st.windowSize)
	if err != nil {
		return spectralCore{}, fmt.Errorf("%w: %v", ErrInvalidWindowSize, err)
	}

	t, err := spectral.NewTransform(st.windowSize)
	if err != nil {
		return spectralCore{}, err
	}

	return spectralCore{
		window:    w,
		transform: t,
		windowed:  make([]float64, st.windowSize),
		spectrum:  make([]float64, t.NumBins()),
	}, nil
}

func (c *spectralCore) analyze(st *state, frame []float64) ([]float64, error) {
	if err := c.window.ApplyTo(c.windowed, frame); err != nil {
		return nil, err
	}
	if err := c.transform.Spectrum(c.windowed, c.spectrum, st.params.SpectrumType); err != nil {
		return nil, err
	}
	return c.spectrum, nil
}

func indexComponents(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return names
}

// brightness is the share of Bark-filtered spectral energy above BarkBoundary
type brightness struct {
	core        spectralCore
	bank        *spectral.Filterbank
	bands       []float64
	boundaryBin int
}

func (b *brightness) span(st *state) int {
	return st.windowSize
}

func (b *brightness) size() int {
	return 1
}

func (b *brightness) components() []string {
	return []string{"ratio"}
}

func (b *brightness) configure(st *state) error {
	maxBark := spectral.FreqToBark(st.sampleRate / 2.0)
	if st.params.BarkBoundary < 0 || st.params.BarkBoundary > maxBark {
		return fmt.Errorf("%w: %g not in [0, %g]", ErrInvalidBoundary, st.params.BarkBoundary, maxBark)
	}

	core, err := newSpectralCore(st)
	if err != nil {
		return err
	}

	conv := st.binConverter()
	bank, err := spectral.NewFilterbank(spectral.ScaleBark, st.params.BarkSpacing, conv)
	if err != nil {
		return err
	}

	b.core = core
	b.bank = bank
	b.bands = make([]float64, conv.NumBins())
	b.boundaryBin = conv.FreqToBin(spectral.BarkToFreq(st.params.BarkBoundary))
	return nil
}

func (b *brightness) compute(st *state, frame, dst []float64) error {
	spectrum, err := b.core.analyze(st, frame)
	if err != nil {
		return err
	}
	if err := b.bank.ApplyBands(spectrum, b.bands); err != nil {
		return err
	}

	total := spectral.Energy(b.bands)
	if total == 0 {
		dst[0] = -1.0
		return nil
	}

	dst[0] = spectral.Energy(b.bands[b.boundaryBin:]) / total
	return nil
}

// barkSpec is the Bark filterbank output
type barkSpec struct {
	core spectralCore
	bank *spectral.Filterbank
}

func (b *barkSpec) span(st *state) int {
	return st.windowSize
}

func (b *barkSpec) size() int {
	if b.bank == nil {
		return 0
	}
	return b.bank.Len()
}

func (b *barkSpec) components() []string {
	return indexComponents(b.size())
}

func (b *barkSpec) configure(st *state) error {
	core, err := newSpectralCore(st)
	if err != nil {
		return err
	}

	bank, err := spectral.NewFilterbank(spectral.ScaleBark, st.params.BarkSpacing, st.binConverter())
	if err != nil {
		return err
	}

	b.core = core
	b.bank = bank
	return nil
}

func (b *barkSpec) compute(st *state, frame, dst []float64) error {
	spectrum, err := b.core.analyze(st, frame)
	if err != nil {
		return err
	}
	return b.bank.Apply(spectrum, dst, st.params.FilterOperation, st.params.NormalizeFilterbank)
}

// cepstralCoefficients computes BFCCs or MFCCs: filterbank, log10, DCT-II
type cepstralCoefficients struct {
	scale spectral.Scale

	core  spectralCore
	bank  *spectral.Filterbank
	bands []float64
	dct   *spectral.DCT
}

func newCepstralCoefficients(mel bool) *cepstralCoefficients {
	if mel {
		return &cepstralCoefficients{scale: spectral.ScaleMel}
	}
	return &cepstralCoefficients{scale: spectral.ScaleBark}
}

func (c *cepstralCoefficients) span(st *state) int {
	return st.windowSize
}

func (c *cepstralCoefficients) size() int {
	if c.bank == nil {
		return 0
	}
	return c.bank.Len()
}

func (c *cepstralCoefficients) components() []string {
	return indexComponents(c.size())
}

func (c *cepstralCoefficients) spacing(st *state) float64 {
	if c.scale == spectral.ScaleMel {
		return st.params.MelSpacing
	}
	return st.params.BarkSpacing
}

func (c *cepstralCoefficients) configure(st *state) error {
	core, err := newSpectralCore(st)
	if err != nil {
		return err
	}

	bank, err := spectral.NewFilterbank(c.scale, c.spacing(st), st.binConverter())
	if err != nil {
		return err
	}

	dct, err := spectral.NewDCT(bank.Len())
	if err != nil {
		return err
	}

	c.core = core
	c.bank = bank
	c.bands = make([]float64, bank.Len())
	c.dct = dct
	return nil
}

func (c *cepstralCoefficients) compute(st *state, frame, dst []float64) error {
	spectrum, err := c.core.analyze(st, frame)
	if err != nil {
		return err
	}
	if err := c.bank.Apply(spectrum, c.bands, st.params.FilterOperation, st.params.NormalizeFilterbank); err != nil {
		return err
	}

	for i, v := range c.bands {
		if st.params.SpectrumOffset {
			v += 1.0
		}
		c.bands[i] = math.Log10(math.Max(v, logFloor))
	}

	return c.dct.Compute(c.bands, dst)
}

// cepstrum is the inverse transform of the log spectrum, first N/2+1 values
type cepstrum struct {
	core     spectralCore
	logSpec  []float64
	sequence []float64
	n        int
}

func (c *cepstrum) span(st *state) int {
	return st.windowSize
}

func (c *cepstrum) size() int {
	return c.n
}

func (c *cepstrum) components() []string {
	return indexComponents(c.n)
}

func (c *cepstrum) configure(st *state) error {
	core, err := newSpectralCore(st)
	if err != nil {
		return err
	}

	c.core = core
	c.n = core.transform.NumBins()
	c.logSpec = make([]float64, c.n)
	c.sequence = make([]float64, st.windowSize)
	return nil
}

func (c *cepstrum) compute(st *state, frame, dst []float64) error {
	spectrum, err := c.core.analyze(st, frame)
	if err != nil {
		return err
	}

	for i, v := range spectrum {
		if st.params.SpectrumOffset {
			v += 1.0
		}
		c.logSpec[i] = math.Log(math.Max(v, logFloor))
	}

	if err := c.core.transform.Inverse(c.logSpec, c.sequence); err != nil {
		return err
	}

	for i := range dst {
		v := c.sequence[i]
		if st.params.PowerCepstrum {
			v *= v
		}
		dst[i] = v
	}

	return nil
}
