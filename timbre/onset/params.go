package onset

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
	"github.com/RyanBlaney/sonido-timbre/algorithms/windowing"
)

// FunctionKind selects the onset detection function
type FunctionKind int

const (
	// BarkGrowth sums the positive dB growth of Bark band energies between frames
	BarkGrowth FunctionKind = iota
	// HFC tracks increases of the high frequency content
	HFC
)

func (k FunctionKind) String() string {
	if k == HFC {
		return "hfc"
	}
	return "bark_growth"
}

// ParseFunctionKind converts a backend name into a FunctionKind
func ParseFunctionKind(name string) (FunctionKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bark_growth", "barkgrowth", "bark", "":
		return BarkGrowth, nil
	case "hfc":
		return HFC, nil
	default:
		return BarkGrowth, fmt.Errorf("unknown onset function %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (k FunctionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *FunctionKind) UnmarshalText(text []byte) error {
	parsed, err := ParseFunctionKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Params configures a Detector. The hop is always one block.
type Params struct {
	Function       FunctionKind          `json:"function" yaml:"function" mapstructure:"function"`
	WindowSize     int                   `json:"window_size" yaml:"window_size" mapstructure:"window_size"`
	WindowFunction windowing.Type        `json:"window_function" yaml:"window_function" mapstructure:"window_function"`
	SpectrumType   spectral.SpectrumType `json:"spectrum_type" yaml:"spectrum_type" mapstructure:"spectrum_type"`
	BarkSpacing    float64               `json:"bark_spacing" yaml:"bark_spacing" mapstructure:"bark_spacing"`

	// HiThresh arms the detector; it fires once the metric drops below LoThresh.
	// A negative LoThresh fires on the first frame whose metric decreases.
	HiThresh   float64 `json:"hi_thresh" yaml:"hi_thresh" mapstructure:"hi_thresh"`
	LoThresh   float64 `json:"lo_thresh" yaml:"lo_thresh" mapstructure:"lo_thresh"`
	DebounceMs float64 `json:"debounce_ms" yaml:"debounce_ms" mapstructure:"debounce_ms"`

	// analysed frequency range, MaxFreq 0 means Nyquist
	MinFreq float64 `json:"min_freq" yaml:"min_freq" mapstructure:"min_freq"`
	MaxFreq float64 `json:"max_freq" yaml:"max_freq" mapstructure:"max_freq"`

	// band energy floor for BarkGrowth
	GrowthFloor float64 `json:"growth_floor" yaml:"growth_floor" mapstructure:"growth_floor"`
}

// DefaultParams returns a Bark growth detector over a 1024-sample Hann window
func DefaultParams() Params {
	return Params{
		Function:       BarkGrowth,
		WindowSize:     1024,
		WindowFunction: windowing.Hann,
		SpectrumType:   spectral.SpectrumPower,
		BarkSpacing:    1.0,
		HiThresh:       40.0,
		LoThresh:       10.0,
		DebounceMs:     50.0,
		MinFreq:        0.0,
		MaxFreq:        0.0,
		GrowthFloor:    1e-4,
	}
}

// Validate checks parameters that do not depend on the stream format
func (p Params) Validate() error {
	if p.WindowSize < windowing.MinSize {
		return fmt.Errorf("%w: %d", ErrInvalidWindowSize, p.WindowSize)
	}
	if p.LoThresh >= 0 && p.LoThresh > p.HiThresh {
		return fmt.Errorf("%w: low %g above high %g", ErrInvalidThreshold, p.LoThresh, p.HiThresh)
	}
	if p.DebounceMs < 0 {
		return fmt.Errorf("%w: debounce %g ms", ErrInvalidThreshold, p.DebounceMs)
	}
	if p.MinFreq < 0 || (p.MaxFreq > 0 && p.MaxFreq <= p.MinFreq) {
		return fmt.Errorf("%w: [%g, %g] Hz", ErrInvalidRange, p.MinFreq, p.MaxFreq)
	}
	if p.GrowthFloor <= 0 {
		return fmt.Errorf("invalid growth floor: %g", p.GrowthFloor)
	}
	return nil
}
