package extractors

import (
	"fmt"

	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
	"github.com/RyanBlaney/sonido-timbre/algorithms/windowing"
)

// Params configures every extractor kind. Fields a kind does not use are ignored.
// The windowed aggregator resizes every extractor to its frame, overriding WindowSize.
type Params struct {
	WindowSize          int                      `json:"window_size" yaml:"window_size" mapstructure:"window_size"`
	WindowFunction      windowing.Type           `json:"window_function" yaml:"window_function" mapstructure:"window_function"`
	SpectrumType        spectral.SpectrumType    `json:"spectrum_type" yaml:"spectrum_type" mapstructure:"spectrum_type"`
	BarkSpacing         float64                  `json:"bark_spacing" yaml:"bark_spacing" mapstructure:"bark_spacing"`
	MelSpacing          float64                  `json:"mel_spacing" yaml:"mel_spacing" mapstructure:"mel_spacing"`
	FilterOperation     spectral.FilterOperation `json:"filter_operation" yaml:"filter_operation" mapstructure:"filter_operation"`
	NormalizeFilterbank bool                     `json:"normalize_filterbank" yaml:"normalize_filterbank" mapstructure:"normalize_filterbank"`
	SpectrumOffset      bool                     `json:"spectrum_offset" yaml:"spectrum_offset" mapstructure:"spectrum_offset"`
	PowerCepstrum       bool                     `json:"power_cepstrum" yaml:"power_cepstrum" mapstructure:"power_cepstrum"`

	// Bark value separating the "bright" part of the spectrum
	BarkBoundary float64 `json:"bark_boundary" yaml:"bark_boundary" mapstructure:"bark_boundary"`

	// attack detection
	SampMagThresh  float64 `json:"samp_mag_thresh" yaml:"samp_mag_thresh" mapstructure:"samp_mag_thresh"`
	NumSampsThresh int     `json:"num_samps_thresh" yaml:"num_samps_thresh" mapstructure:"num_samps_thresh"`
	MaxSearchRange int     `json:"max_search_range" yaml:"max_search_range" mapstructure:"max_search_range"`

	NumChannels int `json:"num_channels" yaml:"num_channels" mapstructure:"num_channels"`

	// Async places the analysis frame by the wall-clock time elapsed since the last
	// Store; otherwise it sits SyncOffset blocks into the newest block.
	Async      bool    `json:"async" yaml:"async" mapstructure:"async"`
	SyncOffset float64 `json:"sync_offset" yaml:"sync_offset" mapstructure:"sync_offset"`
}

// DefaultParams returns the parameters used when nothing is configured
func DefaultParams() Params {
	return Params{
		WindowSize:          1024,
		WindowFunction:      windowing.Blackman,
		SpectrumType:        spectral.SpectrumPower,
		BarkSpacing:         0.5,
		MelSpacing:          100,
		FilterOperation:     spectral.FilterSum,
		NormalizeFilterbank: false,
		SpectrumOffset:      true,
		PowerCepstrum:       false,
		BarkBoundary:        8.5,
		SampMagThresh:       0.005,
		NumSampsThresh:      10,
		MaxSearchRange:      4096,
		NumChannels:         1,
		Async:               false,
		SyncOffset:          1.0,
	}
}

// Validate checks the parameters that do not depend on the sample rate
func (p Params) Validate() error {
	if p.WindowSize < windowing.MinSize {
		return fmt.Errorf("%w: %d (minimum %d)", ErrInvalidWindowSize, p.WindowSize, windowing.MinSize)
	}
	if p.NumChannels < 1 {
		return fmt.Errorf("%w: %d channels configured", ErrInvalidChannel, p.NumChannels)
	}
	if lo, hi := spectral.ScaleBark.SpacingBounds(); p.BarkSpacing < lo || p.BarkSpacing > hi {
		return fmt.Errorf("%w: bark spacing %g", ErrInvalidSpacing, p.BarkSpacing)
	}
	if lo, hi := spectral.ScaleMel.SpacingBounds(); p.MelSpacing < lo || p.MelSpacing > hi {
		return fmt.Errorf("%w: mel spacing %g", ErrInvalidSpacing, p.MelSpacing)
	}
	if p.SampMagThresh < 0 {
		return fmt.Errorf("invalid sample magnitude threshold: %g", p.SampMagThresh)
	}
	if p.NumSampsThresh < 1 {
		return fmt.Errorf("invalid quiet sample count: %d", p.NumSampsThresh)
	}
	if p.SyncOffset < 0 {
		return fmt.Errorf("invalid sync offset: %g", p.SyncOffset)
	}
	return nil
}
