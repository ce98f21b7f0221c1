package windowed

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
	"github.com/RyanBlaney/sonido-timbre/algorithms/windowing"
	"github.com/RyanBlaney/sonido-timbre/timbre/extractors"
)

// Config describes the super-window. FrameSize, FrameInterval and ZeroPads are
// counted in blocks.
type Config struct {
	SampleRate    float64           `json:"sample_rate"`
	BlockSize     int               `json:"block_size"`
	WindowSize    int               `json:"window_size"`
	FrameSize     int               `json:"frame_size"`
	FrameInterval int               `json:"frame_interval"`
	ZeroPads      int               `json:"zero_pads"`
	Features      []extractors.Kind `json:"features"`
	Params        extractors.Params `json:"params"`
}

// DefaultFeatures is every extractor except the raw cepstrum
func DefaultFeatures() []extractors.Kind {
	return []extractors.Kind{
		extractors.AttackTime,
		extractors.BarkSpecBrightness,
		extractors.BarkSpec,
		extractors.Bfcc,
		extractors.Mfcc,
		extractors.PeakSample,
		extractors.ZeroCrossing,
	}
}

// DefaultConfig returns a 1024-sample super-window of 64-sample blocks with
// 4-block frames every 2 blocks and 2 blocks of zero padding
func DefaultConfig() Config {
	c := Config{
		SampleRate:    44100,
		BlockSize:     64,
		WindowSize:    1024,
		FrameSize:     4,
		FrameInterval: 2,
		ZeroPads:      2,
		Features:      DefaultFeatures(),
		Params:        extractors.DefaultParams(),
	}
	c.Params.WindowSize = c.FrameWindowSize()
	return c
}

// BlocksPerWindow is ceil(WindowSize/BlockSize)
func (c Config) BlocksPerWindow() int {
	return common.CeilDiv(c.WindowSize, c.BlockSize)
}

// BufferSize is the number of frame vectors spanned by the super-window
// including the zero padding
func (c Config) BufferSize() int {
	return c.BlocksPerWindow() + c.ZeroPads
}

// FramesRes is the number of frame vectors in one feature matrix
func (c Config) FramesRes() int {
	return c.BufferSize() / c.FrameInterval
}

// FrameWindowSize is the analysis window of every extractor in samples
func (c Config) FrameWindowSize() int {
	return c.FrameSize * c.BlockSize
}

// Validate checks the super-window geometry
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %g", ErrInvalidConfig, c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, c.BlockSize)
	case c.WindowSize < c.BlockSize:
		return fmt.Errorf("%w: window size %d shorter than block size %d", ErrInvalidConfig, c.WindowSize, c.BlockSize)
	case c.FrameSize <= 0:
		return fmt.Errorf("%w: frame size %d", ErrInvalidConfig, c.FrameSize)
	case c.FrameSize*c.BlockSize < windowing.MinSize:
		return fmt.Errorf("%w: frame of %d samples is shorter than %d", ErrInvalidConfig, c.FrameSize*c.BlockSize, windowing.MinSize)
	case c.FrameInterval <= 0:
		return fmt.Errorf("%w: frame interval %d", ErrInvalidConfig, c.FrameInterval)
	case c.ZeroPads < 0:
		return fmt.Errorf("%w: zero pads %d", ErrInvalidConfig, c.ZeroPads)
	case len(c.Features) == 0:
		return fmt.Errorf("%w: no features enabled", ErrInvalidConfig)
	case c.FramesRes() < 1:
		return fmt.Errorf("%w: frame interval %d exceeds buffer size %d", ErrInvalidConfig, c.FrameInterval, c.BufferSize())
	}
	return nil
}

// orderedFeatures returns the enabled kinds in concatenation order without duplicates
func (c Config) orderedFeatures() []extractors.Kind {
	kinds := slices.Clone(c.Features)
	slices.Sort(kinds)
	return slices.Compact(kinds)
}
