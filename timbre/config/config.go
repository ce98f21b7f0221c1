package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-timbre/algorithms/filters"
	"github.com/RyanBlaney/sonido-timbre/logging"
	"github.com/RyanBlaney/sonido-timbre/timbre/extractors"
	"github.com/RyanBlaney/sonido-timbre/timbre/knn"
	"github.com/RyanBlaney/sonido-timbre/timbre/onset"
	"github.com/RyanBlaney/sonido-timbre/timbre/pipeline"
	"github.com/RyanBlaney/sonido-timbre/timbre/windowed"
)

// ErrDerivedWindowSize rejects an explicit extractor window, which always
// equals extraction.frame_size blocks
var ErrDerivedWindowSize = errors.New("extraction.params.window_size is derived from frame_size and block_size, set extraction.frame_size instead")

// Config is the complete analysis configuration
type Config struct {
	Audio      AudioConfig      `mapstructure:"audio" json:"audio" yaml:"audio"`
	Extraction ExtractionConfig `mapstructure:"extraction" json:"extraction" yaml:"extraction"`
	Onset      OnsetConfig      `mapstructure:"onset" json:"onset" yaml:"onset"`
	Classifier ClassifierConfig `mapstructure:"classifier" json:"classifier" yaml:"classifier"`
	Log        LogConfig        `mapstructure:"log" json:"log" yaml:"log"`
}

// AudioConfig describes the incoming block stream
type AudioConfig struct {
	SampleRate float64 `mapstructure:"sample_rate" json:"sample_rate" yaml:"sample_rate"`
	BlockSize  int     `mapstructure:"block_size" json:"block_size" yaml:"block_size"`
	Channel    int     `mapstructure:"channel" json:"channel" yaml:"channel"`

	// input conditioning, 0 disables either stage
	DCCutoff    float64 `mapstructure:"dc_cutoff" json:"dc_cutoff" yaml:"dc_cutoff"`
	PreEmphasis float64 `mapstructure:"pre_emphasis" json:"pre_emphasis" yaml:"pre_emphasis"`

	// capture only
	Device   string `mapstructure:"device" json:"device" yaml:"device"`
	Channels int    `mapstructure:"channels" json:"channels" yaml:"channels"`
}

// ExtractionConfig describes the super-window. Frame sizes are counted in blocks.
// Params.WindowSize is left zero and filled in by Windowed.
type ExtractionConfig struct {
	WindowSize    int               `mapstructure:"window_size" json:"window_size" yaml:"window_size"`
	FrameSize     int               `mapstructure:"frame_size" json:"frame_size" yaml:"frame_size"`
	FrameInterval int               `mapstructure:"frame_interval" json:"frame_interval" yaml:"frame_interval"`
	ZeroPads      int               `mapstructure:"zero_pads" json:"zero_pads" yaml:"zero_pads"`
	Features      []extractors.Kind `mapstructure:"features" json:"features" yaml:"features"`
	Params        extractors.Params `mapstructure:"params" json:"params" yaml:"params"`
}

// OnsetConfig holds the detector parameters and when, relative to an onset,
// the feature matrix is taken
type OnsetConfig struct {
	onset.Params `mapstructure:",squash" yaml:",inline"`

	PostOnsetBlocks int `mapstructure:"post_onset_blocks" json:"post_onset_blocks" yaml:"post_onset_blocks"`
	QueueVectors    int `mapstructure:"queue_vectors" json:"queue_vectors" yaml:"queue_vectors"`
}

// ClassifierConfig holds the k-NN options and the worker loop settings
type ClassifierConfig struct {
	knn.Options `mapstructure:",squash" yaml:",inline"`

	// Clusters groups the trained classes each time training stops, 0 disables
	Clusters        int           `mapstructure:"clusters" json:"clusters" yaml:"clusters"`
	Interval        time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`
	PredictionQueue int           `mapstructure:"prediction_queue" json:"prediction_queue" yaml:"prediction_queue"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Colors bool   `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	w := windowed.DefaultConfig()
	w.Params.WindowSize = 0
	a := pipeline.DefaultAnalyzerOptions()
	wo := pipeline.DefaultWorkerOptions()

	return Config{
		Audio: AudioConfig{
			SampleRate: w.SampleRate,
			BlockSize:  w.BlockSize,
			Channel:    a.Channel,
			Channels:   1,
		},
		Extraction: ExtractionConfig{
			WindowSize:    w.WindowSize,
			FrameSize:     w.FrameSize,
			FrameInterval: w.FrameInterval,
			ZeroPads:      w.ZeroPads,
			Features:      w.Features,
			Params:        w.Params,
		},
		Onset: OnsetConfig{
			Params:          onset.DefaultParams(),
			PostOnsetBlocks: a.PostOnsetBlocks,
			QueueVectors:    a.QueueVectors,
		},
		Classifier: ClassifierConfig{
			Options:         knn.DefaultOptions(),
			Clusters:        0,
			Interval:        wo.Interval,
			PredictionQueue: wo.PredictionQueue,
		},
		Log: LogConfig{
			Level:  "info",
			Colors: true,
		},
	}
}

// Windowed returns the aggregator configuration. The extractor window is
// always one frame, FrameSize blocks long.
func (c Config) Windowed() windowed.Config {
	params := c.Extraction.Params
	params.WindowSize = c.Extraction.FrameSize * c.Audio.BlockSize
	return windowed.Config{
		SampleRate:    c.Audio.SampleRate,
		BlockSize:     c.Audio.BlockSize,
		WindowSize:    c.Extraction.WindowSize,
		FrameSize:     c.Extraction.FrameSize,
		FrameInterval: c.Extraction.FrameInterval,
		ZeroPads:      c.Extraction.ZeroPads,
		Features:      c.Extraction.Features,
		Params:        params,
	}
}

// AnalyzerOptions returns the onset to extraction wiring
func (c Config) AnalyzerOptions() pipeline.AnalyzerOptions {
	return pipeline.AnalyzerOptions{
		Channel:         c.Audio.Channel,
		PostOnsetBlocks: c.Onset.PostOnsetBlocks,
		QueueVectors:    c.Onset.QueueVectors,
	}
}

// Conditioner builds the input filters for a stream of channels. It is nil
// when both stages are disabled.
func (c Config) Conditioner(channels int) (*filters.Conditioner, error) {
	return filters.NewConditioner(channels, c.Audio.SampleRate, c.Audio.DCCutoff, c.Audio.PreEmphasis)
}

// WorkerOptions returns the classification worker settings
func (c Config) WorkerOptions() pipeline.WorkerOptions {
	return pipeline.WorkerOptions{
		Interval:        c.Classifier.Interval,
		PredictionQueue: c.Classifier.PredictionQueue,
	}
}

// Validate checks every section
func (c Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive, got %g", c.Audio.SampleRate)
	}
	if c.Audio.BlockSize <= 0 {
		return fmt.Errorf("audio block size must be positive, got %d", c.Audio.BlockSize)
	}
	if c.Audio.Channel < 0 {
		return fmt.Errorf("audio channel cannot be negative, got %d", c.Audio.Channel)
	}
	if c.Audio.Channels < 1 || c.Audio.Channel >= c.Audio.Channels {
		return fmt.Errorf("audio channel %d outside %d capture channels", c.Audio.Channel, c.Audio.Channels)
	}
	if _, err := c.Conditioner(c.Audio.Channels); err != nil {
		return fmt.Errorf("audio: %w", err)
	}

	w := c.Windowed()
	if err := w.Validate(); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if err := w.Params.Validate(); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}

	if err := c.Onset.Params.Validate(); err != nil {
		return fmt.Errorf("onset: %w", err)
	}
	if c.Onset.PostOnsetBlocks < 0 {
		return fmt.Errorf("onset: post onset blocks cannot be negative, got %d", c.Onset.PostOnsetBlocks)
	}
	if c.Onset.QueueVectors < 1 {
		return fmt.Errorf("onset: queue must hold at least one vector, got %d", c.Onset.QueueVectors)
	}

	if c.Classifier.K < 1 {
		return fmt.Errorf("classifier: %w: %d", knn.ErrInvalidK, c.Classifier.K)
	}
	if _, err := knn.ParseMetric(c.Classifier.Metric); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if c.Classifier.Clusters < 0 {
		return fmt.Errorf("classifier: cluster count cannot be negative, got %d", c.Classifier.Clusters)
	}
	if c.Classifier.Interval <= 0 {
		return fmt.Errorf("classifier: worker interval must be positive, got %s", c.Classifier.Interval)
	}

	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	return nil
}

// ApplyLogging configures the global logger from the log section
func (c Config) ApplyLogging() {
	level, _ := logging.ParseLevel(c.Log.Level)
	logging.SetLevel(level)
	if c.Log.Colors {
		logging.EnableColors()
	} else {
		logging.DisableColors()
	}
}
