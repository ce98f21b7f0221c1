package config

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-timbre/logging"
)

// derivedWindowKey is filled from extraction.frame_size and audio.block_size
const derivedWindowKey = "extraction.params.window_size"

// EnvPrefix prefixes environment overrides, e.g. TIMBRE_AUDIO_BLOCK_SIZE
const EnvPrefix = "TIMBRE"

// NewViper returns a viper instance with every default registered and
// environment overrides enabled. Flags can be bound to it before Decode.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())
	return v
}

// Load reads path (optional) on top of the defaults and environment and validates the result
func Load(path string) (*Config, error) {
	v := NewViper()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ReadFile merges the YAML file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	logging.Debug("Config file loaded", logging.Fields{
		"component": "config",
		"path":      v.ConfigFileUsed(),
	})
	return nil
}

// Decode unmarshals v into a Config and validates it
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		textSliceHook(","),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if v.IsSet(derivedWindowKey) {
		return nil, fmt.Errorf("invalid configuration: %w", ErrDerivedWindowSize)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// textSliceHook splits a separated string headed for a slice of
// encoding.TextUnmarshaler elements, e.g. TIMBRE_EXTRACTION_FEATURES=Bfcc,Mfcc.
// The elements are then decoded one by one by TextUnmarshallerHookFunc.
func textSliceHook(sep string) mapstructure.DecodeHookFuncType {
	unmarshaler := reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}
		if !reflect.PointerTo(to.Elem()).Implements(unmarshaler) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []string{}, nil
		}

		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}

func setDefaults(v *viper.Viper, d Config) {
	// audio
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.block_size", d.Audio.BlockSize)
	v.SetDefault("audio.channel", d.Audio.Channel)
	v.SetDefault("audio.dc_cutoff", d.Audio.DCCutoff)
	v.SetDefault("audio.pre_emphasis", d.Audio.PreEmphasis)
	v.SetDefault("audio.device", d.Audio.Device)
	v.SetDefault("audio.channels", d.Audio.Channels)

	// extraction super-window
	v.SetDefault("extraction.window_size", d.Extraction.WindowSize)
	v.SetDefault("extraction.frame_size", d.Extraction.FrameSize)
	v.SetDefault("extraction.frame_interval", d.Extraction.FrameInterval)
	v.SetDefault("extraction.zero_pads", d.Extraction.ZeroPads)

	features := make([]string, len(d.Extraction.Features))
	for i, k := range d.Extraction.Features {
		features[i] = k.String()
	}
	v.SetDefault("extraction.features", features)

	// extractor parameters
	p := d.Extraction.Params
	v.SetDefault("extraction.params.window_function", p.WindowFunction.String())
	v.SetDefault("extraction.params.spectrum_type", p.SpectrumType.String())
	v.SetDefault("extraction.params.bark_spacing", p.BarkSpacing)
	v.SetDefault("extraction.params.mel_spacing", p.MelSpacing)
	v.SetDefault("extraction.params.filter_operation", p.FilterOperation.String())
	v.SetDefault("extraction.params.normalize_filterbank", p.NormalizeFilterbank)
	v.SetDefault("extraction.params.spectrum_offset", p.SpectrumOffset)
	v.SetDefault("extraction.params.power_cepstrum", p.PowerCepstrum)
	v.SetDefault("extraction.params.bark_boundary", p.BarkBoundary)
	v.SetDefault("extraction.params.samp_mag_thresh", p.SampMagThresh)
	v.SetDefault("extraction.params.num_samps_thresh", p.NumSampsThresh)
	v.SetDefault("extraction.params.max_search_range", p.MaxSearchRange)
	v.SetDefault("extraction.params.num_channels", p.NumChannels)
	v.SetDefault("extraction.params.async", p.Async)
	v.SetDefault("extraction.params.sync_offset", p.SyncOffset)

	// onset detector
	o := d.Onset
	v.SetDefault("onset.function", o.Function.String())
	v.SetDefault("onset.window_size", o.WindowSize)
	v.SetDefault("onset.window_function", o.WindowFunction.String())
	v.SetDefault("onset.spectrum_type", o.SpectrumType.String())
	v.SetDefault("onset.bark_spacing", o.BarkSpacing)
	v.SetDefault("onset.hi_thresh", o.HiThresh)
	v.SetDefault("onset.lo_thresh", o.LoThresh)
	v.SetDefault("onset.debounce_ms", o.DebounceMs)
	v.SetDefault("onset.min_freq", o.MinFreq)
	v.SetDefault("onset.max_freq", o.MaxFreq)
	v.SetDefault("onset.growth_floor", o.GrowthFloor)
	v.SetDefault("onset.post_onset_blocks", o.PostOnsetBlocks)
	v.SetDefault("onset.queue_vectors", o.QueueVectors)

	// classifier
	c := d.Classifier
	v.SetDefault("classifier.k", c.K)
	v.SetDefault("classifier.metric", c.Metric)
	v.SetDefault("classifier.normalize", c.Normalize)
	v.SetDefault("classifier.clusters", c.Clusters)
	v.SetDefault("classifier.interval", c.Interval.String())
	v.SetDefault("classifier.prediction_queue", c.PredictionQueue)

	// logging
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.colors", d.Log.Colors)
}
