package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-timbre/timbre/extractors"
	"github.com/RyanBlaney/sonido-timbre/timbre/knn"
	"github.com/RyanBlaney/sonido-timbre/timbre/onset"
	"github.com/RyanBlaney/sonido-timbre/timbre/windowed"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, windowed.DefaultConfig(), cfg.Windowed())
	assert.NotContains(t, cfg.Extraction.Features, extractors.Cepstrum)
	assert.Equal(t, 8, cfg.AnalyzerOptions().PostOnsetBlocks)
	assert.Equal(t, 10*time.Millisecond, cfg.WorkerOptions().Interval)
}

func TestLoadWithoutFileYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "timbre.yaml", `
audio:
  block_size: 128
extraction:
  window_size: 2048
  features: [Mfcc, PeakSample]
  params:
    window_function: hann
    mel_spacing: 150
onset:
  function: hfc
  lo_thresh: -1
  post_onset_blocks: 4
classifier:
  k: 3
  metric: cosine
  interval: 25ms
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Audio.BlockSize)
	assert.Equal(t, 44100.0, cfg.Audio.SampleRate)
	assert.Equal(t, 2048, cfg.Extraction.WindowSize)
	assert.Equal(t, []extractors.Kind{extractors.Mfcc, extractors.PeakSample}, cfg.Extraction.Features)
	assert.Equal(t, 150.0, cfg.Extraction.Params.MelSpacing)
	assert.Equal(t, 0.5, cfg.Extraction.Params.BarkSpacing)
	assert.Equal(t, "hann", cfg.Extraction.Params.WindowFunction.String())

	assert.Equal(t, onset.HFC, cfg.Onset.Function)
	assert.Equal(t, -1.0, cfg.Onset.LoThresh)
	assert.Equal(t, 40.0, cfg.Onset.HiThresh)
	assert.Equal(t, 4, cfg.Onset.PostOnsetBlocks)

	assert.Equal(t, 3, cfg.Classifier.K)
	assert.Equal(t, knn.Cosine.String(), cfg.Classifier.Metric)
	assert.Equal(t, 25*time.Millisecond, cfg.Classifier.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("TIMBRE_AUDIO_BLOCK_SIZE", "256")
	t.Setenv("TIMBRE_EXTRACTION_FEATURES", "Bfcc,ZeroCrossing")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Audio.BlockSize)
	assert.Equal(t, []extractors.Kind{extractors.Bfcc, extractors.ZeroCrossing}, cfg.Extraction.Features)
}

func TestExtractorWindowFollowsFrame(t *testing.T) {
	path := writeFile(t, "timbre.yaml", `
audio:
  block_size: 128
extraction:
  frame_size: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Extraction.Params.WindowSize)
	assert.Equal(t, 1024, cfg.Windowed().Params.WindowSize)
	assert.Equal(t, cfg.Windowed().FrameWindowSize(), cfg.Windowed().Params.WindowSize)

	agg, err := windowed.New(cfg.Windowed())
	require.NoError(t, err)
	assert.Equal(t, 1024, agg.Config().Params.WindowSize)
}

func TestExplicitExtractorWindowRejected(t *testing.T) {
	path := writeFile(t, "timbre.yaml", `
extraction:
  params:
    window_size: 2048
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrDerivedWindowSize)

	t.Setenv("TIMBRE_EXTRACTION_PARAMS_WINDOW_SIZE", "512")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrDerivedWindowSize)
}

func TestTextSliceHook(t *testing.T) {
	var out struct {
		Features []extractors.Kind `mapstructure:"features"`
		Names    []string          `mapstructure:"names"`
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			textSliceHook(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		Result: &out,
	})
	require.NoError(t, err)

	require.NoError(t, dec.Decode(map[string]any{
		"features": "Mfcc, PeakSample",
		"names":    []string{"a,b"},
	}))
	assert.Equal(t, []extractors.Kind{extractors.Mfcc, extractors.PeakSample}, out.Features)
	assert.Equal(t, []string{"a,b"}, out.Names)

	assert.ErrorContains(t, dec.Decode(map[string]any{"features": "Mfcc,Loudness"}), "Loudness")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, "bad.yaml", "audio:\n  block_size: 0\n")
	_, err = Load(path)
	assert.ErrorContains(t, err, "block size")

	path = writeFile(t, "feature.yaml", "extraction:\n  features: [Loudness]\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"channel outside capture", func(c *Config) { c.Audio.Channel = 1 }},
		{"dc cutoff above nyquist", func(c *Config) { c.Audio.DCCutoff = 30000 }},
		{"pre-emphasis", func(c *Config) { c.Audio.PreEmphasis = 1.2 }},
		{"window shorter than block", func(c *Config) { c.Extraction.WindowSize = 32 }},
		{"bark spacing", func(c *Config) { c.Extraction.Params.BarkSpacing = 10 }},
		{"onset thresholds", func(c *Config) { c.Onset.LoThresh = 50 }},
		{"queue", func(c *Config) { c.Onset.QueueVectors = 0 }},
		{"k", func(c *Config) { c.Classifier.K = 0 }},
		{"metric", func(c *Config) { c.Classifier.Metric = "hamming" }},
		{"interval", func(c *Config) { c.Classifier.Interval = 0 }},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConditioner(t *testing.T) {
	cfg := DefaultConfig()
	cond, err := cfg.Conditioner(2)
	require.NoError(t, err)
	assert.Nil(t, cond)

	cfg.Audio.DCCutoff = 10
	cfg.Audio.PreEmphasis = 0.97
	require.NoError(t, cfg.Validate())
	cond, err = cfg.Conditioner(2)
	require.NoError(t, err)
	assert.NotNil(t, cond)
}

func newSelectionAggregator(t *testing.T) *windowed.Aggregator {
	t.Helper()

	cfg := windowed.DefaultConfig()
	cfg.Features = []extractors.Kind{extractors.PeakSample, extractors.ZeroCrossing}
	agg, err := windowed.New(cfg)
	require.NoError(t, err)
	return agg
}

func TestSelectionRoundTrip(t *testing.T) {
	agg := newSelectionAggregator(t)
	header := agg.Header()
	names := []string{header[0], header[5]}

	require.NoError(t, agg.SetFeatureSelectionFilter(names))
	scaler, err := windowed.NewMinMaxScaler([]float64{0, 10}, []float64{1, 30})
	require.NoError(t, err)
	require.NoError(t, agg.SetScaler(scaler))

	sel := SelectionOf(agg)
	require.NotNil(t, sel)

	path := filepath.Join(t.TempDir(), "selection.yaml")
	require.NoError(t, WriteSelection(path, sel))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind: minmax")

	loaded, err := ReadSelection(path)
	require.NoError(t, err)
	assert.Equal(t, sel, loaded)

	fresh := newSelectionAggregator(t)
	require.NoError(t, loaded.Apply(fresh))
	assert.Equal(t, names, fresh.FeatureFilter().Names())
	require.NotNil(t, fresh.Scaler())
	assert.Equal(t, scaler.Offset, fresh.Scaler().Offset)
	assert.Equal(t, scaler.Factor, fresh.Scaler().Factor)
}

func TestSelectionWithoutScaler(t *testing.T) {
	path := writeFile(t, "selection.yaml", "features: [0_ZeroCrossing_zcr]\n")

	agg := newSelectionAggregator(t)
	assert.Nil(t, SelectionOf(agg))

	sel, err := ReadSelection(path)
	require.NoError(t, err)
	assert.Nil(t, sel.Scaler)
}

func TestSelectionErrors(t *testing.T) {
	_, err := ReadSelection(writeFile(t, "empty.yaml", "features: []\n"))
	assert.Error(t, err)

	_, err = ReadSelection(writeFile(t, "kind.yaml", "features: [a]\nscaler:\n  kind: robust\n"))
	assert.Error(t, err)

	sel := &Selection{Features: []string{"0_Loudness_db"}}
	assert.ErrorIs(t, sel.Apply(newSelectionAggregator(t)), windowed.ErrUnknownFeature)
}
