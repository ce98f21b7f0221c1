package windowed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-timbre/timbre/extractors"
)

func constantBlock(value float64, size int) [][]float64 {
	block := make([]float64, size)
	for i := range block {
		block[i] = value
	}
	return [][]float64{block}
}

// tinyConfig uses 4-sample blocks and 4-sample frames so that every frame
// vector is the PeakSample/ZeroCrossing of exactly one block
func tinyConfig(interval, pads int) Config {
	cfg := DefaultConfig()
	cfg.BlockSize = 4
	cfg.WindowSize = 16
	cfg.FrameSize = 1
	cfg.FrameInterval = interval
	cfg.ZeroPads = pads
	cfg.Features = []extractors.Kind{extractors.ZeroCrossing, extractors.PeakSample}
	return cfg
}

func TestDefaultGeometry(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 18, a.BufferSize())
	assert.Equal(t, 9, a.FramesRes())
	assert.Equal(t, 3+1+50+50+38+2+1, a.VectorSize())
	assert.Equal(t, a.FramesRes()*a.VectorSize(), a.MatrixSize())
	assert.Equal(t, a.MatrixSize(), a.OutputSize())

	for _, e := range a.Extractors() {
		assert.Equal(t, 256, e.WindowSize())
	}
}

func TestHeader(t *testing.T) {
	a, err := New(DefaultConfig())
	require.NoError(t, err)

	header := a.Header()
	require.Len(t, header, a.MatrixSize())
	assert.Equal(t, "0_AttackTime_peak_index", header[0])
	assert.Equal(t, "0_BarkSpecBrightness_ratio", header[3])
	assert.Equal(t, "0_BarkSpec_0", header[4])
	assert.Equal(t, "1_AttackTime_peak_index", header[a.VectorSize()])
	assert.Equal(t, "8_ZeroCrossing_count", header[len(header)-1])

	seen := make(map[string]bool, len(header))
	for _, h := range header {
		assert.False(t, seen[h], h)
		seen[h] = true
	}
}

func TestFeaturesAreConcatenatedInFixedOrder(t *testing.T) {
	cfg := tinyConfig(1, 0)
	a, err := New(cfg)
	require.NoError(t, err)

	exs := a.Extractors()
	require.Len(t, exs, 2)
	assert.Equal(t, extractors.PeakSample, exs[0].Kind())
	assert.Equal(t, extractors.ZeroCrossing, exs[1].Kind())
	assert.Equal(t, 3, a.VectorSize())
}

func TestHistorySampling(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		pads     int
		blocks   int
		want     []float64
	}{
		// history holds blocks 2..6, rows sample positions 1..4
		{"every frame", 1, 0, 6, []float64{3, 4, 5, 6}},
		// positions 1 and 3
		{"every other frame", 2, 0, 6, []float64{3, 5}},
		// two silent blocks are appended before sampling
		{"zero padded", 1, 2, 7, []float64{4, 5, 6, 7, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tinyConfig(tt.interval, tt.pads))
			require.NoError(t, err)
			require.Equal(t, len(tt.want), a.FramesRes())

			for k := 1; k <= tt.blocks; k++ {
				require.NoError(t, a.StoreAndCompute(constantBlock(float64(k), 4), 0))
			}

			matrix := make([]float64, a.MatrixSize())
			require.NoError(t, a.ComputeFeatureVectors(matrix))

			for i, want := range tt.want {
				row := matrix[i*a.VectorSize() : (i+1)*a.VectorSize()]
				assert.Equal(t, want, row[0], "row %d peak", i)
				assert.Equal(t, 0.0, row[1], "row %d index", i)
				assert.Equal(t, 0.0, row[2], "row %d crossings", i)
			}
		})
	}
}

func TestOutputSizeChecked(t *testing.T) {
	a, err := New(tinyConfig(1, 0))
	require.NoError(t, err)

	assert.ErrorIs(t, a.ComputeFeatureVectors(make([]float64, 2)), ErrOutputSize)
}

func TestStalePadding(t *testing.T) {
	a, err := New(tinyConfig(1, 2))
	require.NoError(t, err)

	// four blocks per window, and each extractor keeps two blocks of history
	require.Equal(t, 5, a.FlushBlocks())

	matrix := make([]float64, a.MatrixSize())
	require.NoError(t, a.ComputeFeatureVectors(matrix))
	assert.True(t, a.PaddingDirty())
	assert.ErrorIs(t, a.ComputeFeatureVectors(matrix), ErrStalePadding)

	for range 4 {
		require.NoError(t, a.StoreAndCompute(constantBlock(1, 4), 0))
	}
	assert.True(t, a.PaddingDirty())

	require.NoError(t, a.StoreAndCompute(constantBlock(1, 4), 0))
	assert.False(t, a.PaddingDirty())
	assert.NoError(t, a.ComputeFeatureVectors(matrix))

	a.Reset()
	assert.False(t, a.PaddingDirty())
}

func TestPaddingNeverReachesAttackSearch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Features = []extractors.Kind{extractors.AttackTime}
	a, err := New(cfg)
	require.NoError(t, err)

	// 16 blocks per window plus 65 blocks of 4096-sample search history
	require.Equal(t, 80, a.FlushBlocks())

	feedConstant := func(blocks int) {
		for range blocks {
			require.NoError(t, a.StoreAndCompute(constantBlock(0.5, cfg.BlockSize), 0))
		}
	}
	// rows before the fresh padding; a steady signal has no attack
	assertNoAttack := func(matrix []float64) {
		for i := range a.FramesRes() - 1 {
			row := matrix[i*a.VectorSize() : (i+1)*a.VectorSize()]
			assert.Equal(t, []float64{3840, -1, -1}, row, "row %d", i)
		}
	}

	matrix := make([]float64, a.MatrixSize())
	feedConstant(a.FlushBlocks())
	require.NoError(t, a.ComputeFeatureVectors(matrix))
	assertNoAttack(matrix)

	feedConstant(a.FlushBlocks() - 1)
	assert.ErrorIs(t, a.ComputeFeatureVectors(matrix), ErrStalePadding)

	feedConstant(1)
	require.NoError(t, a.ComputeFeatureVectors(matrix))
	assertNoAttack(matrix)
}

func TestStoreErrorsPropagate(t *testing.T) {
	a, err := New(tinyConfig(1, 0))
	require.NoError(t, err)

	assert.ErrorIs(t, a.StoreAndCompute(constantBlock(1, 4), 3), extractors.ErrInvalidChannel)
	assert.ErrorIs(t, a.StoreAndCompute(constantBlock(1, 5), 0), extractors.ErrBlockSize)
}

func TestSelectionRequiresFilter(t *testing.T) {
	a, err := New(tinyConfig(1, 0))
	require.NoError(t, err)

	assert.ErrorIs(t, a.ComputeSelectedFeaturesAndScale(make([]float64, 1)), ErrNoFeatureFilter)
	assert.ErrorIs(t, a.SetScaler(&Scaler{Offset: []float64{0}, Factor: []float64{1}}), ErrNoFeatureFilter)
}

func TestUnknownFeatureName(t *testing.T) {
	a, err := New(tinyConfig(1, 0))
	require.NoError(t, err)

	err = a.SetFeatureSelectionFilter([]string{"0_PeakSample_magnitude", "0_Chroma_3"})
	require.ErrorIs(t, err, ErrUnknownFeature)
	assert.Contains(t, err.Error(), "0_Chroma_3")
	assert.Nil(t, a.FeatureFilter())
}

func TestSelectedAndScaled(t *testing.T) {
	a, err := New(tinyConfig(1, 0))
	require.NoError(t, err)

	names := []string{"3_PeakSample_magnitude", "1_PeakSample_magnitude", "2_ZeroCrossing_count"}
	require.NoError(t, a.SetFeatureSelectionFilter(names))
	assert.Equal(t, 3, a.OutputSize())
	assert.Equal(t, names, a.FeatureFilter().Names())

	for k := 1; k <= 6; k++ {
		require.NoError(t, a.StoreAndCompute(constantBlock(float64(k), 4), 0))
	}

	out := make([]float64, 3)
	require.NoError(t, a.ComputeSelectedFeaturesAndScale(out))
	assert.Equal(t, []float64{6, 4, 0}, out)

	bad, err := NewMinMaxScaler([]float64{0}, []float64{1})
	require.NoError(t, err)
	assert.ErrorIs(t, a.SetScaler(bad), ErrScalerSize)

	scaler, err := NewMinMaxScaler([]float64{2, 2, 0}, []float64{10, 6, 0})
	require.NoError(t, err)
	require.NoError(t, a.SetScaler(scaler))

	require.NoError(t, a.StoreAndCompute(constantBlock(7, 4), 0))
	require.NoError(t, a.ComputeSelectedFeaturesAndScale(out))
	// rows now hold blocks 4..7
	assert.InDeltaSlice(t, []float64{(7 - 2) / 8.0, (5 - 2) / 4.0, 0}, out, 1e-12)

	a.ClearScaler()
	assert.Nil(t, a.Scaler())
}

func TestScalers(t *testing.T) {
	rows := [][]float64{{0, 5, 1}, {10, 5, 3}}

	minmax, err := FitMinMax(rows)
	require.NoError(t, err)
	values := []float64{5, 5, 2}
	require.NoError(t, minmax.Apply(values))
	// the constant column is guarded to zero
	assert.InDeltaSlice(t, []float64{0.5, 0, 0.5}, values, 1e-12)

	standard, err := FitStandard(rows)
	require.NoError(t, err)
	assert.Equal(t, StandardScaling, standard.Kind)
	values = []float64{10, 5, 1}
	require.NoError(t, standard.Apply(values))
	assert.InDeltaSlice(t, []float64{1, 0, -1}, values, 1e-12)

	assert.ErrorIs(t, standard.Apply([]float64{1}), ErrScalerSize)

	_, err = NewScaler(MinMaxScaling, []float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrScalerSize)

	kind, err := ParseScalerKind("standard")
	require.NoError(t, err)
	assert.Equal(t, StandardScaling, kind)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameInterval = 100
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Features = nil
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.BlockSize = 0
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
