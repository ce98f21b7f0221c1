package spectral

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleConversionsRoundTrip(t *testing.T) {
	for _, freq := range []float64{0, 50, 440, 1000, 8000, 22050} {
		assert.InDelta(t, freq, BarkToFreq(FreqToBark(freq)), 1e-6)
		assert.InDelta(t, freq, MelToFreq(FreqToMel(freq)), 1e-6)
	}
}

func TestBuildBoundariesCounts(t *testing.T) {
	bark, err := BuildBoundaries(ScaleBark, 0.5, 44100)
	require.NoError(t, err)
	assert.Len(t, bark, 52)

	mel, err := BuildBoundaries(ScaleMel, 100, 44100)
	require.NoError(t, err)
	assert.Len(t, mel, 40)

	assert.Zero(t, bark[0])
	for i := 1; i < len(bark); i++ {
		assert.Greater(t, bark[i], bark[i-1])
	}
}

func TestBuildBoundariesRejectsSpacing(t *testing.T) {
	_, err := BuildBoundaries(ScaleBark, 0.05, 44100)
	assert.ErrorIs(t, err, ErrInvalidSpacing)

	_, err = BuildBoundaries(ScaleBark, 7, 44100)
	assert.ErrorIs(t, err, ErrInvalidSpacing)

	_, err = BuildBoundaries(ScaleMel, 2000, 44100)
	assert.ErrorIs(t, err, ErrInvalidSpacing)
}

// windowSizes spans the smallest analysis window up to a long one
var windowSizes = []int{4, 64, 1024, 4096}

func TestFilterbankLayout(t *testing.T) {
	tests := []struct {
		scale   Scale
		spacing float64
		filters int
	}{
		{ScaleBark, 0.5, 50},
		{ScaleMel, 100, 38},
	}

	for _, n := range windowSizes {
		conv := BinConverter{WindowSize: n, SampleRate: 44100}
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%d", tt.scale, n), func(t *testing.T) {
				fb, err := NewFilterbank(tt.scale, tt.spacing, conv)
				require.NoError(t, err)
				assert.Equal(t, tt.filters, fb.Len(), "filter count depends only on the scale")
				assert.Equal(t, n/2+1, fb.NumBins())

				filters := fb.Filters()
				for i, f := range filters {
					assert.GreaterOrEqual(t, f.Size(), 1)
					assert.Equal(t, f.Hi-f.Lo+1, f.Size())
					assert.GreaterOrEqual(t, f.Lo, 0)
					assert.LessOrEqual(t, f.Hi, n/2)
					for _, w := range f.Weights {
						assert.False(t, math.IsNaN(w))
						assert.GreaterOrEqual(t, w, 0.0)
						assert.LessOrEqual(t, w, 1.0)
					}
					if i > 0 {
						assert.GreaterOrEqual(t, f.Lo, filters[i-1].Lo)
						assert.GreaterOrEqual(t, f.Hi, filters[i-1].Hi)
					}
				}

				spectrum := make([]float64, fb.NumBins())
				for i := range spectrum {
					spectrum[i] = 1.0
				}
				for _, normalize := range []bool{false, true} {
					out := make([]float64, fb.Len())
					require.NoError(t, fb.Apply(spectrum, out, FilterAverage, normalize))
					for _, v := range out {
						assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
						assert.GreaterOrEqual(t, v, 0.0)
					}
				}
			})
		}
	}
}

func TestBinConverterAcrossWindowSizes(t *testing.T) {
	const sr = 44100.0

	for _, n := range windowSizes {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			conv := BinConverter{WindowSize: n, SampleRate: sr}
			assert.Equal(t, n/2+1, conv.NumBins())

			assert.Equal(t, 0, conv.FreqToBin(-100))
			assert.Equal(t, 0, conv.FreqToBin(0))
			assert.Equal(t, n/2, conv.FreqToBin(sr/2))
			assert.Equal(t, n/2, conv.FreqToBin(sr), "clamped to nyquist")
			assert.InDelta(t, sr/2, conv.BinToFreq(n/2), 1e-9)

			prev := 0
			for bin := 0; bin <= n/2; bin++ {
				assert.Equal(t, bin, conv.FreqToBin(conv.BinToFreq(bin)))
			}
			for freq := 0.0; freq <= sr/2; freq += 97 {
				bin := conv.FreqToBin(freq)
				assert.GreaterOrEqual(t, bin, prev)
				prev = bin
			}
		})
	}

	assert.Equal(t, 0, BinConverter{WindowSize: 1024}.FreqToBin(1000))
}

func TestFilterbankApply(t *testing.T) {
	conv := BinConverter{WindowSize: 64, SampleRate: 8000}
	fb, err := CreateFilterbank([]float64{0, 500, 1000, 1500}, conv)
	require.NoError(t, err)
	require.Equal(t, 2, fb.Len())

	spectrum := make([]float64, conv.NumBins())
	for i := range spectrum {
		spectrum[i] = 1.0
	}

	sums := make([]float64, fb.Len())
	require.NoError(t, fb.Apply(spectrum, sums, FilterSum, false))
	// bins 0..8 with the peak at bin 4: 0 .25 .5 .75 1 .75 .5 .25 0
	assert.InDelta(t, 4.0, sums[0], 1e-9)

	normalized := make([]float64, fb.Len())
	require.NoError(t, fb.Apply(spectrum, normalized, FilterSum, true))
	assert.InDelta(t, 1.0, normalized[0], 1e-9)

	averaged := make([]float64, fb.Len())
	require.NoError(t, fb.Apply(spectrum, averaged, FilterAverage, false))
	assert.InDelta(t, 4.0/9.0, averaged[0], 1e-9)

	assert.ErrorIs(t, fb.Apply(spectrum[:3], sums, FilterSum, false), ErrSpectrumSize)

	bands := make([]float64, conv.NumBins())
	require.NoError(t, fb.ApplyBands(spectrum, bands))
	assert.InDelta(t, 1.0, bands[4], 1e-9)
	assert.Zero(t, bands[20])
}

func TestDCTMatchesDirectSum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, n := range []int{8, 38, 50} {
		d, err := NewDCT(n)
		require.NoError(t, err)

		input := make([]float64, n)
		for i := range input {
			input[i] = rng.Float64()*2 - 1
		}

		output := make([]float64, n)
		require.NoError(t, d.Compute(input, output))

		for i := range n {
			want := 0.0
			for k := range n {
				want += input[k] * math.Cos(math.Pi/float64(n)*(float64(k)+0.5)*float64(i))
			}
			assert.InDelta(t, want, output[i], 1e-4)
		}

		assert.ErrorIs(t, d.Compute(input[:n-1], output), ErrBasisSize)
	}
}

func TestTransformAcrossWindowSizes(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for _, n := range windowSizes {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			tr, err := NewTransform(n)
			require.NoError(t, err)
			require.Equal(t, n/2+1, tr.NumBins())

			frame := make([]float64, n)
			for i := range frame {
				frame[i] = rng.Float64()*2 - 1
			}

			got := make([]float64, tr.NumBins())
			require.NoError(t, tr.Spectrum(frame, got, SpectrumPower))
			want := ReferenceSpectrum(frame, SpectrumPower)
			require.Len(t, want, len(got))
			for i := range got {
				assert.InDelta(t, want[i], got[i], 1e-6*math.Max(1, want[i]))
			}
		})
	}
}

func TestTransformMatchesReference(t *testing.T) {
	const n = 256
	tr, err := NewTransform(n)
	require.NoError(t, err)
	assert.Equal(t, n/2+1, tr.NumBins())

	frame := make([]float64, n)
	for i := range frame {
		frame[i] = math.Sin(2*math.Pi*8*float64(i)/n) + 0.25*math.Cos(2*math.Pi*30*float64(i)/n)
	}

	for _, kind := range []SpectrumType{SpectrumPower, SpectrumMagnitude} {
		got := make([]float64, tr.NumBins())
		require.NoError(t, tr.Spectrum(frame, got, kind))

		want := ReferenceSpectrum(frame, kind)
		require.Len(t, want, len(got))
		for i := range got {
			assert.InDelta(t, want[i], got[i], 1e-6)
		}
	}

	// a pure sine lands in a single bin with magnitude n/2
	mag := make([]float64, tr.NumBins())
	require.NoError(t, tr.Spectrum(frame, mag, SpectrumMagnitude))
	assert.InDelta(t, n/2, mag[8], 1e-6)

	assert.ErrorIs(t, tr.Spectrum(frame[:10], mag, SpectrumPower), ErrPlanSize)
}

func TestTransformInverseOfFlatSpectrum(t *testing.T) {
	const n = 16
	tr, err := NewTransform(n)
	require.NoError(t, err)

	spectrum := make([]float64, tr.NumBins())
	for i := range spectrum {
		spectrum[i] = 1.0
	}

	out := make([]float64, n)
	require.NoError(t, tr.Inverse(spectrum, out))

	// a flat real spectrum is an impulse at zero
	assert.InDelta(t, 1.0, out[0], 1e-9)
	for _, v := range out[1:] {
		assert.InDelta(t, 0.0, v, 1e-9)
	}
}

func TestZeroCrossings(t *testing.T) {
	assert.Zero(t, ZeroCrossings(make([]float64, 32)))

	alternating := make([]float64, 32)
	for i := range alternating {
		alternating[i] = 1.0
		if i%2 == 1 {
			alternating[i] = -1.0
		}
	}
	assert.Equal(t, 31.0, ZeroCrossings(alternating))

	// stepping onto and off zero counts half each time
	assert.Equal(t, 1.0, ZeroCrossings([]float64{1, 0, -1}))
}

func TestGrowthAndHighFrequencyContent(t *testing.T) {
	prev := []float64{1, 1, 1}
	cur := []float64{10, 1, 0.1}

	assert.InDelta(t, 10.0, GrowthDB(prev, cur, 1e-10), 1e-9)
	assert.InDelta(t, (0*10+1*1+2*0.1)/3.0, HighFrequencyContent(cur, 0, 2), 1e-9)
	assert.InDelta(t, 1.0/3.0, HighFrequencyContent(cur, 1, 1), 1e-9)
	assert.InDelta(t, (1*1+2*0.1)/3.0, HighFrequencyContent(cur, 1, 99), 1e-9)
	assert.Zero(t, HighFrequencyContent(nil, 0, 4))
}

func TestParseSpectrumOptions(t *testing.T) {
	kind, err := ParseSpectrumType("Magnitude")
	require.NoError(t, err)
	assert.Equal(t, SpectrumMagnitude, kind)

	op, err := ParseFilterOperation("average")
	require.NoError(t, err)
	assert.Equal(t, FilterAverage, op)

	_, err = ParseFilterOperation("median")
	assert.Error(t, err)
}
