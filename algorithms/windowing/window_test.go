package windowing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsShortWindows(t *testing.T) {
	_, err := New(Hann, 3)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestWindowShapes(t *testing.T) {
	const n = 9

	tests := []struct {
		kind   Type
		first  float64
		middle float64
	}{
		{Rectangular, 1.0, 1.0},
		{Blackman, 0.0, 1.0},
		{Cosine, 0.0, 1.0},
		{Hamming, 0.08, 1.0},
		{Hann, 0.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			w, err := New(tt.kind, n)
			require.NoError(t, err)

			coeffs := w.Coefficients()
			require.Len(t, coeffs, n)
			assert.InDelta(t, tt.first, coeffs[0], 1e-9)
			assert.InDelta(t, tt.middle, coeffs[n/2], 1e-9)

			// symmetric tables
			for i := range n {
				assert.InDelta(t, coeffs[i], coeffs[n-1-i], 1e-9)
			}
		})
	}
}

func TestApplyToDoesNotTouchSource(t *testing.T) {
	w, err := New(Hann, 8)
	require.NoError(t, err)

	src := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	dst := make([]float64, 8)
	require.NoError(t, w.ApplyTo(dst, src))

	assert.Equal(t, 1.0, src[3])
	assert.InDelta(t, 0.5*(1-math.Cos(2*math.Pi*3/7)), dst[3], 1e-9)

	assert.ErrorIs(t, w.ApplyTo(dst[:4], src), ErrInvalidSize)
}

func TestApplyInPlace(t *testing.T) {
	w, err := New(Cosine, 5)
	require.NoError(t, err)

	signal := []float64{2, 2, 2, 2, 2}
	require.NoError(t, w.ApplyInPlace(signal))
	assert.InDelta(t, 2.0, signal[2], 1e-9)
	assert.InDelta(t, 0.0, signal[0], 1e-9)
	assert.Error(t, w.ApplyInPlace(signal[:3]))
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"rectangular", "blackman", "cosine", "hamming", "hann"} {
		kind, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, name, kind.String())
	}

	_, err := ParseType("kaiser")
	assert.Error(t, err)

	var kind Type
	require.NoError(t, kind.UnmarshalText([]byte("Hanning")))
	assert.Equal(t, Hann, kind)
}
