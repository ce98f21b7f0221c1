package spectral

import (
	"math"
)

// HighFrequencyContent sums the bins lo..hi weighted by their index,
// normalised by the number of bins. hi is clamped to the spectrum.
func HighFrequencyContent(spectrum []float64, lo, hi int) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}

	sum := 0.0
	for k := max(lo, 0); k <= min(hi, len(spectrum)-1); k++ {
		sum += float64(k) * spectrum[k]
	}

	return sum / float64(len(spectrum))
}

// GrowthDB sums the positive dB differences between two band-energy vectors.
// Bands at or below floor are clamped to floor before conversion.
func GrowthDB(prev, cur []float64, floor float64) float64 {
	n := min(len(prev), len(cur))

	growth := 0.0
	for i := range n {
		p := math.Max(prev[i], floor)
		c := math.Max(cur[i], floor)
		diff := 10.0 * math.Log10(c/p)
		if diff > 0 {
			growth += diff
		}
	}

	return growth
}
