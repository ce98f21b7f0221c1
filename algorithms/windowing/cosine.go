package windowing

import "math"

// cosine generates the symmetric cosine (sine) window sin(pi*n/(N-1))
func cosine(size int) []float64 {
	coeffs := make([]float64, size)
	denominator := float64(size - 1)

	for i := range size {
		coeffs[i] = math.Sin(math.Pi * float64(i) / denominator)
	}

	return coeffs
}
