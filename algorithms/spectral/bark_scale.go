package spectral

import (
	"math"
)

// Bark spacing bounds accepted by the filterbank builder
const (
	MinBarkSpacing = 0.1
	MaxBarkSpacing = 6.0
)

// BarkToFreq converts a Bark value to Hz using 600*sinh(bark/6)
func BarkToFreq(bark float64) float64 {
	return 600.0 * math.Sinh(bark/6.0)
}

// FreqToBark converts Hz to the Bark scale, inverse of BarkToFreq
func FreqToBark(freq float64) float64 {
	return 6.0 * math.Asinh(freq/600.0)
}
