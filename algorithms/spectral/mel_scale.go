package spectral

import (
	"math"
)

// Mel spacing bounds accepted by the filterbank builder
const (
	MinMelSpacing = 5.0
	MaxMelSpacing = 1000.0
)

// MelToFreq converts mel to Hz using 700*(e^(mel/1127)-1)
func MelToFreq(mel float64) float64 {
	return 700.0 * (math.Exp(mel/1127.0) - 1.0)
}

// FreqToMel converts Hz to mel, inverse of MelToFreq
func FreqToMel(freq float64) float64 {
	return 1127.0 * math.Log(1.0+freq/700.0)
}
