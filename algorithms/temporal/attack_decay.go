package temporal

import (
	"math"
)

// FindPeak returns the index and absolute value of the sample with the largest
// magnitude. Ties resolve to the earliest index; an empty frame yields (-1, 0).
func FindPeak(frame []float64) (int, float64) {
	peakIdx := -1
	peak := -1.0

	for i, x := range frame {
		if mag := math.Abs(x); mag > peak {
			peak = mag
			peakIdx = i
		}
	}

	if peakIdx < 0 {
		return -1, 0.0
	}
	return peakIdx, peak
}

// FindAttackStart scans backwards from peakIdx for numSamps consecutive samples
// whose magnitude is below thresh. It returns the index of the first sample after
// that quiet run, never later than peakIdx, or -1 when the start of signal is
// reached without finding one.
func FindAttackStart(signal []float64, peakIdx int, thresh float64, numSamps int) int {
	if peakIdx < 0 || peakIdx >= len(signal) || numSamps <= 0 {
		return -1
	}

	quiet := 0
	for i := peakIdx; i >= 0; i-- {
		if math.Abs(signal[i]) < thresh {
			quiet++
			if quiet >= numSamps {
				return min(i+numSamps, peakIdx)
			}
		} else {
			quiet = 0
		}
	}

	return -1
}

// AttackTimeMs converts the distance from start to the end of a search range of
// rangeLen samples into milliseconds. A negative start yields -1.
func AttackTimeMs(start, rangeLen int, sampleRate float64) float64 {
	if start < 0 || sampleRate <= 0 {
		return -1.0
	}
	return float64(rangeLen-start) / sampleRate * 1000.0
}
