package spectral

import (
	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
)

// ZeroCrossings counts sign changes across frame. Each adjacent pair contributes
// |sgn(x[i]) - sgn(x[i-1])| / 2, so a full +/- swing counts once and a step
// to or from exact zero counts one half.
func ZeroCrossings(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	sum := 0.0
	prev := common.Sign(frame[0])
	for _, x := range frame[1:] {
		cur := common.Sign(x)
		diff := cur - prev
		if diff < 0 {
			diff = -diff
		}
		sum += diff
		prev = cur
	}

	return sum / 2.0
}
