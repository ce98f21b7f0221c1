package extractors

import (
	"fmt"

	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
	"github.com/RyanBlaney/sonido-timbre/algorithms/temporal"
)

// attackTime reports (peak index, attack start index, attack time in ms) over a
// search range of MaxSearchRange samples ending with the analysis window
type attackTime struct{}

func (a *attackTime) span(st *state) int {
	return st.params.MaxSearchRange
}

func (a *attackTime) size() int {
	return 3
}

func (a *attackTime) components() []string {
	return []string{"peak_index", "attack_start", "attack_ms"}
}

func (a *attackTime) configure(st *state) error {
	if st.params.MaxSearchRange < st.windowSize {
		return fmt.Errorf("%w: %d < %d", ErrInvalidSearchRange, st.params.MaxSearchRange, st.windowSize)
	}
	return nil
}

func (a *attackTime) compute(st *state, frame, dst []float64) error {
	searchRange := len(frame)
	analysisStart := searchRange - st.windowSize

	peak, _ := temporal.FindPeak(frame[analysisStart:])
	peak += analysisStart

	start := temporal.FindAttackStart(frame, peak, st.params.SampMagThresh, st.params.NumSampsThresh)

	dst[0] = float64(peak)
	dst[1] = float64(start)
	dst[2] = temporal.AttackTimeMs(start, searchRange, st.sampleRate)
	return nil
}

// peakSample reports (|max sample|, index) of the analysis window
type peakSample struct{}

func (p *peakSample) span(st *state) int {
	return st.windowSize
}

func (p *peakSample) size() int {
	return 2
}

func (p *peakSample) components() []string {
	return []string{"magnitude", "index"}
}

func (p *peakSample) configure(*state) error {
	return nil
}

func (p *peakSample) compute(_ *state, frame, dst []float64) error {
	idx, mag := temporal.FindPeak(frame)
	dst[0] = mag
	dst[1] = float64(idx)
	return nil
}

// zeroCrossing reports the halved count of sign changes in the analysis window
type zeroCrossing struct{}

func (z *zeroCrossing) span(st *state) int {
	return st.windowSize
}

func (z *zeroCrossing) size() int {
	return 1
}

func (z *zeroCrossing) components() []string {
	return []string{"count"}
}

func (z *zeroCrossing) configure(*state) error {
	return nil
}

func (z *zeroCrossing) compute(_ *state, frame, dst []float64) error {
	dst[0] = spectral.ZeroCrossings(frame)
	return nil
}
