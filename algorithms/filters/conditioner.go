package filters

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid filter parameter")
	ErrChannelCount     = errors.New("block channel count does not match conditioner")
)

// Conditioner applies the optional DC blocker and pre-emphasis stages to every
// channel of a block in place. It allocates nothing after construction, so it
// may run on the audio thread.
type Conditioner struct {
	dc  []*DCBlocker
	pre []*PreEmphasis
}

// NewConditioner builds per-channel filter state. A zero dcCutoff or
// preEmphasis disables that stage; with both disabled it returns nil, nil and
// a nil Conditioner passes blocks through unchanged.
func NewConditioner(channels int, sampleRate, dcCutoff, preEmphasis float64) (*Conditioner, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidParameter, channels)
	}
	if dcCutoff == 0 && preEmphasis == 0 {
		return nil, nil
	}

	c := &Conditioner{}
	for range channels {
		if dcCutoff != 0 {
			dc, err := NewDCBlocker(sampleRate, dcCutoff)
			if err != nil {
				return nil, err
			}
			c.dc = append(c.dc, dc)
		}
		if preEmphasis != 0 {
			pe, err := NewPreEmphasis(preEmphasis)
			if err != nil {
				return nil, err
			}
			c.pre = append(c.pre, pe)
		}
	}
	return c, nil
}

// Process filters block in place
func (c *Conditioner) Process(block [][]float64) error {
	if c == nil {
		return nil
	}
	if (c.dc != nil && len(block) != len(c.dc)) || (c.pre != nil && len(block) != len(c.pre)) {
		return fmt.Errorf("%w: got %d", ErrChannelCount, len(block))
	}

	for ch, samples := range block {
		if c.dc != nil {
			c.dc[ch].ProcessInPlace(samples)
		}
		if c.pre != nil {
			c.pre[ch].ProcessInPlace(samples)
		}
	}
	return nil
}

// Reset clears every channel's history
func (c *Conditioner) Reset() {
	if c == nil {
		return
	}
	for _, dc := range c.dc {
		dc.Reset()
	}
	for _, pe := range c.pre {
		pe.Reset()
	}
}
