package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
)

// rampSource yields blocks of a ramp 0, 1, 2, ... on one channel
type rampSource struct {
	total, block, pos int
}

func (r *rampSource) SampleRate() float64 { return 8000 }
func (r *rampSource) Channels() int       { return 1 }
func (r *rampSource) BlockSize() int      { return r.block }
func (r *rampSource) Close() error        { return nil }

func (r *rampSource) NextBlock() ([][]float64, error) {
	if r.pos >= r.total {
		return nil, io.EOF
	}
	out := make([]float64, r.block)
	for i := range out {
		if r.pos+i < r.total {
			out[i] = float64(r.pos + i)
		}
	}
	r.pos += r.block
	return [][]float64{out}, nil
}

func TestReadFrame(t *testing.T) {
	frame, err := readFrame(&rampSource{total: 64, block: 16}, 0, 10, 8)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12, 13, 14, 15, 16, 17}, frame)

	// the tail past the file is zero
	frame, err = readFrame(&rampSource{total: 20, block: 16}, 0, 16, 8)
	require.NoError(t, err)
	assert.Equal(t, []float64{16, 17, 18, 19, 0, 0, 0, 0}, frame)

	_, err = readFrame(&rampSource{total: 16, block: 16}, 0, 32, 8)
	assert.Error(t, err)
}

func TestToDB(t *testing.T) {
	assert.InDelta(t, 20.0, toDB(100, spectral.SpectrumPower), 1e-9)
	assert.InDelta(t, 40.0, toDB(100, spectral.SpectrumMagnitude), 1e-9)
	assert.InDelta(t, -200.0, toDB(0, spectral.SpectrumPower), 1e-9)
}
