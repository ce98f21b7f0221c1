package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeinterleave(t *testing.T) {
	block := MakeBlock(2, 3)
	Deinterleave(block, []float32{1, -1, 0.5, -0.5, 0.25, -0.25})
	assert.Equal(t, []float64{1, 0.5, 0.25}, block[0])
	assert.Equal(t, []float64{-1, -0.5, -0.25}, block[1])

	// short input zeroes the tail
	Deinterleave(block, []float32{2, -2})
	assert.Equal(t, []float64{2, 0, 0}, block[0])
	assert.Equal(t, []float64{-2, 0, 0}, block[1])

	Deinterleave(nil, []float32{1})
}
