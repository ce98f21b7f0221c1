package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMathHelpers(t *testing.T) {
	assert.Equal(t, 1.0, Sign(0.3))
	assert.Equal(t, -1.0, Sign(-2))
	assert.Equal(t, 0.0, Sign(0))
	assert.Equal(t, 3, CeilDiv(129, 64))
	assert.Equal(t, 2, CeilDiv(128, 64))
	assert.Equal(t, 5, ClampInt(9, 0, 5))
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{33, 64},
		{1024, 1024},
		{1025, 2048},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextPowerOfTwo(tt.n), "n=%d", tt.n)
	}
}
