package common

import (
	"fmt"
)

// SignalBuffer is a fixed-capacity sample buffer for block-based streaming analysis.
// The newest block always occupies the trailing blockSize samples; each Store shifts
// the contents left by one block, dropping the oldest samples.
type SignalBuffer struct {
	buffer    []float64
	blockSize int
}

// NewSignalBuffer creates a buffer holding windowSize samples of history plus one block
func NewSignalBuffer(windowSize, blockSize int) (*SignalBuffer, error) {
	if windowSize <= 0 || blockSize <= 0 {
		return nil, fmt.Errorf("invalid signal buffer dimensions: window %d, block %d", windowSize, blockSize)
	}

	return &SignalBuffer{
		buffer:    make([]float64, windowSize+blockSize),
		blockSize: blockSize,
	}, nil
}

// Store appends one block, discarding the oldest blockSize samples.
// The caller guarantees len(block) == BlockSize(); shorter blocks are zero-filled.
func (sb *SignalBuffer) Store(block []float64) {
	copy(sb.buffer, sb.buffer[sb.blockSize:])

	tail := sb.buffer[len(sb.buffer)-sb.blockSize:]
	n := copy(tail, block)
	for i := n; i < len(tail); i++ {
		tail[i] = 0.0
	}
}

// StoreZeros appends one block of silence
func (sb *SignalBuffer) StoreZeros() {
	copy(sb.buffer, sb.buffer[sb.blockSize:])

	tail := sb.buffer[len(sb.buffer)-sb.blockSize:]
	for i := range tail {
		tail[i] = 0.0
	}
}

// Frame returns a view of size samples starting at offset. The view aliases the
// buffer and is only valid until the next Store.
func (sb *SignalBuffer) Frame(offset, size int) []float64 {
	if offset < 0 {
		offset = 0
	}
	if offset+size > len(sb.buffer) {
		offset = len(sb.buffer) - size
	}
	return sb.buffer[offset : offset+size]
}

// Reset zeroes every sample without resizing
func (sb *SignalBuffer) Reset() {
	for i := range sb.buffer {
		sb.buffer[i] = 0.0
	}
}

// Len returns the total capacity in samples
func (sb *SignalBuffer) Len() int {
	return len(sb.buffer)
}

// BlockSize returns the shift applied on every Store
func (sb *SignalBuffer) BlockSize() int {
	return sb.blockSize
}

// Samples exposes the raw buffer, oldest sample first
func (sb *SignalBuffer) Samples() []float64 {
	return sb.buffer
}

// VectorHistory is a fixed-capacity ring of equally sized feature vectors.
// Index 0 is the oldest vector. It is owned by a single goroutine and does no locking.
type VectorHistory struct {
	data       []float64
	vectorSize int
	capacity   int
	writePos   int
}

// NewVectorHistory creates a zero-filled history of capacity vectors of vectorSize values
func NewVectorHistory(capacity, vectorSize int) (*VectorHistory, error) {
	if capacity <= 0 || vectorSize <= 0 {
		return nil, fmt.Errorf("invalid vector history dimensions: capacity %d, vector size %d", capacity, vectorSize)
	}

	return &VectorHistory{
		data:       make([]float64, capacity*vectorSize),
		vectorSize: vectorSize,
		capacity:   capacity,
	}, nil
}

// Next returns the slot that will hold the next vector and advances the ring.
// The caller fills the returned slice in place.
func (vh *VectorHistory) Next() []float64 {
	start := vh.writePos * vh.vectorSize
	slot := vh.data[start : start+vh.vectorSize]
	vh.writePos = (vh.writePos + 1) % vh.capacity
	return slot
}

// Push copies vector into the next slot
func (vh *VectorHistory) Push(vector []float64) {
	copy(vh.Next(), vector)
}

// At returns the vector at logical index i, where 0 is the oldest.
// Out of range indices are clamped to the valid range.
func (vh *VectorHistory) At(i int) []float64 {
	if i < 0 {
		i = 0
	}
	if i >= vh.capacity {
		i = vh.capacity - 1
	}

	pos := (vh.writePos + i) % vh.capacity
	start := pos * vh.vectorSize
	return vh.data[start : start+vh.vectorSize]
}

// Reset zeroes all stored vectors
func (vh *VectorHistory) Reset() {
	for i := range vh.data {
		vh.data[i] = 0.0
	}
	vh.writePos = 0
}

// Capacity returns the number of vectors retained
func (vh *VectorHistory) Capacity() int {
	return vh.capacity
}

// VectorSize returns the length of each vector
func (vh *VectorHistory) VectorSize() int {
	return vh.vectorSize
}
