package common

import (
	"fmt"
	"sync/atomic"
)

// SPSC is a lock-free single-producer/single-consumer ring buffer.
//
// Writes reserve a region, copy into it and then commit by publishing the new write
// position; reads do the same on the consumer side. Neither side blocks: a write that
// does not fit is rejected as a whole, a read returns only what has been committed.
// Exactly one goroutine may write and exactly one goroutine may read.
type SPSC[T any] struct {
	data     []T
	mask     uint64
	readPos  atomic.Uint64
	writePos atomic.Uint64
	dropped  atomic.Uint64
}

// NewSPSC creates a ring able to hold at least capacity items.
// The capacity is rounded up to a power of two.
func NewSPSC[T any](capacity int) (*SPSC[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid ring capacity: %d", capacity)
	}

	size := NextPowerOfTwo(capacity)
	return &SPSC[T]{
		data: make([]T, size),
		mask: uint64(size - 1),
	}, nil
}

// Write copies all of items into the ring or nothing at all.
// It returns false, and counts a drop, when there is not enough free space.
func (r *SPSC[T]) Write(items []T) bool {
	if len(items) == 0 {
		return true
	}

	writePos := r.writePos.Load()
	readPos := r.readPos.Load()

	free := uint64(len(r.data)) - (writePos - readPos)
	if uint64(len(items)) > free {
		r.dropped.Add(1)
		return false
	}

	start := writePos & r.mask
	first := copy(r.data[start:], items)
	if first < len(items) {
		copy(r.data, items[first:])
	}

	r.writePos.Store(writePos + uint64(len(items)))
	return true
}

// Push writes a single item
func (r *SPSC[T]) Push(item T) bool {
	writePos := r.writePos.Load()
	readPos := r.readPos.Load()

	if writePos-readPos >= uint64(len(r.data)) {
		r.dropped.Add(1)
		return false
	}

	r.data[writePos&r.mask] = item
	r.writePos.Store(writePos + 1)
	return true
}

// Read copies up to len(dst) committed items into dst and returns how many were read
func (r *SPSC[T]) Read(dst []T) int {
	readPos := r.readPos.Load()
	writePos := r.writePos.Load()

	available := int(writePos - readPos)
	n := min(available, len(dst))
	if n == 0 {
		return 0
	}

	start := readPos & r.mask
	first := copy(dst[:n], r.data[start:])
	if first < n {
		copy(dst[first:n], r.data)
	}

	r.readPos.Store(readPos + uint64(n))
	return n
}

// ReadExact reads exactly len(dst) items, or nothing when fewer are available
func (r *SPSC[T]) ReadExact(dst []T) bool {
	if r.Available() < len(dst) {
		return false
	}
	return r.Read(dst) == len(dst)
}

// Pop reads a single item
func (r *SPSC[T]) Pop() (T, bool) {
	var item T

	readPos := r.readPos.Load()
	if readPos == r.writePos.Load() {
		return item, false
	}

	item = r.data[readPos&r.mask]
	r.readPos.Store(readPos + 1)
	return item, true
}

// Available returns the number of committed items waiting to be read
func (r *SPSC[T]) Available() int {
	return int(r.writePos.Load() - r.readPos.Load())
}

// Space returns the number of items that can be written without dropping
func (r *SPSC[T]) Space() int {
	return len(r.data) - r.Available()
}

// Capacity returns the ring size
func (r *SPSC[T]) Capacity() int {
	return len(r.data)
}

// Dropped returns how many writes were rejected for lack of space
func (r *SPSC[T]) Dropped() uint64 {
	return r.dropped.Load()
}
