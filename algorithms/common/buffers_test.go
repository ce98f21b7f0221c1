package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalBufferStoreKeepsNewestBlockAtTail(t *testing.T) {
	sb, err := NewSignalBuffer(4, 2)
	require.NoError(t, err)
	require.Equal(t, 6, sb.Len())

	sb.Store([]float64{1, 2})
	sb.Store([]float64{3, 4})
	sb.Store([]float64{5, 6})

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, sb.Samples())

	sb.Store([]float64{7, 8})
	assert.Equal(t, []float64{3, 4, 5, 6, 7, 8}, sb.Samples())
	assert.Equal(t, []float64{5, 6, 7, 8}, sb.Frame(2, 4))
}

func TestSignalBufferFrameClampsOffset(t *testing.T) {
	sb, err := NewSignalBuffer(4, 2)
	require.NoError(t, err)

	sb.Store([]float64{1, 2})
	assert.Len(t, sb.Frame(10, 4), 4)
	assert.Len(t, sb.Frame(-3, 4), 4)
}

func TestSignalBufferResetIsIdempotent(t *testing.T) {
	sb, err := NewSignalBuffer(8, 4)
	require.NoError(t, err)

	sb.Store([]float64{1, -1, 1, -1})
	sb.Reset()
	once := append([]float64(nil), sb.Samples()...)
	sb.Reset()

	assert.Equal(t, once, sb.Samples())
	for _, v := range sb.Samples() {
		assert.Zero(t, v)
	}
}

func TestSignalBufferStoreZeros(t *testing.T) {
	sb, err := NewSignalBuffer(2, 2)
	require.NoError(t, err)

	sb.Store([]float64{1, 1})
	sb.StoreZeros()
	assert.Equal(t, []float64{1, 1, 0, 0}, sb.Samples())
}

func TestSignalBufferZeroBlockShiftsOut(t *testing.T) {
	sb, err := NewSignalBuffer(4, 2)
	require.NoError(t, err)

	sb.Store([]float64{1, 2})
	sb.Store([]float64{3, 4})
	sb.Store([]float64{5, 6})
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, sb.Samples())

	sb.StoreZeros()
	assert.Equal(t, []float64{3, 4, 5, 6, 0, 0}, sb.Samples())

	sb.StoreZeros()
	sb.Store([]float64{7, 8})
	assert.Equal(t, []float64{0, 0, 0, 0, 7, 8}, sb.Samples())

	// the silence leaves the buffer after Len()/BlockSize() real blocks
	sb.Store([]float64{9, 10})
	sb.Store([]float64{11, 12})
	assert.Equal(t, []float64{7, 8, 9, 10, 11, 12}, sb.Samples())
	assert.Equal(t, 6, sb.Len())
}

func TestNewSignalBufferRejectsBadDimensions(t *testing.T) {
	_, err := NewSignalBuffer(0, 64)
	assert.Error(t, err)
	_, err = NewSignalBuffer(64, 0)
	assert.Error(t, err)
}

func TestVectorHistoryOrdering(t *testing.T) {
	vh, err := NewVectorHistory(3, 2)
	require.NoError(t, err)

	vh.Push([]float64{1, 1})
	vh.Push([]float64{2, 2})
	vh.Push([]float64{3, 3})
	vh.Push([]float64{4, 4})

	assert.Equal(t, []float64{2, 2}, vh.At(0))
	assert.Equal(t, []float64{3, 3}, vh.At(1))
	assert.Equal(t, []float64{4, 4}, vh.At(2))
	assert.Equal(t, []float64{4, 4}, vh.At(99))

	vh.Reset()
	assert.Equal(t, []float64{0, 0}, vh.At(2))
}

func TestSPSCWriteIsAllOrNothing(t *testing.T) {
	r, err := NewSPSC[int](3)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Capacity())

	assert.True(t, r.Write([]int{1, 2, 3}))
	assert.False(t, r.Write([]int{4, 5}))
	assert.Equal(t, uint64(1), r.Dropped())
	assert.Equal(t, 3, r.Available())

	dst := make([]int, 2)
	assert.Equal(t, 2, r.Read(dst))
	assert.Equal(t, []int{1, 2}, dst)

	// wraps around the end of the backing array
	assert.True(t, r.Write([]int{4, 5, 6}))
	out := make([]int, 4)
	assert.True(t, r.ReadExact(out))
	assert.Equal(t, []int{3, 4, 5, 6}, out)
	assert.False(t, r.ReadExact(out))
}

func TestSPSCPushPop(t *testing.T) {
	r, err := NewSPSC[string](2)
	require.NoError(t, err)

	assert.True(t, r.Push("a"))
	assert.True(t, r.Push("b"))
	assert.False(t, r.Push("c"))

	v, ok := r.Pop()
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = r.Pop()
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = r.Pop()
	assert.False(t, ok)
}

func TestSPSCConcurrentProducerConsumer(t *testing.T) {
	r, err := NewSPSC[int](64)
	require.NoError(t, err)

	const total = 10000
	var wg sync.WaitGroup
	wg.Add(1)

	received := make([]int, 0, total)
	go func() {
		defer wg.Done()
		for len(received) < total {
			if v, ok := r.Pop(); ok {
				received = append(received, v)
			}
		}
	}()

	for i := 0; i < total; {
		if r.Push(i) {
			i++
		}
	}
	wg.Wait()

	for i, v := range received {
		require.Equal(t, i, v)
	}
}
