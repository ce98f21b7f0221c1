package input

// Deinterleave splits interleaved frames into one slice per channel. Frames
// beyond the shortest destination are ignored; missing frames are zeroed.
func Deinterleave(dst [][]float64, src []float32) {
	channels := len(dst)
	if channels == 0 {
		return
	}

	frames := len(src) / channels
	for ch, out := range dst {
		n := min(frames, len(out))
		for i := range n {
			out[i] = float64(src[i*channels+ch])
		}
		clear(out[n:])
	}
}

// MakeBlock allocates a block of channels slices of size samples
func MakeBlock(channels, size int) [][]float64 {
	block := make([][]float64, channels)
	for i := range block {
		block[i] = make([]float64, size)
	}
	return block
}
