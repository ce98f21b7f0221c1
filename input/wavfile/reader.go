// Package wavfile reads WAV files as fixed-size blocks of float samples
package wavfile

import (
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/RyanBlaney/sonido-timbre/logging"
)

// ErrInvalidFile is returned for files the WAV decoder does not accept
var ErrInvalidFile = errors.New("invalid WAV file")

// Reader yields blocks of BlockSize frames, one slice per channel, scaled to [-1, 1).
// The last block is zero padded; after it NextBlock returns io.EOF.
type Reader struct {
	file    *os.File
	decoder *wav.Decoder

	blockSize  int
	channels   int
	sampleRate float64
	bitDepth   int
	scale      float64

	pcm   *audio.IntBuffer
	block [][]float64
	done  bool
}

// Open decodes the header of the file at path
func Open(path string, blockSize int) (*Reader, error) {
	if blockSize <= 0 {
		return nil, errors.Errorf("invalid block size: %d", blockSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open file")
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, errors.Wrapf(ErrInvalidFile, "%s", path)
	}

	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if channels <= 0 || bitDepth <= 0 {
		file.Close()
		return nil, errors.Wrapf(ErrInvalidFile, "%s: %d channels, %d bits", path, channels, bitDepth)
	}

	block := make([][]float64, channels)
	for i := range block {
		block[i] = make([]float64, blockSize)
	}

	r := &Reader{
		file:       file,
		decoder:    decoder,
		blockSize:  blockSize,
		channels:   channels,
		sampleRate: float64(decoder.SampleRate),
		bitDepth:   bitDepth,
		scale:      float64(int64(1) << (bitDepth - 1)),
		pcm: &audio.IntBuffer{
			Format:         decoder.Format(),
			Data:           make([]int, blockSize*channels),
			SourceBitDepth: bitDepth,
		},
		block: block,
	}

	logging.Debug("WAV file opened", logging.Fields{
		"component":   "wav_reader",
		"path":        path,
		"sample_rate": r.sampleRate,
		"channels":    channels,
		"bit_depth":   bitDepth,
	})

	return r, nil
}

// SampleRate of the file in Hz
func (r *Reader) SampleRate() float64 {
	return r.sampleRate
}

// Channels in the file
func (r *Reader) Channels() int {
	return r.channels
}

// BlockSize is the number of frames per block
func (r *Reader) BlockSize() int {
	return r.blockSize
}

// NextBlock decodes the next block. The returned slices are reused by the next call.
func (r *Reader) NextBlock() ([][]float64, error) {
	if r.done {
		return nil, io.EOF
	}

	n, err := r.decoder.PCMBuffer(r.pcm)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "could not read PCM buffer")
	}
	if n == 0 {
		r.done = true
		return nil, io.EOF
	}

	frames := n / r.channels
	for ch := range r.block {
		dst := r.block[ch]
		for i := range frames {
			dst[i] = r.sample(r.pcm.Data[i*r.channels+ch])
		}
		clear(dst[frames:])
	}

	if frames < r.blockSize {
		r.done = true
	}
	return r.block, nil
}

func (r *Reader) sample(v int) float64 {
	// 8-bit WAV data is unsigned
	if r.bitDepth == 8 {
		return float64(v-128) / 128.0
	}
	return float64(v) / r.scale
}

// Close releases the file
func (r *Reader) Close() error {
	return r.file.Close()
}
