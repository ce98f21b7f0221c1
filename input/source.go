// Package input provides block sources for the analysis pipeline
package input

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-timbre/input/ffmpeg"
	"github.com/RyanBlaney/sonido-timbre/input/wavfile"
)

// Source yields fixed-size blocks, one slice per channel. NextBlock returns
// io.EOF after the last block; returned slices are reused between calls.
type Source interface {
	SampleRate() float64
	Channels() int
	BlockSize() int
	NextBlock() ([][]float64, error)
	Close() error
}

var (
	_ Source = (*wavfile.Reader)(nil)
	_ Source = (*ffmpeg.Reader)(nil)
)

// OpenFile reads WAV files directly and decodes everything else through ffmpeg
func OpenFile(ctx context.Context, path string, blockSize int, cfg ffmpeg.Config) (Source, error) {
	if IsWAV(path) {
		return wavfile.Open(path, blockSize)
	}
	return ffmpeg.Open(ctx, path, blockSize, cfg)
}

// IsWAV reports whether path has a WAV extension
func IsWAV(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return true
	default:
		return false
	}
}
