package wavfile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, channels int, data []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	encoder := wav.NewEncoder(file, 44100, 16, channels, 1)
	require.NoError(t, encoder.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, encoder.Close())
	return path
}

func TestReaderBlocks(t *testing.T) {
	data := make([]int, 100)
	for i := range data {
		data[i] = 16384
	}
	data[99] = -16384

	r, err := Open(writeWAV(t, 1, data), 64)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 44100.0, r.SampleRate())
	assert.Equal(t, 1, r.Channels())
	assert.Equal(t, 64, r.BlockSize())

	block, err := r.NextBlock()
	require.NoError(t, err)
	require.Len(t, block, 1)
	require.Len(t, block[0], 64)
	assert.Equal(t, 0.5, block[0][0])
	assert.Equal(t, 0.5, block[0][63])

	block, err = r.NextBlock()
	require.NoError(t, err)
	assert.Equal(t, 0.5, block[0][34])
	assert.Equal(t, -0.5, block[0][35])
	for _, v := range block[0][36:] {
		assert.Zero(t, v)
	}

	_, err = r.NextBlock()
	assert.ErrorIs(t, err, io.EOF)
	_, err = r.NextBlock()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderDeinterleaves(t *testing.T) {
	data := make([]int, 0, 16)
	for range 8 {
		data = append(data, 8192, -8192)
	}

	r, err := Open(writeWAV(t, 2, data), 8)
	require.NoError(t, err)
	defer r.Close()

	block, err := r.NextBlock()
	require.NoError(t, err)
	require.Len(t, block, 2)
	assert.Equal(t, 0.25, block[0][7])
	assert.Equal(t, -0.25, block[1][7])
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.wav"), 64)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "text.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a riff file at all"), 0o644))
	_, err = Open(path, 64)
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = Open(path, 0)
	assert.Error(t, err)
}
