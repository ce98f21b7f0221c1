package ffmpeg

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeF64(samples ...float64) []byte {
	buf := make([]byte, 8*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(s))
	}
	return buf
}

func TestReaderDeinterleavesAndPads(t *testing.T) {
	// three stereo frames, the last block holds one frame
	data := encodeF64(0.1, -0.1, 0.2, -0.2, 0.3, -0.3)
	r := newReader(bytes.NewReader(data), nil, 44100, 2, 2)

	assert.Equal(t, 44100.0, r.SampleRate())
	assert.Equal(t, 2, r.Channels())

	block, err := r.NextBlock()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, block[0])
	assert.Equal(t, []float64{-0.1, -0.2}, block[1])

	block, err = r.NextBlock()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0}, block[0])
	assert.Equal(t, []float64{-0.3, 0}, block[1])

	_, err = r.NextBlock()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, r.Close())
}

func TestReaderExactBlocks(t *testing.T) {
	r := newReader(bytes.NewReader(encodeF64(1, 2, 3, 4)), nil, 8000, 1, 4)

	block, err := r.NextBlock()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, block[0])

	_, err = r.NextBlock()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseProbeOutput(t *testing.T) {
	meta, err := parseProbeOutput([]byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3",
		"sample_rate":"48000","channels":2,"duration":"12.5","bit_rate":"128000",
		"codec_long_name":"MP3 (MPEG audio layer 3)"}]}`))
	require.NoError(t, err)
	assert.Equal(t, &Metadata{
		SampleRate: 48000,
		Channels:   2,
		Codec:      "mp3",
		Duration:   12.5,
		Bitrate:    128000,
		Format:     "MP3 (MPEG audio layer 3)",
	}, meta)

	_, err = parseProbeOutput([]byte(`{"streams":[]}`))
	assert.Error(t, err)
	_, err = parseProbeOutput([]byte(`{"streams":[{"codec_type":"video","channels":2}]}`))
	assert.Error(t, err)
	_, err = parseProbeOutput([]byte(`{"streams":[{"codec_type":"audio","channels":0,"sample_rate":"44100"}]}`))
	assert.Error(t, err)
	_, err = parseProbeOutput([]byte(`not json`))
	assert.Error(t, err)
}

func TestBuildArgs(t *testing.T) {
	cfg := DefaultConfig()

	args := buildArgs(cfg, "in.mp3", &Metadata{SampleRate: 44100, Channels: 2})
	assert.Equal(t, []string{
		"-i", "in.mp3", "-f", "f64le", "-ac", "1", "-ar", "44100",
		"-v", "error", "pipe:1",
	}, args)

	cfg.Normalize = true
	cfg.MaxDuration = 1500 * time.Millisecond
	args = buildArgs(cfg, "in.mp3", &Metadata{SampleRate: 48000, Channels: 2})

	idx := slices.Index(args, "-af")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "aresample=resampler=soxr:precision=20,loudnorm=I=-23.0:TP=-2.0:LRA=7.0", args[idx+1])
	assert.Contains(t, args, "1.50")
	assert.Equal(t, "pipe:1", args[len(args)-1])
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FFmpegPath = "definitely-not-an-ffmpeg-binary"
	assert.Error(t, cfg.Validate())
}
