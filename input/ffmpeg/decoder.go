// Package ffmpeg decodes any audio file ffmpeg understands into blocks of
// float samples by streaming raw f64le PCM from an ffmpeg child process
package ffmpeg

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/RyanBlaney/sonido-timbre/logging"
)

// Config holds decoder configuration
type Config struct {
	SampleRate      int           `json:"sample_rate" yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels        int           `json:"channels" yaml:"channels" mapstructure:"channels"`
	MaxDuration     time.Duration `json:"max_duration" yaml:"max_duration" mapstructure:"max_duration"`
	ResampleQuality string        `json:"resample_quality" yaml:"resample_quality" mapstructure:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath      string        `json:"ffmpeg_path" yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	FFprobePath     string        `json:"ffprobe_path" yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	ProbeTimeout    time.Duration `json:"probe_timeout" yaml:"probe_timeout" mapstructure:"probe_timeout"`

	// Normalization options
	Normalize           bool    `json:"normalize" yaml:"normalize" mapstructure:"normalize"`
	NormalizationMethod string  `json:"normalization_method" yaml:"normalization_method" mapstructure:"normalization_method"` // "loudnorm", "dynaudnorm", "compand"
	TargetLUFS          float64 `json:"target_lufs" yaml:"target_lufs" mapstructure:"target_lufs"`
	TargetPeak          float64 `json:"target_peak" yaml:"target_peak" mapstructure:"target_peak"`
	LoudnessRange       float64 `json:"loudness_range" yaml:"loudness_range" mapstructure:"loudness_range"`
}

// DefaultConfig decodes to 44.1 kHz mono without normalization. Onset
// thresholds are level dependent, so loudness normalization is opt-in.
func DefaultConfig() Config {
	return Config{
		SampleRate:          44100,
		Channels:            1,
		ResampleQuality:     "medium",
		FFmpegPath:          "ffmpeg",
		FFprobePath:         "ffprobe",
		ProbeTimeout:        30 * time.Second,
		Normalize:           false,
		NormalizationMethod: "loudnorm",
		TargetLUFS:          -23.0, // EBU R128
		TargetPeak:          -2.0,
		LoudnessRange:       7.0,
	}
}

// Validate checks the configuration and that the binaries can be found
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return errors.Errorf("invalid sample rate: %d", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > 8 {
		return errors.Errorf("invalid channel count: %d", c.Channels)
	}
	if _, err := exec.LookPath(c.FFmpegPath); err != nil {
		return errors.Wrap(err, "ffmpeg not available")
	}
	return nil
}

// Metadata holds the properties ffprobe reports for the first audio stream
type Metadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Probe runs ffprobe on path
func Probe(ctx context.Context, cfg Config, path string) (*Metadata, error) {
	if cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ProbeTimeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	}

	output, err := exec.CommandContext(ctx, cfg.FFprobePath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, errors.Wrapf(err, "ffprobe failed, stderr: %s", string(exitError.Stderr))
		}
		return nil, errors.Wrap(err, "ffprobe failed")
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(jsonData []byte) (*Metadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, errors.Wrap(err, "failed to parse ffprobe output")
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, errors.Errorf("stream is not audio type: %s", stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, errors.Errorf("invalid channel count: %d", stream.Channels)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid sample rate %q", stream.SampleRate)
	}

	// both are optional in ffprobe output
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &Metadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// buildArgs returns the ffmpeg arguments that decode input to raw f64le on stdout
func buildArgs(cfg Config, input string, meta *Metadata) []string {
	args := []string{
		"-i", input,
		"-f", "f64le",
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
	}

	var filters []string
	if meta != nil && meta.SampleRate != cfg.SampleRate {
		switch cfg.ResampleQuality {
		case "fast":
			filters = append(filters, "aresample=resampler=soxr:precision=16")
		case "medium":
			filters = append(filters, "aresample=resampler=soxr:precision=20")
		case "high":
			filters = append(filters, "aresample=resampler=soxr:precision=28")
		}
	}
	if cfg.Normalize {
		if f := normalizationFilter(cfg); f != "" {
			filters = append(filters, f)
		}
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if cfg.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", cfg.MaxDuration.Seconds()))
	}

	return append(args, "-v", "error", "pipe:1")
}

func normalizationFilter(cfg Config) string {
	switch cfg.NormalizationMethod {
	case "loudnorm":
		return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f", cfg.TargetLUFS, cfg.TargetPeak, cfg.LoudnessRange)
	case "dynaudnorm":
		return "dynaudnorm=p=0.95:m=10:s=12"
	case "compand":
		return fmt.Sprintf("compand=0.1,0.3:-90/-90,-%.1f/-%.1f,0/0:6:0:-90:0.1",
			math.Abs(cfg.TargetPeak), math.Abs(cfg.TargetPeak))
	default:
		return ""
	}
}

// Reader streams blocks of BlockSize frames, one slice per channel. The last
// block is zero padded; after it NextBlock returns io.EOF.
type Reader struct {
	pcm     io.Reader
	closeFn func() error

	sampleRate int
	channels   int
	blockSize  int

	raw   []byte
	block [][]float64
	done  bool
}

// Open probes path and starts an ffmpeg process decoding it. Cancelling ctx kills the process.
func Open(ctx context.Context, path string, blockSize int, cfg Config) (*Reader, error) {
	if blockSize <= 0 {
		return nil, errors.Errorf("invalid block size: %d", blockSize)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.WithFields(logging.Fields{
		"component": "ffmpeg_decoder",
		"path":      path,
	})

	meta, err := Probe(ctx, cfg, path)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": meta.SampleRate,
		"input_channels":    meta.Channels,
		"input_codec":       meta.Codec,
		"input_duration":    meta.Duration,
	})

	args := buildArgs(cfg, path, meta)
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to attach to ffmpeg output")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start ffmpeg")
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	closeFn := func() error {
		stdout.Close()
		return cmd.Wait()
	}

	return newReader(stdout, closeFn, cfg.SampleRate, cfg.Channels, blockSize), nil
}

func newReader(pcm io.Reader, closeFn func() error, sampleRate, channels, blockSize int) *Reader {
	block := make([][]float64, channels)
	for i := range block {
		block[i] = make([]float64, blockSize)
	}

	return &Reader{
		pcm:        pcm,
		closeFn:    closeFn,
		sampleRate: sampleRate,
		channels:   channels,
		blockSize:  blockSize,
		raw:        make([]byte, blockSize*channels*8),
		block:      block,
	}
}

// SampleRate of the decoded stream in Hz
func (r *Reader) SampleRate() float64 {
	return float64(r.sampleRate)
}

// Channels in the decoded stream
func (r *Reader) Channels() int {
	return r.channels
}

// BlockSize is the number of frames per block
func (r *Reader) BlockSize() int {
	return r.blockSize
}

// NextBlock reads the next block. The returned slices are reused by the next call.
func (r *Reader) NextBlock() ([][]float64, error) {
	if r.done {
		return nil, io.EOF
	}

	n, err := io.ReadFull(r.pcm, r.raw)
	switch {
	case errors.Is(err, io.EOF):
		r.done = true
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.done = true
	case err != nil:
		return nil, errors.Wrap(err, "failed to read decoded audio")
	}

	// a trailing partial frame is dropped
	frames := n / (8 * r.channels)
	if frames == 0 {
		return nil, io.EOF
	}

	for i := range frames {
		for ch := range r.block {
			off := (i*r.channels + ch) * 8
			r.block[ch][i] = math.Float64frombits(binary.LittleEndian.Uint64(r.raw[off : off+8]))
		}
	}
	for ch := range r.block {
		clear(r.block[ch][frames:])
	}

	return r.block, nil
}

// Close stops the decoder and waits for the process to exit
func (r *Reader) Close() error {
	if r.closeFn == nil {
		return nil
	}

	err := r.closeFn()
	var exitError *exec.ExitError
	// closing the pipe before the end makes ffmpeg exit on SIGPIPE
	if errors.As(err, &exitError) && !r.done {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "ffmpeg decode failed")
	}
	return nil
}
