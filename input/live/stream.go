// Package live captures audio from a PortAudio input device
package live

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"github.com/RyanBlaney/sonido-timbre/input"
	"github.com/RyanBlaney/sonido-timbre/logging"
)

// ErrDeviceNotFound is returned when no input device has the requested name
var ErrDeviceNotFound = errors.New("input device not found")

// Config describes the capture stream
type Config struct {
	Device     string  `json:"device"`
	Channels   int     `json:"channels"`
	SampleRate float64 `json:"sample_rate"`
	BlockSize  int     `json:"block_size"`
	LowLatency bool    `json:"low_latency"`
}

// Handler receives every captured block on the audio thread. It must not block.
type Handler func(block [][]float64) error

// Initialize sets up PortAudio. Pair it with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return errors.Wrap(err, "failed to initialize PortAudio")
	}
	return nil
}

// Terminate shuts PortAudio down
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return errors.Wrap(err, "failed to terminate PortAudio")
	}
	return nil
}

// InputDevices lists the devices that can capture
func InputDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get devices")
	}

	inputs := devices[:0:0]
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}

// InputDevice finds a device by name, or the default input device for ""
func InputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get default input device")
		}
		return device, nil
	}

	devices, err := InputDevices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, errors.Wrapf(ErrDeviceNotFound, "%q", name)
}

// Stream delivers captured audio to a Handler in blocks of BlockSize frames
type Stream struct {
	cfg     Config
	stream  *portaudio.Stream
	handler Handler
	block   [][]float64

	blocks  atomic.Uint64
	errOnce sync.Once
	err     atomic.Pointer[error]

	logger logging.Logger
}

// Open creates a stopped capture stream on the configured device
func Open(cfg Config, handler Handler) (*Stream, error) {
	if cfg.Channels <= 0 || cfg.BlockSize <= 0 || cfg.SampleRate <= 0 {
		return nil, errors.Errorf("invalid capture config: %d channels, block %d, %g Hz",
			cfg.Channels, cfg.BlockSize, cfg.SampleRate)
	}

	device, err := InputDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < cfg.Channels {
		return nil, errors.Errorf("device %q has %d input channels, %d requested",
			device.Name, device.MaxInputChannels, cfg.Channels)
	}

	latency := device.DefaultHighInputLatency
	if cfg.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	s := &Stream{
		cfg:     cfg,
		handler: handler,
		block:   input.MakeBlock(cfg.Channels, cfg.BlockSize),
		logger: logging.WithFields(logging.Fields{
			"component": "live_input",
			"device":    device.Name,
		}),
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  latency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.BlockSize,
	}

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stream")
	}
	s.stream = stream

	s.logger.Info("Capture stream opened", logging.Fields{
		"channels":    cfg.Channels,
		"sample_rate": cfg.SampleRate,
		"block_size":  cfg.BlockSize,
		"latency":     latency.String(),
	})
	return s, nil
}

func (s *Stream) process(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	input.Deinterleave(s.block, in)
	s.blocks.Add(1)

	if err := s.handler(s.block); err != nil {
		s.errOnce.Do(func() { s.err.Store(&err) })
	}
}

// SampleRate of the stream in Hz
func (s *Stream) SampleRate() float64 {
	return s.cfg.SampleRate
}

// Blocks returns the number of blocks delivered
func (s *Stream) Blocks() uint64 {
	return s.blocks.Load()
}

// Err returns the first error returned by the handler
func (s *Stream) Err() error {
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Start begins capturing
func (s *Stream) Start() error {
	if err := s.stream.Start(); err != nil {
		return errors.Wrap(err, "failed to start stream")
	}
	return nil
}

// Stop halts capturing; the stream can be started again
func (s *Stream) Stop() error {
	if err := s.stream.Stop(); err != nil {
		return errors.Wrap(err, "failed to stop stream")
	}
	return nil
}

// Close stops and releases the stream
func (s *Stream) Close() error {
	if s.stream == nil {
		return nil
	}

	s.logger.Info("Capture stream closed", logging.Fields{"blocks": s.blocks.Load()})
	err := s.stream.Close()
	s.stream = nil
	return err
}
