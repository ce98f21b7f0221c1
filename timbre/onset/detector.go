package onset

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
	"github.com/RyanBlaney/sonido-timbre/algorithms/windowing"
	"github.com/RyanBlaney/sonido-timbre/logging"
)

var (
	ErrInvalidWindowSize = errors.New("invalid onset window size")
	ErrInvalidThreshold  = errors.New("invalid onset threshold")
	ErrInvalidRange      = errors.New("invalid onset frequency range")
	ErrInvalidChannel    = errors.New("invalid channel")
	ErrBlockSize         = errors.New("block size mismatch")
	ErrNotPrepared       = errors.New("onset detector not prepared")
)

// State of the detector state machine
type State int

const (
	// Idle waits for the metric to reach HiThresh
	Idle State = iota
	// Hit waits for the metric to fall again
	Hit
)

func (s State) String() string {
	if s == Hit {
		return "hit"
	}
	return "idle"
}

// Onset describes one detected onset
type Onset struct {
	// Position is the stream position in samples at the end of the firing block
	Position uint64
	// Peak is the largest metric seen while in Hit
	Peak float64
	// Metric is the value that released the detector
	Metric float64
}

// Listener is called synchronously on the audio thread when an onset fires.
// It must not block or allocate.
type Listener func(Onset)

type subscription struct {
	id       uint64
	listener Listener
}

// Detector finds onsets in a stream of blocks. Store runs on the audio thread;
// Subscribe and the returned cancel functions may be called from any goroutine.
type Detector struct {
	params     Params
	sampleRate float64
	blockSize  int

	ring      *common.SignalBuffer
	window    *windowing.Window
	transform *spectral.Transform
	windowed  []float64
	spectrum  []float64
	function  Function

	state      State
	metric     float64
	prevMetric float64
	peak       float64
	position   uint64

	debounceSamples   int
	debounceRemaining int

	prepared bool

	subMu     sync.Mutex
	nextSubID uint64
	listeners atomic.Pointer[[]subscription]

	logger logging.Logger
}

// NewDetector creates an unprepared detector
func NewDetector(params Params) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		params:   params,
		function: NewFunction(params.Function),
		logger: logging.WithFields(logging.Fields{
			"component": "onset_detector",
			"function":  params.Function.String(),
		}),
	}
	d.listeners.Store(&[]subscription{})
	return d, nil
}

// Params returns the detector configuration
func (d *Detector) Params() Params {
	return d.params
}

// Prepare allocates every buffer for the stream format and resets the detector
func (d *Detector) Prepare(sampleRate float64, blockSize int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %g", sampleRate)
	}
	if blockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}

	n := d.params.WindowSize
	conv := spectral.BinConverter{WindowSize: n, SampleRate: sampleRate}

	if d.params.MaxFreq > sampleRate/2 {
		return fmt.Errorf("%w: max frequency %g above Nyquist", ErrInvalidRange, d.params.MaxFreq)
	}

	w, err := windowing.New(d.params.WindowFunction, n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWindowSize, err)
	}
	t, err := spectral.NewTransform(n)
	if err != nil {
		return err
	}
	ring, err := common.NewSignalBuffer(n, blockSize)
	if err != nil {
		return err
	}
	if err := d.function.Prepare(conv, d.params); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", d.params.Function, err)
	}

	d.sampleRate = sampleRate
	d.blockSize = blockSize
	d.ring = ring
	d.window = w
	d.transform = t
	d.windowed = make([]float64, n)
	d.spectrum = make([]float64, t.NumBins())
	d.debounceSamples = int(math.Round(d.params.DebounceMs / 1000.0 * sampleRate))
	d.prepared = true
	d.Reset()

	d.logger.Debug("Onset detector prepared", logging.Fields{
		"sample_rate":      sampleRate,
		"block_size":       blockSize,
		"window_size":      n,
		"debounce_samples": d.debounceSamples,
	})

	return nil
}

// Reset returns to Idle and clears history and debounce
func (d *Detector) Reset() {
	if d.ring != nil {
		d.ring.Reset()
	}
	d.function.Reset()
	d.state = Idle
	d.metric = 0.0
	d.prevMetric = 0.0
	d.peak = 0.0
	d.position = 0
	d.debounceRemaining = 0
}

// State returns the current state machine state
func (d *Detector) State() State {
	return d.state
}

// Growth returns the metric of the last stored block
func (d *Detector) Growth() float64 {
	return d.metric
}

// Position returns the number of samples stored since the last reset
func (d *Detector) Position() uint64 {
	return d.position
}

// Store analyses one block and reports whether an onset fired on it
func (d *Detector) Store(block [][]float64, channel int) (bool, error) {
	if !d.prepared {
		return false, ErrNotPrepared
	}
	if channel < 0 || channel >= len(block) {
		return false, ErrInvalidChannel
	}
	if len(block[channel]) != d.blockSize {
		return false, ErrBlockSize
	}

	d.ring.Store(block[channel])
	d.position += uint64(d.blockSize)

	frame := d.ring.Frame(d.blockSize, d.params.WindowSize)
	if err := d.window.ApplyTo(d.windowed, frame); err != nil {
		return false, err
	}
	if err := d.transform.Spectrum(d.windowed, d.spectrum, d.params.SpectrumType); err != nil {
		return false, err
	}

	d.prevMetric = d.metric
	d.metric = d.function.Metric(d.spectrum)

	if d.debounceRemaining > 0 {
		d.debounceRemaining -= d.blockSize
		return false, nil
	}

	switch d.state {
	case Idle:
		if d.metric >= d.params.HiThresh {
			d.state = Hit
			d.peak = d.metric
		}

	case Hit:
		d.peak = math.Max(d.peak, d.metric)

		release := d.metric < d.params.LoThresh
		if d.params.LoThresh < 0 {
			release = d.metric < d.prevMetric
		}
		if release {
			d.fire()
			return true, nil
		}
	}

	return false, nil
}

func (d *Detector) fire() {
	d.state = Idle
	d.debounceRemaining = d.debounceSamples

	onset := Onset{Position: d.position, Peak: d.peak, Metric: d.metric}
	for _, sub := range *d.listeners.Load() {
		sub.listener(onset)
	}
}

// Subscribe registers l for every future onset. The returned function removes it.
func (d *Detector) Subscribe(l Listener) (cancel func()) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	d.nextSubID++
	id := d.nextSubID

	current := *d.listeners.Load()
	next := make([]subscription, len(current), len(current)+1)
	copy(next, current)
	next = append(next, subscription{id: id, listener: l})
	d.listeners.Store(&next)

	var once sync.Once
	return func() {
		once.Do(func() { d.unsubscribe(id) })
	}
}

func (d *Detector) unsubscribe(id uint64) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	current := *d.listeners.Load()
	next := make([]subscription, 0, len(current))
	for _, sub := range current {
		if sub.id != id {
			next = append(next, sub)
		}
	}
	d.listeners.Store(&next)
}

// Listeners returns the number of subscribed listeners
func (d *Detector) Listeners() int {
	return len(*d.listeners.Load())
}
