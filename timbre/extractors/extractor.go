package extractors

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
	"github.com/RyanBlaney/sonido-timbre/algorithms/spectral"
	"github.com/RyanBlaney/sonido-timbre/algorithms/windowing"
	"github.com/RyanBlaney/sonido-timbre/logging"
)

// Default stream format assumed until Prepare is called
const (
	DefaultSampleRate = 44100.0
	DefaultBlockSize  = 64
)

var (
	ErrInvalidWindowSize  = errors.New("invalid window size")
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrInvalidSpacing     = spectral.ErrInvalidSpacing
	ErrInvalidBoundary    = errors.New("bark boundary out of range")
	ErrInvalidSearchRange = errors.New("search range shorter than analysis window")
	ErrInvalidSampleRate  = errors.New("invalid sample rate")
	ErrBlockSize          = errors.New("block size mismatch")
	ErrNotPrepared        = errors.New("extractor not prepared")
	ErrOutputSize         = errors.New("output size does not match feature size")
)

// Extractor computes one fixed-length feature vector from a stream of audio blocks.
//
// Store and Compute run on the audio thread and never allocate. Prepare, SetWindowSize
// and construction allocate and must be called before streaming starts.
type Extractor interface {
	Kind() Kind
	Name() string

	// Size returns the length of the feature vector written by Compute
	Size() int

	// Components names every element of the feature vector
	Components() []string

	WindowSize() int
	SetWindowSize(n int) error

	// HistorySize is the number of samples retained between Stores. A block
	// leaves the history after ceil(HistorySize/blockSize) further Stores.
	HistorySize() int

	Prepare(sampleRate float64, blockSize int) error
	Reset()

	Store(block [][]float64, channel int) error
	Compute(dst []float64) error
}

// state is shared by an extractor and its kernel
type state struct {
	params     Params
	sampleRate float64
	blockSize  int
	windowSize int
}

func (st *state) binConverter() spectral.BinConverter {
	return spectral.BinConverter{WindowSize: st.windowSize, SampleRate: st.sampleRate}
}

// kernel is the feature-specific half of an extractor
type kernel interface {
	// span is the number of samples handed to compute
	span(st *state) int
	size() int
	components() []string

	// configure rebuilds every size dependent buffer, plan and filterbank
	configure(st *state) error
	compute(st *state, frame, dst []float64) error
}

// extractor drives the Unprepared -> Prepared -> Streaming lifecycle shared by
// every kind and delegates the analysis to its kernel
type extractor struct {
	kind   Kind
	state  state
	kernel kernel

	ring      *common.SignalBuffer
	prepared  bool
	lastStore time.Time
	now       func() time.Time

	logger logging.Logger
}

func newExtractor(kind Kind, params Params, k kernel) (*extractor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	e := &extractor{
		kind: kind,
		state: state{
			params:     params,
			sampleRate: DefaultSampleRate,
			blockSize:  DefaultBlockSize,
			windowSize: params.WindowSize,
		},
		kernel: k,
		now:    time.Now,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_extractor",
			"feature":   kind.String(),
		}),
	}

	if err := e.configure(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *extractor) Kind() Kind {
	return e.kind
}

func (e *extractor) Name() string {
	return e.kind.String()
}

func (e *extractor) Size() int {
	return e.kernel.size()
}

func (e *extractor) Components() []string {
	return e.kernel.components()
}

func (e *extractor) WindowSize() int {
	return e.state.windowSize
}

func (e *extractor) HistorySize() int {
	return e.ring.Len()
}

// Prepare sizes every buffer for the stream format. It resets all history.
func (e *extractor) Prepare(sampleRate float64, blockSize int) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRate, sampleRate)
	}
	if blockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrBlockSize, blockSize)
	}

	prev := e.state
	e.state.sampleRate = sampleRate
	e.state.blockSize = blockSize

	if err := e.configure(); err != nil {
		e.state = prev
		return err
	}

	e.prepared = true

	e.logger.Debug("Extractor prepared", logging.Fields{
		"sample_rate": sampleRate,
		"block_size":  blockSize,
		"window_size": e.state.windowSize,
		"size":        e.kernel.size(),
	})

	return nil
}

// SetWindowSize changes the analysis window, rebuilding every size dependent
// buffer and clearing history. The extractor stays in its current lifecycle state.
func (e *extractor) SetWindowSize(n int) error {
	if n < windowing.MinSize {
		return fmt.Errorf("%w: %d (minimum %d)", ErrInvalidWindowSize, n, windowing.MinSize)
	}
	prev := e.state.windowSize
	e.state.windowSize = n

	if err := e.configure(); err != nil {
		e.state.windowSize = prev
		return err
	}

	e.logger.Debug("Window size changed", logging.Fields{
		"window_size": n,
		"size":        e.kernel.size(),
		"prepared":    e.prepared,
	})

	return nil
}

func (e *extractor) configure() error {
	if err := e.kernel.configure(&e.state); err != nil {
		return fmt.Errorf("failed to configure %s: %w", e.kind, err)
	}

	ring, err := common.NewSignalBuffer(e.kernel.span(&e.state), e.state.blockSize)
	if err != nil {
		return err
	}

	e.ring = ring
	e.lastStore = time.Time{}
	return nil
}

// Reset zeroes the sample history without resizing
func (e *extractor) Reset() {
	e.ring.Reset()
	e.lastStore = time.Time{}
}

// Store appends block[channel] to the sample history
func (e *extractor) Store(block [][]float64, channel int) error {
	if channel < 0 || channel >= e.state.params.NumChannels || channel >= len(block) {
		return ErrInvalidChannel
	}

	samples := block[channel]
	if len(samples) != e.state.blockSize {
		return ErrBlockSize
	}

	e.ring.Store(samples)
	if e.state.params.Async {
		e.lastStore = e.now()
	}

	return nil
}

// Compute writes the feature vector of the current analysis frame into dst
func (e *extractor) Compute(dst []float64) error {
	if !e.prepared {
		return ErrNotPrepared
	}
	if len(dst) != e.kernel.size() {
		return ErrOutputSize
	}

	frame := e.ring.Frame(e.frameOffset(), e.kernel.span(&e.state))
	return e.kernel.compute(&e.state, frame, dst)
}

// frameOffset is the start of the analysis frame in the ring, measured from the
// oldest retained sample. blockSize places the frame flush with the newest sample.
func (e *extractor) frameOffset() int {
	bs := e.state.blockSize

	if e.state.params.Async {
		if e.lastStore.IsZero() {
			return 0
		}
		elapsed := e.now().Sub(e.lastStore).Seconds() * e.state.sampleRate
		if elapsed >= float64(bs-1) {
			return bs - 1
		}
		return common.ClampInt(int(elapsed), 0, bs-1)
	}

	return common.ClampInt(int(math.Round(e.state.params.SyncOffset*float64(bs))), 0, bs)
}
