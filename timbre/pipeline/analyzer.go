package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
	"github.com/RyanBlaney/sonido-timbre/logging"
	"github.com/RyanBlaney/sonido-timbre/timbre/onset"
	"github.com/RyanBlaney/sonido-timbre/timbre/windowed"
)

// AnalyzerOptions configures how onsets turn into feature vectors
type AnalyzerOptions struct {
	Channel int `json:"channel"`

	// PostOnsetBlocks is how many blocks after the onset the matrix is computed
	PostOnsetBlocks int `json:"post_onset_blocks"`

	// QueueVectors is the feature queue capacity in vectors
	QueueVectors int `json:"queue_vectors"`
}

// DefaultAnalyzerOptions computes the matrix 8 blocks after the onset and
// buffers up to 16 vectors
func DefaultAnalyzerOptions() AnalyzerOptions {
	return AnalyzerOptions{
		Channel:         0,
		PostOnsetBlocks: 8,
		QueueVectors:    16,
	}
}

// Analyzer runs on the audio thread. It feeds every block to the onset detector
// and the aggregator and, PostOnsetBlocks after an onset, pushes one feature
// vector into the feature queue.
type Analyzer struct {
	detector *onset.Detector
	agg      *windowed.Aggregator
	opts     AnalyzerOptions

	countdown int
	pending   bool
	vector    []float64
	features  *common.SPSC[float64]

	onsets    atomic.Uint64
	extracted atomic.Uint64
	skipped   atomic.Uint64

	rt          *logging.Realtime
	unsubscribe func()
}

// NewAnalyzer wires detector and aggregator together. The feature selection of
// agg must be final: the vector size is fixed here.
func NewAnalyzer(detector *onset.Detector, agg *windowed.Aggregator, opts AnalyzerOptions, rt *logging.Realtime) (*Analyzer, error) {
	if opts.PostOnsetBlocks < 0 {
		return nil, fmt.Errorf("invalid post onset delay: %d blocks", opts.PostOnsetBlocks)
	}
	if opts.QueueVectors <= 0 {
		return nil, fmt.Errorf("invalid feature queue size: %d", opts.QueueVectors)
	}

	size := agg.OutputSize()
	features, err := common.NewSPSC[float64](size * opts.QueueVectors)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		detector:  detector,
		agg:       agg,
		opts:      opts,
		countdown: -1,
		vector:    make([]float64, size),
		features:  features,
		rt:        rt,
	}
	a.unsubscribe = detector.Subscribe(a.onOnset)

	logging.Debug("Analyzer created", logging.Fields{
		"component":         "analyzer",
		"vector_size":       size,
		"post_onset_blocks": opts.PostOnsetBlocks,
		"queue_vectors":     opts.QueueVectors,
	})

	return a, nil
}

func (a *Analyzer) onOnset(onset.Onset) {
	a.onsets.Add(1)
	a.pending = true
}

// Close detaches the analyzer from the detector
func (a *Analyzer) Close() {
	a.unsubscribe()
}

// VectorSize is the length of every vector pushed into the feature queue
func (a *Analyzer) VectorSize() int {
	return len(a.vector)
}

// Features is the queue drained by a Worker
func (a *Analyzer) Features() *common.SPSC[float64] {
	return a.features
}

// Onsets returns the number of onsets detected
func (a *Analyzer) Onsets() uint64 {
	return a.onsets.Load()
}

// Extracted returns the number of vectors pushed into the feature queue
func (a *Analyzer) Extracted() uint64 {
	return a.extracted.Load()
}

// Skipped returns the number of onsets that produced no vector
func (a *Analyzer) Skipped() uint64 {
	return a.skipped.Load()
}

// Process handles one audio block. It does not allocate.
func (a *Analyzer) Process(block [][]float64) error {
	if _, err := a.detector.Store(block, a.opts.Channel); err != nil {
		return err
	}
	if err := a.agg.StoreAndCompute(block, a.opts.Channel); err != nil {
		return err
	}

	if a.pending {
		a.pending = false
		a.countdown = a.opts.PostOnsetBlocks
	}

	switch {
	case a.countdown < 0:
		return nil
	case a.countdown > 0:
		a.countdown--
		return nil
	}

	a.countdown = -1
	return a.extract()
}

func (a *Analyzer) extract() error {
	var err error
	if a.agg.FeatureFilter() != nil {
		err = a.agg.ComputeSelectedFeaturesAndScale(a.vector)
	} else {
		err = a.agg.ComputeFeatureVectors(a.vector)
	}

	if errors.Is(err, windowed.ErrStalePadding) {
		a.skipped.Add(1)
		a.log(logging.WarnLevel, "onset too close to the previous one, skipped", float64(a.onsets.Load()))
		return nil
	}
	if err != nil {
		return err
	}

	if !a.features.Write(a.vector) {
		a.skipped.Add(1)
		a.log(logging.WarnLevel, "feature queue full, vector dropped", float64(a.features.Dropped()))
		return nil
	}

	a.extracted.Add(1)
	a.log(logging.DebugLevel, "feature vector queued", float64(a.extracted.Load()))
	return nil
}

func (a *Analyzer) log(level logging.Level, msg string, value float64) {
	if a.rt != nil {
		a.rt.Log(level, msg, value)
	}
}
