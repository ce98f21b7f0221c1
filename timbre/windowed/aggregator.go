package windowed

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
	"github.com/RyanBlaney/sonido-timbre/logging"
	"github.com/RyanBlaney/sonido-timbre/timbre/extractors"
)

var (
	ErrInvalidConfig   = errors.New("invalid windowed extraction config")
	ErrNoFeatureFilter = errors.New("no feature selection filter installed")
	ErrUnknownFeature  = errors.New("unknown feature name")
	ErrScalerSize      = errors.New("scaler size does not match feature selection")
	ErrOutputSize      = errors.New("output size mismatch")
	ErrStalePadding    = errors.New("zero padding from the previous matrix has not been flushed")
)

// Aggregator runs a set of extractors over every block and turns the recent
// history of their feature vectors into one flat matrix of FramesRes rows.
//
// StoreAndCompute, ComputeFeatureVectors and ComputeSelectedFeaturesAndScale run
// on the audio thread and do not allocate. Everything else is configuration.
type Aggregator struct {
	cfg        Config
	extractors []extractors.Extractor
	offsets    []int

	vectorSize int
	bufferSize int
	framesRes  int

	history   *common.VectorHistory
	zeroBlock [][]float64
	scratch   []float64

	filter *FeatureFilter
	scaler *Scaler

	lastChannel int
	realBlocks  int
	flushBlocks int
	dirty       bool

	logger logging.Logger
}

// New builds and prepares one extractor per enabled feature. Every extractor
// analyses FrameSize blocks.
func New(cfg Config) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kinds := cfg.orderedFeatures()
	set, err := extractors.NewSet(kinds, cfg.Params)
	if err != nil {
		return nil, err
	}

	offsets := make([]int, len(set))
	vectorSize := 0
	historyBlocks := 0
	for i, e := range set {
		if err := e.SetWindowSize(cfg.FrameWindowSize()); err != nil {
			return nil, fmt.Errorf("failed to size %s extractor: %w", e.Name(), err)
		}
		if err := e.Prepare(cfg.SampleRate, cfg.BlockSize); err != nil {
			return nil, fmt.Errorf("failed to prepare %s extractor: %w", e.Name(), err)
		}
		offsets[i] = vectorSize
		vectorSize += e.Size()
		historyBlocks = max(historyBlocks, common.CeilDiv(e.HistorySize(), cfg.BlockSize))
	}

	bufferSize := cfg.BufferSize()
	history, err := common.NewVectorHistory(bufferSize+1, vectorSize)
	if err != nil {
		return nil, err
	}

	zeroBlock := make([][]float64, max(cfg.Params.NumChannels, 1))
	for i := range zeroBlock {
		zeroBlock[i] = make([]float64, cfg.BlockSize)
	}

	cfg.Features = kinds
	a := &Aggregator{
		cfg:        cfg,
		extractors: set,
		offsets:    offsets,
		vectorSize: vectorSize,
		bufferSize: bufferSize,
		framesRes:  cfg.FramesRes(),
		history:    history,
		zeroBlock:  zeroBlock,
		scratch:    make([]float64, cfg.FramesRes()*vectorSize),
		// the oldest sampled row is BlocksPerWindow-1 blocks behind the newest
		// real one, and its extractor history must hold no padding
		flushBlocks: cfg.BlocksPerWindow() - 1 + historyBlocks,
		logger: logging.WithFields(logging.Fields{
			"component": "windowed_feature_extractors",
		}),
	}

	a.logger.Info("Windowed feature extraction configured", logging.Fields{
		"features":     len(set),
		"vector_size":  vectorSize,
		"buffer_size":  bufferSize,
		"frames_res":   a.framesRes,
		"matrix_size":  a.MatrixSize(),
		"frame_size":   cfg.FrameWindowSize(),
		"flush_blocks": a.flushBlocks,
	})

	return a, nil
}

// Config returns the configuration the aggregator was built with
func (a *Aggregator) Config() Config {
	return a.cfg
}

// Extractors returns the extractors in concatenation order
func (a *Aggregator) Extractors() []extractors.Extractor {
	return a.extractors
}

// VectorSize is the length of one frame vector
func (a *Aggregator) VectorSize() int {
	return a.vectorSize
}

// BufferSize is the number of frame vectors spanned by the super-window
func (a *Aggregator) BufferSize() int {
	return a.bufferSize
}

// FramesRes is the number of frame vectors in one matrix
func (a *Aggregator) FramesRes() int {
	return a.framesRes
}

// MatrixSize is FramesRes*VectorSize
func (a *Aggregator) MatrixSize() int {
	return a.framesRes * a.vectorSize
}

// OutputSize is the length written by ComputeSelectedFeaturesAndScale, or the
// full matrix size when no filter is installed
func (a *Aggregator) OutputSize() int {
	if a.filter != nil {
		return a.filter.Len()
	}
	return a.MatrixSize()
}

// PaddingDirty reports whether zero padding from the last matrix may still be
// inside the look-back window
func (a *Aggregator) PaddingDirty() bool {
	return a.dirty
}

// FlushBlocks is the number of real blocks needed after a padded matrix before
// the next one may be computed
func (a *Aggregator) FlushBlocks() int {
	return a.flushBlocks
}

// Reset clears every extractor and the frame history
func (a *Aggregator) Reset() {
	for _, e := range a.extractors {
		e.Reset()
	}
	a.history.Reset()
	a.realBlocks = 0
	a.dirty = false
}

// StoreAndCompute feeds block to every extractor and records the resulting frame vector
func (a *Aggregator) StoreAndCompute(block [][]float64, channel int) error {
	if err := a.storeAndCompute(block, channel); err != nil {
		return err
	}

	a.lastChannel = channel
	if a.dirty {
		a.realBlocks++
		if a.realBlocks >= a.flushBlocks {
			a.dirty = false
		}
	}
	return nil
}

func (a *Aggregator) storeAndCompute(block [][]float64, channel int) error {
	for _, e := range a.extractors {
		if err := e.Store(block, channel); err != nil {
			return err
		}
	}

	vector := a.history.Next()
	for i, e := range a.extractors {
		off := a.offsets[i]
		if err := e.Compute(vector[off : off+e.Size()]); err != nil {
			return err
		}
	}
	return nil
}

// ComputeFeatureVectors pushes ZeroPads blocks of silence and writes the
// FramesRes frame vectors at history positions i*FrameInterval+1 into dst
func (a *Aggregator) ComputeFeatureVectors(dst []float64) error {
	if len(dst) != a.MatrixSize() {
		return ErrOutputSize
	}
	if a.dirty {
		return ErrStalePadding
	}

	for range a.cfg.ZeroPads {
		if err := a.storeAndCompute(a.zeroBlock, a.lastChannel); err != nil {
			return err
		}
	}

	for i := range a.framesRes {
		row := dst[i*a.vectorSize : (i+1)*a.vectorSize]
		copy(row, a.history.At(i*a.cfg.FrameInterval+1))
	}

	if a.cfg.ZeroPads > 0 {
		a.dirty = true
		a.realBlocks = 0
	}
	return nil
}

// ComputeSelectedFeaturesAndScale computes the matrix, keeps the filtered
// features and applies the scaler if one is installed
func (a *Aggregator) ComputeSelectedFeaturesAndScale(dst []float64) error {
	if a.filter == nil {
		return ErrNoFeatureFilter
	}
	if len(dst) != a.filter.Len() {
		return ErrOutputSize
	}

	if err := a.ComputeFeatureVectors(a.scratch); err != nil {
		return err
	}
	if err := a.filter.Apply(a.scratch, dst); err != nil {
		return err
	}
	if a.scaler != nil {
		return a.scaler.Apply(dst)
	}
	return nil
}

// Header names every matrix element as "<frame>_<feature>_<component>"
func (a *Aggregator) Header() []string {
	header := make([]string, 0, a.MatrixSize())
	for i := range a.framesRes {
		for _, e := range a.extractors {
			for _, c := range e.Components() {
				header = append(header, fmt.Sprintf("%d_%s_%s", i, e.Name(), c))
			}
		}
	}
	return header
}

// SetFeatureSelectionFilter resolves names against Header and installs the
// result. An installed scaler of a different size is dropped.
func (a *Aggregator) SetFeatureSelectionFilter(names []string) error {
	filter, err := NewFeatureFilter(a.Header(), names)
	if err != nil {
		return err
	}

	a.filter = filter
	if a.scaler != nil && a.scaler.Size() != filter.Len() {
		a.logger.Warn("Dropping scaler that does not match the new selection", logging.Fields{
			"scaler_size": a.scaler.Size(),
			"filter_size": filter.Len(),
		})
		a.scaler = nil
	}

	a.logger.Debug("Feature selection installed", logging.Fields{
		"selected": filter.Len(),
	})
	return nil
}

// FeatureFilter returns the installed filter or nil
func (a *Aggregator) FeatureFilter() *FeatureFilter {
	return a.filter
}

// ClearFeatureFilter removes the filter and the scaler
func (a *Aggregator) ClearFeatureFilter() {
	a.filter = nil
	a.scaler = nil
}

// SetScaler installs a scaler. A filter must be installed first and the sizes must match.
func (a *Aggregator) SetScaler(s *Scaler) error {
	if a.filter == nil {
		return ErrNoFeatureFilter
	}
	if s.Size() != a.filter.Len() {
		return fmt.Errorf("%w: scaler %d, selection %d", ErrScalerSize, s.Size(), a.filter.Len())
	}

	a.scaler = s
	return nil
}

// Scaler returns the installed scaler or nil
func (a *Aggregator) Scaler() *Scaler {
	return a.scaler
}

// ClearScaler removes the scaler
func (a *Aggregator) ClearScaler() {
	a.scaler = nil
}
