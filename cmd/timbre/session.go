package main

import (
	"fmt"

	"github.com/RyanBlaney/sonido-timbre/algorithms/filters"
	"github.com/RyanBlaney/sonido-timbre/logging"
	"github.com/RyanBlaney/sonido-timbre/timbre/config"
	"github.com/RyanBlaney/sonido-timbre/timbre/knn"
	"github.com/RyanBlaney/sonido-timbre/timbre/onset"
	"github.com/RyanBlaney/sonido-timbre/timbre/pipeline"
	"github.com/RyanBlaney/sonido-timbre/timbre/windowed"
)

// realtimeLogCapacity bounds the log entries queued by the audio thread between drains
const realtimeLogCapacity = 256

// session is one fully wired analysis chain
type session struct {
	agg        *windowed.Aggregator
	detector   *onset.Detector
	analyzer   *pipeline.Analyzer
	classifier *knn.Classifier
	worker     *pipeline.Worker
	rt         *logging.Realtime
	cond       *filters.Conditioner
}

// newSession builds the chain for cfg. sel, when set, is installed before the
// feature queue is sized. withClassifier adds a k-NN model to the worker.
func newSession(cfg config.Config, sel *config.Selection, withClassifier bool) (*session, error) {
	cond, err := cfg.Conditioner(cfg.Audio.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create input filters: %w", err)
	}

	agg, err := windowed.New(cfg.Windowed())
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}
	if sel != nil {
		if err := sel.Apply(agg); err != nil {
			return nil, fmt.Errorf("failed to apply feature selection: %w", err)
		}
	}

	detector, err := onset.NewDetector(cfg.Onset.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to create onset detector: %w", err)
	}
	if err := detector.Prepare(cfg.Audio.SampleRate, cfg.Audio.BlockSize); err != nil {
		return nil, fmt.Errorf("failed to prepare onset detector: %w", err)
	}

	rt, err := logging.NewRealtime(logging.GetGlobalLogger(), realtimeLogCapacity)
	if err != nil {
		return nil, err
	}

	analyzer, err := pipeline.NewAnalyzer(detector, agg, cfg.AnalyzerOptions(), rt)
	if err != nil {
		return nil, err
	}

	var classifier *knn.Classifier
	if withClassifier {
		classifier, err = knn.New(cfg.Classifier.Options)
		if err != nil {
			analyzer.Close()
			return nil, fmt.Errorf("failed to create classifier: %w", err)
		}
	}

	worker, err := pipeline.NewWorker(analyzer.Features(), analyzer.VectorSize(), classifier, cfg.WorkerOptions())
	if err != nil {
		analyzer.Close()
		return nil, err
	}

	return &session{
		agg:        agg,
		detector:   detector,
		analyzer:   analyzer,
		classifier: classifier,
		worker:     worker,
		rt:         rt,
		cond:       cond,
	}, nil
}

// process conditions block in place and hands it to the analyzer
func (s *session) process(block [][]float64) error {
	if err := s.cond.Process(block); err != nil {
		return err
	}
	return s.analyzer.Process(block)
}

// header names the columns of every vector the session produces
func (s *session) header() []string {
	if f := s.agg.FeatureFilter(); f != nil {
		return f.Names()
	}
	return s.agg.Header()
}

func (s *session) Close() {
	s.analyzer.Close()
	s.rt.Drain()
}
