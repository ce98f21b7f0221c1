package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
	"github.com/RyanBlaney/sonido-timbre/logging"
	"github.com/RyanBlaney/sonido-timbre/timbre/knn"
)

// NoCluster marks a prediction made without a usable model
const NoCluster = -1

// Prediction is the outcome for one feature vector
type Prediction struct {
	Seq    uint64
	Result knn.Result

	// Trained is set when the vector was added to the model instead of classified
	Trained bool
	Class   int
}

// Sink receives every feature vector with its prediction. It runs on the worker goroutine.
type Sink interface {
	Write(vector []float64, p Prediction) error
}

// WorkerOptions configures the worker loop
type WorkerOptions struct {
	Interval        time.Duration `json:"interval"`
	PredictionQueue int           `json:"prediction_queue"`
}

// DefaultWorkerOptions polls every 10 ms
func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Interval:        10 * time.Millisecond,
		PredictionQueue: 64,
	}
}

// Worker drains the feature queue on its own goroutine, trains or classifies
// every vector and publishes the predictions
type Worker struct {
	features    *common.SPSC[float64]
	predictions *common.SPSC[Prediction]
	classifier  *knn.Classifier
	sinks       []Sink
	opts        WorkerOptions

	vector []float64
	seq    uint64
	armed  atomic.Int64

	logger logging.Logger
}

// NewWorker reads vectors of vectorSize values from features. classifier may be
// nil, in which case vectors only reach the sinks.
func NewWorker(features *common.SPSC[float64], vectorSize int, classifier *knn.Classifier, opts WorkerOptions) (*Worker, error) {
	if vectorSize <= 0 {
		return nil, fmt.Errorf("invalid vector size: %d", vectorSize)
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("invalid worker interval: %s", opts.Interval)
	}

	predictions, err := common.NewSPSC[Prediction](max(opts.PredictionQueue, 1))
	if err != nil {
		return nil, err
	}

	w := &Worker{
		features:    features,
		predictions: predictions,
		classifier:  classifier,
		opts:        opts,
		vector:      make([]float64, vectorSize),
		logger: logging.WithFields(logging.Fields{
			"component": "classification_worker",
		}),
	}
	w.armed.Store(NoCluster)
	return w, nil
}

// AddSink registers a sink. Call before Run.
func (w *Worker) AddSink(s Sink) {
	w.sinks = append(w.sinks, s)
}

// Arm makes the worker train every following vector as class
func (w *Worker) Arm(class int) {
	w.armed.Store(int64(class))
}

// Disarm switches back to classification
func (w *Worker) Disarm() {
	w.armed.Store(NoCluster)
}

// Predictions is the queue of results for a single reader
func (w *Worker) Predictions() *common.SPSC[Prediction] {
	return w.predictions
}

// Run polls the feature queue until ctx is cancelled, then drains it once more
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	w.logger.Info("Worker started", logging.Fields{"interval": w.opts.Interval.String()})

	for {
		select {
		case <-ctx.Done():
			_, err := w.Poll()
			w.logger.Info("Worker stopped", logging.Fields{"processed": w.seq})
			return err
		case <-ticker.C:
			if _, err := w.Poll(); err != nil {
				return err
			}
		}
	}
}

// Poll handles every complete vector in the queue and returns how many it handled
func (w *Worker) Poll() (int, error) {
	handled := 0
	for w.features.ReadExact(w.vector) {
		if err := w.handle(); err != nil {
			return handled, err
		}
		handled++
	}
	return handled, nil
}

func (w *Worker) handle() error {
	w.seq++
	p := Prediction{
		Seq:    w.seq,
		Result: knn.Result{ClusterID: NoCluster},
		Class:  NoCluster,
	}

	if w.classifier != nil {
		if class := int(w.armed.Load()); class >= 0 {
			n, err := w.classifier.Train(class, w.vector)
			if err != nil {
				return fmt.Errorf("failed to train class %d: %w", class, err)
			}
			p.Trained = true
			p.Class = class
			w.logger.Debug("Vector trained", logging.Fields{"class": class, "instances": n})
		} else {
			res, err := w.classifier.Classify(w.vector)
			switch {
			case errors.Is(err, knn.ErrEmptyModel):
				w.logger.Debug("No training data, vector not classified", logging.Fields{"seq": w.seq})
			case err != nil:
				return fmt.Errorf("failed to classify vector %d: %w", w.seq, err)
			default:
				p.Result = res
			}
		}
	}

	if !w.predictions.Push(p) {
		w.logger.Warn("Prediction queue full", logging.Fields{"dropped": w.predictions.Dropped()})
	}

	for _, s := range w.sinks {
		if err := s.Write(w.vector, p); err != nil {
			return fmt.Errorf("sink write failed: %w", err)
		}
	}
	return nil
}
