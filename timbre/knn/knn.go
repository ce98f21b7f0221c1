package knn

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/RyanBlaney/sonido-timbre/algorithms/stats"
	"github.com/RyanBlaney/sonido-timbre/logging"
)

var (
	ErrEmptyModel   = errors.New("classifier has no training data")
	ErrDimension    = errors.New("feature vector dimension mismatch")
	ErrInvalidK     = errors.New("k must be at least 1")
	ErrInvalidClass = errors.New("invalid class id")
	ErrClusterCount = errors.New("invalid cluster count")
)

// Metric is the distance used to compare feature vectors
type Metric = stats.DistanceMetric

const (
	Euclidean   = stats.EuclideanDistance
	Manhattan   = stats.ManhattanDistance
	Correlation = stats.PearsonDistance
	Cosine      = stats.CosineDistance
)

// ParseMetric converts a metric name into a Metric
func ParseMetric(name string) (Metric, error) {
	return stats.ParseDistanceMetric(name)
}

// Options configures a Classifier
type Options struct {
	K         int    `json:"k" yaml:"k" mapstructure:"k"`
	Metric    string `json:"metric" yaml:"metric" mapstructure:"metric"`
	Normalize bool   `json:"normalize" yaml:"normalize" mapstructure:"normalize"`
}

// DefaultOptions returns a 1-NN Euclidean classifier without normalisation
func DefaultOptions() Options {
	return Options{K: 1, Metric: Euclidean.String(), Normalize: false}
}

// Unclustered is reported for classes trained after the last Cluster call
const Unclustered = -1

// Result of classifying one feature vector
type Result struct {
	// ClusterID is the winning class, or its cluster when the model is clustered
	ClusterID int
	// Confidence is 1 - nearest/nearest-of-another-cluster, 0 when undefined
	Confidence float64
	// Distance to the nearest instance of the winning cluster
	Distance float64
}

type instance struct {
	class    int
	features []float64
}

// Classifier is a k-nearest-neighbour model over labelled feature vectors.
// It is safe for concurrent use.
type Classifier struct {
	mu sync.RWMutex

	k         int
	metric    Metric
	distance  stats.DistanceFunction
	normalize bool
	weights   []float64

	dim       int
	instances []instance
	clusters  map[int]int

	mins, maxs []float64

	query []float64
	rows  [][]float64

	logger logging.Logger
}

// New creates an empty classifier
func New(opts Options) (*Classifier, error) {
	if opts.K < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, opts.K)
	}
	metric, err := ParseMetric(opts.Metric)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		k:         opts.K,
		metric:    metric,
		distance:  stats.GetDistanceFunction(metric),
		normalize: opts.Normalize,
		logger: logging.WithFields(logging.Fields{
			"component": "knn_classifier",
		}),
	}, nil
}

// Train adds one labelled vector and returns the number of stored instances.
// The first vector fixes the model dimension.
func (c *Classifier) Train(class int, features []float64) (int, error) {
	if class < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidClass, class)
	}
	if len(features) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDimension)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.weights != nil && len(features) != len(c.weights) {
		return len(c.instances), fmt.Errorf("%w: got %d, %d weights set", ErrDimension, len(features), len(c.weights))
	}
	if c.dim == 0 {
		c.dim = len(features)
		c.query = make([]float64, c.dim)
	}
	if len(features) != c.dim {
		return len(c.instances), fmt.Errorf("%w: got %d, model has %d", ErrDimension, len(features), c.dim)
	}

	c.instances = append(c.instances, instance{
		class:    class,
		features: slices.Clone(features),
	})
	c.updateBounds(features)

	return len(c.instances), nil
}

func (c *Classifier) updateBounds(features []float64) {
	if c.mins == nil {
		c.mins = slices.Clone(features)
		c.maxs = slices.Clone(features)
		return
	}
	for i, v := range features {
		c.mins[i] = math.Min(c.mins[i], v)
		c.maxs[i] = math.Max(c.maxs[i], v)
	}
}

func (c *Classifier) recomputeBounds() {
	c.mins, c.maxs = nil, nil
	if len(c.instances) == 0 {
		return
	}

	rows := make([][]float64, len(c.instances))
	for i, inst := range c.instances {
		rows[i] = inst.features
	}
	mins, maxs, err := stats.ColumnMinMax(rows)
	if err != nil {
		return
	}
	c.mins, c.maxs = mins, maxs
}

// prepare writes the normalised, weighted copy of src into dst
func (c *Classifier) prepare(src, dst []float64) {
	for i, v := range src {
		if c.normalize && c.mins != nil {
			if span := c.maxs[i] - c.mins[i]; span != 0 {
				v = (v - c.mins[i]) / span
			} else {
				v = 0.0
			}
		}
		if c.weights != nil {
			v *= c.weights[i]
		}
		dst[i] = v
	}
}

// Classify assigns features to the class (or cluster) that wins the vote of
// its k nearest instances. Ties go to the candidate with the smaller summed distance.
func (c *Classifier) Classify(features []float64) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.instances) == 0 {
		return Result{}, ErrEmptyModel
	}
	if len(features) != c.dim {
		return Result{}, fmt.Errorf("%w: got %d, model has %d", ErrDimension, len(features), c.dim)
	}

	c.prepare(features, c.query)
	neighbors := stats.NearestNeighbors(c.query, c.preparedInstances(), len(c.instances), c.distance)

	clusterOf := func(n stats.Neighbor) int {
		return c.clusterOf(c.instances[n.Index].class)
	}

	type tally struct {
		votes int
		sum   float64
	}
	votes := make(map[int]*tally)
	for _, n := range neighbors[:min(c.k, len(neighbors))] {
		cluster := clusterOf(n)
		t, ok := votes[cluster]
		if !ok {
			t = &tally{}
			votes[cluster] = t
		}
		t.votes++
		t.sum += n.Distance
	}

	winner := -1
	var best *tally
	for cluster, t := range votes {
		if best == nil || t.votes > best.votes ||
			(t.votes == best.votes && t.sum < best.sum) ||
			(t.votes == best.votes && t.sum == best.sum && cluster < winner) {
			winner, best = cluster, t
		}
	}

	nearest, other := math.Inf(1), math.Inf(1)
	for _, n := range neighbors {
		if clusterOf(n) == winner {
			nearest = math.Min(nearest, n.Distance)
		} else {
			other = math.Min(other, n.Distance)
		}
	}

	return Result{
		ClusterID:  winner,
		Confidence: confidence(nearest, other),
		Distance:   nearest,
	}, nil
}

func confidence(nearest, other float64) float64 {
	if math.IsInf(other, 1) || other == 0 {
		return 0.0
	}
	return math.Max(0.0, 1.0-nearest/other)
}

// preparedInstances returns the normalised, weighted copy of every instance in
// rows that are reused across calls
func (c *Classifier) preparedInstances() [][]float64 {
	for len(c.rows) < len(c.instances) {
		c.rows = append(c.rows, make([]float64, c.dim))
	}
	rows := c.rows[:len(c.instances)]
	for i, inst := range c.instances {
		c.prepare(inst.features, rows[i])
	}
	return rows
}

func (c *Classifier) clusterOf(class int) int {
	if c.clusters == nil {
		return class
	}
	if cluster, ok := c.clusters[class]; ok {
		return cluster
	}
	return Unclustered
}

// Cluster groups the trained classes into n clusters by agglomerating their
// centroids. Classify then reports cluster ids, and Unclustered for classes
// trained afterwards until Cluster runs again.
func (c *Classifier) Cluster(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	classes := c.classes()
	if len(classes) == 0 {
		return ErrEmptyModel
	}
	if n < 1 || n > len(classes) {
		return fmt.Errorf("%w: %d clusters for %d classes", ErrClusterCount, n, len(classes))
	}

	centroids := make([][]float64, len(classes))
	for i, class := range classes {
		var rows [][]float64
		for _, inst := range c.instances {
			if inst.class == class {
				rows = append(rows, inst.features)
			}
		}
		center, err := stats.Centroid(rows)
		if err != nil {
			return err
		}
		c.prepare(center, center)
		centroids[i] = center
	}

	labels, err := stats.Agglomerate(centroids, n, c.distance, stats.AverageLinkage)
	if err != nil {
		return fmt.Errorf("failed to cluster classes: %w", err)
	}

	c.clusters = make(map[int]int, len(classes))
	for i, class := range classes {
		c.clusters[class] = labels[i]
	}

	c.logger.Info("Classes clustered", logging.Fields{
		"classes":  len(classes),
		"clusters": n,
	})
	return nil
}

// Uncluster makes Classify report class ids again
func (c *Classifier) Uncluster() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clusters = nil
}

// Clustered reports whether Cluster is in effect
func (c *Classifier) Clustered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clusters != nil
}

// SetK changes the number of neighbours that vote
func (c *Classifier) SetK(k int) error {
	if k < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.k = k
	return nil
}

// SetMetric changes the distance metric
func (c *Classifier) SetMetric(m Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metric = m
	c.distance = stats.GetDistanceFunction(m)
}

// Metric returns the current distance metric
func (c *Classifier) Metric() Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metric
}

// SetNormalize enables min-max normalisation against the training bounds
func (c *Classifier) SetNormalize(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.normalize = on
}

// SetWeights scales every dimension before distances are taken. nil clears them.
func (c *Classifier) SetWeights(weights []float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if weights == nil {
		c.weights = nil
		return nil
	}
	if c.dim != 0 && len(weights) != c.dim {
		return fmt.Errorf("%w: %d weights, model has %d", ErrDimension, len(weights), c.dim)
	}
	c.weights = slices.Clone(weights)
	return nil
}

// Forget removes every instance of class and returns how many were removed
func (c *Classifier) Forget(class int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.instances)
	c.instances = slices.DeleteFunc(c.instances, func(inst instance) bool {
		return inst.class == class
	})
	removed := before - len(c.instances)

	if removed > 0 {
		delete(c.clusters, class)
		c.recomputeBounds()
	}
	return removed
}

// Clear drops all training data, clustering and weights
func (c *Classifier) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.instances = nil
	c.clusters = nil
	c.weights = nil
	c.mins, c.maxs = nil, nil
	c.query, c.rows = nil, nil
	c.dim = 0
}

// Len returns the number of stored instances
func (c *Classifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instances)
}

// Dim returns the model dimension, 0 before the first Train
func (c *Classifier) Dim() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dim
}

// Classes returns the trained class ids in ascending order
func (c *Classifier) Classes() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classes()
}

func (c *Classifier) classes() []int {
	seen := make(map[int]bool)
	var classes []int
	for _, inst := range c.instances {
		if !seen[inst.class] {
			seen[inst.class] = true
			classes = append(classes, inst.class)
		}
	}
	slices.Sort(classes)
	return classes
}
