package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DistanceFunction computes the distance between two equal-length vectors
type DistanceFunction func(a, b []float64) float64

// DistanceMetric identifies a distance measure between feature vectors
type DistanceMetric int

const (
	EuclideanDistance DistanceMetric = iota
	ManhattanDistance
	PearsonDistance
	CosineDistance
)

func (m DistanceMetric) String() string {
	switch m {
	case EuclideanDistance:
		return "euclidean"
	case ManhattanDistance:
		return "manhattan"
	case PearsonDistance:
		return "correlation"
	case CosineDistance:
		return "cosine"
	default:
		return "unknown"
	}
}

// ParseDistanceMetric converts a metric name into a DistanceMetric
func ParseDistanceMetric(name string) (DistanceMetric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "euclidean", "l2", "":
		return EuclideanDistance, nil
	case "manhattan", "l1":
		return ManhattanDistance, nil
	case "correlation", "pearson":
		return PearsonDistance, nil
	case "cosine":
		return CosineDistance, nil
	default:
		return EuclideanDistance, fmt.Errorf("unknown distance metric %q", name)
	}
}

// GetDistanceFunction returns the distance function for the given metric
func GetDistanceFunction(metric DistanceMetric) DistanceFunction {
	switch metric {
	case ManhattanDistance:
		return ManhattanDistanceFunc
	case PearsonDistance:
		return PearsonDistanceFunc
	case CosineDistance:
		return CosineDistanceFunc
	default:
		return EuclideanDistanceFunc
	}
}

// EuclideanDistanceFunc calculates the L2 distance
func EuclideanDistanceFunc(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// ManhattanDistanceFunc calculates the L1 distance
func ManhattanDistanceFunc(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// CosineDistanceFunc calculates 1 - cosine similarity. A zero vector is at distance 1
// from everything.
func CosineDistanceFunc(a, b []float64) float64 {
	dot := 0.0
	normA := 0.0
	normB := 0.0

	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// PearsonDistanceFunc calculates 1 - r, where r is the Pearson correlation of the
// two vectors. The result lies in [0, 2]; constant vectors are at distance 1.
func PearsonDistanceFunc(a, b []float64) float64 {
	return 1.0 - PearsonCorrelationFunc(a, b)
}

// PearsonCorrelationFunc calculates the Pearson correlation coefficient
func PearsonCorrelationFunc(a, b []float64) float64 {
	n := len(a)
	if n == 0 {
		return 0.0
	}

	meanA := 0.0
	meanB := 0.0
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	numerator := 0.0
	sumSqA := 0.0
	sumSqB := 0.0

	for i := range a {
		diffA := a[i] - meanA
		diffB := b[i] - meanB
		numerator += diffA * diffB
		sumSqA += diffA * diffA
		sumSqB += diffB * diffB
	}

	if sumSqA == 0 || sumSqB == 0 {
		return 0.0
	}

	return numerator / math.Sqrt(sumSqA*sumSqB)
}

// DistanceMatrix computes pairwise distances between all vectors
func DistanceMatrix(data [][]float64, dist DistanceFunction) [][]float64 {
	n := len(data)
	matrix := make([][]float64, n)

	for i := range n {
		matrix[i] = make([]float64, n)
		for j := range i {
			// symmetric, lower triangle copies the upper
			matrix[i][j] = matrix[j][i]
		}
		for j := i + 1; j < n; j++ {
			matrix[i][j] = dist(data[i], data[j])
		}
	}

	return matrix
}

// Neighbor is one candidate returned by NearestNeighbors
type Neighbor struct {
	Index    int
	Distance float64
}

// NearestNeighbors returns the k points closest to query, nearest first
func NearestNeighbors(query []float64, data [][]float64, k int, dist DistanceFunction) []Neighbor {
	if k <= 0 || len(data) == 0 {
		return []Neighbor{}
	}
	k = min(k, len(data))

	neighbors := make([]Neighbor, len(data))
	for i, point := range data {
		neighbors[i] = Neighbor{Index: i, Distance: dist(query, point)}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	return neighbors[:k]
}
