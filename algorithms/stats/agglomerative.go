package stats

import (
	"fmt"
	"math"
)

// LinkageCriterion decides how the distance between two groups is measured
type LinkageCriterion int

const (
	SingleLinkage LinkageCriterion = iota
	CompleteLinkage
	AverageLinkage
)

// Agglomerate merges points bottom-up until k groups remain and returns the group
// label of every point. Labels are numbered 0..k-1 in order of first appearance.
func Agglomerate(data [][]float64, k int, dist DistanceFunction, linkage LinkageCriterion) ([]int, error) {
	n := len(data)
	if n == 0 {
		return nil, fmt.Errorf("empty data")
	}
	if k <= 0 || k > n {
		return nil, fmt.Errorf("number of clusters (%d) must be in [1, %d]", k, n)
	}

	groups := make([][]int, n)
	for i := range n {
		groups[i] = []int{i}
	}

	distMatrix := DistanceMatrix(data, dist)

	for len(groups) > k {
		minDist := math.Inf(1)
		mergeI, mergeJ := 0, 1

		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				d := groupDistance(groups[i], groups[j], distMatrix, linkage)
				if d < minDist {
					minDist = d
					mergeI, mergeJ = i, j
				}
			}
		}

		groups[mergeI] = append(groups[mergeI], groups[mergeJ]...)
		groups = append(groups[:mergeJ], groups[mergeJ+1:]...)
	}

	labels := make([]int, n)
	for label, group := range groups {
		for _, idx := range group {
			labels[idx] = label
		}
	}

	return labels, nil
}

func groupDistance(a, b []int, distMatrix [][]float64, linkage LinkageCriterion) float64 {
	switch linkage {
	case SingleLinkage:
		minDist := math.Inf(1)
		for _, i := range a {
			for _, j := range b {
				minDist = math.Min(minDist, distMatrix[i][j])
			}
		}
		return minDist

	case CompleteLinkage:
		maxDist := 0.0
		for _, i := range a {
			for _, j := range b {
				maxDist = math.Max(maxDist, distMatrix[i][j])
			}
		}
		return maxDist

	default:
		sum := 0.0
		for _, i := range a {
			for _, j := range b {
				sum += distMatrix[i][j]
			}
		}
		return sum / float64(len(a)*len(b))
	}
}
