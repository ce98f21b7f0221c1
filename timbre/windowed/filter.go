package windowed

import (
	"fmt"
)

// FeatureFilter selects a fixed subset of a feature matrix by index
type FeatureFilter struct {
	names   []string
	indices []int
}

// NewFeatureFilter resolves names against header. Every name must appear in
// the header; the filter keeps the order of names.
func NewFeatureFilter(header, names []string) (*FeatureFilter, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: empty selection", ErrUnknownFeature)
	}

	lookup := make(map[string]int, len(header))
	for i, h := range header {
		lookup[h] = i
	}

	indices := make([]int, len(names))
	for i, name := range names {
		idx, ok := lookup[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
		}
		indices[i] = idx
	}

	return &FeatureFilter{
		names:   append([]string(nil), names...),
		indices: indices,
	}, nil
}

// Len returns the number of selected features
func (f *FeatureFilter) Len() int {
	return len(f.indices)
}

// Names returns the selected header names
func (f *FeatureFilter) Names() []string {
	return f.names
}

// Indices returns the selected positions in the full matrix
func (f *FeatureFilter) Indices() []int {
	return f.indices
}

// Apply gathers the selected values of src into dst
func (f *FeatureFilter) Apply(src, dst []float64) error {
	if len(dst) != len(f.indices) {
		return ErrOutputSize
	}

	for i, idx := range f.indices {
		if idx >= len(src) {
			return ErrOutputSize
		}
		dst[i] = src[idx]
	}
	return nil
}
