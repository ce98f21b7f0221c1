package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-timbre/timbre/windowed"
)

// Selection is the persisted feature selection and its scaler
type Selection struct {
	Features []string       `yaml:"features"`
	Scaler   *ScalerSection `yaml:"scaler,omitempty"`
}

// ScalerSection stores a fitted scaler, one entry per selected feature
type ScalerSection struct {
	Kind   windowed.ScalerKind `yaml:"kind"`
	Offset []float64           `yaml:"offset,flow"`
	Factor []float64           `yaml:"factor,flow"`
}

// ReadSelection parses a selection file
func ReadSelection(path string) (*Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selection file: %w", err)
	}

	var sel Selection
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("failed to parse selection file %s: %w", path, err)
	}
	if len(sel.Features) == 0 {
		return nil, fmt.Errorf("selection file %s names no features", path)
	}
	return &sel, nil
}

// WriteSelection stores sel at path
func WriteSelection(path string, sel *Selection) error {
	data, err := yaml.Marshal(sel)
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write selection file: %w", err)
	}
	return nil
}

// SelectionOf captures the filter and scaler installed on agg, nil when no
// filter is installed
func SelectionOf(agg *windowed.Aggregator) *Selection {
	filter := agg.FeatureFilter()
	if filter == nil {
		return nil
	}

	sel := &Selection{Features: append([]string(nil), filter.Names()...)}
	if s := agg.Scaler(); s != nil {
		sel.Scaler = &ScalerSection{
			Kind:   s.Kind,
			Offset: append([]float64(nil), s.Offset...),
			Factor: append([]float64(nil), s.Factor...),
		}
	}
	return sel
}

// Apply installs the feature filter and, if present, the scaler on agg
func (s *Selection) Apply(agg *windowed.Aggregator) error {
	if err := agg.SetFeatureSelectionFilter(s.Features); err != nil {
		return err
	}
	if s.Scaler == nil {
		agg.ClearScaler()
		return nil
	}

	scaler, err := windowed.NewScaler(s.Scaler.Kind, s.Scaler.Offset, s.Scaler.Factor)
	if err != nil {
		return err
	}
	return agg.SetScaler(scaler)
}
