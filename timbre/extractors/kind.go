package extractors

import (
	"fmt"
	"strings"
)

// Kind identifies one feature extractor. The order of the constants is the order
// in which feature vectors are concatenated.
type Kind int

const (
	AttackTime Kind = iota
	BarkSpecBrightness
	BarkSpec
	Bfcc
	Cepstrum
	Mfcc
	PeakSample
	ZeroCrossing

	numKinds
)

var kindNames = [numKinds]string{
	AttackTime:         "AttackTime",
	BarkSpecBrightness: "BarkSpecBrightness",
	BarkSpec:           "BarkSpec",
	Bfcc:               "Bfcc",
	Cepstrum:           "Cepstrum",
	Mfcc:               "Mfcc",
	PeakSample:         "PeakSample",
	ZeroCrossing:       "ZeroCrossing",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "Unknown"
	}
	return kindNames[k]
}

// AllKinds returns every kind in concatenation order
func AllKinds() []Kind {
	kinds := make([]Kind, numKinds)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

// ParseKind resolves a case-insensitive extractor name
func ParseKind(name string) (Kind, error) {
	trimmed := strings.TrimSpace(name)
	for i, n := range kindNames {
		if strings.EqualFold(n, trimmed) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feature extractor %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// New creates an extractor of the given kind. The extractor is sized for the
// default sample rate and block size and must be prepared before Compute.
func New(kind Kind, params Params) (Extractor, error) {
	var k kernel

	switch kind {
	case AttackTime:
		k = &attackTime{}
	case BarkSpecBrightness:
		k = &brightness{}
	case BarkSpec:
		k = &barkSpec{}
	case Bfcc:
		k = newCepstralCoefficients(false)
	case Cepstrum:
		k = &cepstrum{}
	case Mfcc:
		k = newCepstralCoefficients(true)
	case PeakSample:
		k = &peakSample{}
	case ZeroCrossing:
		k = &zeroCrossing{}
	default:
		return nil, fmt.Errorf("unknown feature extractor kind: %d", int(kind))
	}

	return newExtractor(kind, params, k)
}

// NewSet creates one extractor per kind, in the order given
func NewSet(kinds []Kind, params Params) ([]Extractor, error) {
	set := make([]Extractor, 0, len(kinds))
	for _, kind := range kinds {
		e, err := New(kind, params)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s extractor: %w", kind, err)
		}
		set = append(set, e)
	}
	return set, nil
}
