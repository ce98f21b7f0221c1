package spectral

import (
	"errors"
	"fmt"
	"math"
)

// ErrBasisSize is returned when Compute is called with a size other than the precomputed basis
var ErrBasisSize = errors.New("input size does not match DCT basis")

// DCT computes an unnormalised type-II discrete cosine transform from a precomputed
// basis: out[i] = sum_k in[k]*cos(i*(k+0.5)*pi/N).
type DCT struct {
	size  int
	basis [][]float64
}

// NewDCT precomputes the basis for size-point transforms
func NewDCT(size int) (*DCT, error) {
	d := &DCT{}
	if err := d.Precompute(size); err != nil {
		return nil, err
	}
	return d, nil
}

// Precompute builds the N×N cosine basis. It allocates and is meant to run only
// when the filterbank is (re)configured.
func (d *DCT) Precompute(size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid DCT size: %d", size)
	}

	basis := make([][]float64, size)
	for i := range size {
		basis[i] = make([]float64, size)
		for k := range size {
			basis[i][k] = math.Cos(float64(i) * (float64(k) + 0.5) * math.Pi / float64(size))
		}
	}

	d.size = size
	d.basis = basis
	return nil
}

// Size returns the basis size
func (d *DCT) Size() int {
	return d.size
}

// Compute transforms input into output. Both must have the basis size.
func (d *DCT) Compute(input, output []float64) error {
	if len(input) != d.size || len(output) != d.size {
		return ErrBasisSize
	}

	for i, row := range d.basis {
		sum := 0.0
		for k, c := range row {
			sum += input[k] * c
		}
		output[i] = sum
	}

	return nil
}
