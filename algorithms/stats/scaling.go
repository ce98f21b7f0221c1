package stats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Column copies column j of rows into dst, which must be len(rows) long
func Column(rows [][]float64, j int, dst []float64) {
	for i, row := range rows {
		dst[i] = row[j]
	}
}

// ColumnMinMax returns per-column minimum and maximum of equal-length rows
func ColumnMinMax(rows [][]float64) (mins, maxs []float64, err error) {
	width, err := rowWidth(rows)
	if err != nil {
		return nil, nil, err
	}

	mins = make([]float64, width)
	maxs = make([]float64, width)
	col := make([]float64, len(rows))

	for j := range width {
		Column(rows, j, col)
		mins[j] = floats.Min(col)
		maxs[j] = floats.Max(col)
	}

	return mins, maxs, nil
}

// ColumnMeanStd returns per-column mean and population standard deviation
func ColumnMeanStd(rows [][]float64) (means, stds []float64, err error) {
	width, err := rowWidth(rows)
	if err != nil {
		return nil, nil, err
	}

	means = make([]float64, width)
	stds = make([]float64, width)
	col := make([]float64, len(rows))

	for j := range width {
		Column(rows, j, col)
		means[j], stds[j] = stat.PopMeanStdDev(col, nil)
	}

	return means, stds, nil
}

// Centroid returns the element-wise mean of rows
func Centroid(rows [][]float64) ([]float64, error) {
	width, err := rowWidth(rows)
	if err != nil {
		return nil, err
	}

	center := make([]float64, width)
	for _, row := range rows {
		floats.Add(center, row)
	}
	floats.Scale(1.0/float64(len(rows)), center)

	return center, nil
}

func rowWidth(rows [][]float64) (int, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("empty data")
	}

	width := len(rows[0])
	if width == 0 {
		return 0, fmt.Errorf("empty rows")
	}
	for i, row := range rows {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
	}

	return width, nil
}
