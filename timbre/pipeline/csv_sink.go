package pipeline

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVSink writes one row per feature vector: sequence number, cluster,
// confidence, then the features. The header row is written before the first vector.
type CSVSink struct {
	w      *csv.Writer
	header []string
	wrote  bool
	row    []string
}

// NewCSVSink writes to out; header names the feature columns
func NewCSVSink(out io.Writer, header []string) *CSVSink {
	return &CSVSink{
		w:      csv.NewWriter(out),
		header: header,
		row:    make([]string, 0, len(header)+3),
	}
}

// Write appends one row and flushes it
func (s *CSVSink) Write(vector []float64, p Prediction) error {
	if !s.wrote {
		head := append([]string{"seq", "cluster", "confidence"}, s.header...)
		if err := s.w.Write(head); err != nil {
			return err
		}
		s.wrote = true
	}

	s.row = s.row[:0]
	s.row = append(s.row,
		strconv.FormatUint(p.Seq, 10),
		strconv.Itoa(p.Result.ClusterID),
		strconv.FormatFloat(p.Result.Confidence, 'g', -1, 64),
	)
	for _, v := range vector {
		s.row = append(s.row, strconv.FormatFloat(v, 'g', -1, 64))
	}

	if err := s.w.Write(s.row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}
