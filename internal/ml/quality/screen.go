// Package quality screens training rows with an isolation forest before
// the tabular models see them. Rows flagged as outliers (bad ticks,
// split artifacts, exchange halts) are dropped from the training set,
// never from inference input.
package quality

import (
	iforest "github.com/narumiruna/go-iforest/pkg/iforest"
)

const (
	// Screening below this many rows removes signal, not noise.
	minRows = 120

	defaultProportion = 0.02
	numTrees          = 100
	sampleSize        = 256
)

type Screener struct {
	proportion float64
}

func NewScreener() *Screener {
	return &Screener{proportion: defaultProportion}
}

// NewScreenerWithProportion overrides the expected contamination rate.
// Values outside (0, 0.5) fall back to the default.
func NewScreenerWithProportion(p float64) *Screener {
	if p <= 0 || p >= 0.5 {
		p = defaultProportion
	}
	return &Screener{proportion: p}
}

// Screen returns a keep mask over rows and the number of rows dropped.
// Datasets too small to screen keep every row.
func (s *Screener) Screen(rows [][]float64) ([]bool, int) {
	keep := make([]bool, len(rows))
	for i := range keep {
		keep[i] = true
	}
	if len(rows) < minRows {
		return keep, 0
	}

	forest := iforest.NewWithOptions(iforest.Options{
		DetectionType: iforest.DetectionTypeProportion,
		Proportion:    s.proportion,
		NumTrees:      numTrees,
		SampleSize:    sampleSize,
	})
	forest.Fit(rows)

	dropped := 0
	for i, flag := range forest.Predict(rows) {
		if flag == 1 {
			keep[i] = false
			dropped++
		}
	}
	return keep, dropped
}

// Apply filters parallel slices by the keep mask.
func Apply[T any](mask []bool, values []T) []T {
	out := make([]T, 0, len(values))
	for i, v := range values {
		if i < len(mask) && mask[i] {
			out = append(out, v)
		}
	}
	return out
}
