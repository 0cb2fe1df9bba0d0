package features

import (
	"errors"
	"math"
)

// StandardScaler holds per-column mean/scale statistics fitted once at
// training time and reused unchanged at inference. Never refit on
// inference data.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitStandard fits column-wise standardization statistics. Constant
// columns get unit scale so transformed values stay finite.
func FitStandard(rows [][]float64) (*StandardScaler, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("features: empty matrix")
	}
	cols := len(rows[0])
	mean := make([]float64, cols)
	scale := make([]float64, cols)
	for j := 0; j < cols; j++ {
		for i := range rows {
			mean[j] += rows[i][j]
		}
		mean[j] /= float64(len(rows))
		variance := 0.0
		for i := range rows {
			d := rows[i][j] - mean[j]
			variance += d * d
		}
		scale[j] = math.Sqrt(variance / float64(len(rows)))
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return &StandardScaler{Mean: mean, Scale: scale}, nil
}

func (s *StandardScaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j := range row {
		out[j] = (row[j] - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s *StandardScaler) TransformAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i := range rows {
		out[i] = s.Transform(rows[i])
	}
	return out
}

// MinMaxScaler maps a single series into [0,1]. It is fitted on the full
// close-price history at training time and owned by the symbol's model
// bundle, independent of the tabular scaler.
type MinMaxScaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func FitMinMax(values []float64) (*MinMaxScaler, error) {
	if len(values) == 0 {
		return nil, errors.New("features: empty series")
	}
	s := &MinMaxScaler{Min: values[0], Max: values[0]}
	for _, v := range values[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s, nil
}

func (s *MinMaxScaler) span() float64 {
	d := s.Max - s.Min
	if d == 0 {
		return 1
	}
	return d
}

func (s *MinMaxScaler) Transform(v float64) float64 {
	return (v - s.Min) / s.span()
}

func (s *MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

func (s *MinMaxScaler) Inverse(v float64) float64 {
	return v*s.span() + s.Min
}
