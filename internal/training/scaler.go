package training

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes each column to zero mean and unit population variance.
// Columns with zero variance keep a scale of 1.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func FitScaler(x *mat.Dense) *Scaler {
	rows, cols := x.Dims()
	s := &Scaler{
		Mean:  make([]float64, cols),
		Scale: make([]float64, cols),
	}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
	return s
}

func (s *Scaler) Transform(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, x)
	return out
}

func (s *Scaler) TransformRow(v []float64) []float64 {
	out := make([]float64, len(v))
	for j := range v {
		out[j] = (v[j] - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s *Scaler) Validate(numFeatures int) error {
	if len(s.Mean) != numFeatures || len(s.Scale) != numFeatures {
		return fmt.Errorf("scaler expects %d features, has %d/%d", numFeatures, len(s.Mean), len(s.Scale))
	}
	for j, sc := range s.Scale {
		if sc == 0 {
			return fmt.Errorf("scaler column %d has zero scale", j)
		}
	}
	return nil
}
