package analytics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

const varianceEpsilon = 1e-12

// Scaler standardizes columns to zero mean and unit population variance.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes per-column statistics. Columns with zero variance are
// reported through the returned index list so callers can decide to drop or
// reject them.
func FitScaler(x *mat.Dense) (*Scaler, []int) {
	_, p := x.Dims()
	s := &Scaler{Mean: make([]float64, p), Std: make([]float64, p)}
	var constant []int
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, x)
		m, sd := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = m
		s.Std[j] = sd
		if sd < varianceEpsilon {
			constant = append(constant, j)
			s.Std[j] = 1
		}
	}
	return s, constant
}

// Transform returns a standardized copy of x.
func (s *Scaler) Transform(x *mat.Dense) *mat.Dense {
	n, p := x.Dims()
	out := mat.NewDense(n, p, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Std[j]
	}, x)
	return out
}

// dropColumns returns x without the listed column indexes and the matching
// names.
func dropColumns(x *mat.Dense, names []string, drop []int) (*mat.Dense, []string) {
	if len(drop) == 0 {
		return x, names
	}
	skip := make(map[int]bool, len(drop))
	for _, j := range drop {
		skip[j] = true
	}
	n, p := x.Dims()
	keep := make([]int, 0, p-len(drop))
	kept := make([]string, 0, p-len(drop))
	for j := 0; j < p; j++ {
		if !skip[j] {
			keep = append(keep, j)
			kept = append(kept, names[j])
		}
	}
	if len(keep) == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(n, len(keep), nil)
	for k, j := range keep {
		out.SetCol(k, mat.Col(nil, j, x))
	}
	return out, kept
}

func constantColumnError(names []string, idx []int) error {
	cols := make([]string, len(idx))
	for i, j := range idx {
		cols[i] = names[j]
	}
	return fmt.Errorf("%w: zero variance in %v", errx.ErrDegenerateData, cols)
}
