// Package analytics holds the in-process model fits behind the analytical
// tools. Every exported routine refits on the frame it is given.
package analytics

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	errx "github.com/Chative-analytics/server/internal/core/error"
)

// MinCustomers is the smallest population any fit accepts.
const MinCustomers = 10

// Frame is a row-major numeric table keyed by customer id.
type Frame struct {
	Columns []string
	IDs     []int64
	Rows    [][]float64

	index map[string]int
}

func NewFrame(columns []string, ids []int64, rows [][]float64) (*Frame, error) {
	if len(ids) != len(rows) {
		return nil, fmt.Errorf("%w: %d ids for %d rows", errx.ErrInvalidInput, len(ids), len(rows))
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", errx.ErrInvalidInput, c)
		}
		index[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", errx.ErrInvalidInput, i, len(r), len(columns))
		}
	}
	return &Frame{Columns: columns, IDs: ids, Rows: rows, index: index}, nil
}

func (f *Frame) Len() int {
	return len(f.Rows)
}

func (f *Frame) Has(col string) bool {
	_, ok := f.index[col]
	return ok
}

// Column returns a copy of one column.
func (f *Frame) Column(col string) ([]float64, error) {
	j, ok := f.index[col]
	if !ok {
		return nil, fmt.Errorf("%w: missing column %q", errx.ErrInsufficientData, col)
	}
	out := make([]float64, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r[j]
	}
	return out, nil
}

// ColumnsWithPrefix lists columns starting with any prefix, in frame order.
func (f *Frame) ColumnsWithPrefix(prefixes ...string) []string {
	var out []string
	for _, c := range f.Columns {
		for _, p := range prefixes {
			if strings.HasPrefix(c, p) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Except returns every column not listed in drop, in frame order.
func (f *Frame) Except(drop ...string) []string {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := make([]string, 0, len(f.Columns))
	for _, c := range f.Columns {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

// Select builds a sub-frame of the given columns without rows holding NaN in
// any of them.
func (f *Frame) Select(cols []string) (*Frame, error) {
	idx := make([]int, len(cols))
	for k, c := range cols {
		j, ok := f.index[c]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", errx.ErrInsufficientData, c)
		}
		idx[k] = j
	}

	var (
		ids  []int64
		rows [][]float64
	)
next:
	for i, r := range f.Rows {
		row := make([]float64, len(idx))
		for k, j := range idx {
			if math.IsNaN(r[j]) || math.IsInf(r[j], 0) {
				continue next
			}
			row[k] = r[j]
		}
		ids = append(ids, f.IDs[i])
		rows = append(rows, row)
	}
	return NewFrame(append([]string(nil), cols...), ids, rows)
}

// Matrix returns the frame as an n x p dense matrix.
func (f *Frame) Matrix() *mat.Dense {
	if f.Len() == 0 || len(f.Columns) == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, 0, f.Len()*len(f.Columns))
	for _, r := range f.Rows {
		data = append(data, r...)
	}
	return mat.NewDense(f.Len(), len(f.Columns), data)
}

func requireRows(f *Frame, min int) error {
	if f.Len() < min {
		return fmt.Errorf("%w: %d customers, need at least %d", errx.ErrInsufficientData, f.Len(), min)
	}
	return nil
}
