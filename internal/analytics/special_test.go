package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestHyp2f1(t *testing.T) {
	t.Parallel()

	// 2F1(1, 1; 2; z) = -ln(1-z) / z
	for _, z := range []float64{0.1, 0.5, 0.9} {
		assert.InDelta(t, -math.Log1p(-z)/z, hyp2f1(1, 1, 2, z), 1e-9, "z=%v", z)
		assert.InDelta(t, math.Log(-math.Log1p(-z)/z), logHyp2f1(1, 1, 2, z), 1e-9, "z=%v", z)
	}
	assert.Equal(t, 1.0, hyp2f1(3, 4, 5, 0))
}

func TestScalerFlagsConstantColumns(t *testing.T) {
	t.Parallel()

	x := mat.NewDense(4, 3, []float64{
		1, 5, 0,
		2, 5, 1,
		3, 5, 0,
		4, 5, 1,
	})
	s, constant := FitScaler(x)
	assert.Equal(t, []int{1}, constant)
	assert.Equal(t, 1.0, s.Std[1])

	z := s.Transform(x)
	assert.InDelta(t, 0, mat.Sum(z.ColView(0)), 1e-12)

	kept, names := dropColumns(z, []string{"a", "b", "c"}, constant)
	_, p := kept.Dims()
	assert.Equal(t, 2, p)
	assert.Equal(t, []string{"a", "c"}, names)
}
