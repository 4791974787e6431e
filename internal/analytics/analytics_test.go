package analytics_test

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/Chative-analytics/server/internal/analytics"
	errx "github.com/Chative-analytics/server/internal/core/error"
	"github.com/Chative-analytics/server/internal/store"
)

func seededFrame(t *testing.T) *analytics.Frame {
	t.Helper()
	ds, err := store.Generate(store.SeedConfig{Customers: 200, Seed: 42})
	require.NoError(t, err)
	f, err := ds.Frame()
	require.NoError(t, err)
	require.GreaterOrEqual(t, f.Len(), analytics.MinCustomers)
	return f
}

// withColumn returns a copy of f with col overwritten by fn.
func withColumn(t *testing.T, f *analytics.Frame, col string, fn func(i int) float64) *analytics.Frame {
	t.Helper()
	j := -1
	for k, c := range f.Columns {
		if c == col {
			j = k
		}
	}
	require.GreaterOrEqual(t, j, 0, "column %s", col)
	rows := make([][]float64, f.Len())
	for i, r := range f.Rows {
		rows[i] = append([]float64(nil), r...)
		rows[i][j] = fn(i)
	}
	out, err := analytics.NewFrame(f.Columns, f.IDs, rows)
	require.NoError(t, err)
	return out
}

func head(t *testing.T, f *analytics.Frame, n int) *analytics.Frame {
	t.Helper()
	out, err := analytics.NewFrame(f.Columns, f.IDs[:n], f.Rows[:n])
	require.NoError(t, err)
	return out
}

func TestNewFrameValidates(t *testing.T) {
	t.Parallel()

	_, err := analytics.NewFrame([]string{"a", "a"}, []int64{1}, [][]float64{{1, 2}})
	assert.ErrorIs(t, err, errx.ErrInvalidInput)

	_, err = analytics.NewFrame([]string{"a"}, []int64{1, 2}, [][]float64{{1}})
	assert.ErrorIs(t, err, errx.ErrInvalidInput)

	f, err := analytics.NewFrame([]string{"a", "b"}, []int64{1, 2, 3}, [][]float64{{1, 2}, {math.NaN(), 3}, {4, 5}})
	require.NoError(t, err)
	sub, err := f.Select([]string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, sub.IDs)
	assert.Equal(t, [][]float64{{2, 1}, {5, 4}}, sub.Rows)

	_, err = f.Select([]string{"missing"})
	assert.ErrorIs(t, err, errx.ErrInsufficientData)
}

func TestTopCustomerValue(t *testing.T) {
	t.Parallel()
	f := seededFrame(t)

	top, err := analytics.TopCustomerValue(context.Background(), f, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.True(t, sort.SliceIsSorted(top, func(a, b int) bool { return top[a].CLV > top[b].CLV }))
	for _, c := range top {
		assert.False(t, math.IsNaN(c.CLV))
		assert.Greater(t, c.CLV, 0.0)
	}

	all, err := analytics.TopCustomerValue(context.Background(), f, f.Len()+50)
	require.NoError(t, err)
	assert.Len(t, all, f.Len())
	assert.Equal(t, top, all[:3])
}

func TestTopCustomerValueInsufficientData(t *testing.T) {
	t.Parallel()
	f := head(t, seededFrame(t), analytics.MinCustomers-1)

	_, err := analytics.TopCustomerValue(context.Background(), f, 3)
	assert.ErrorIs(t, err, errx.ErrInsufficientData)
}

func TestSoonestChurn(t *testing.T) {
	t.Parallel()
	f := seededFrame(t)
	churned, err := f.Column("churned")
	require.NoError(t, err)
	byID := make(map[int64]float64, f.Len())
	for i, id := range f.IDs {
		byID[id] = churned[i]
	}

	all, err := analytics.SoonestChurn(context.Background(), f, f.Len())
	require.NoError(t, err)
	require.Len(t, all, f.Len())
	assert.True(t, sort.SliceIsSorted(all, func(a, b int) bool {
		return all[a].DaysRemainingToChurn < all[b].DaysRemainingToChurn
	}))
	for _, c := range all {
		assert.GreaterOrEqual(t, c.DaysRemainingToChurn, 0.0)
		if byID[c.CustomerID] == 1 {
			assert.Zero(t, c.DaysRemainingToChurn, "customer %d already churned", c.CustomerID)
		}
	}

	top, err := analytics.SoonestChurn(context.Background(), f, 5)
	require.NoError(t, err)
	assert.Equal(t, all[:5], top)
}

func TestSoonestChurnWithoutEvents(t *testing.T) {
	t.Parallel()
	f := withColumn(t, seededFrame(t), "churned", func(int) float64 { return 0 })

	_, err := analytics.SoonestChurn(context.Background(), f, 3)
	assert.ErrorIs(t, err, errx.ErrDegenerateData)
}

func TestTopChurnRisk(t *testing.T) {
	t.Parallel()
	f := seededFrame(t)

	top, err := analytics.TopChurnRisk(context.Background(), f, 10)
	require.NoError(t, err)
	require.Len(t, top, 10)
	assert.True(t, sort.SliceIsSorted(top, func(a, b int) bool { return top[a].ChurnProb > top[b].ChurnProb }))
	for _, c := range top {
		assert.GreaterOrEqual(t, c.ChurnProb, 0.0)
		assert.LessOrEqual(t, c.ChurnProb, 1.0)
	}
}

func TestTopChurnRiskSingleClass(t *testing.T) {
	t.Parallel()
	f := withColumn(t, seededFrame(t), "churned", func(int) float64 { return 1 })

	_, err := analytics.TopChurnRisk(context.Background(), f, 3)
	assert.ErrorIs(t, err, errx.ErrDegenerateData)
}

func TestPositiveUplift(t *testing.T) {
	t.Parallel()
	f := seededFrame(t)

	got, err := analytics.PositiveUplift(context.Background(), f)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.NumCustomersPositiveUplift, 0)
	assert.LessOrEqual(t, got.NumCustomersPositiveUplift, f.Len())

	again, err := analytics.PositiveUplift(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestPositiveUpliftConstantTreatment(t *testing.T) {
	t.Parallel()
	f := withColumn(t, seededFrame(t), analytics.TreatmentColumn, func(int) float64 { return 1 })

	_, err := analytics.PositiveUplift(context.Background(), f)
	assert.ErrorIs(t, err, errx.ErrDegenerateData)
}

func TestChurnFactors(t *testing.T) {
	t.Parallel()
	f := seededFrame(t)

	got, err := analytics.ChurnFactors(context.Background(), f)
	require.NoError(t, err)
	require.NotNil(t, got.ChurnFactors)

	allowed := map[string]bool{}
	for _, c := range append(analytics.CausalBaseColumns, f.ColumnsWithPrefix(analytics.CausalPrefixes...)...) {
		allowed[c] = true
	}
	for _, cf := range got.ChurnFactors {
		assert.True(t, allowed[cf.Feature], "unexpected feature %s", cf.Feature)
		assert.Greater(t, math.Abs(cf.Weight), analytics.ChurnEdgeThreshold)
		assert.Equal(t, math.Round(cf.Weight*1e4)/1e4, cf.Weight)
	}
}

func TestChurnFactorsZeroVariance(t *testing.T) {
	t.Parallel()
	f := withColumn(t, seededFrame(t), "age", func(int) float64 { return 40 })

	_, err := analytics.ChurnFactors(context.Background(), f)
	assert.ErrorIs(t, err, errx.ErrDegenerateData)
}

func TestNotearsRecoversChain(t *testing.T) {
	t.Parallel()

	// x0 -> x1 with weight 2, x2 independent.
	const n = 200
	data := make([]float64, 0, n*3)
	for i := 0; i < n; i++ {
		a := math.Sin(float64(i) * 1.3)
		c := math.Cos(float64(i) * 0.7)
		data = append(data, a, 2*a+0.05*c, c)
	}
	w, err := analytics.Notears(context.Background(), mat.NewDense(n, 3, data), 100)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Zero(t, w.At(i, i))
	}
	assert.Greater(t, math.Abs(w.At(0, 1))+math.Abs(w.At(1, 0)), 0.4)
}

func TestAnalyticsHonourCancellation(t *testing.T) {
	t.Parallel()
	f := seededFrame(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analytics.ChurnFactors(ctx, f)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = analytics.SoonestChurn(ctx, f, 3)
	assert.ErrorIs(t, err, context.Canceled)
}
