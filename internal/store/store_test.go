package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/Chative-analytics/server/internal/core/error"
	"github.com/Chative-analytics/server/pkg/sqlite"
)

func newSeededStore(t *testing.T) (*Store, *Dataset) {
	t.Helper()
	ctx := context.Background()
	cfg := sqlite.Config{Path: filepath.Join(t.TempDir(), "bank.db"), BusyTimeout: 1000, MaxOpenConn: 1}
	db, err := cfg.Open(ctx)
	require.NoError(t, err)

	s, err := New(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ds, err := Generate(SeedConfig{Customers: 60, Seed: 7})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceDataset(ctx, ds))
	return s, ds
}

func TestGenerateInvariants(t *testing.T) {
	t.Parallel()

	ds, err := Generate(SeedConfig{Customers: 200, Seed: 42})
	require.NoError(t, err)
	require.NotEmpty(t, ds.Customers)
	assert.LessOrEqual(t, len(ds.Customers), 200)

	for _, row := range ds.Customers {
		for _, c := range CustomerColumns {
			_, ok := row[c]
			require.True(t, ok, "missing column %s", c)
		}
		assert.GreaterOrEqual(t, row["frequency"], 1.0)
		assert.GreaterOrEqual(t, row["duration"], 0.0)
		assert.LessOrEqual(t, row["recency"], row["T"])

		buckets := row["tenure_<6m"] + row["tenure_6-12m"] + row["tenure_1-2y"] + row["tenure_>2y"]
		assert.Equal(t, 1.0, buckets, "customer %v", row["customer_id"])
	}

	again, err := Generate(SeedConfig{Customers: 200, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, ds.Customers, again.Customers)
}

func TestGenerateRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := Generate(SeedConfig{Customers: 0})
	require.ErrorIs(t, err, errx.ErrInvalidInput)
}

func TestStoreTablesAndFrame(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, ds := newSeededStore(t)

	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{TableCustomers, TableTransactions}, tables)

	ddl, err := s.DescribeTables(ctx, []string{"raw_transactions", "nope"})
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE TABLE")
	assert.Contains(t, ddl, "tx_date")

	_, err = s.DescribeTables(ctx, []string{"nope"})
	require.Error(t, err)

	frame, err := s.LoadCustomerFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(ds.Customers), frame.Len())
	assert.False(t, frame.Has("customer_id"))
	churned, err := frame.Column("churned")
	require.NoError(t, err)
	assert.Len(t, churned, frame.Len())
	assert.ElementsMatch(t,
		[]string{"tenure_<6m", "tenure_6-12m", "tenure_1-2y", "tenure_>2y"},
		frame.ColumnsWithPrefix("tenure_"))
}

func TestStoreQuery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, ds := newSeededStore(t)

	res, err := s.Query(ctx, "SELECT COUNT(*) AS n FROM customer_data;", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, len(ds.Customers), res.Rows[0][0])

	res, err = s.Query(ctx, "select customer_id, amount from raw_transactions", 5)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.True(t, res.Truncated)

	for _, q := range []string{"", "DELETE FROM customer_data", "SELECT 1; DROP TABLE raw_transactions", "  update customer_data set age = 1"} {
		_, err := s.Query(ctx, q, 0)
		require.ErrorIs(t, err, errx.ErrInvalidInput, "query %q", q)
	}

	// Writes behind a read-looking prefix are refused by the engine.
	for _, q := range []string{
		"WITH c AS (SELECT 1) DELETE FROM customer_data",
		"WITH c AS (SELECT 1) UPDATE customer_data SET age = 0",
		"WITH c AS (SELECT 1) INSERT INTO raw_transactions (customer_id, tx_date, amount) SELECT 1, '2024-01-01', 1.0",
	} {
		_, err := s.Query(ctx, q, 0)
		require.ErrorIs(t, err, errx.ErrInvalidInput, "query %q", q)
	}
	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customer_data").Scan(&n))
	assert.Equal(t, len(ds.Customers), n)
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customer_data WHERE age = 0").Scan(&n))
	assert.Zero(t, n)

	// The pooled connection is writable again afterwards.
	_, err = s.db.ExecContext(ctx, "CREATE TABLE scratch (id INTEGER)")
	require.NoError(t, err)

	_, err = s.Query(ctx, "SELECT * FROM missing_table", 0)
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "not allowed"))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newSeededStore(t)

	_, err := New(ctx, s.db)
	require.NoError(t, err)

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 2, n)
}
