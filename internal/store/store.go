// Package store is the embedded SQLite analytics store: raw transaction events
// plus the per-customer feature table the analytical tools read.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Chative-analytics/server/internal/agent/model"
	"github.com/Chative-analytics/server/internal/analytics"
	errx "github.com/Chative-analytics/server/internal/core/error"
	logx "github.com/Chative-analytics/server/pkg/logger"
)

const (
	TableTransactions = "raw_transactions"
	TableCustomers    = "customer_data"

	// DefaultRowLimit bounds ad-hoc query results.
	DefaultRowLimit = 200
)

// CustomerColumns is the feature table layout written by the seed generator.
var CustomerColumns = []string{
	"recency", "T", "frequency", "monetary_value", "customer_id",
	"age", "income", "household_size",
	"gender_male",
	"education_level_high_school", "education_level_master", "education_level_phd",
	"marital_status_married", "marital_status_single",
	"profession_manager", "profession_worker",
	"customer_segment_regular", "customer_segment_vip",
	"promotion_offer", "implicit_churn", "demographic_churn_prob", "final_churn_prob",
	"churned", "duration",
	"high_value_flag", "purchase_trend", "seasonal_user", "num_active_months", "avg_days_between_tx",
	"tenure_<6m", "tenure_6-12m", "tenure_1-2y", "tenure_>2y",
}

// Transaction is one raw purchase event.
type Transaction struct {
	CustomerID int64
	TxDate     time.Time
	Amount     float64
}

type Store struct {
	db *sql.DB
}

// New wraps an open database and applies pending migrations.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.runMigrations(ctx); err != nil {
		return nil, errx.WrapSQLite(err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ListTables returns user tables in name order.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> 'schema_migrations'
		ORDER BY name
	`)
	if err != nil {
		return nil, errx.WrapSQLite(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errx.WrapSQLite(err)
		}
		names = append(names, n)
	}
	return names, errx.WrapSQLite(rows.Err())
}

// DescribeTables returns the CREATE statements of the named tables joined by
// blank lines. Unknown names are skipped; no match at all is sql.ErrNoRows.
func (s *Store) DescribeTables(ctx context.Context, names []string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no table names given", errx.ErrInvalidInput)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = strings.TrimSpace(n)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name IN ("+placeholders+") ORDER BY name", args...)
	if err != nil {
		return "", errx.WrapSQLite(err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt sql.NullString
		if err := rows.Scan(&stmt); err != nil {
			return "", errx.WrapSQLite(err)
		}
		if stmt.Valid {
			stmts = append(stmts, stmt.String)
		}
	}
	if err := rows.Err(); err != nil {
		return "", errx.WrapSQLite(err)
	}
	if len(stmts) == 0 {
		return "", errx.WrapSQLite(sql.ErrNoRows)
	}
	return strings.Join(stmts, "\n\n"), nil
}

// Query runs one read-only statement and returns at most limit rows. The
// statement runs on a connection with query_only set, so a write hidden
// behind a SELECT or WITH prefix is refused by SQLite itself.
func (s *Store) Query(ctx context.Context, query string, limit int) (*model.QueryResult, error) {
	q, err := readOnlyStatement(query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRowLimit
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, errx.WrapSQLite(err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, errx.WrapSQLite(err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); err != nil {
			logx.Warn().Err(err).Msg("could not reset query_only; discarding connection")
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	res, err := queryRows(ctx, conn, q, limit)
	if isReadOnlyViolation(err) {
		return nil, fmt.Errorf("%w: write statements are not allowed", errx.ErrInvalidInput)
	}
	return res, err
}

func queryRows(ctx context.Context, conn *sql.Conn, q string, limit int) (*model.QueryResult, error) {
	rows, err := conn.QueryContext(ctx, q)
	if err != nil {
		return nil, errx.WrapSQLite(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errx.WrapSQLite(err)
	}
	res := &model.QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errx.WrapSQLite(err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, errx.WrapSQLite(rows.Err())
}

func isReadOnlyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_READONLY
}

func readOnlyStatement(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return "", fmt.Errorf("%w: empty query", errx.ErrInvalidInput)
	}
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("%w: only a single statement is allowed", errx.ErrInvalidInput)
	}
	head := strings.ToUpper(strings.Fields(q)[0])
	switch head {
	case "SELECT", "WITH", "EXPLAIN":
		return q, nil
	default:
		return "", fmt.Errorf("%w: %s statements are not allowed", errx.ErrInvalidInput, head)
	}
}

// LoadCustomerFrame reads the whole feature table. Every column except
// customer_id becomes a float column; NULL or non-numeric cells become NaN.
func (s *Store) LoadCustomerFrame(ctx context.Context) (*analytics.Frame, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+TableCustomers)
	if err != nil {
		return nil, errx.WrapSQLite(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errx.WrapSQLite(err)
	}
	idIdx := -1
	features := make([]string, 0, len(cols))
	for i, c := range cols {
		if c == "customer_id" {
			idIdx = i
			continue
		}
		features = append(features, c)
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: %s has no customer_id column", errx.ErrInsufficientData, TableCustomers)
	}

	var (
		ids  []int64
		data [][]float64
	)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errx.WrapSQLite(err)
		}
		row := make([]float64, 0, len(features))
		for i, v := range vals {
			if i == idIdx {
				ids = append(ids, int64(toFloat(v)))
				continue
			}
			row = append(row, toFloat(v))
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapSQLite(err)
	}

	logx.Debug().Int("rows", len(ids)).Int("columns", len(features)).Dur("took", time.Since(start)).Msg("customer frame loaded")
	return analytics.NewFrame(features, ids, data)
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	case []byte:
		return parseFloat(string(t))
	case string:
		return parseFloat(t)
	default:
		return math.NaN()
	}
}

func parseFloat(s string) float64 {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return 1
	case "false":
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
