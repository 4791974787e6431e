package store

import (
	"context"
	"fmt"

	logx "github.com/Chative-analytics/server/pkg/logger"
)

type migration struct {
	version int
	name    string
	up      func(ctx context.Context) error
}

func (s *Store) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	migrations := []migration{
		{version: 1, name: "raw_transactions", up: s.migration001RawTransactions},
		{version: 2, name: "customer_data", up: s.migration002CustomerData},
	}

	for _, m := range migrations {
		if current >= m.version {
			continue
		}
		logx.Debug().Int("version", m.version).Str("name", m.name).Msg("running migration")
		if err := m.up(ctx); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) migration001RawTransactions(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS raw_transactions (
			customer_id INTEGER NOT NULL,
			tx_date TIMESTAMP NOT NULL,
			amount REAL NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create raw_transactions: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_raw_transactions_customer
		ON raw_transactions(customer_id, tx_date)
	`); err != nil {
		return fmt.Errorf("create raw_transactions index: %w", err)
	}
	return nil
}

func (s *Store) migration002CustomerData(ctx context.Context) error {
	cols := ""
	for _, c := range CustomerColumns {
		typ := "REAL"
		if c == "customer_id" {
			typ = "INTEGER PRIMARY KEY"
		}
		cols += fmt.Sprintf(",\n\t\t\t%s %s", quoteIdent(c), typ)
	}
	query := "CREATE TABLE IF NOT EXISTS customer_data (" + cols[1:] + "\n\t\t)"
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create customer_data: %w", err)
	}
	return nil
}
