package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config describes the embedded analytics database.
type Config struct {
	Path        string `split_words:"true" default:"data/bank.db"`
	BusyTimeout int    `split_words:"true" default:"5000"`
	MaxOpenConn int    `split_words:"true" default:"4"`
}

// Open creates the parent directory, opens the database and verifies it with
// a ping.
func (c *Config) Open(ctx context.Context) (*sql.DB, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if c.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", c.Path, c.BusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if c.MaxOpenConn > 0 {
		db.SetMaxOpenConns(c.MaxOpenConn)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
