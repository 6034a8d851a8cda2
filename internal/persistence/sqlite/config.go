// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver
)

// Config defines standard SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int // database/sql pool size; WAL allows concurrent readers
	// TxLock selects how BEGIN acquires locks: "deferred", "immediate" or "exclusive".
	// Read-modify-write transactions need "immediate" so two writers cannot
	// both read before either upgrades to a write lock.
	TxLock string
}

// DefaultConfig returns the recommended configuration for the session store.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
		TxLock:       "immediate",
	}
}

// DSN builds the modernc.org/sqlite connection string for dbPath.
// PRAGMAs are passed through the DSN so they apply to every pooled connection.
func DSN(dbPath string, cfg Config) string {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())
	if cfg.TxLock != "" {
		dsn += "&_txlock=" + cfg.TxLock
	}
	return dsn
}

// Open initializes a SQLite connection pool with mandatory PRAGMAs.
func Open(dbPath string, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(dbPath, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return db, nil
}
