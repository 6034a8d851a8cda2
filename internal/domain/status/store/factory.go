// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"fmt"

	"github.com/ManuGH/statustrack/internal/domain/status/ports"
	"github.com/ManuGH/statustrack/internal/persistence/sqlite"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSqlite = "sqlite"
	BackendBadger = "badger"
)

// Config selects a backend and tunes it.
type Config struct {
	Backend string
	// Path is a database file for sqlite and a directory for badger.
	Path   string
	Sqlite sqlite.Config
}

// Open creates a Store with default tuning.
func Open(backend, path string) (ports.Store, error) {
	return OpenConfig(Config{Backend: backend, Path: path, Sqlite: sqlite.DefaultConfig()})
}

// OpenConfig creates a Store based on the backend configuration.
func OpenConfig(cfg Config) (ports.Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendSqlite
	}

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSqlite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		s, err := NewSqliteStoreWithConfig(cfg.Path, cfg.Sqlite)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendBadger:
		s, err := OpenBadgerStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
