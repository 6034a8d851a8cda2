// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/statustrack/internal/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
		path    string
		want    string
		wantErr bool
	}{
		{backend: "", path: filepath.Join(dir, "default.db"), want: BackendSqlite},
		{backend: BackendMemory, want: BackendMemory},
		{backend: BackendSqlite, path: filepath.Join(dir, "s.db"), want: BackendSqlite},
		{backend: BackendBadger, path: filepath.Join(dir, "badger"), want: BackendBadger},
		{backend: BackendSqlite, wantErr: true},
		{backend: "bolt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend+"/"+tt.want, func(t *testing.T) {
			s, err := Open(tt.backend, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer func() { _ = s.Close() }()
			assert.Equal(t, tt.want, s.Backend())
		})
	}
}

func TestOpenConfig_SqliteTuning(t *testing.T) {
	cfg := Config{
		Backend: BackendSqlite,
		Path:    filepath.Join(t.TempDir(), "tuned.db"),
		Sqlite:  sqlite.Config{BusyTimeout: time.Second, MaxOpenConns: 2, TxLock: "immediate"},
	}
	s, err := OpenConfig(cfg)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	sq, ok := s.(*SqliteStore)
	require.True(t, ok)
	assert.Equal(t, 2, sq.DB.Stats().MaxOpenConnections)
}
