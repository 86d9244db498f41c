// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store implements the persistence boundary for node and credential
// records over database/sql, with SQLite and Postgres backends selected by
// configuration. The routing core only assumes the repository contract:
// get-by-id, list, upsert, delete, with writes durable before the next read
// of the same logical operation.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lifehubhq/lifehub/internal/util"
)

const (
	// DriverSQLite selects the embedded SQLite backend.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the Postgres backend via the pgx stdlib driver.
	DriverPostgres = "postgres"
)

// SQLStore implements node.Store and credential.Store over database/sql.
type SQLStore struct {
	db       *sql.DB
	driver   string
	postgres bool
}

// Open connects to the configured backend and bootstraps the schema.
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, "":
		if dsn == "" {
			base := util.WritablePath()
			if base == "" {
				base = "."
			}
			dsn = filepath.Join(base, "lifehub.db")
		}
		db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
		if err != nil {
			return nil, fmt.Errorf("store: opening sqlite %s: %w", dsn, err)
		}
		s := &SQLStore{db: db, driver: DriverSQLite}
		if err := s.bootstrap(); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("store: opening postgres: %w", err)
		}
		s := &SQLStore{db: db, driver: DriverPostgres, postgres: true}
		if err := s.bootstrap(); err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}

// NewWithDB wraps an existing database handle. Tests use this with sqlmock.
func NewWithDB(db *sql.DB, postgres bool) *SQLStore {
	driver := DriverSQLite
	if postgres {
		driver = DriverPostgres
	}
	return &SQLStore{db: db, driver: driver, postgres: postgres}
}

// Close releases the underlying handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) bootstrap() error {
	var stmts []string
	if s.postgres {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS ai_nodes (
				id BIGSERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				kind TEXT NOT NULL,
				address TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				public BOOLEAN NOT NULL DEFAULT FALSE,
				owner_id BIGINT NOT NULL,
				status TEXT NOT NULL DEFAULT 'unknown',
				last_seen_at TIMESTAMPTZ,
				snapshot TEXT,
				meta TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS ai_credentials (
				id BIGSERIAL PRIMARY KEY,
				owner_id BIGINT NOT NULL,
				kind TEXT NOT NULL,
				api_key TEXT NOT NULL,
				preferred_model TEXT NOT NULL DEFAULT '',
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ai_credentials_owner_kind ON ai_credentials (owner_id, kind)`,
		}
	} else {
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS ai_nodes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				kind TEXT NOT NULL,
				address TEXT NOT NULL,
				active INTEGER NOT NULL DEFAULT 1,
				public INTEGER NOT NULL DEFAULT 0,
				owner_id INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'unknown',
				last_seen_at TIMESTAMP,
				snapshot TEXT,
				meta TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS ai_credentials (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				owner_id INTEGER NOT NULL,
				kind TEXT NOT NULL,
				api_key TEXT NOT NULL,
				preferred_model TEXT NOT NULL DEFAULT '',
				is_default INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ai_credentials_owner_kind ON ai_credentials (owner_id, kind)`,
		}
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(context.Background(), stmt); err != nil {
			return fmt.Errorf("store: bootstrap: %w", err)
		}
	}
	return nil
}

// rebind converts ?-style placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
