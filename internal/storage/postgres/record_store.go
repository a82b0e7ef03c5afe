// Package postgres exports scraped records into Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// DefaultTable receives records when no table is configured.
const DefaultTable = "records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordStore upserts one row per (target, id). It implements scraper.Sink.
type RecordStore struct {
	pool   execCloser
	table  string
	target string
	runID  string
}

// NewRecordStore connects a pool for the given target and run.
func NewRecordStore(ctx context.Context, cfg Config, target, runID string) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRecordStoreWithPool(pool, cfg.Table, target, runID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, table, target, runID string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if target == "" {
		return nil, fmt.Errorf("target is required")
	}
	return &RecordStore{pool: pool, table: table, target: target, runID: runID}, nil
}

// EnsureSchema creates the record table when missing.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	target     TEXT        NOT NULL,
	id         INTEGER     NOT NULL,
	name       TEXT        NOT NULL,
	available  BOOLEAN     NOT NULL,
	reason     TEXT        NOT NULL,
	columns    JSONB,
	run_id     TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (target, id)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Write upserts the record.
func (s *RecordStore) Write(ctx context.Context, record scraper.Record) error {
	var columns []byte
	if record.Available() {
		var err error
		columns, err = json.Marshal(record.Entity.Columns())
		if err != nil {
			return fmt.Errorf("marshal columns: %w", err)
		}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (target, id, name, available, reason, columns, run_id, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now())
ON CONFLICT (target, id) DO UPDATE SET
	name = EXCLUDED.name,
	available = EXCLUDED.available,
	reason = EXCLUDED.reason,
	columns = EXCLUDED.columns,
	run_id = EXCLUDED.run_id,
	updated_at = EXCLUDED.updated_at`, s.table)

	args := []any{
		s.target,
		record.ID,
		record.Name,
		record.Available(),
		record.Reason,
		columns,
		s.runID,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert record %d: %w", record.ID, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
