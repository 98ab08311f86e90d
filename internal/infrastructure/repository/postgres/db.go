package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey int64 = 2026101901

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id TEXT PRIMARY KEY,
	act_abbrev TEXT NOT NULL,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	docs_indexed INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_act ON ingest_runs(act_abbrev, created_at DESC);

CREATE TABLE IF NOT EXISTS query_traces (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	act TEXT NOT NULL,
	sub_queries JSONB NOT NULL DEFAULT '[]'::jsonb,
	retrieved JSONB NOT NULL DEFAULT '[]'::jsonb,
	answer TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_traces_created_at ON query_traces(created_at DESC);
`

// EnsureSchema creates the ingest run and query trace tables. The api and
// worker both call it on startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
