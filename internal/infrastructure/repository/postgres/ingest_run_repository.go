package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

type IngestRunRepository struct {
	db *sql.DB
}

func NewIngestRunRepository(db *sql.DB) *IngestRunRepository {
	return &IngestRunRepository{db: db}
}

func (r *IngestRunRepository) Create(ctx context.Context, run *domain.IngestRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_runs (
	id, act_abbrev, filename, storage_path, status, docs_indexed, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		run.ID, string(run.ActAbbrev), run.Filename, run.StoragePath, string(run.Status),
		run.DocsIndexed, run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}
	return nil
}

func (r *IngestRunRepository) GetByID(ctx context.Context, id string) (*domain.IngestRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, act_abbrev, filename, storage_path, status, docs_indexed, error_message, created_at, updated_at
FROM ingest_runs
WHERE id = $1
`, id)

	var run domain.IngestRun
	var act, status string
	err := row.Scan(
		&run.ID, &act, &run.Filename, &run.StoragePath, &status,
		&run.DocsIndexed, &run.Error, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get ingest run", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan ingest run: %w", err)
	}
	run.ActAbbrev = domain.Act(act)
	run.Status = domain.IngestStatus(status)
	return &run, nil
}

func (r *IngestRunRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status domain.IngestStatus,
	docsIndexed int,
	errMessage string,
) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingest_runs
SET status = $2, docs_indexed = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), docsIndexed, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ingest run status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ingest run rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update ingest run status", fmt.Errorf("id=%s", id))
	}
	return nil
}
