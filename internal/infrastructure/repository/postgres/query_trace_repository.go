package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// QueryTraceRepository stores one row per answered question.
type QueryTraceRepository struct {
	db *sql.DB
}

func NewQueryTraceRepository(db *sql.DB) *QueryTraceRepository {
	return &QueryTraceRepository{db: db}
}

func (r *QueryTraceRepository) SaveTrace(ctx context.Context, trace domain.QueryTrace) error {
	subQueries := trace.SubQueries
	if subQueries == nil {
		subQueries = []string{}
	}
	subJSON, err := json.Marshal(subQueries)
	if err != nil {
		return fmt.Errorf("marshal sub queries: %w", err)
	}
	retrieved := trace.Retrieved
	if retrieved == nil {
		retrieved = []domain.TraceDoc{}
	}
	retrievedJSON, err := json.Marshal(retrieved)
	if err != nil {
		return fmt.Errorf("marshal retrieved docs: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_traces (
	id, query, act, sub_queries, retrieved, answer, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		trace.ID, trace.Query, string(trace.Act), subJSON, retrievedJSON,
		trace.Answer, trace.Duration.Milliseconds(), trace.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query trace: %w", err)
	}
	return nil
}

// ListRecent returns the newest traces first.
func (r *QueryTraceRepository) ListRecent(ctx context.Context, limit int) ([]domain.QueryTrace, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, query, act, sub_queries, retrieved, answer, duration_ms, created_at
FROM query_traces
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QueryTrace, 0, limit)
	for rows.Next() {
		var trace domain.QueryTrace
		var act string
		var subRaw, retrievedRaw []byte
		var durationMS int64
		if err := rows.Scan(&trace.ID, &trace.Query, &act, &subRaw, &retrievedRaw, &trace.Answer, &durationMS, &trace.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query trace: %w", err)
		}
		if err := json.Unmarshal(subRaw, &trace.SubQueries); err != nil {
			return nil, fmt.Errorf("unmarshal sub queries: %w", err)
		}
		if err := json.Unmarshal(retrievedRaw, &trace.Retrieved); err != nil {
			return nil, fmt.Errorf("unmarshal retrieved docs: %w", err)
		}
		trace.Act = domain.Act(act)
		trace.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query traces: %w", err)
	}
	return out, nil
}
