package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anishko/Ekho/internal/domain"
)

// PGStore persists job records in PostgreSQL. It is the seam for multi-process
// deployments where the in-memory store cannot serve: the same Store contract,
// backed by a linearizable external table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a job store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Migrate ensures the jobs table exists.
func (s *PGStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    kind          TEXT NOT NULL,
    status        TEXT NOT NULL,
    progress      INT NOT NULL DEFAULT 0,
    output_ref    TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    params_json   JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_owner_created_idx ON jobs (owner_id, created_at);
`)
	if err != nil {
		return fmt.Errorf("jobs: migrate: %w", err)
	}
	return nil
}

// Put inserts or fully replaces the record for job.ID.
func (s *PGStore) Put(ctx context.Context, job *domain.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("jobs: encode params: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO jobs (id, owner_id, kind, status, progress, output_ref, error_message, params_json, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    owner_id      = EXCLUDED.owner_id,
    kind          = EXCLUDED.kind,
    status        = EXCLUDED.status,
    progress      = EXCLUDED.progress,
    output_ref    = EXCLUDED.output_ref,
    error_message = EXCLUDED.error_message,
    params_json   = EXCLUDED.params_json,
    created_at    = EXCLUDED.created_at,
    updated_at    = EXCLUDED.updated_at;
`,
		job.ID,
		job.OwnerID,
		string(job.Kind),
		string(job.Status),
		job.Progress,
		job.OutputRef,
		job.ErrorMessage,
		params,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// Get fetches one record by id.
func (s *PGStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, owner_id, kind, status, progress, output_ref, error_message, params_json, created_at, updated_at
FROM jobs
WHERE id = $1;
`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListByOwner returns the owner's jobs ordered by creation time ascending.
func (s *PGStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Job, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, owner_id, kind, status, progress, output_ref, error_message, params_json, created_at, updated_at
FROM jobs
WHERE owner_id = $1
ORDER BY created_at ASC, id ASC;
`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// DeleteTerminalBefore removes terminal jobs last updated before the cutoff.
func (s *PGStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
DELETE FROM jobs
WHERE status IN ('succeeded', 'failed') AND updated_at < $1;
`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var kind, status string
	var params []byte
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&kind,
		&status,
		&job.Progress,
		&job.OutputRef,
		&job.ErrorMessage,
		&params,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Params); err != nil {
			return nil, fmt.Errorf("jobs: decode params: %w", err)
		}
	}
	return &job, nil
}

var _ Store = (*PGStore)(nil)
