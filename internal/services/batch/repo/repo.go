// Package repo provides the batch repository implementation
package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"redpen/internal/modkit/repokit"
	perr "redpen/internal/platform/errors"
	"redpen/internal/services/batch/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[domain.StorageRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.StorageRepo { return &pg{q: q} }

// InsertJob implements domain.StorageRepo
func (s *pg) InsertJob(ctx context.Context, j domain.Job) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO batch_jobs
			(id, status, subjects, processed, succeeded, failed, created_at, started_at, completed_at, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, j.ID, string(j.Status), j.Subjects, j.Processed, j.Succeeded, j.Failed,
		j.CreatedAt, j.StartedAt, j.CompletedAt, nullable(j.ErrorMessage))
	return err
}

// UpdateJob implements domain.StorageRepo
func (s *pg) UpdateJob(ctx context.Context, j domain.Job) error {
	_, err := s.q.Exec(ctx, `
		UPDATE batch_jobs SET
			status        = $2,
			processed     = $3,
			succeeded     = $4,
			failed        = $5,
			started_at    = $6,
			completed_at  = $7,
			error_message = $8
		WHERE id = $1
	`, j.ID, string(j.Status), j.Processed, j.Succeeded, j.Failed,
		j.StartedAt, j.CompletedAt, nullable(j.ErrorMessage))
	return err
}

// GetJob implements domain.StorageRepo
func (s *pg) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	var (
		j      domain.Job
		status string
		msg    *string
	)
	row := s.q.QueryRow(ctx, `
		SELECT id, status, subjects, processed, succeeded, failed, created_at, started_at, completed_at, error_message
		FROM batch_jobs
		WHERE id = $1
	`, jobID)
	err := row.Scan(
		&j.ID, &status, &j.Subjects, &j.Processed, &j.Succeeded, &j.Failed,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &msg,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, perr.NotFoundf("batch job %q not found", jobID)
		}
		return domain.Job{}, err
	}
	j.Status = domain.Status(status)
	if msg != nil {
		j.ErrorMessage = *msg
	}
	return j, nil
}

// SaveCheckpoint implements domain.StorageRepo
func (s *pg) SaveCheckpoint(ctx context.Context, cp domain.Checkpoint) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO batch_checkpoints (job_id, processed, succeeded, failed, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (job_id) DO UPDATE SET
			processed  = EXCLUDED.processed,
			succeeded  = EXCLUDED.succeeded,
			failed     = EXCLUDED.failed,
			updated_at = EXCLUDED.updated_at
	`, cp.JobID, cp.Processed, cp.Succeeded, cp.Failed, cp.UpdatedAt)
	return err
}

// LoadCheckpoint implements domain.StorageRepo
func (s *pg) LoadCheckpoint(ctx context.Context, jobID string) (domain.Checkpoint, bool, error) {
	var cp domain.Checkpoint
	row := s.q.QueryRow(ctx, `
		SELECT job_id, processed, succeeded, failed, updated_at
		FROM batch_checkpoints
		WHERE job_id = $1
	`, jobID)
	err := row.Scan(&cp.JobID, &cp.Processed, &cp.Succeeded, &cp.Failed, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Checkpoint{}, false, nil
		}
		return domain.Checkpoint{}, false, err
	}
	return cp, true, nil
}

// MarkInterrupted implements domain.StorageRepo
func (s *pg) MarkInterrupted(ctx context.Context, msg string) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE batch_jobs SET
			status        = 'failed',
			completed_at  = now(),
			error_message = $1
		WHERE status IN ('running', 'paused', 'queued')
	`, msg)
	if err != nil {
		return 0, err
	}
	if tag == nil {
		return 0, nil
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
