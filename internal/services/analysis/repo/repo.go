// Package repo provides the analysis repository implementation
package repo

import (
	"context"
	"encoding/json"

	"redpen/internal/modkit/repokit"
	"redpen/internal/services/analysis/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[domain.StorageRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.StorageRepo { return &pg{q: q} }

// InsertRun implements domain.StorageRepo. Runs are write-once
func (s *pg) InsertRun(ctx context.Context, r domain.Run) error {
	usage, err := json.Marshal(r.RuleUsage)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO analysis_runs
			(id, subject_id, started_at, finished_at, status,
			files_analyzed, issues_found, comments_posted, rule_usage, err_text)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING
	`,
		r.ID, r.SubjectID, r.StartedAt, r.FinishedAt, r.Status,
		r.FilesAnalyzed, r.IssuesFound, r.CommentsPosted, usage, nullable(r.ErrText),
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
