// Package repo provides the learning repository implementation
package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"redpen/internal/core/learning"
	"redpen/internal/modkit/repokit"
	"redpen/internal/services/learning/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[domain.StorageRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.StorageRepo { return &pg{q: q} }

// Get implements domain.StorageRepo
func (s *pg) Get(ctx context.Context, ruleID string) (learning.Record, error) {
	var rec learning.Record
	row := s.q.QueryRow(ctx, `
		SELECT rule_id, issues_found, issues_accepted, issues_rejected, issues_ignored, score, last_updated
		FROM rule_effectiveness
		WHERE rule_id = $1
	`, ruleID)
	err := row.Scan(
		&rec.RuleID, &rec.Found, &rec.Accepted, &rec.Rejected, &rec.Ignored,
		&rec.Score, &rec.LastUpdated,
	)
	if err != nil {
		if isNoRows(err) {
			return learning.Record{RuleID: ruleID}, nil
		}
		return learning.Record{}, err
	}
	return rec, nil
}

// Upsert implements domain.StorageRepo. Last-writer-wins on last_updated is
// fine because callers serialize per rule and counters only grow
func (s *pg) Upsert(ctx context.Context, rec learning.Record) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO rule_effectiveness
			(rule_id, issues_found, issues_accepted, issues_rejected, issues_ignored, score, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (rule_id) DO UPDATE SET
			issues_found    = EXCLUDED.issues_found,
			issues_accepted = EXCLUDED.issues_accepted,
			issues_rejected = EXCLUDED.issues_rejected,
			issues_ignored  = EXCLUDED.issues_ignored,
			score           = EXCLUDED.score,
			last_updated    = EXCLUDED.last_updated
	`, rec.RuleID, rec.Found, rec.Accepted, rec.Rejected, rec.Ignored, rec.Score, rec.LastUpdated)
	return err
}

// List implements domain.StorageRepo
func (s *pg) List(ctx context.Context) (map[string]learning.Record, error) {
	rows, err := s.q.Query(ctx, `
		SELECT rule_id, issues_found, issues_accepted, issues_rejected, issues_ignored, score, last_updated
		FROM rule_effectiveness
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]learning.Record, 64)
	for rows.Next() {
		var rec learning.Record
		if err := rows.Scan(
			&rec.RuleID, &rec.Found, &rec.Accepted, &rec.Rejected, &rec.Ignored,
			&rec.Score, &rec.LastUpdated,
		); err != nil {
			return nil, err
		}
		out[rec.RuleID] = rec
	}
	return out, rows.Err()
}

// RunTotals implements domain.StorageRepo
func (s *pg) RunTotals(ctx context.Context) (int64, int64, error) {
	var runs, issues int64
	row := s.q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(issues_found), 0)
		FROM analysis_runs
	`)
	if err := row.Scan(&runs, &issues); err != nil {
		return 0, 0, err
	}
	return runs, issues, nil
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
