// Package service implements the learning service
package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"redpen/internal/core/learning"
	"redpen/internal/core/ruleengine"
	"redpen/internal/modkit/repokit"
	perr "redpen/internal/platform/errors"
	"redpen/internal/platform/logger"
	"redpen/internal/services/learning/domain"
)

// Config for the learning service
type Config struct {
	Pacing learning.PacingConfig

	// SnapshotTTL caches the record map read by Rank; 0 disables caching
	SnapshotTTL time.Duration
}

// Service implements domain.FeedbackPort, FilterPort, RecorderPort, InsightsPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.StorageRepo]
	Cfg    Config

	// Per-rule write serialization: feedback for different rules proceeds in
	// parallel, same rule is serialized to avoid lost increments
	locks sync.Map // ruleID -> *sync.Mutex

	snapMu   sync.Mutex
	snapshot map[string]learning.Record
	snapAt   time.Time

	now func() time.Time
}

// New constructs the learning service
func New(db repokit.TxRunner, binder repokit.Binder[domain.StorageRepo], cfg Config) *Service {
	if db == nil {
		panic("learning.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("learning.Service requires a non nil Repo binder")
	}
	if cfg.Pacing.Base <= 0 {
		cfg.Pacing = learning.DefaultPacing
	}
	return &Service{DB: db, Binder: binder, Cfg: cfg, now: time.Now}
}

func (s *Service) lockFor(ruleID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(ruleID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Submit implements domain.FeedbackPort
func (s *Service) Submit(ctx context.Context, in domain.FeedbackInput) error {
	if in.RuleID == "" {
		return perr.InvalidArgf("rule_id required")
	}
	if !in.Outcome.Valid() {
		return perr.InvalidArgf("unknown outcome %q", in.Outcome)
	}

	mu := s.lockFor(in.RuleID)
	mu.Lock()
	defer mu.Unlock()

	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		repo := s.Binder.Bind(q)
		rec, err := repo.Get(ctx, in.RuleID)
		if err != nil {
			return err
		}
		rec.RuleID = in.RuleID
		rec = rec.Apply(in.Outcome, s.now().UTC())
		return repo.Upsert(ctx, rec)
	})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "submit feedback")
	}

	s.invalidateSnapshot()
	logger.C(ctx).Debug().
		Str("rule", in.RuleID).
		Str("outcome", string(in.Outcome)).
		Msg("feedback recorded")
	return nil
}

// RecordFound implements domain.RecorderPort
func (s *Service) RecordFound(ctx context.Context, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	// Deterministic lock order across rules
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := counts[id]
		if n <= 0 {
			continue
		}
		mu := s.lockFor(id)
		mu.Lock()
		err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
			repo := s.Binder.Bind(q)
			rec, err := repo.Get(ctx, id)
			if err != nil {
				return err
			}
			rec.RuleID = id
			rec = rec.AddFound(n, s.now().UTC())
			return repo.Upsert(ctx, rec)
		})
		mu.Unlock()
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeDB, "record found for %s", id)
		}
	}
	s.invalidateSnapshot()
	return nil
}

// Rank implements domain.FilterPort
func (s *Service) Rank(ctx context.Context, findings []ruleengine.Finding) ([]learning.Ranked, error) {
	if len(findings) == 0 {
		return nil, nil
	}
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}
	return learning.Rank(findings, records), nil
}

// Confidence implements domain.FilterPort
func (s *Service) Confidence(ctx context.Context, ruleID string) (float64, error) {
	records, err := s.records(ctx)
	if err != nil {
		return 0, err
	}
	return records[ruleID].Confidence(), nil
}

// Pacing implements domain.FilterPort
func (s *Service) Pacing(ctx context.Context, ruleID string) (time.Duration, error) {
	records, err := s.records(ctx)
	if err != nil {
		return 0, err
	}
	return learning.Pacing(records[ruleID].EffectivenessScore(), s.Cfg.Pacing), nil
}

// Insights implements domain.InsightsPort
func (s *Service) Insights(ctx context.Context) (domain.Insights, error) {
	var out domain.Insights

	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		repo := s.Binder.Bind(q)
		records, err := repo.List(ctx)
		if err != nil {
			return err
		}
		runs, issues, err := repo.RunTotals(ctx)
		if err != nil {
			return err
		}
		out = buildInsights(records, runs, issues, s.now().UTC())
		return nil
	})
	if err != nil {
		return domain.Insights{}, perr.Wrap(err, perr.ErrorCodeDB, "insights")
	}
	return out, nil
}

// buildInsights computes the aggregate snapshot from raw data
func buildInsights(records map[string]learning.Record, runs, issues int64, now time.Time) domain.Insights {
	out := domain.Insights{TotalAnalyzed: runs, GeneratedAt: now}
	if runs > 0 {
		out.AvgIssuesPerRun = float64(issues) / float64(runs)
	}

	var scoreSum float64
	var scored int
	var accepted, rejected, ignored int64
	all := make([]domain.RuleScore, 0, len(records))
	for id, r := range records {
		sc := r.EffectivenessScore()
		all = append(all, domain.RuleScore{RuleID: id, Score: sc, Found: r.Found})
		if r.Found > 0 {
			scoreSum += sc
			scored++
		}
		accepted += r.Accepted
		rejected += r.Rejected
		ignored += r.Ignored
	}
	if scored > 0 {
		out.AvgEffectiveness = scoreSum / float64(scored)
	}

	fb := accepted + rejected + ignored
	if fb > 0 {
		out.SatisfactionScore = float64(accepted) / float64(fb)
	} else {
		out.SatisfactionScore = 0.5
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].RuleID < all[j].RuleID
	})
	for _, rs := range all {
		if rs.Score >= 0.7 && len(out.MostEffectiveRules) < 5 {
			out.MostEffectiveRules = append(out.MostEffectiveRules, rs)
		}
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Score < 0.3 && len(out.LeastEffectiveRules) < 5 {
			out.LeastEffectiveRules = append(out.LeastEffectiveRules, all[i])
		}
	}
	return out
}

// records returns the TTL-cached record snapshot
func (s *Service) records(ctx context.Context) (map[string]learning.Record, error) {
	if s.Cfg.SnapshotTTL > 0 {
		s.snapMu.Lock()
		if s.snapshot != nil && s.now().Sub(s.snapAt) < s.Cfg.SnapshotTTL {
			snap := s.snapshot
			s.snapMu.Unlock()
			return snap, nil
		}
		s.snapMu.Unlock()
	}

	var records map[string]learning.Record
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		records, err = s.Binder.Bind(q).List(ctx)
		return err
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "load effectiveness records")
	}

	if s.Cfg.SnapshotTTL > 0 {
		s.snapMu.Lock()
		s.snapshot = records
		s.snapAt = s.now()
		s.snapMu.Unlock()
	}
	return records, nil
}

func (s *Service) invalidateSnapshot() {
	s.snapMu.Lock()
	s.snapshot = nil
	s.snapMu.Unlock()
}
