// Package service implements the analysis coordinator
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"redpen/internal/core/langhint"
	"redpen/internal/core/learning"
	"redpen/internal/core/ruleengine"
	"redpen/internal/core/rulepack"
	"redpen/internal/modkit/repokit"
	perr "redpen/internal/platform/errors"
	"redpen/internal/platform/logger"
	"redpen/internal/services/analysis/domain"
	learndom "redpen/internal/services/learning/domain"
)

// Config for the analysis coordinator
type Config struct {
	// MaxConcurrentFiles bounds the per-submission file fan-out; <=0 -> 10
	MaxConcurrentFiles int

	// CommentBudget caps surfaced findings per submission; <=0 -> 10
	CommentBudget int

	// AnalyzeOnlyChanged restricts matching to changed lines (see ruleengine)
	AnalyzeOnlyChanged bool

	// MaxFindingsPerFile is forwarded to the engine (0 = no cap)
	MaxFindingsPerFile int

	// DryRun skips posting; findings are computed and persisted only
	DryRun bool
}

// Service implements domain.RunnerPort
type Service struct {
	DB      repokit.TxRunner
	Binder  repokit.Binder[domain.StorageRepo]
	Changes domain.ChangeSource
	Filter  learndom.FilterPort
	Record  learndom.RecorderPort
	Packs   *rulepack.Cache
	Engine  *ruleengine.Engine
	Events  domain.EventSink // optional
	Cfg     Config

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New constructs the analysis coordinator
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	ports domain.Ports,
	packs *rulepack.Cache,
	engine *ruleengine.Engine,
	events domain.EventSink,
	cfg Config,
) *Service {
	if db == nil {
		panic("analysis.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("analysis.Service requires a non nil Repo binder")
	}
	if ports.Changes == nil || ports.Filter == nil || ports.Recorder == nil {
		panic("analysis.Service requires Changes, Filter, and Recorder ports")
	}
	if cfg.MaxConcurrentFiles <= 0 {
		cfg.MaxConcurrentFiles = 10
	}
	if cfg.CommentBudget <= 0 {
		cfg.CommentBudget = 10
	}
	if packs == nil {
		packs = rulepack.NewCache(nil, 0)
	}
	if engine == nil {
		engine = ruleengine.New(ruleengine.Options{
			AnalyzeOnlyChanged: cfg.AnalyzeOnlyChanged,
			MaxFindingsPerFile: cfg.MaxFindingsPerFile,
		})
	}
	return &Service{
		DB: db, Binder: binder,
		Changes: ports.Changes,
		Filter:  ports.Filter,
		Record:  ports.Recorder,
		Packs:   packs,
		Engine:  engine,
		Events:  events,
		Cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// AnalyzeSubmission implements domain.RunnerPort
func (s *Service) AnalyzeSubmission(ctx context.Context, subjectID string) (domain.Outcome, error) {
	if subjectID == "" {
		return domain.Outcome{}, perr.InvalidArgf("subject id required")
	}

	run := domain.Run{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		StartedAt: s.now().UTC(),
		Status:    "ok",
	}

	files, err := s.Changes.GetChangedFiles(ctx, subjectID)
	if err != nil {
		// Cannot establish the analysis context: fail the whole submission
		run.Status = "error"
		run.ErrText = err.Error()
		run.FinishedAt = s.now().UTC()
		s.persistRun(ctx, run)
		return domain.Outcome{
			SubjectID:    subjectID,
			Success:      false,
			ErrorMessage: fmt.Sprintf("fetch change set: %v", err),
		}, nil
	}

	res, err := s.Analyze(ctx, files, s.Cfg.CommentBudget)
	if err != nil {
		run.Status = "error"
		run.ErrText = err.Error()
		run.FinishedAt = s.now().UTC()
		s.persistRun(ctx, run)
		return domain.Outcome{
			SubjectID:    subjectID,
			Success:      false,
			ErrorMessage: err.Error(),
		}, nil
	}

	posted := 0
	if !s.Cfg.DryRun {
		posted = s.postFindings(ctx, subjectID, res.Findings)
	}

	// Summary is always posted once, zero findings or many
	sum := summarize(len(files), res, posted)
	if !s.Cfg.DryRun {
		if err := s.Changes.PostSummary(ctx, subjectID, sum.Text()); err != nil {
			logger.C(ctx).Warn().Err(err).Str("subject", subjectID).Msg("post summary failed")
		}
	}

	run.FilesAnalyzed = len(files)
	run.IssuesFound = res.Raw
	run.CommentsPosted = posted
	run.RuleUsage = res.RuleUsage
	run.FinishedAt = s.now().UTC()
	s.persistRun(ctx, run)

	if len(res.RuleUsage) > 0 {
		if err := s.Record.RecordFound(ctx, res.RuleUsage); err != nil {
			logger.C(ctx).Warn().Err(err).Msg("record rule usage failed")
		}
	}
	if s.Events != nil && res.Raw > 0 {
		all := make([]ruleengine.Finding, 0, len(res.Findings))
		for _, r := range res.Findings {
			all = append(all, r.Finding)
		}
		if err := s.Events.WriteFindings(ctx, run.ID, all); err != nil {
			logger.C(ctx).Warn().Err(err).Msg("finding event sink write failed")
		}
	}

	return domain.Outcome{
		SubjectID:      subjectID,
		Success:        true,
		FilesAnalyzed:  len(files),
		IssuesFound:    res.Raw,
		CommentsPosted: posted,
	}, nil
}

// Analyze implements domain.RunnerPort: fan-out per file, aggregate, filter,
// priority-sort, and truncate to budget. Nothing is posted here
func (s *Service) Analyze(ctx context.Context, files []ruleengine.FileUnit, budget int) (domain.Result, error) {
	if budget <= 0 {
		budget = s.Cfg.CommentBudget
	}
	if len(files) == 0 {
		return domain.Result{}, nil
	}

	pack, err := s.Packs.Get()
	if err != nil {
		return domain.Result{}, perr.Wrap(err, perr.ErrorCodeUnknown, "load rule pack")
	}
	for _, id := range pack.Skipped {
		logger.C(ctx).Warn().Str("rule", id).Msg("rule pattern invalid; rule skipped")
	}

	// One slot per file keeps aggregation order deterministic
	slots := make([][]ruleengine.Finding, len(files))
	sem := make(chan struct{}, s.Cfg.MaxConcurrentFiles)
	var wg sync.WaitGroup

	for i := range files {
		if !langhint.Reviewable(files[i].Path) {
			continue
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return domain.Result{}, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer func() { <-sem; wg.Done() }()
			slots[i] = s.Engine.Evaluate(ctx, files[i], pack)
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}

	var raw []ruleengine.Finding
	usage := make(map[string]int64)
	for _, fs := range slots {
		for _, f := range fs {
			if _, ok := pack.ByID(f.RuleID); !ok {
				// Finding referencing an unknown rule: flag for audit, keep it
				logger.C(ctx).Warn().Str("rule", f.RuleID).Msg("finding references unknown rule")
			}
			raw = append(raw, f)
			usage[f.RuleID]++
		}
	}

	ranked, err := s.Filter.Rank(ctx, raw)
	if err != nil {
		return domain.Result{}, err
	}
	capped := truncateByPriority(ranked, budget)

	return domain.Result{Findings: capped, Raw: len(raw), RuleUsage: usage}, nil
}

// postFindings surfaces each finding, pacing between posts by the rule's
// learned score. Individual post failures are logged and skipped
func (s *Service) postFindings(ctx context.Context, subjectID string, ranked []learning.Ranked) int {
	posted := 0
	for i, r := range ranked {
		if ctx.Err() != nil {
			break
		}
		if err := s.Changes.PostFinding(ctx, subjectID, r.Finding); err != nil {
			logger.C(ctx).Warn().Err(err).
				Str("subject", subjectID).
				Str("rule", r.Finding.RuleID).
				Msg("post finding failed")
			continue
		}
		posted++
		if i == len(ranked)-1 {
			break
		}
		delay, err := s.Filter.Pacing(ctx, r.Finding.RuleID)
		if err != nil {
			continue
		}
		if serr := s.sleep(ctx, delay); serr != nil {
			break
		}
	}
	return posted
}

// truncateByPriority groups by file, orders by severityWeight x confidence
// (ties keep relevance order), then cuts to budget so one noisy file cannot
// starve the rest
func truncateByPriority(ranked []learning.Ranked, budget int) []learning.Ranked {
	if len(ranked) <= budget {
		return ranked
	}

	byFile := make(map[string][]learning.Ranked)
	var order []string
	for _, r := range ranked {
		p := r.Finding.Path
		if _, ok := byFile[p]; !ok {
			order = append(order, p)
		}
		byFile[p] = append(byFile[p], r)
	}

	// Round-robin across files in priority order so budget spreads out
	for _, p := range order {
		sort.SliceStable(byFile[p], func(i, j int) bool {
			return priority(byFile[p][i]) > priority(byFile[p][j])
		})
	}
	sort.SliceStable(order, func(i, j int) bool {
		return priority(byFile[order[i]][0]) > priority(byFile[order[j]][0])
	})

	out := make([]learning.Ranked, 0, budget)
	for len(out) < budget {
		progressed := false
		for _, p := range order {
			if len(byFile[p]) == 0 {
				continue
			}
			out = append(out, byFile[p][0])
			byFile[p] = byFile[p][1:]
			progressed = true
			if len(out) == budget {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

func priority(r learning.Ranked) float64 {
	return learning.SeverityWeight(r.Finding.Severity) * r.Confidence
}

// persistRun writes the immutable run record; failures are logged, the
// analysis outcome is already decided at this point
func (s *Service) persistRun(ctx context.Context, run domain.Run) {
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return s.Binder.Bind(q).InsertRun(ctx, run)
	})
	if err != nil {
		logger.C(ctx).Error().Err(err).Str("run", run.ID).Msg("persist analysis run failed")
	}
}

func summarize(files int, res domain.Result, posted int) domain.Summary {
	bySev := make(map[string]int)
	for _, r := range res.Findings {
		bySev[string(r.Finding.Severity)]++
	}
	return domain.Summary{
		FilesAnalyzed: files,
		BySeverity:    bySev,
		Posted:        posted,
		Truncated:     len(res.Findings) < res.Raw,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
