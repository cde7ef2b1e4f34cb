// Package service implements the batch engine
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"redpen/internal/modkit/repokit"
	perr "redpen/internal/platform/errors"
	"redpen/internal/platform/logger"
	ptime "redpen/internal/platform/time"
	analysisdom "redpen/internal/services/analysis/domain"
	"redpen/internal/services/batch/domain"
	"redpen/internal/services/batch/guardrails"
)

// Config for the batch engine
type Config struct {
	// QueueDepth bounds pending jobs; <=0 -> 16
	QueueDepth int

	// ItemConcurrency bounds per-job item fan-out; <=0 -> GOMAXPROCS
	ItemConcurrency int

	// CheckpointEvery persists progress after this many items; <=0 -> 25
	CheckpointEvery int

	// DrainBatch is the result sub-batch size applied at once; <=0 -> 50
	DrainBatch int

	// ItemTimeout caps one subject's analysis; 0 = no cap
	ItemTimeout time.Duration

	// JobTimeout caps a whole job including its fan-out; 0 = no cap
	JobTimeout time.Duration

	// DBTimeout caps each persistence round trip; 0 = no cap
	DBTimeout time.Duration
}

// Engine implements domain.EnginePort. One dispatcher goroutine owns job
// execution; jobs run one at a time, items within a job fan out
type Engine struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.StorageRepo]
	Runner analysisdom.RunnerPort
	Cfg    Config

	queue chan string

	mu   sync.Mutex
	jobs map[string]*jobState

	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// jobState is the live, engine-owned view of one job
type jobState struct {
	mu     sync.Mutex
	job    domain.Job
	resume chan struct{} // non-nil while paused
}

func (st *jobState) snapshot() domain.Job {
	st.mu.Lock()
	defer st.mu.Unlock()
	j := st.job
	j.Subjects = append([]string(nil), st.job.Subjects...)
	return j
}

// New constructs the batch engine; call Start before Submit
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	runner analysisdom.RunnerPort,
	cfg Config,
) *Engine {
	if db == nil {
		panic("batch.Engine requires a non nil TxRunner")
	}
	if binder == nil {
		panic("batch.Engine requires a non nil Repo binder")
	}
	if runner == nil {
		panic("batch.Engine requires an analysis runner")
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 16
	}
	if cfg.ItemConcurrency <= 0 {
		cfg.ItemConcurrency = runtime.GOMAXPROCS(0)
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 25
	}
	if cfg.DrainBatch <= 0 {
		cfg.DrainBatch = 50
	}
	return &Engine{
		DB: db, Binder: binder, Runner: runner,
		Cfg:   cfg,
		queue: make(chan string, cfg.QueueDepth),
		jobs:  make(map[string]*jobState),
	}
}

// Start fails over jobs interrupted by a previous process, then launches the
// dispatcher. Idempotent only across Start/Stop pairs
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return perr.Conflictf("batch engine already started")
	}
	e.started = true
	e.runCtx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.mu.Unlock()

	// Anything left running on disk was interrupted; the queue is in-memory
	// so those jobs cannot resume
	dbCtx, cancel := guardrails.ForDB(ctx, guardrails.Timeouts{DB: e.Cfg.DBTimeout})
	defer cancel()
	err := e.DB.Tx(dbCtx, func(q repokit.Queryer) error {
		n, err := e.Binder.Bind(q).MarkInterrupted(dbCtx, "interrupted by process restart")
		if n > 0 {
			logger.C(ctx).Warn().Int64("jobs", n).Msg("batch: failed interrupted jobs from previous run")
		}
		return err
	})
	if err != nil {
		logger.C(ctx).Error().Err(err).Msg("batch: interrupted-job sweep failed")
	}

	go e.dispatch()
	return nil
}

// Stop cancels in-flight work and waits for the dispatcher to exit
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	close(e.queue)
	<-done
}

// Submit implements domain.EnginePort
func (e *Engine) Submit(ctx context.Context, subjects []string) (string, error) {
	if len(subjects) == 0 {
		return "", perr.InvalidArgf("batch job requires at least one subject")
	}
	for i, s := range subjects {
		if s == "" {
			return "", perr.InvalidArgf("subject %d is empty", i)
		}
	}

	st := &jobState{job: domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.StatusQueued,
		Subjects:  append([]string(nil), subjects...),
		CreatedAt: time.Now().UTC(),
	}}

	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return "", perr.Unavailablef("batch engine is not running")
	}
	e.jobs[st.job.ID] = st
	e.mu.Unlock()

	dbCtx, cancel := guardrails.ForDB(ctx, guardrails.Timeouts{DB: e.Cfg.DBTimeout})
	defer cancel()
	if err := e.persist(dbCtx, func(r domain.StorageRepo) error {
		return r.InsertJob(dbCtx, st.snapshot())
	}); err != nil {
		e.forget(st.job.ID)
		return "", err
	}

	// Enqueue under the lock so Stop cannot close the queue mid-send
	e.mu.Lock()
	if e.started {
		select {
		case e.queue <- st.job.ID:
			e.mu.Unlock()
			return st.job.ID, nil
		default:
		}
	}
	e.mu.Unlock()

	// Queue full: fail the row so callers see a terminal state, not a zombie
	st.mu.Lock()
	st.job.Status = domain.StatusFailed
	st.job.ErrorMessage = "batch queue full"
	st.mu.Unlock()
	e.persistState(ctx, st)
	e.forget(st.job.ID)
	return "", perr.Unavailablef("batch queue full")
}

// Status implements domain.EnginePort
func (e *Engine) Status(ctx context.Context, jobID string) (domain.Job, error) {
	if jobID == "" {
		return domain.Job{}, perr.InvalidArgf("job id required")
	}
	e.mu.Lock()
	st, ok := e.jobs[jobID]
	e.mu.Unlock()
	if ok {
		return st.snapshot(), nil
	}

	var j domain.Job
	err := e.DB.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		j, err = e.Binder.Bind(q).GetJob(ctx, jobID)
		return err
	})
	return j, err
}

// Pause implements domain.EnginePort: new items stop dispatching, in-flight
// items finish and still count
func (e *Engine) Pause(ctx context.Context, jobID string) error {
	st, err := e.live(jobID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	switch st.job.Status {
	case domain.StatusRunning, domain.StatusQueued:
		st.job.Status = domain.StatusPaused
		st.resume = make(chan struct{})
	default:
		status := st.job.Status
		st.mu.Unlock()
		return perr.Conflictf("cannot pause job in status %q", status)
	}
	st.mu.Unlock()
	e.persistState(ctx, st)
	return nil
}

// Resume implements domain.EnginePort
func (e *Engine) Resume(ctx context.Context, jobID string) error {
	st, err := e.live(jobID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	if st.job.Status != domain.StatusPaused {
		status := st.job.Status
		st.mu.Unlock()
		return perr.Conflictf("cannot resume job in status %q", status)
	}
	st.job.Status = domain.StatusRunning
	close(st.resume)
	st.resume = nil
	st.mu.Unlock()
	e.persistState(ctx, st)
	return nil
}

func (e *Engine) live(jobID string) (*jobState, error) {
	if jobID == "" {
		return nil, perr.InvalidArgf("job id required")
	}
	e.mu.Lock()
	st, ok := e.jobs[jobID]
	e.mu.Unlock()
	if !ok {
		return nil, perr.NotFoundf("batch job %q is not live", jobID)
	}
	return st, nil
}

func (e *Engine) forget(jobID string) {
	e.mu.Lock()
	delete(e.jobs, jobID)
	e.mu.Unlock()
}

// dispatch is the single consumer: jobs never run concurrently with each other
func (e *Engine) dispatch() {
	defer close(e.done)
	for jobID := range e.queue {
		e.mu.Lock()
		st, ok := e.jobs[jobID]
		e.mu.Unlock()
		if !ok {
			continue
		}
		e.runJob(e.runCtx, st)
		e.forget(jobID)
	}
}

func (e *Engine) runJob(ctx context.Context, st *jobState) {
	jobCtx, cancelJob := guardrails.WithJob(ctx, guardrails.Timeouts{Job: e.Cfg.JobTimeout})
	defer cancelJob()

	now := time.Now().UTC()
	st.mu.Lock()
	// A job paused while still queued keeps waiting here for resume
	if st.job.Status == domain.StatusQueued {
		st.job.Status = domain.StatusRunning
	}
	st.job.StartedAt = ptime.Ptr(now)
	subjects := append([]string(nil), st.job.Subjects...)
	st.mu.Unlock()
	e.persistState(ctx, st)

	results := make(chan domain.ItemResult, e.Cfg.DrainBatch)
	drained := make(chan struct{})
	go e.drain(ctx, st, results, drained)

	sem := make(chan struct{}, e.Cfg.ItemConcurrency)
	var wg sync.WaitGroup

	interrupted := false
	for _, subject := range subjects {
		for {
			if err := e.waitIfPaused(jobCtx, st); err != nil {
				interrupted = true
				break
			}
			select {
			case <-jobCtx.Done():
				interrupted = true
			case sem <- struct{}{}:
			}
			if interrupted {
				break
			}
			// Pause may land while waiting for a slot; give it back and wait
			if e.isPaused(st) {
				<-sem
				continue
			}
			break
		}
		if interrupted {
			break
		}
		wg.Add(1)
		go func(sub string) {
			defer func() { <-sem; wg.Done() }()
			results <- e.runItem(jobCtx, sub)
		}(subject)
	}
	wg.Wait()
	close(results)
	<-drained

	end := time.Now().UTC()
	st.mu.Lock()
	st.job.CompletedAt = ptime.Ptr(end)
	if interrupted {
		st.job.Status = domain.StatusFailed
		if jobCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			st.job.ErrorMessage = "job timeout exceeded"
		} else {
			st.job.ErrorMessage = "interrupted"
		}
	} else {
		// Item failures are recorded in counters; the job itself completed
		st.job.Status = domain.StatusCompleted
	}
	st.mu.Unlock()
	e.persistState(ctx, st)
	e.checkpoint(ctx, st)

	snap := st.snapshot()
	logger.C(ctx).Info().
		Str("job", snap.ID).
		Str("status", string(snap.Status)).
		Int("processed", snap.Processed).
		Int("succeeded", snap.Succeeded).
		Int("failed", snap.Failed).
		Msg("batch: job finished")
}

func (e *Engine) isPaused(st *jobState) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.resume != nil
}

// waitIfPaused blocks dispatching while the job is paused. In-flight items
// are unaffected; their results keep draining
func (e *Engine) waitIfPaused(ctx context.Context, st *jobState) error {
	for {
		st.mu.Lock()
		resume := st.resume
		st.mu.Unlock()
		if resume == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}

// runItem analyzes one subject with full isolation: a panic or error becomes
// a failed item, never a failed job
func (e *Engine) runItem(ctx context.Context, subject string) (res domain.ItemResult) {
	res = domain.ItemResult{Subject: subject}
	defer func() {
		if r := recover(); r != nil {
			res.OK = false
			res.Err = fmt.Sprintf("panic: %v", r)
			logger.C(ctx).Error().Str("subject", subject).Any("panic", r).Msg("batch: item panicked")
		}
	}()

	itemCtx, cancel := guardrails.ForItem(ctx, guardrails.Timeouts{Item: e.Cfg.ItemTimeout})
	defer cancel()

	out, err := e.Runner.AnalyzeSubmission(itemCtx, subject)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if !out.Success {
		res.Err = out.ErrorMessage
		return res
	}
	res.OK = true
	return res
}

// drain applies item results to the job in fixed-size sub-batches and
// checkpoints periodically, bounding both memory and write volume
func (e *Engine) drain(ctx context.Context, st *jobState, results <-chan domain.ItemResult, done chan<- struct{}) {
	defer close(done)

	buf := make([]domain.ItemResult, 0, e.Cfg.DrainBatch)
	sinceCkpt := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		st.mu.Lock()
		for _, r := range buf {
			st.job.Processed++
			if r.OK {
				st.job.Succeeded++
			} else {
				st.job.Failed++
				st.job.ErrorMessage = fmt.Sprintf("%s: %s", r.Subject, r.Err)
			}
		}
		st.mu.Unlock()
		sinceCkpt += len(buf)
		buf = buf[:0]

		if sinceCkpt >= e.Cfg.CheckpointEvery {
			sinceCkpt = 0
			e.persistState(ctx, st)
			e.checkpoint(ctx, st)
		}
	}

	for r := range results {
		if !r.OK {
			logger.C(ctx).Warn().Str("subject", r.Subject).Str("err", r.Err).Msg("batch: item failed")
		}
		buf = append(buf, r)
		if len(buf) >= e.Cfg.DrainBatch {
			flush()
		}
	}
	flush()
}

// persist runs one bound repo call in a transaction
func (e *Engine) persist(ctx context.Context, fn func(domain.StorageRepo) error) error {
	return e.DB.Tx(ctx, func(q repokit.Queryer) error {
		return fn(e.Binder.Bind(q))
	})
}

// persistState writes the current job row; failures are logged, the live
// state stays authoritative while the job is in memory
func (e *Engine) persistState(ctx context.Context, st *jobState) {
	snap := st.snapshot()
	dbCtx, cancel := guardrails.ForDB(ctx, guardrails.Timeouts{DB: e.Cfg.DBTimeout})
	defer cancel()
	if err := e.persist(dbCtx, func(r domain.StorageRepo) error {
		return r.UpdateJob(dbCtx, snap)
	}); err != nil {
		logger.C(ctx).Error().Err(err).Str("job", snap.ID).Msg("batch: persist job failed")
	}
}

func (e *Engine) checkpoint(ctx context.Context, st *jobState) {
	snap := st.snapshot()
	cp := domain.Checkpoint{
		JobID:     snap.ID,
		Processed: snap.Processed,
		Succeeded: snap.Succeeded,
		Failed:    snap.Failed,
		UpdatedAt: time.Now().UTC(),
	}
	dbCtx, cancel := guardrails.ForDB(ctx, guardrails.Timeouts{DB: e.Cfg.DBTimeout})
	defer cancel()
	if err := e.persist(dbCtx, func(r domain.StorageRepo) error {
		return r.SaveCheckpoint(dbCtx, cp)
	}); err != nil {
		logger.C(ctx).Error().Err(err).Str("job", snap.ID).Msg("batch: checkpoint failed")
	}
}
