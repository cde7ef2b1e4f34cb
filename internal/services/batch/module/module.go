// Package module implements the batch engine module
package module

import (
	"context"
	"fmt"
	"time"

	"redpen/internal/modkit"
	"redpen/internal/modkit/httpkit"
	"redpen/internal/modkit/repokit"
	analysisdom "redpen/internal/services/analysis/domain"
	"redpen/internal/services/batch/domain"
	"redpen/internal/services/batch/repo"
	"redpen/internal/services/batch/service"
)

// Ports exposed by the batch module
type Ports struct {
	Engine domain.EnginePort
}

// Module implements modkit.Module
type Module struct {
	deps   modkit.Deps
	ports  Ports
	engine *service.Engine
}

// New constructs a new batch module. The caller owns the engine lifecycle
// through Start and Stop
func New(deps modkit.Deps, runner analysisdom.RunnerPort) *Module {
	opts := FromConfig(deps.Cfg)

	db := repokit.TxRunner(deps.PG)
	if opts.DBTimeout > 0 {
		// mirror the context deadline server side so a wedged statement
		// cannot outlive the tx that issued it
		ms := int(opts.DBTimeout / time.Millisecond)
		db = repokit.WithBeginHooks(db, func(ctx context.Context, q repokit.Queryer) error {
			_, err := q.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", ms))
			return err
		})
	}

	engine := service.New(
		db,
		repo.NewPG(),
		runner,
		service.Config{
			QueueDepth:      opts.QueueDepth,
			ItemConcurrency: opts.ItemConcurrency,
			CheckpointEvery: opts.CheckpointEvery,
			DrainBatch:      opts.DrainBatch,
			ItemTimeout:     opts.ItemTimeout,
			JobTimeout:      opts.JobTimeout,
			DBTimeout:       opts.DBTimeout,
		},
	)

	m := &Module{deps: deps, engine: engine}
	m.ports = Ports{Engine: engine}
	return m
}

// Engine returns the concrete engine for lifecycle control
func (m *Module) Engine() *service.Engine { return m.engine }

// Name satisfies modkit.Module
func (m *Module) Name() string { return "batch" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return "" }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(_ httpkit.Router) {}
