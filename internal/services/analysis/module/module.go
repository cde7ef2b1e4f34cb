// Package module implements the analysis module
package module

import (
	"redpen/internal/core/ruleengine"
	"redpen/internal/core/rulepack"
	"redpen/internal/modkit"
	"redpen/internal/modkit/httpkit"
	"redpen/internal/modkit/repokit"
	"redpen/internal/services/analysis/domain"
	"redpen/internal/services/analysis/repo"
	"redpen/internal/services/analysis/service"
)

// Ports exposed by the analysis module
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new analysis module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("analysis"),
	}, opts...)...)

	// Basic guardrails against incorrect wiring
	ports, ok := b.Ports.(domain.Ports)
	if !ok {
		panic("analysis module: expected WithPorts(analysis/domain.Ports)")
	}
	if ports.Changes == nil || ports.Filter == nil || ports.Recorder == nil {
		panic("analysis module: Ports missing Changes, Filter, or Recorder")
	}

	cfg := FromConfig(deps.Cfg)

	packs := rulepack.NewCache(nil, cfg.PackWindow)
	engine := ruleengine.New(ruleengine.Options{
		AnalyzeOnlyChanged: cfg.AnalyzeOnlyChanged,
		MaxConcurrent:      cfg.RuleConcurrency,
		MaxFindingsPerFile: cfg.MaxFindingsPerFile,
	})

	// Typed-nil guard: keep the EventSink interface nil when CH is disabled
	var events domain.EventSink
	if sink := service.NewCHEventSink(deps.CH); sink != nil {
		events = sink
	}

	runner := service.New(
		repokit.TxRunner(deps.PG),
		repo.NewPG(),
		ports,
		packs,
		engine,
		events,
		service.Config{
			MaxConcurrentFiles: cfg.MaxConcurrentFiles,
			CommentBudget:      cfg.CommentBudget,
			AnalyzeOnlyChanged: cfg.AnalyzeOnlyChanged,
			MaxFindingsPerFile: cfg.MaxFindingsPerFile,
			DryRun:             cfg.DryRun,
		},
	)

	m := &Module{deps: deps}
	m.ports = Ports{Runner: runner}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "analysis" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return "" }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(_ httpkit.Router) {}
