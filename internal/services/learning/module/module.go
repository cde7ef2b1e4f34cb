// Package module implements the learning service module
package module

import (
	"redpen/internal/modkit"
	"redpen/internal/modkit/httpkit"
	"redpen/internal/modkit/repokit"
	"redpen/internal/services/learning/domain"
	"redpen/internal/services/learning/repo"
	"redpen/internal/services/learning/service"
)

// Ports exposed by the learning module
type Ports struct {
	Feedback domain.FeedbackPort
	Filter   domain.FilterPort
	Recorder domain.RecorderPort
	Insights domain.InsightsPort
}

// Module implements the learning service module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new learning module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	binder := repo.NewPG()
	svc := service.New(repokit.TxRunner(deps.PG), binder, service.Config{
		Pacing:      opts.Pacing,
		SnapshotTTL: opts.SnapshotTTL,
	})

	m := &Module{deps: deps}
	m.ports = Ports{
		Feedback: svc,
		Filter:   svc,
		Recorder: svc,
		Insights: svc,
	}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "learning" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return "" }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}
