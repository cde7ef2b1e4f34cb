// Package module wires batch endpoints into the API using modkit
package module

import (
	"net/http"

	modkit "redpen/internal/modkit"
	"redpen/internal/modkit/httpkit"
	"redpen/internal/platform/net/middleware"
	str "redpen/internal/platform/strings"
	batchhttp "redpen/internal/services/api/batch/http"
	coredom "redpen/internal/services/batch/domain"
)

// Ports consumed by the batch API module
type Ports struct {
	Engine coredom.EnginePort

	// Auth guards the control endpoints; nil disables the check
	Auth middleware.AuthPort
}

// Module implements the batch API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the batch API module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("batch"),
		modkit.WithPrefix("/batch"),
	}, opts...)...)

	ports, ok := b.Ports.(Ports)
	if !ok || ports.Engine == nil {
		panic("batch api module: expected WithPorts(Ports{Engine})")
	}

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		ports:     ports,
		subrouter: b.Subrouter,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		httpkit.Protected(r, ports.Auth, func(gr httpkit.Router) {
			batchhttp.Register(gr, ports.Engine)
		})
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }
