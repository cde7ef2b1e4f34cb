// Package module wires learning endpoints into the API using modkit
package module

import (
	"net/http"

	modkit "redpen/internal/modkit"
	"redpen/internal/modkit/httpkit"
	str "redpen/internal/platform/strings"
	learninghttp "redpen/internal/services/api/learning/http"
	coredom "redpen/internal/services/learning/domain"
)

// Ports consumed by the learning API module
type Ports struct {
	Feedback coredom.FeedbackPort
	Insights coredom.InsightsPort
}

// Module implements the learning API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     Ports
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)
}

// New constructs the learning API module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("learning"),
		modkit.WithPrefix("/learning"),
	}, opts...)...)

	ports, ok := b.Ports.(Ports)
	if !ok || ports.Feedback == nil || ports.Insights == nil {
		panic("learning api module: expected WithPorts(Ports{Feedback, Insights})")
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
		learninghttp.Register(r, learninghttp.Deps{
			Feedback: ports.Feedback,
			Insights: ports.Insights,
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
