// Package api provides the HTTP API for the application
package api

import (
	"context"

	"redpen/internal/platform/config"
	"redpen/internal/platform/logger"
	phttp "redpen/internal/platform/net/http"
	"redpen/internal/platform/store"

	"redpen/internal/adapters/scm"
	"redpen/internal/modkit"
	"redpen/internal/modkit/httpkit"
	"redpen/internal/modkit/module"
	"redpen/internal/modkit/swaggerkit"

	apianalysis "redpen/internal/services/api/analysis/module"
	apibatch "redpen/internal/services/api/batch/module"
	apilearning "redpen/internal/services/api/learning/module"
	metamod "redpen/internal/services/api/meta/module"

	analysisdom "redpen/internal/services/analysis/domain"
	analysismod "redpen/internal/services/analysis/module"
	batchmod "redpen/internal/services/batch/module"
	learningmod "redpen/internal/services/learning/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router. The returned stop
// function shuts the batch engine down; call it before closing the store
func Mount(r phttp.Router, opt Options) (stop func()) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}

	// Core modules first: learning owns the effectiveness store, analysis
	// consumes its filter and recorder ports plus the review platform client
	learning := learningmod.New(deps)
	changes := scm.NewClient(scm.FromConfig(deps.Cfg))

	analysis := analysismod.New(deps, modkit.WithPorts(analysisdom.Ports{
		Changes:  changes,
		Filter:   learning.Ports().(learningmod.Ports).Filter,
		Recorder: learning.Ports().(learningmod.Ports).Recorder,
	}))
	runner := analysis.Ports().(analysismod.Ports).Runner

	// Batch engine replays the coordinator over many subjects
	batch := batchmod.New(deps, runner)
	if err := batch.Engine().Start(context.Background()); err != nil {
		opt.Logger.Panic().Err(err).Msg("batch engine start failed")
	}

	lports := learning.Ports().(learningmod.Ports)
	mods := []module.Module{
		metamod.New(deps),
		apianalysis.New(deps, modkit.WithPorts(apianalysis.Ports{Runner: runner})),
		apilearning.New(deps, modkit.WithPorts(apilearning.Ports{
			Feedback: lports.Feedback,
			Insights: lports.Insights,
		})),
		apibatch.New(deps, modkit.WithPorts(apibatch.Ports{
			Engine: batch.Engine(),
			Auth:   newTokenAuth(opt.Config.Prefix("CORE_API_")),
		})),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})

	return batch.Engine().Stop
}
