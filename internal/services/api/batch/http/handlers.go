// Package http provides http transport for batch jobs
package http

import (
	stdhttp "net/http"

	"redpen/internal/modkit/httpkit"
	"redpen/internal/platform/logger"
	"redpen/internal/services/api/batch/domain"
	coredom "redpen/internal/services/batch/domain"
)

// Register mounts batch endpoints on the given router
func Register(r httpkit.Router, engine coredom.EnginePort) {
	h := &handlers{engine: engine}

	httpkit.PostJSON[domain.StartInput](r, "/start", h.start)
	httpkit.PostJSON[domain.JobQuery](r, "/status", h.status)
	httpkit.PostJSON[domain.JobQuery](r, "/pause", h.pause)
	httpkit.PostJSON[domain.JobQuery](r, "/resume", h.resume)
}

type handlers struct{ engine coredom.EnginePort }

// swagger:route POST /batch/start Batch batchStart
// @Summary Enqueue a batch analysis job
// @Tags Batch
// @Accept json
// @Produce json
// @Param payload body domain.StartInput true "Subjects"
// @Success 200 {object} domain.StartOutput "ok"
// @Router /batch/start [post]
func (h *handlers) start(r *stdhttp.Request, in domain.StartInput) (any, error) {
	id, err := h.engine.Submit(r.Context(), in.Subjects)
	if err != nil {
		return nil, err
	}
	// audit who kicked the job off when the endpoint runs behind auth
	if uid, uerr := httpkit.User(r); uerr == nil {
		logger.C(r.Context()).Info().
			Str("user", uid).
			Str("job", id).
			Int("subjects", len(in.Subjects)).
			Msg("batch job submitted")
	}
	return domain.StartOutput{JobID: id}, nil
}

// swagger:route POST /batch/status Batch batchStatus
// @Summary Point-in-time job snapshot
// @Tags Batch
// @Accept json
// @Produce json
// @Param payload body domain.JobQuery true "Job"
// @Success 200 {object} coredom.Job "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /batch/status [post]
func (h *handlers) status(r *stdhttp.Request, in domain.JobQuery) (any, error) {
	return h.engine.Status(r.Context(), in.JobID)
}

// swagger:route POST /batch/pause Batch batchPause
// @Summary Stop dispatching new items; in-flight items finish
// @Tags Batch
// @Accept json
// @Produce json
// @Param payload body domain.JobQuery true "Job"
// @Success 200 {object} map[string]string "ok"
// @Router /batch/pause [post]
func (h *handlers) pause(r *stdhttp.Request, in domain.JobQuery) (any, error) {
	if err := h.engine.Pause(r.Context(), in.JobID); err != nil {
		return nil, err
	}
	return map[string]string{"status": "paused"}, nil
}

// swagger:route POST /batch/resume Batch batchResume
// @Summary Resume a paused job
// @Tags Batch
// @Accept json
// @Produce json
// @Param payload body domain.JobQuery true "Job"
// @Success 200 {object} map[string]string "ok"
// @Router /batch/resume [post]
func (h *handlers) resume(r *stdhttp.Request, in domain.JobQuery) (any, error) {
	if err := h.engine.Resume(r.Context(), in.JobID); err != nil {
		return nil, err
	}
	return map[string]string{"status": "resumed"}, nil
}
