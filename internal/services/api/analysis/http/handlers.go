// Package http provides http transport for analysis
package http

import (
	stdhttp "net/http"

	"redpen/internal/modkit/httpkit"
	coredom "redpen/internal/services/analysis/domain"
	"redpen/internal/services/api/analysis/domain"
)

// Register mounts analysis endpoints on the given router
func Register(r httpkit.Router, runner coredom.RunnerPort) {
	h := &handlers{runner: runner}

	httpkit.PostJSON[domain.RunInput](r, "/run", h.run)
}

type handlers struct{ runner coredom.RunnerPort }

// swagger:route POST /analysis/run Analysis analysisRun
// @Summary Analyze one submission end to end
// @Tags Analysis
// @Accept json
// @Produce json
// @Param payload body domain.RunInput true "Submission"
// @Success 200 {object} coredom.Outcome "ok"
// @Router /analysis/run [post]
func (h *handlers) run(r *stdhttp.Request, in domain.RunInput) (any, error) {
	return h.runner.AnalyzeSubmission(r.Context(), in.SubjectID)
}
