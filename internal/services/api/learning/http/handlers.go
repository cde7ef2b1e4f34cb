// Package http provides http transport for feedback and insights
package http

import (
	stdhttp "net/http"

	"redpen/internal/modkit/httpkit"
	coredom "redpen/internal/services/learning/domain"
)

// Deps are the handler dependencies
type Deps struct {
	Feedback coredom.FeedbackPort
	Insights coredom.InsightsPort
}

// Register mounts learning endpoints on the given router
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.PostJSON[coredom.FeedbackInput](r, "/feedback", h.feedback)
	httpkit.Get(r, "/insights", h.insights)
}

type handlers struct{ deps Deps }

// swagger:route POST /learning/feedback Learning submitFeedback
// @Summary Record a developer verdict on one finding
// @Tags Learning
// @Accept json
// @Produce json
// @Param payload body coredom.FeedbackInput true "Verdict"
// @Success 200 {object} map[string]string "ok"
// @Router /learning/feedback [post]
func (h *handlers) feedback(r *stdhttp.Request, in coredom.FeedbackInput) (any, error) {
	if err := h.deps.Feedback.Submit(r.Context(), in); err != nil {
		return nil, err
	}
	return map[string]string{"status": "recorded"}, nil
}

// swagger:route GET /learning/insights Learning getInsights
// @Summary Aggregate effectiveness snapshot
// @Tags Learning
// @Produce json
// @Success 200 {object} coredom.Insights "ok"
// @Router /learning/insights [get]
func (h *handlers) insights(r *stdhttp.Request) (any, error) {
	return h.deps.Insights.Insights(r.Context())
}
