// Package domain holds analysis API transport types
package domain

// RunInput asks for a full pipeline run over one submission
type RunInput struct {
	SubjectID string `json:"subject_id" validate:"required"`
}
