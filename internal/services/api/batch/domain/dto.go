// Package domain holds batch API transport types
package domain

// StartInput enqueues a batch job over many subjects
type StartInput struct {
	Subjects []string `json:"subjects" validate:"required,min=1,dive,required"`
}

// StartOutput carries the assigned job id
type StartOutput struct {
	JobID string `json:"job_id"`
}

// JobQuery references one job by id
type JobQuery struct {
	JobID string `json:"job_id" validate:"required"`
}
