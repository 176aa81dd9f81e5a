// Package exportjob persists export requests and runs them one at a time
// through the exporter.
package exportjob

import (
	"time"

	"github.com/google/uuid"
)

// Status is a job's lifecycle state.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Job is one queued or completed export.
type Job struct {
	ID          string    `json:"id"`
	ProjectPath string    `json:"project_path"`
	OutputPath  string    `json:"output_path,omitempty"`
	Format      string    `json:"format"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	Phase       string    `json:"phase,omitempty"`
	Error       string    `json:"error,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewJob builds a queued job with a fresh id.
func NewJob(projectPath, outputPath, format string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.NewString(),
		ProjectPath: projectPath,
		OutputPath:  outputPath,
		Format:      format,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Terminal reports whether the job can no longer change state.
func (j *Job) Terminal() bool {
	switch j.Status {
	case StatusDone, StatusCancelled, StatusFailed:
		return true
	}
	return false
}
