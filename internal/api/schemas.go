package api

import (
	"time"

	"github.com/framecast/framecast-agent/internal/exportjob"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State       string       `json:"state"`
	LastError   string       `json:"last_error,omitempty"`
	JobsRunning int          `json:"jobs_running"`
	ActiveJob   *JobResponse `json:"active_job,omitempty"`
}

type CreateExportRequest struct {
	ProjectPath string `json:"project_path"`
	OutputPath  string `json:"output_path,omitempty"`
	Format      string `json:"format,omitempty"`
}

type CreateExportResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID          string   `json:"id"`
	ProjectPath string   `json:"project_path"`
	OutputPath  string   `json:"output_path,omitempty"`
	Format      string   `json:"format"`
	Status      string   `json:"status"`
	Progress    float64  `json:"progress"`
	Phase       string   `json:"phase,omitempty"`
	Error       string   `json:"error,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func JobToResponse(j *exportjob.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		ProjectPath: j.ProjectPath,
		OutputPath:  j.OutputPath,
		Format:      j.Format,
		Status:      j.Status,
		Progress:    j.Progress,
		Phase:       j.Phase,
		Error:       j.Error,
		Warnings:    j.Warnings,
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
	}
}
