package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/framecast/framecast-agent/internal/config"
	"github.com/framecast/framecast-agent/internal/exportjob"
	"github.com/framecast/framecast-agent/internal/project"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/exports", createExportHandler(cfg))
		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))
		r.Post("/exports/{id}/cancel", cancelExportHandler(cfg))
		r.Get("/exports/{id}/download", downloadExportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), 10)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		state := "idle"
		var activeJob *JobResponse
		jobsRunning := 0
		lastError := ""

		for _, j := range jobs {
			if j.Status == exportjob.StatusRunning {
				state = "exporting"
				resp := JobToResponse(j)
				activeJob = &resp
				jobsRunning++
			}
			if j.Status == exportjob.StatusFailed && lastError == "" {
				lastError = j.Error
			}
		}

		if lastError != "" && state == "idle" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:       state,
			LastError:   lastError,
			JobsRunning: jobsRunning,
			ActiveJob:   activeJob,
		})
	}
}

func createExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if req.ProjectPath == "" {
			WriteError(w, http.StatusBadRequest, "project_path is required", "BAD_REQUEST")
			return
		}
		if req.Format != "" {
			switch project.Format(req.Format) {
			case project.FormatMP4, project.FormatGIF:
			default:
				WriteError(w, http.StatusBadRequest, "format must be mp4 or gif", "BAD_REQUEST")
				return
			}
		}

		job := exportjob.NewJob(req.ProjectPath, req.OutputPath, req.Format)
		if err := cfg.Repository.CreateJob(r.Context(), job); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to create job", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, CreateExportResponse{JobID: job.ID})
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if job.Terminal() {
			WriteError(w, http.StatusConflict, "job already finished", "CONFLICT")
			return
		}

		if err := cfg.Runner.Cancel(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func downloadExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if job.Status != exportjob.StatusDone || job.OutputPath == "" {
			WriteError(w, http.StatusConflict, "export not finished", "NOT_READY")
			return
		}

		if err := cfg.Downloads.ServeFile(w, r, job.OutputPath); err != nil {
			cfg.Logger.Error("download error", "error", err, "job_id", id)
		}
	}
}
