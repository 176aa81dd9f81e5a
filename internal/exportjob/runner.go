package exportjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/framecast/framecast-agent/internal/exporter"
	"github.com/framecast/framecast-agent/internal/logging"
	"github.com/framecast/framecast-agent/internal/project"
)

// Exporter runs one export to completion. Satisfied by exporter.Exporter.
type Exporter interface {
	Export(ctx context.Context, cfg exporter.Config) exporter.Result
}

// Runner polls for queued jobs and runs them one at a time.
type Runner struct {
	repo         Repository
	exp          Exporter
	outputDir    string
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool

	mu           sync.Mutex
	activeJobID  string
	cancelActive context.CancelFunc
}

func NewRunner(repo Repository, exp Exporter, outputDir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		repo:         repo,
		exp:          exp,
		outputDir:    outputDir,
		logger:       logging.WithComponent(logger, "exportjob"),
		pollInterval: 2 * time.Second,
	}
}

// Start blocks, polling for work until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			r.processNextJob(ctx)
		}
	}
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// Cancel flags the job and interrupts it if it is the one currently running.
func (r *Runner) Cancel(ctx context.Context, jobID string) error {
	if err := r.repo.RequestCancel(ctx, jobID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeJobID == jobID && r.cancelActive != nil {
		r.cancelActive()
	}
	return nil
}

func (r *Runner) processNextJob(ctx context.Context) {
	job, err := r.repo.NextQueuedJob(ctx)
	if err != nil {
		r.logger.Error("failed to poll for queued jobs", "error", err)
		return
	}
	if job == nil {
		return
	}
	r.runJob(ctx, job)
}

func (r *Runner) runJob(ctx context.Context, job *Job) {
	log := logging.WithJobID(r.logger, job.ID)
	log.Info("starting export job", "project", logging.SanitizePath(job.ProjectPath))

	proj, err := project.Load(job.ProjectPath)
	if err != nil {
		r.finishJob(ctx, job, StatusFailed, err.Error())
		return
	}
	if job.Format != "" {
		proj.Output.Format = project.Format(job.Format)
	}
	outputPath := job.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(r.outputDir, fmt.Sprintf("%s.%s", job.ID, proj.Output.Format))
		if err := r.repo.SetJobOutputPath(ctx, job.ID, outputPath); err != nil {
			log.Warn("failed to persist output path", "error", err)
		}
	}

	if err := r.repo.UpdateJobStatus(ctx, job.ID, StatusRunning, ""); err != nil {
		log.Error("failed to mark job running", "error", err)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeJobID = job.ID
	r.cancelActive = cancel
	r.mu.Unlock()
	defer func() {
		cancel()
		r.mu.Lock()
		r.activeJobID = ""
		r.cancelActive = nil
		r.mu.Unlock()
	}()

	// Persist progress and poll the cancel flag at a bounded rate; progress
	// callbacks arrive per frame.
	var lastPersist time.Time
	onProgress := func(p exporter.Progress) {
		if time.Since(lastPersist) < 500*time.Millisecond {
			return
		}
		lastPersist = time.Now()
		if err := r.repo.UpdateJobProgress(ctx, job.ID, p.Percentage, string(p.Phase)); err != nil {
			log.Warn("failed to persist progress", "error", err)
		}
		if cancelled, err := r.repo.CancelRequested(ctx, job.ID); err == nil && cancelled {
			cancel()
		}
	}

	res := r.exp.Export(jobCtx, exporter.Config{Project: proj, OnProgress: onProgress})

	if len(res.Warnings) > 0 {
		if err := r.repo.SetJobWarnings(ctx, job.ID, res.Warnings); err != nil {
			log.Warn("failed to persist warnings", "error", err)
		}
	}

	switch {
	case res.Success:
		if err := r.writeOutput(outputPath, res.Blob); err != nil {
			r.finishJob(ctx, job, StatusFailed, err.Error())
			return
		}
		_ = r.repo.UpdateJobProgress(ctx, job.ID, 100, "")
		r.finishJob(ctx, job, StatusDone, "")
		log.Info("export job done", "output", outputPath, "bytes", len(res.Blob))
	case errors.Is(res.Err, exporter.ErrCancelled):
		r.finishJob(ctx, job, StatusCancelled, "")
		log.Info("export job cancelled")
	default:
		r.finishJob(ctx, job, StatusFailed, res.Err.Error())
	}
}

func (r *Runner) writeOutput(path string, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func (r *Runner) finishJob(ctx context.Context, job *Job, status, errMsg string) {
	if err := r.repo.UpdateJobStatus(ctx, job.ID, status, errMsg); err != nil {
		r.logger.Error("failed to update job status", "job_id", job.ID, "error", err)
	}
}
