package exportjob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/framecast/framecast-agent/internal/exporter"
)

// fakeExporter returns a canned result, optionally emitting progress first so
// the runner's cancel polling runs.
type fakeExporter struct {
	result   exporter.Result
	progress []exporter.Progress
	calls    int
}

func (f *fakeExporter) Export(ctx context.Context, cfg exporter.Config) exporter.Result {
	f.calls++
	for _, p := range f.progress {
		if cfg.OnProgress != nil {
			cfg.OnProgress(p)
		}
	}
	if ctx.Err() != nil {
		return exporter.Result{Err: exporter.ErrCancelled}
	}
	return f.result
}

func writeTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.json")
	body := `{"source_path": "capture.mp4", "output": {"width": 64, "height": 36, "frame_rate": 10}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write project: %v", err)
	}
	return path
}

func TestRunnerCompletesJob(t *testing.T) {
	repo := testRepo(t)
	outDir := t.TempDir()
	fake := &fakeExporter{result: exporter.Result{Success: true, Blob: []byte("mp4-bytes")}}
	r := NewRunner(repo, fake, outDir, nil)
	ctx := context.Background()

	job := NewJob(writeTestProject(t), "", "mp4")
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	r.processNextJob(ctx)

	got, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != StatusDone {
		t.Fatalf("status = %s (%s), want done", got.Status, got.Error)
	}
	out := filepath.Join(outDir, job.ID+".mp4")
	if got.OutputPath != out {
		t.Fatalf("output path %q, want %q", got.OutputPath, out)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "mp4-bytes" {
		t.Fatalf("output content %q", data)
	}
	if fake.calls != 1 {
		t.Fatalf("exporter called %d times", fake.calls)
	}
}

func TestRunnerFailsJobOnBadProject(t *testing.T) {
	repo := testRepo(t)
	r := NewRunner(repo, &fakeExporter{}, t.TempDir(), nil)
	ctx := context.Background()

	job := NewJob("/nonexistent/project.json", "", "mp4")
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	r.processNextJob(ctx)

	got, _ := repo.GetJob(ctx, job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestRunnerRecordsWarningsAndExportFailure(t *testing.T) {
	repo := testRepo(t)
	fake := &fakeExporter{result: exporter.Result{
		Err:      os.ErrInvalid,
		Warnings: []string{exporter.WarningAudioUnavailable},
	}}
	r := NewRunner(repo, fake, t.TempDir(), nil)
	ctx := context.Background()

	job := NewJob(writeTestProject(t), "", "mp4")
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	r.processNextJob(ctx)

	got, _ := repo.GetJob(ctx, job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if len(got.Warnings) != 1 {
		t.Fatalf("warnings = %v", got.Warnings)
	}
}

func TestRunnerHonorsQueuedCancelFlag(t *testing.T) {
	repo := testRepo(t)
	// Progress emissions trigger the cancel-flag poll inside the runner.
	fake := &fakeExporter{progress: []exporter.Progress{{CurrentFrame: 1, Percentage: 10}}}
	r := NewRunner(repo, fake, t.TempDir(), nil)
	ctx := context.Background()

	job := NewJob(writeTestProject(t), "", "mp4")
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := repo.RequestCancel(ctx, job.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}

	r.processNextJob(ctx)

	got, _ := repo.GetJob(ctx, job.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
}

func TestRunnerCancelUnknownActiveJob(t *testing.T) {
	repo := testRepo(t)
	r := NewRunner(repo, &fakeExporter{}, t.TempDir(), nil)
	ctx := context.Background()

	job := NewJob(writeTestProject(t), "", "mp4")
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	// Cancelling a job that is not running only sets the flag.
	if err := r.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	cancelled, _ := repo.CancelRequested(ctx, job.ID)
	if !cancelled {
		t.Fatal("cancel flag not set")
	}
}
