package exportjob

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/framecast/framecast-agent/internal/db"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

func TestJobRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	job := NewJob("/projects/demo.json", "/out/demo.mp4", "mp4")
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got == nil {
		t.Fatal("job not found")
	}
	if got.ProjectPath != job.ProjectPath || got.Status != StatusQueued {
		t.Fatalf("got %+v", got)
	}

	missing, err := repo.GetJob(ctx, "nope")
	if err != nil {
		t.Fatalf("GetJob missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown id")
	}
}

func TestNextQueuedJobOrder(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	first := NewJob("/projects/a.json", "", "mp4")
	second := NewJob("/projects/b.json", "", "gif")
	second.CreatedAt = second.CreatedAt.Add(1e9)
	second.UpdatedAt = second.CreatedAt
	if err := repo.CreateJob(ctx, first); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := repo.CreateJob(ctx, second); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	next, err := repo.NextQueuedJob(ctx)
	if err != nil {
		t.Fatalf("NextQueuedJob: %v", err)
	}
	if next.ID != first.ID {
		t.Fatalf("next = %s, want oldest job %s", next.ID, first.ID)
	}

	if err := repo.UpdateJobStatus(ctx, first.ID, StatusRunning, ""); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	next, err = repo.NextQueuedJob(ctx)
	if err != nil {
		t.Fatalf("NextQueuedJob: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("next = %+v, want %s", next, second.ID)
	}
}

func TestProgressAndWarnings(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	job := NewJob("/projects/demo.json", "", "mp4")
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := repo.UpdateJobProgress(ctx, job.ID, 42.5, "rendering"); err != nil {
		t.Fatalf("UpdateJobProgress: %v", err)
	}
	if err := repo.SetJobWarnings(ctx, job.ID, []string{"audio-track-unavailable"}); err != nil {
		t.Fatalf("SetJobWarnings: %v", err)
	}

	got, err := repo.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Progress != 42.5 || got.Phase != "rendering" {
		t.Fatalf("progress %+v", got)
	}
	if len(got.Warnings) != 1 || got.Warnings[0] != "audio-track-unavailable" {
		t.Fatalf("warnings %v", got.Warnings)
	}
}

func TestCancelFlag(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	job := NewJob("/projects/demo.json", "", "mp4")
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	cancelled, err := repo.CancelRequested(ctx, job.ID)
	if err != nil || cancelled {
		t.Fatalf("fresh job cancel = %v, %v", cancelled, err)
	}
	if err := repo.RequestCancel(ctx, job.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	cancelled, err = repo.CancelRequested(ctx, job.ID)
	if err != nil || !cancelled {
		t.Fatalf("after request cancel = %v, %v", cancelled, err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if v, err := repo.GetConfig(ctx, "auth_token"); err != nil || v != "" {
		t.Fatalf("empty config = %q, %v", v, err)
	}
	if err := repo.SetConfig(ctx, "auth_token", "abc123"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if err := repo.SetConfig(ctx, "auth_token", "def456"); err != nil {
		t.Fatalf("SetConfig overwrite: %v", err)
	}
	if v, _ := repo.GetConfig(ctx, "auth_token"); v != "def456" {
		t.Fatalf("config = %q, want def456", v)
	}
}
