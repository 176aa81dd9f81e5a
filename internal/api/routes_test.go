package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/framecast/framecast-agent/internal/db"
	"github.com/framecast/framecast-agent/internal/download"
	"github.com/framecast/framecast-agent/internal/exportjob"
)

const testToken = "test-token-1234567890"

func testConfig(t *testing.T) ServerConfig {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := exportjob.NewRepository(database.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	return ServerConfig{
		Port:       0,
		Repository: repo,
		Runner:     exportjob.NewRunner(repo, nil, t.TempDir(), logger),
		Downloads:  download.NewServer(logger),
		Logger:     logger,
		StartTime:  time.Now().Add(-10 * time.Second),
	}
}

func doRequest(t *testing.T, cfg ServerConfig, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	return body
}

func TestHealthWithoutAuth(t *testing.T) {
	cfg := testConfig(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestCreateAndGetExport(t *testing.T) {
	cfg := testConfig(t)

	rr := doRequest(t, cfg, http.MethodPost, "/exports", CreateExportRequest{
		ProjectPath: "/projects/demo.json",
		Format:      "gif",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}
	jobID, _ := decodeJSONBody(t, rr)["job_id"].(string)
	if jobID == "" {
		t.Fatal("job_id missing from response")
	}

	rr = doRequest(t, cfg, http.MethodGet, "/exports/"+jobID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status code = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "queued" || body["format"] != "gif" {
		t.Fatalf("job = %v", body)
	}

	rr = doRequest(t, cfg, http.MethodGet, "/exports", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status code = %d", rr.Code)
	}
	jobs, _ := decodeJSONBody(t, rr)["jobs"].([]interface{})
	if len(jobs) != 1 {
		t.Fatalf("jobs = %v", jobs)
	}
}

func TestCreateExportValidation(t *testing.T) {
	cfg := testConfig(t)

	rr := doRequest(t, cfg, http.MethodPost, "/exports", CreateExportRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing project_path: status = %d, want 400", rr.Code)
	}

	rr = doRequest(t, cfg, http.MethodPost, "/exports", CreateExportRequest{
		ProjectPath: "/projects/demo.json",
		Format:      "webm",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad format: status = %d, want 400", rr.Code)
	}
}

func TestGetExportNotFound(t *testing.T) {
	cfg := testConfig(t)

	rr := doRequest(t, cfg, http.MethodGet, "/exports/unknown", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status code = %d, want 404", rr.Code)
	}
}

func TestCancelExport(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	job := exportjob.NewJob("/projects/demo.json", "", "mp4")
	if err := cfg.Repository.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	rr := doRequest(t, cfg, http.MethodPost, "/exports/"+job.ID+"/cancel", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status code = %d, want 204: %s", rr.Code, rr.Body.String())
	}
	cancelled, err := cfg.Repository.CancelRequested(ctx, job.ID)
	if err != nil || !cancelled {
		t.Fatalf("cancel flag = %v, %v", cancelled, err)
	}

	if err := cfg.Repository.UpdateJobStatus(ctx, job.ID, exportjob.StatusDone, ""); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	rr = doRequest(t, cfg, http.MethodPost, "/exports/"+job.ID+"/cancel", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("finished job cancel status = %d, want 409", rr.Code)
	}

	rr = doRequest(t, cfg, http.MethodPost, "/exports/unknown/cancel", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown job cancel status = %d, want 404", rr.Code)
	}
}

func TestDownloadExport(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	outPath := filepath.Join(t.TempDir(), "demo.mp4")
	if err := os.WriteFile(outPath, []byte("mp4-bytes"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}

	job := exportjob.NewJob("/projects/demo.json", outPath, "mp4")
	if err := cfg.Repository.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	rr := doRequest(t, cfg, http.MethodGet, "/exports/"+job.ID+"/download", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("unfinished download status = %d, want 409", rr.Code)
	}

	if err := cfg.Repository.UpdateJobStatus(ctx, job.ID, exportjob.StatusDone, ""); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	rr = doRequest(t, cfg, http.MethodGet, "/exports/"+job.ID+"/download", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("download status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "mp4-bytes" {
		t.Fatalf("download body = %q", rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/exports/"+job.ID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Range", "bytes=0-2")
	partial := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(partial, req)
	if partial.Code != http.StatusPartialContent {
		t.Fatalf("range download status = %d, want 206", partial.Code)
	}
	if partial.Body.String() != "mp4" {
		t.Fatalf("range body = %q", partial.Body.String())
	}
}

func TestStatusReportsRunningJob(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	job := exportjob.NewJob("/projects/demo.json", "", "mp4")
	if err := cfg.Repository.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := cfg.Repository.UpdateJobStatus(ctx, job.ID, exportjob.StatusRunning, ""); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	rr := doRequest(t, cfg, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["state"] != "exporting" {
		t.Errorf("state = %v, want exporting", body["state"])
	}
	if body["jobs_running"].(float64) != 1 {
		t.Errorf("jobs_running = %v, want 1", body["jobs_running"])
	}
	active, ok := body["active_job"].(map[string]interface{})
	if !ok || active["id"] != job.ID {
		t.Errorf("active_job = %v", body["active_job"])
	}
}
