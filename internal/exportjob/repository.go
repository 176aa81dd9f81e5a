package exportjob

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Repository is the persistence surface the runner and API share.
type Repository interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	NextQueuedJob(ctx context.Context) (*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress float64, phase string) error
	SetJobOutputPath(ctx context.Context, id, outputPath string) error
	SetJobWarnings(ctx context.Context, id string, warnings []string) error
	RequestCancel(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) (bool, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// SQLiteRepository implements Repository over the agent database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const jobColumns = `id, project_path, output_path, format, status, progress, phase, error, warnings, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, project_path, output_path, format, status, progress, phase, error, warnings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectPath, nullString(j.OutputPath), j.Format, j.Status, j.Progress,
		nullString(j.Phase), nullString(j.Error), nullString(joinWarnings(j.Warnings)),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) NextQueuedJob(ctx context.Context) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'queued' ORDER BY created_at ASC LIMIT 1
	`)
	return scanJob(row)
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress float64, phase string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, phase = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, nullString(phase), id)
	return err
}

func (r *SQLiteRepository) SetJobOutputPath(ctx context.Context, id, outputPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET output_path = ?, updated_at = datetime('now') WHERE id = ?
	`, nullString(outputPath), id)
	return err
}

func (r *SQLiteRepository) SetJobWarnings(ctx context.Context, id string, warnings []string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET warnings = ?, updated_at = datetime('now') WHERE id = ?
	`, nullString(joinWarnings(warnings)), id)
	return err
}

func (r *SQLiteRepository) RequestCancel(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET cancel_requested = 1, updated_at = datetime('now') WHERE id = ?
	`, id)
	return err
}

func (r *SQLiteRepository) CancelRequested(ctx context.Context, id string) (bool, error) {
	var v int
	err := r.db.QueryRowContext(ctx, `SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return v == 1, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var outputPath, phase, errMsg, warnings sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.ProjectPath, &outputPath, &j.Format, &j.Status, &j.Progress,
		&phase, &errMsg, &warnings, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fillJob(&j, outputPath, phase, errMsg, warnings, createdAt, updatedAt)
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var j Job
		var outputPath, phase, errMsg, warnings sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&j.ID, &j.ProjectPath, &outputPath, &j.Format, &j.Status, &j.Progress,
			&phase, &errMsg, &warnings, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		fillJob(&j, outputPath, phase, errMsg, warnings, createdAt, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func fillJob(j *Job, outputPath, phase, errMsg, warnings sql.NullString, createdAt, updatedAt string) {
	j.OutputPath = outputPath.String
	j.Phase = phase.String
	j.Error = errMsg.String
	j.Warnings = splitWarnings(warnings.String)
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
}

func joinWarnings(ws []string) string {
	return strings.Join(ws, ",")
}

func splitWarnings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
