package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/easelhq/easel-api/internal/models"
)

// SQLiteJobRepository implements JobRepository for SQLite.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a new SQLite job repository.
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

const jobColumns = `id, user_id, status, tier, cost_usd, prompt, title, source_artifact_id,
	request_json, model_version, error_message, has_mask, reference_count,
	concurrent_at_submit, duration_ms, started_at, completed_at, created_at, updated_at`

func (r *SQLiteJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	query := `
		INSERT INTO generation_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.Status,
		job.Tier,
		job.CostUSD,
		job.Prompt,
		job.Title,
		nullStringPtr(job.SourceArtifactID),
		nullString(job.RequestJSON),
		nullString(job.ModelVersion),
		nullString(job.ErrorMessage),
		job.HasMask,
		job.ReferenceCount,
		job.ConcurrentAtSubmit,
		job.DurationMs,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.CreatedAt.Format(time.RFC3339),
		job.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = ?`
	return r.scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteJobRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.GenerationJob
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SQLiteJobRepository) Update(ctx context.Context, job *models.GenerationJob) error {
	query := `
		UPDATE generation_jobs SET status = ?, cost_usd = ?, model_version = ?,
			error_message = ?, duration_ms = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.CostUSD,
		nullString(job.ModelVersion),
		nullString(job.ErrorMessage),
		job.DurationMs,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		time.Now().Format(time.RFC3339),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) ClaimUnstarted(ctx context.Context) (*models.GenerationJob, error) {
	// Begin transaction (SQLite/libsql doesn't support custom isolation levels)
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Ensure transaction is always cleaned up
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// UPDATE ... RETURNING atomically claims and fetches in one statement,
	// reducing lock contention compared to SELECT then UPDATE
	now := time.Now().Format(time.RFC3339)
	query := `
		UPDATE generation_jobs
		SET started_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM generation_jobs
			WHERE status = 'processing' AND started_at IS NULL
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING ` + jobColumns

	job, err := r.scanJob(tx.QueryRowContext(ctx, query, now, now))
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	committed = true

	return job, nil
}

func (r *SQLiteJobRepository) CountProcessing(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM generation_jobs WHERE status = 'processing'",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count processing jobs: %w", err)
	}
	return count, nil
}

func (r *SQLiteJobRepository) FindStaleProcessing(ctx context.Context, olderThan time.Duration) ([]*models.GenerationJob, error) {
	cutoff := time.Now().Add(-olderThan).Format(time.RFC3339)
	query := `SELECT ` + jobColumns + ` FROM generation_jobs
		WHERE status = 'processing' AND COALESCE(started_at, created_at) < ?
		ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.GenerationJob
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *SQLiteJobRepository) scanJob(row *sql.Row) (*models.GenerationJob, error) {
	var job models.GenerationJob
	var sourceArtifactID, requestJSON, modelVersion, errorMessage sql.NullString
	var startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&job.ID, &job.UserID, &job.Status, &job.Tier, &job.CostUSD,
		&job.Prompt, &job.Title, &sourceArtifactID, &requestJSON,
		&modelVersion, &errorMessage, &job.HasMask, &job.ReferenceCount,
		&job.ConcurrentAtSubmit, &job.DurationMs,
		&startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if sourceArtifactID.Valid {
		job.SourceArtifactID = &sourceArtifactID.String
	}
	job.RequestJSON = requestJSON.String
	job.ModelVersion = modelVersion.String
	job.ErrorMessage = errorMessage.String
	job.StartedAt = parseTimePtr(startedAt)
	job.CompletedAt = parseTimePtr(completedAt)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)

	return &job, nil
}

func (r *SQLiteJobRepository) scanJobFromRows(rows *sql.Rows) (*models.GenerationJob, error) {
	var job models.GenerationJob
	var sourceArtifactID, requestJSON, modelVersion, errorMessage sql.NullString
	var startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(
		&job.ID, &job.UserID, &job.Status, &job.Tier, &job.CostUSD,
		&job.Prompt, &job.Title, &sourceArtifactID, &requestJSON,
		&modelVersion, &errorMessage, &job.HasMask, &job.ReferenceCount,
		&job.ConcurrentAtSubmit, &job.DurationMs,
		&startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if sourceArtifactID.Valid {
		job.SourceArtifactID = &sourceArtifactID.String
	}
	job.RequestJSON = requestJSON.String
	job.ModelVersion = modelVersion.String
	job.ErrorMessage = errorMessage.String
	job.StartedAt = parseTimePtr(startedAt)
	job.CompletedAt = parseTimePtr(completedAt)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)

	return &job, nil
}
