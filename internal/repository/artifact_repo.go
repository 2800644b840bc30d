package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/easelhq/easel-api/internal/models"
)

// SQLiteArtifactRepository implements ArtifactRepository for SQLite.
type SQLiteArtifactRepository struct {
	db *sql.DB
}

// NewSQLiteArtifactRepository creates a new SQLite artifact repository.
func NewSQLiteArtifactRepository(db *sql.DB) *SQLiteArtifactRepository {
	return &SQLiteArtifactRepository{db: db}
}

const artifactColumns = `id, user_id, parent_id, title, version, prompt, model_version,
	storage_key, width, height, real_width, real_height, created_at, updated_at`

func (r *SQLiteArtifactRepository) Create(ctx context.Context, artifact *models.Artifact) error {
	query := `
		INSERT INTO artifacts (` + artifactColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		artifact.ID,
		artifact.UserID,
		nullStringPtr(artifact.ParentID),
		artifact.Title,
		artifact.Version,
		nullString(artifact.Prompt),
		nullString(artifact.ModelVersion),
		artifact.StorageKey,
		artifact.Width,
		artifact.Height,
		artifact.RealWidth,
		artifact.RealHeight,
		artifact.CreatedAt.Format(time.RFC3339),
		artifact.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	return nil
}

func (r *SQLiteArtifactRepository) GetByID(ctx context.Context, id string) (*models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanArtifact(row.Scan)
}

func (r *SQLiteArtifactRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func (r *SQLiteArtifactRepository) UpdateTitle(ctx context.Context, id, title string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE artifacts SET title = ?, updated_at = ? WHERE id = ?",
		title, time.Now().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to rename artifact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SQLiteArtifactRepository) MaxVersion(ctx context.Context, userID, title string) (int, error) {
	var version int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM artifacts WHERE user_id = ? AND title = ?",
		userID, title,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get max version: %w", err)
	}
	return version, nil
}

// scanArtifact scans one artifact row via the given Scan func so row and
// rows share a single implementation.
func scanArtifact(scan func(dest ...any) error) (*models.Artifact, error) {
	var a models.Artifact
	var parentID, prompt, modelVersion sql.NullString
	var createdAt, updatedAt string

	err := scan(
		&a.ID, &a.UserID, &parentID, &a.Title, &a.Version,
		&prompt, &modelVersion, &a.StorageKey,
		&a.Width, &a.Height, &a.RealWidth, &a.RealHeight,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artifact: %w", err)
	}

	if parentID.Valid {
		a.ParentID = &parentID.String
	}
	a.Prompt = prompt.String
	a.ModelVersion = modelVersion.String
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)

	return &a, nil
}
