package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/easelhq/easel-api/internal/models"
)

// SQLiteAPIKeyRepository implements APIKeyRepository for SQLite.
type SQLiteAPIKeyRepository struct {
	db *sql.DB
}

// NewSQLiteAPIKeyRepository creates a new SQLite API key repository.
func NewSQLiteAPIKeyRepository(db *sql.DB) *SQLiteAPIKeyRepository {
	return &SQLiteAPIKeyRepository{db: db}
}

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, tier, unlimited, last_used_at, created_at, revoked_at`

func (r *SQLiteAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (` + apiKeyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		key.ID,
		key.UserID,
		key.Name,
		key.KeyHash,
		key.KeyPrefix,
		key.Tier,
		key.Unlimited,
		nullTime(key.LastUsedAt),
		key.CreatedAt.Format(time.RFC3339),
		nullTime(key.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func (r *SQLiteAPIKeyRepository) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanAPIKey(row.Scan)
}

func (r *SQLiteAPIKeyRepository) GetByKeyHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL`
	row := r.db.QueryRowContext(ctx, query, keyHash)
	return scanAPIKey(row.Scan)
}

func (r *SQLiteAPIKeyRepository) GetByUserID(ctx context.Context, userID string) ([]*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys
		WHERE user_id = ? AND revoked_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *SQLiteAPIKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used_at = ? WHERE id = ?",
		time.Now().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	return nil
}

func (r *SQLiteAPIKeyRepository) Revoke(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL",
		time.Now().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
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

func scanAPIKey(scan func(dest ...any) error) (*models.APIKey, error) {
	var key models.APIKey
	var lastUsedAt, revokedAt sql.NullString
	var createdAt string

	err := scan(
		&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.KeyPrefix,
		&key.Tier, &key.Unlimited, &lastUsedAt, &createdAt, &revokedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}

	key.LastUsedAt = parseTimePtr(lastUsedAt)
	key.RevokedAt = parseTimePtr(revokedAt)
	key.CreatedAt = parseTime(createdAt)

	return &key, nil
}
