// Package repository provides data access interfaces and SQLite implementations.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/easelhq/easel-api/internal/models"
)

// JobRepository handles generation job persistence.
type JobRepository interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.GenerationJob, error)
	Update(ctx context.Context, job *models.GenerationJob) error

	// ClaimUnstarted atomically claims the oldest processing job that no
	// worker has picked up yet, stamping started_at. Returns nil when
	// nothing is claimable.
	ClaimUnstarted(ctx context.Context) (*models.GenerationJob, error)

	// CountProcessing returns how many jobs are currently processing.
	CountProcessing(ctx context.Context) (int, error)

	// FindStaleProcessing returns processing jobs older than the cutoff,
	// using started_at when set and created_at otherwise.
	FindStaleProcessing(ctx context.Context, olderThan time.Duration) ([]*models.GenerationJob, error)
}

// ArtifactRepository handles artifact persistence.
type ArtifactRepository interface {
	Create(ctx context.Context, artifact *models.Artifact) error
	GetByID(ctx context.Context, id string) (*models.Artifact, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Artifact, error)
	UpdateTitle(ctx context.Context, id, title string) error

	// MaxVersion returns the highest version among the user's artifacts
	// sharing the title, 0 when none exist.
	MaxVersion(ctx context.Context, userID, title string) (int, error)
}

// BalanceRepository handles user credit balances.
type BalanceRepository interface {
	Get(ctx context.Context, userID string) (*models.UserBalance, error)
	Upsert(ctx context.Context, balance *models.UserBalance) error
}

// CreditTransactionRepository handles the append-only credit ledger.
type CreditTransactionRepository interface {
	Create(ctx context.Context, tx *models.CreditTransaction) error
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error)
	GetByExternalPaymentID(ctx context.Context, paymentID string) (*models.CreditTransaction, error)
}

// APIKeyRepository handles API key persistence.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByID(ctx context.Context, id string) (*models.APIKey, error)
	GetByKeyHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	GetByUserID(ctx context.Context, userID string) ([]*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
}

// Repositories bundles all repository implementations.
type Repositories struct {
	Job               JobRepository
	Artifact          ArtifactRepository
	Balance           BalanceRepository
	CreditTransaction CreditTransactionRepository
	APIKey            APIKeyRepository
}

// NewRepositories creates SQLite-backed repositories.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Job:               NewSQLiteJobRepository(db),
		Artifact:          NewSQLiteArtifactRepository(db),
		Balance:           NewSQLiteBalanceRepository(db),
		CreditTransaction: NewSQLiteCreditTransactionRepository(db),
		APIKey:            NewSQLiteAPIKeyRepository(db),
	}
}

// nullString converts empty strings to NULL for optional columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullStringPtr converts nil pointers to NULL.
func nullStringPtr(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// nullTime converts nil times to NULL, otherwise RFC3339.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// parseTime parses an RFC3339 or SQLite datetime string, zero time on failure.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

// parseTimePtr is parseTime for nullable columns.
func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}
