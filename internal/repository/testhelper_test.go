package repository

import (
	"database/sql"
	"testing"

	"github.com/easelhq/easel-api/internal/database/migrations"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// InsertTestJob inserts a generation job directly. startedAt may be "" for
// an unclaimed job.
func InsertTestJob(t *testing.T, db *sql.DB, id, userID, status, startedAt string) {
	t.Helper()
	query := `
		INSERT INTO generation_jobs (id, user_id, status, tier, prompt, title, started_at, created_at, updated_at)
		VALUES (?, ?, ?, 'fast', 'test prompt', 'Untitled', ?, datetime('now'), datetime('now'))
	`
	var started any
	if startedAt != "" {
		started = startedAt
	}
	if _, err := db.Exec(query, id, userID, status, started); err != nil {
		t.Fatalf("failed to insert test job: %v", err)
	}
}

// InsertTestArtifact inserts an artifact directly.
func InsertTestArtifact(t *testing.T, db *sql.DB, id, userID, title string, version int) {
	t.Helper()
	query := `
		INSERT INTO artifacts (id, user_id, title, version, storage_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'users/test/key.png', datetime('now'), datetime('now'))
	`
	if _, err := db.Exec(query, id, userID, title, version); err != nil {
		t.Fatalf("failed to insert test artifact: %v", err)
	}
}

// InsertTestBalance inserts a user balance directly.
func InsertTestBalance(t *testing.T, db *sql.DB, userID string, balanceUSD float64) {
	t.Helper()
	query := `
		INSERT INTO user_balances (user_id, balance_usd, lifetime_added, lifetime_spent, updated_at)
		VALUES (?, ?, 0, 0, datetime('now'))
	`
	if _, err := db.Exec(query, userID, balanceUSD); err != nil {
		t.Fatalf("failed to insert test balance: %v", err)
	}
}
