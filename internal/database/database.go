// Package database opens the libsql connection and applies schema migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/easelhq/easel-api/internal/database/migrations"
)

// New opens a libsql database from the DSN. A plain file DSN runs fully
// local; setting TURSO_URL and TURSO_AUTH_TOKEN turns the same file into an
// embedded replica synced with Turso cloud.
func New(dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	tursoURL := os.Getenv("TURSO_URL")
	tursoToken := os.Getenv("TURSO_AUTH_TOKEN")
	if tursoURL != "" && tursoToken != "" {
		db, err = openReplica(dsn, tursoURL, tursoToken)
	} else {
		db, err = sql.Open("libsql", dsn)
	}
	if err != nil {
		return nil, err
	}

	// Artifact and transaction rows reference jobs; keep the constraint live
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return db, nil
}

// openReplica strips the DSN down to a file path and wraps it in an embedded
// replica connector with read-your-writes enabled, so a job row written by
// the API is immediately visible to the worker.
func openReplica(dsn, url, token string) (*sql.DB, error) {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	connector, err := libsql.NewEmbeddedReplicaConnector(path, url,
		libsql.WithAuthToken(token),
		libsql.WithReadYourWrites(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded replica: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// Migrate applies pending schema migrations.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(db, logger)
}
