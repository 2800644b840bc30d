// Package migrations applies the schema statements baked into the binary.
// Each migration carries a YYYYMMDD-HHmmss version string, runs exactly once
// inside a transaction, and is recorded in schema_migrations.
package migrations

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     string // YYYYMMDD-HHmmss, orders and deduplicates runs
	Description string
	Statements  []string
}

var all []Migration

// Register is called from init() in each migration file.
func Register(m Migration) {
	all = append(all, m)
}

// Run applies every migration not yet recorded, oldest first.
func Run(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	done, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Version < all[j].Version })

	for _, m := range all {
		if done[m.Version] {
			continue
		}
		logger.Info("applying migration", "version", m.Version, "description", m.Description)
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		done[version] = true
	}
	return done, rows.Err()
}

func apply(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.Exec(stmt); err != nil {
			if skippable(err, stmt) {
				continue
			}
			return fmt.Errorf("statement failed: %w\n%s", err, stmt)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// skippable reports errors a re-run of an idempotent statement produces,
// such as re-adding a column on a database restored from backup.
func skippable(err error, stmt string) bool {
	msg := err.Error()
	if strings.Contains(msg, "duplicate column") {
		return true
	}
	if strings.Contains(msg, "already exists") && strings.Contains(stmt, "CREATE INDEX") {
		return true
	}
	return false
}
