package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/tursodatabase/go-libsql"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	if err := Run(db, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, table := range []string{
		"generation_jobs", "artifacts", "user_balances", "credit_transactions", "api_keys",
	} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Run(db, nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	var before int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&before); err != nil {
		t.Fatal(err)
	}
	if before == 0 {
		t.Fatal("migrations must be recorded")
	}

	if err := Run(db, nil); err != nil {
		t.Fatalf("second run must be a no-op: %v", err)
	}

	var after int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&after); err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Errorf("recorded migrations went from %d to %d", before, after)
	}
}

func TestSkippable(t *testing.T) {
	if !skippable(errString("duplicate column name: tier"), "ALTER TABLE x ADD COLUMN tier") {
		t.Error("duplicate column must be skippable")
	}
	if !skippable(errString("index idx_x already exists"), "CREATE INDEX idx_x ON x(y)") {
		t.Error("existing index must be skippable")
	}
	if skippable(errString("already exists"), "CREATE TABLE x (y)") {
		t.Error("only index statements skip on already exists")
	}
	if skippable(errString("syntax error"), "CREATE INDEX idx_x ON x(y)") {
		t.Error("arbitrary errors must not be skippable")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
