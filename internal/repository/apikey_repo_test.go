package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/easelhq/easel-api/internal/models"
)

func newTestAPIKey(id, userID, hash string) *models.APIKey {
	return &models.APIKey{
		ID:        id,
		UserID:    userID,
		Name:      "Test Key",
		KeyHash:   hash,
		KeyPrefix: "ez_AbCdEfGh...",
		Tier:      "pro-2k",
		Unlimited: false,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestAPIKeyCreateAndLookup(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	key := newTestAPIKey("key-1", "user-1", "hash-1")
	if err := repos.APIKey.Create(ctx, key); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repos.APIKey.GetByKeyHash(ctx, "hash-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "key-1" || got.Tier != "pro-2k" {
		t.Errorf("hash lookup failed: %+v", got)
	}

	missing, err := repos.APIKey.GetByKeyHash(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for unknown hash")
	}
}

func TestAPIKeyRevoke(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	if err := repos.APIKey.Create(ctx, newTestAPIKey("key-1", "user-1", "hash-1")); err != nil {
		t.Fatal(err)
	}

	if err := repos.APIKey.Revoke(ctx, "key-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Revoked keys no longer authenticate
	got, err := repos.APIKey.GetByKeyHash(ctx, "hash-1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("revoked key must not resolve by hash")
	}

	// Double revoke reports not found
	if err := repos.APIKey.Revoke(ctx, "key-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestAPIKeyListExcludesRevoked(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	if err := repos.APIKey.Create(ctx, newTestAPIKey("key-1", "user-1", "h1")); err != nil {
		t.Fatal(err)
	}
	if err := repos.APIKey.Create(ctx, newTestAPIKey("key-2", "user-1", "h2")); err != nil {
		t.Fatal(err)
	}
	if err := repos.APIKey.Revoke(ctx, "key-2"); err != nil {
		t.Fatal(err)
	}

	keys, err := repos.APIKey.GetByUserID(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0].ID != "key-1" {
		t.Errorf("expected only active key, got %+v", keys)
	}
}

func TestAPIKeyUpdateLastUsed(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	if err := repos.APIKey.Create(ctx, newTestAPIKey("key-1", "user-1", "h1")); err != nil {
		t.Fatal(err)
	}
	if err := repos.APIKey.UpdateLastUsed(ctx, "key-1"); err != nil {
		t.Fatal(err)
	}

	got, err := repos.APIKey.GetByID(ctx, "key-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastUsedAt == nil {
		t.Error("last_used_at not set")
	}
}
