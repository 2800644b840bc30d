package handlers

import (
	"context"
	"testing"

	"github.com/easelhq/easel-api/internal/http/mw"
)

func TestHealthCheck(t *testing.T) {
	output, err := HealthCheck(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "healthy" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "healthy")
	}
	if output.Body.Version == "" {
		t.Error("Version should be set")
	}
}

func TestLivez(t *testing.T) {
	output, err := Livez(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ok" {
		t.Errorf("Status = %q, want %q", output.Body.Status, "ok")
	}
}

func TestGetUserID(t *testing.T) {
	if got := getUserID(context.Background()); got != "" {
		t.Errorf("no claims should yield empty id, got %q", got)
	}

	ctx := context.WithValue(context.Background(), mw.UserClaimsKey, &mw.UserClaims{UserID: "user-1"})
	if got := getUserID(ctx); got != "user-1" {
		t.Errorf("getUserID = %q", got)
	}
}

func TestListTiers(t *testing.T) {
	output, err := ListTiers(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Body.Tiers) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(output.Body.Tiers))
	}
	if output.Body.Tiers[0].Name != "fast" {
		t.Errorf("tiers must be sorted, first = %q", output.Body.Tiers[0].Name)
	}
	for _, tier := range output.Body.Tiers {
		if tier.CostUSD <= 0 {
			t.Errorf("tier %s has no price", tier.Name)
		}
	}
}
