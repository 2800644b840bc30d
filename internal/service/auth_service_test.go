package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/easelhq/easel-api/internal/constants"
	"github.com/easelhq/easel-api/internal/repository"
)

func newTestAuthService(repos *repository.Repositories) *AuthService {
	return NewAuthService(repos, []byte("test-signing-key"), time.Hour, slog.Default())
}

func TestSessionTokenRoundTrip(t *testing.T) {
	svc := newTestAuthService(newMockRepos())

	token, err := svc.IssueSessionToken("user-1", constants.TierPro2K, true)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := svc.ParseSessionToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-1" || claims.Tier != constants.TierPro2K || !claims.Unlimited {
		t.Errorf("claims = %+v", claims)
	}
	if claims.IsAPIKey {
		t.Error("session tokens are not api keys")
	}
}

func TestSessionTokenUnknownTierFallsBack(t *testing.T) {
	svc := newTestAuthService(newMockRepos())

	token, _ := svc.IssueSessionToken("user-1", "bogus", false)
	claims, err := svc.ParseSessionToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Tier != constants.TierFast {
		t.Errorf("tier = %q, want fast", claims.Tier)
	}
}

func TestSessionTokenWrongKeyRejected(t *testing.T) {
	issuer := newTestAuthService(newMockRepos())
	verifier := NewAuthService(newMockRepos(), []byte("different-key"), time.Hour, slog.Default())

	token, _ := issuer.IssueSessionToken("user-1", constants.TierFast, false)
	if _, err := verifier.ParseSessionToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionTokenExpired(t *testing.T) {
	repos := newMockRepos()
	svc := NewAuthService(repos, []byte("test-signing-key"), -time.Minute, slog.Default())

	token, _ := svc.IssueSessionToken("user-1", constants.TierFast, false)
	if _, err := svc.ParseSessionToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token must fail, got %v", err)
	}
}

func TestSessionTokenGarbage(t *testing.T) {
	svc := newTestAuthService(newMockRepos())
	if _, err := svc.ParseSessionToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	repos := newMockRepos()
	keys := NewAPIKeyService(repos, slog.Default())
	auth := newTestAuthService(repos)
	ctx := context.Background()

	created, err := keys.CreateKey(ctx, "user-1", CreateKeyInput{Name: "ci", Tier: constants.TierPro1K, Unlimited: true})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := auth.ValidateAPIKey(ctx, created.Key)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-1" || claims.Tier != constants.TierPro1K || !claims.Unlimited || !claims.IsAPIKey {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := auth.ValidateAPIKey(ctx, "ez_nonsense"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("unknown key must fail, got %v", err)
	}
}

func TestValidateAPIKeyRevoked(t *testing.T) {
	repos := newMockRepos()
	keys := NewAPIKeyService(repos, slog.Default())
	auth := newTestAuthService(repos)
	ctx := context.Background()

	created, _ := keys.CreateKey(ctx, "user-1", CreateKeyInput{Name: "short-lived"})
	if err := keys.RevokeKey(ctx, "user-1", created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ValidateAPIKey(ctx, created.Key); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked key must fail, got %v", err)
	}
}

func TestRevokeKeyOwnership(t *testing.T) {
	repos := newMockRepos()
	keys := NewAPIKeyService(repos, slog.Default())
	ctx := context.Background()

	created, _ := keys.CreateKey(ctx, "user-1", CreateKeyInput{Name: "mine"})
	if err := keys.RevokeKey(ctx, "user-2", created.ID); err == nil {
		t.Error("foreign revoke must fail")
	}
}
