package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/easelhq/easel-api/internal/constants"
	"github.com/easelhq/easel-api/internal/repository"
)

// ErrInvalidToken indicates a token or API key that does not authenticate.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the identity attached to an authenticated request.
type TokenClaims struct {
	UserID    string
	Tier      string
	Unlimited bool
	IsAPIKey  bool
}

// AuthService validates session tokens and API keys.
type AuthService struct {
	repos      *repository.Repositories
	signingKey []byte
	expiry     time.Duration
	logger     *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(repos *repository.Repositories, signingKey []byte, expiry time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		repos:      repos,
		signingKey: signingKey,
		expiry:     expiry,
		logger:     logger,
	}
}

// ValidateAPIKey resolves an "ez_"-prefixed key to its owner's claims.
func (s *AuthService) ValidateAPIKey(ctx context.Context, key string) (*TokenClaims, error) {
	apiKey, err := s.repos.APIKey.GetByKeyHash(ctx, HashKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	if apiKey == nil {
		return nil, ErrInvalidToken
	}

	// Best effort; authentication already succeeded
	if err := s.repos.APIKey.UpdateLastUsed(ctx, apiKey.ID); err != nil {
		s.logger.Warn("failed to update api key last used", "key_id", apiKey.ID, "error", err)
	}

	return &TokenClaims{
		UserID:    apiKey.UserID,
		Tier:      apiKey.Tier,
		Unlimited: apiKey.Unlimited,
		IsAPIKey:  true,
	}, nil
}

type sessionClaims struct {
	Tier      string `json:"tier,omitempty"`
	Unlimited bool   `json:"unl,omitempty"`
	jwt.RegisteredClaims
}

// IssueSessionToken mints a signed session token for a user.
func (s *AuthService) IssueSessionToken(userID, tier string, unlimited bool) (string, error) {
	if !constants.IsValidTier(tier) {
		tier = constants.TierFast
	}

	now := time.Now()
	claims := sessionClaims{
		Tier:      tier,
		Unlimited: unlimited,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken validates a session token and returns its claims.
func (s *AuthService) ParseSessionToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:    claims.Subject,
		Tier:      claims.Tier,
		Unlimited: claims.Unlimited,
	}, nil
}
