// Package mw contains HTTP middleware for the easel-api.
package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/easelhq/easel-api/internal/service"
)

// ContextKey is a type for context keys.
type ContextKey string

// UserClaimsKey is the context key for user claims.
const UserClaimsKey ContextKey = "user_claims"

// UserClaims is the identity attached to an authenticated request,
// resolved from either a session token or an API key.
type UserClaims struct {
	UserID    string
	Tier      string // tier the client is entitled to submit at
	Unlimited bool   // generations are not billed
	IsAPIKey  bool
}

// Auth returns a plain-HTTP authentication middleware. Used for raw
// (non-Huma) endpoints such as the Stripe webhook sibling routes.
func Auth(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			claims, err := resolveToken(r.Context(), authSvc, token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credential from an Authorization header value.
// A bare token without the Bearer prefix is accepted.
func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}

// resolveToken authenticates a credential. API keys carry the ez_ prefix;
// everything else is treated as a session token.
func resolveToken(ctx context.Context, authSvc *service.AuthService, token string) (*UserClaims, error) {
	var tc *service.TokenClaims
	var err error

	if strings.HasPrefix(token, "ez_") {
		tc, err = authSvc.ValidateAPIKey(ctx, token)
	} else {
		tc, err = authSvc.ParseSessionToken(token)
	}
	if err != nil {
		return nil, err
	}

	return &UserClaims{
		UserID:    tc.UserID,
		Tier:      tc.Tier,
		Unlimited: tc.Unlimited,
		IsAPIKey:  tc.IsAPIKey,
	}, nil
}

// GetUserClaims retrieves user claims from context.
func GetUserClaims(ctx context.Context) *UserClaims {
	claims, ok := ctx.Value(UserClaimsKey).(*UserClaims)
	if !ok {
		return nil
	}
	return claims
}
