package mw

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/easelhq/easel-api/internal/service"
)

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// HumaAuth returns a Huma middleware that authenticates operations whose
// security requirements name the bearer scheme. Public operations pass
// through untouched.
func HumaAuth(api huma.API, authSvc *service.AuthService) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		token := bearerToken(ctx.Header("Authorization"))
		if token == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
			return
		}

		claims, err := resolveToken(ctx.Context(), authSvc, token)
		if err != nil {
			slog.Debug("auth validation failed", "error", err)
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
			return
		}

		newCtx := context.WithValue(ctx.Context(), UserClaimsKey, claims)
		next(huma.WithContext(ctx, newCtx))
	}
}

// operationRequiresAuth checks if the operation has bearerAuth in its
// security requirements.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[SecurityScheme]; ok {
			return true
		}
	}
	return false
}
