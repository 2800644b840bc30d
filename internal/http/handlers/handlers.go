// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"
	"log/slog"

	"github.com/easelhq/easel-api/internal/http/mw"
	"github.com/easelhq/easel-api/internal/service"
	"github.com/easelhq/easel-api/internal/version"
)

// Handlers bundles every handler group for route registration.
type Handlers struct {
	Generation *GenerationHandler
	Artifact   *ArtifactHandler
	Balance    *BalanceHandler
	APIKey     *APIKeyHandler
	Stripe     *StripeWebhookHandler
}

// New creates all handler groups.
func New(svcs *service.Services, stripeSecret string, logger *slog.Logger) *Handlers {
	return &Handlers{
		Generation: NewGenerationHandler(svcs.Generation, logger),
		Artifact:   NewArtifactHandler(svcs.Generation, logger),
		Balance:    NewBalanceHandler(svcs.Balance, logger),
		APIKey:     NewAPIKeyHandler(svcs.APIKey, logger),
		Stripe:     NewStripeWebhookHandler(stripeSecret, svcs.Balance, logger),
	}
}

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API.
func HealthCheck(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Version
	return out, nil
}

// ProbeOutput is the response for Kubernetes probes.
type ProbeOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez answers liveness probes.
func Livez(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// Readyz answers readiness probes.
func Readyz(ctx context.Context, input *struct{}) (*ProbeOutput, error) {
	out := &ProbeOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// getUserID extracts user ID from context.
func getUserID(ctx context.Context) string {
	claims := mw.GetUserClaims(ctx)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// getUserClaims extracts user claims from context.
func getUserClaims(ctx context.Context) *mw.UserClaims {
	return mw.GetUserClaims(ctx)
}
