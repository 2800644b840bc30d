package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/easelhq/easel-api/internal/models"
	"github.com/easelhq/easel-api/internal/service"
)

// APIKeyHandler manages programmatic access keys.
type APIKeyHandler struct {
	svc    *service.APIKeyService
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new API key handler.
func NewAPIKeyHandler(svc *service.APIKeyService, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{svc: svc, logger: logger}
}

// CreateKeyInput names a new API key.
type CreateKeyInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"100"`
	}
}

// CreateKeyOutput returns the full key exactly once.
type CreateKeyOutput struct {
	Body service.CreateKeyOutput
}

// CreateKey creates a new API key. The key inherits the caller's tier and
// billing mode; the full key value is never shown again.
func (h *APIKeyHandler) CreateKey(ctx context.Context, input *CreateKeyInput) (*CreateKeyOutput, error) {
	claims := getUserClaims(ctx)
	if claims == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	created, err := h.svc.CreateKey(ctx, claims.UserID, service.CreateKeyInput{
		Name:      input.Body.Name,
		Tier:      claims.Tier,
		Unlimited: claims.Unlimited,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &CreateKeyOutput{Body: *created}, nil
}

// ListKeysOutput wraps the caller's keys (hashes and key values omitted).
type ListKeysOutput struct {
	Body struct {
		Keys []*models.APIKey `json:"keys"`
	}
}

// ListKeys lists the caller's active API keys.
func (h *APIKeyHandler) ListKeys(ctx context.Context, input *struct{}) (*ListKeysOutput, error) {
	keys, err := h.svc.ListKeys(ctx, getUserID(ctx))
	if err != nil {
		return nil, mapServiceError(err)
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	out := &ListKeysOutput{}
	out.Body.Keys = keys
	return out, nil
}

// RevokeKeyInput identifies one key.
type RevokeKeyInput struct {
	ID string `path:"id"`
}

// RevokeKeyOutput acknowledges the revocation.
type RevokeKeyOutput struct {
	Body struct {
		Revoked bool `json:"revoked"`
	}
}

// RevokeKey revokes one of the caller's API keys.
func (h *APIKeyHandler) RevokeKey(ctx context.Context, input *RevokeKeyInput) (*RevokeKeyOutput, error) {
	if err := h.svc.RevokeKey(ctx, getUserID(ctx), input.ID); err != nil {
		return nil, huma.Error404NotFound("key not found")
	}
	out := &RevokeKeyOutput{}
	out.Body.Revoked = true
	return out, nil
}
