package handlers

import (
	"context"
	"log/slog"

	"github.com/easelhq/easel-api/internal/models"
	"github.com/easelhq/easel-api/internal/service"
)

// ArtifactHandler serves stored generation results.
type ArtifactHandler struct {
	svc    *service.GenerationService
	logger *slog.Logger
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(svc *service.GenerationService, logger *slog.Logger) *ArtifactHandler {
	return &ArtifactHandler{svc: svc, logger: logger}
}

// ArtifactView is an artifact plus its presigned download URL.
type ArtifactView struct {
	*models.Artifact
	URL string `json:"url,omitempty" doc:"Presigned download URL, valid for a limited time"`
}

// GetArtifactInput identifies one artifact.
type GetArtifactInput struct {
	ID string `path:"id" doc:"Artifact ID (equals the job ID that produced it)"`
}

// GetArtifactOutput wraps a single artifact.
type GetArtifactOutput struct {
	Body ArtifactView
}

// GetArtifact returns one of the caller's artifacts with a download URL.
func (h *ArtifactHandler) GetArtifact(ctx context.Context, input *GetArtifactInput) (*GetArtifactOutput, error) {
	artifact, url, err := h.svc.GetArtifact(ctx, getUserID(ctx), input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &GetArtifactOutput{Body: ArtifactView{Artifact: artifact, URL: url}}, nil
}

// ListArtifactsInput carries pagination.
type ListArtifactsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" required:"false"`
	Offset int `query:"offset" minimum:"0" required:"false"`
}

// ListArtifactsOutput wraps a page of artifacts.
type ListArtifactsOutput struct {
	Body struct {
		Artifacts []*models.Artifact `json:"artifacts"`
	}
}

// ListArtifacts returns the caller's artifacts, newest first. Download URLs
// are not included in listings; fetch the artifact individually for one.
func (h *ArtifactHandler) ListArtifacts(ctx context.Context, input *ListArtifactsInput) (*ListArtifactsOutput, error) {
	limit, offset := pageBounds(input.Limit, input.Offset)
	artifacts, err := h.svc.ListArtifacts(ctx, getUserID(ctx), limit, offset)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if artifacts == nil {
		artifacts = []*models.Artifact{}
	}
	out := &ListArtifactsOutput{}
	out.Body.Artifacts = artifacts
	return out, nil
}

// RenameArtifactInput changes an artifact's title.
type RenameArtifactInput struct {
	ID   string `path:"id"`
	Body struct {
		Title string `json:"title" minLength:"1" maxLength:"200"`
	}
}

// RenameArtifactOutput acknowledges the rename.
type RenameArtifactOutput struct {
	Body struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
}

// RenameArtifact changes an artifact's title. Versioning of future
// generations follows the new title.
func (h *ArtifactHandler) RenameArtifact(ctx context.Context, input *RenameArtifactInput) (*RenameArtifactOutput, error) {
	if err := h.svc.RenameArtifact(ctx, getUserID(ctx), input.ID, input.Body.Title); err != nil {
		return nil, mapServiceError(err)
	}
	out := &RenameArtifactOutput{}
	out.Body.ID = input.ID
	out.Body.Title = input.Body.Title
	return out, nil
}
