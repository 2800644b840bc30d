package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/easelhq/easel-api/internal/constants"
	"github.com/easelhq/easel-api/internal/models"
	"github.com/easelhq/easel-api/internal/service"
)

// GenerationHandler handles generation submission and job queries.
type GenerationHandler struct {
	svc    *service.GenerationService
	logger *slog.Logger
}

// NewGenerationHandler creates a new generation handler.
func NewGenerationHandler(svc *service.GenerationService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{svc: svc, logger: logger}
}

// CreateGenerationInput is a generation submission.
type CreateGenerationInput struct {
	Body struct {
		JobID            string             `json:"job_id" doc:"Client-generated ULID; doubles as the artifact ID on success"`
		Prompt           string             `json:"prompt" minLength:"1" maxLength:"8000"`
		Tier             string             `json:"tier,omitempty" doc:"Generation tier; unknown values fall back to fast"`
		Title            string             `json:"title,omitempty" maxLength:"200"`
		SourceArtifactID string             `json:"source_artifact_id,omitempty" doc:"Artifact to edit; omit for a fresh generation"`
		Variables        []models.Variable  `json:"variables,omitempty"`
		Mask             string             `json:"mask,omitempty" doc:"Base64-encoded PNG annotation overlay"`
		References       []models.Reference `json:"references,omitempty" maxItems:"6"`
		AspectRatio      string             `json:"aspect_ratio,omitempty" enum:"1:1,3:4,4:3,9:16,16:9,"`
	}
}

// CreateGenerationOutput acknowledges an accepted submission.
type CreateGenerationOutput struct {
	Status int
	Body   struct {
		JobID               string  `json:"job_id"`
		Status              string  `json:"status"`
		Tier                string  `json:"tier"`
		CostUSD             float64 `json:"cost_usd"`
		EstimatedDurationMs int64   `json:"estimated_duration_ms"`
	}
}

// CreateGeneration submits a new generation job.
func (h *GenerationHandler) CreateGeneration(ctx context.Context, input *CreateGenerationInput) (*CreateGenerationOutput, error) {
	claims := getUserClaims(ctx)
	if claims == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	var mask []byte
	if input.Body.Mask != "" {
		decoded, err := base64.StdEncoding.DecodeString(input.Body.Mask)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("mask must be valid base64")
		}
		mask = decoded
	}

	if len(input.Body.References) > constants.MaxReferenceImages {
		return nil, huma.Error422UnprocessableEntity("too many reference images")
	}

	tier := input.Body.Tier
	if tier == "" {
		tier = claims.Tier
	}

	job, err := h.svc.Submit(ctx, claims.UserID, claims.Unlimited, service.SubmitInput{
		JobID:            input.Body.JobID,
		Prompt:           input.Body.Prompt,
		Tier:             tier,
		Title:            input.Body.Title,
		SourceArtifactID: input.Body.SourceArtifactID,
		Variables:        input.Body.Variables,
		MaskPNG:          mask,
		References:       input.Body.References,
		AspectRatio:      input.Body.AspectRatio,
	})
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &CreateGenerationOutput{Status: 202}
	out.Body.JobID = job.ID
	out.Body.Status = string(job.Status)
	out.Body.Tier = job.Tier
	out.Body.CostUSD = job.CostUSD
	out.Body.EstimatedDurationMs = constants.EstimateDuration(job.Tier, job.ConcurrentAtSubmit).Milliseconds()
	return out, nil
}

// GetJobInput identifies one job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ULID"`
}

// JobOutput wraps a single job.
type JobOutput struct {
	Body *models.GenerationJob
}

// GetJob returns one of the caller's jobs.
func (h *GenerationHandler) GetJob(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	job, err := h.svc.GetJob(ctx, getUserID(ctx), input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &JobOutput{Body: job}, nil
}

// ListJobsInput carries pagination.
type ListJobsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" required:"false"`
	Offset int `query:"offset" minimum:"0" required:"false"`
}

// ListJobsOutput wraps a page of jobs.
type ListJobsOutput struct {
	Body struct {
		Jobs []*models.GenerationJob `json:"jobs"`
	}
}

// ListJobs returns the caller's jobs, newest first.
func (h *GenerationHandler) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	limit, offset := pageBounds(input.Limit, input.Offset)
	jobs, err := h.svc.ListJobs(ctx, getUserID(ctx), limit, offset)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if jobs == nil {
		jobs = []*models.GenerationJob{}
	}
	out := &ListJobsOutput{}
	out.Body.Jobs = jobs
	return out, nil
}
