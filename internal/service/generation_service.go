package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/oklog/ulid/v2"

	"github.com/easelhq/easel-api/internal/constants"
	"github.com/easelhq/easel-api/internal/logging"
	"github.com/easelhq/easel-api/internal/models"
	"github.com/easelhq/easel-api/internal/parts"
	"github.com/easelhq/easel-api/internal/provider"
	"github.com/easelhq/easel-api/internal/repository"
)

var (
	// ErrInvalidJobID indicates the client-supplied job ID is not a ULID.
	ErrInvalidJobID = errors.New("job id must be a valid ULID")

	// ErrDuplicateJobID indicates a job with this ID already exists.
	ErrDuplicateJobID = errors.New("job id already exists")

	// ErrEmptyPrompt indicates a submission without a prompt.
	ErrEmptyPrompt = errors.New("prompt must not be empty")

	// ErrArtifactNotFound indicates a missing or foreign artifact.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrJobNotFound indicates a missing or foreign job.
	ErrJobNotFound = errors.New("job not found")
)

// GeneratorSource resolves provider names to generators.
type GeneratorSource interface {
	Get(name string) (provider.Generator, bool)
}

// GenerationService owns the generation job lifecycle: submission with
// optimistic billing, asynchronous execution, artifact creation, and the
// refund-on-failure guarantee.
type GenerationService struct {
	repos         *repository.Repositories
	balance       *BalanceService
	store         ObjectStore
	providers     GeneratorSource
	assembler     *parts.Assembler
	presignExpiry time.Duration
	logger        *slog.Logger
}

// NewGenerationService creates a new generation service.
func NewGenerationService(
	repos *repository.Repositories,
	balance *BalanceService,
	store ObjectStore,
	providers GeneratorSource,
	assembler *parts.Assembler,
	presignExpiry time.Duration,
	logger *slog.Logger,
) *GenerationService {
	if presignExpiry == 0 {
		presignExpiry = time.Hour
	}
	return &GenerationService{
		repos:         repos,
		balance:       balance,
		store:         store,
		providers:     providers,
		assembler:     assembler,
		presignExpiry: presignExpiry,
		logger:        logger,
	}
}

// SubmitInput is a validated generation submission.
type SubmitInput struct {
	JobID            string // client-generated ULID
	Prompt           string
	Tier             string
	Title            string
	SourceArtifactID string
	Variables        []models.Variable
	MaskPNG          []byte
	References       []models.Reference
	AspectRatio      string
}

// Submit debits the user and creates a processing job. The debit happens
// before the job row exists; if the insert fails the debit is refunded so
// no money is lost to a job that never ran.
func (s *GenerationService) Submit(ctx context.Context, userID string, unlimited bool, in SubmitInput) (*models.GenerationJob, error) {
	if _, err := ulid.Parse(in.JobID); err != nil {
		return nil, ErrInvalidJobID
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	// Unknown tiers degrade to fast rather than rejecting
	tier := in.Tier
	if !constants.IsValidTier(tier) {
		s.logger.Warn("unknown tier requested, using fast", "tier", tier, "user_id", userID)
		tier = constants.TierFast
	}

	var sourceArtifactID *string
	title := strings.TrimSpace(in.Title)
	if in.SourceArtifactID != "" {
		src, err := s.repos.Artifact.GetByID(ctx, in.SourceArtifactID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up source artifact: %w", err)
		}
		if src == nil || src.UserID != userID {
			return nil, ErrArtifactNotFound
		}
		sourceArtifactID = &src.ID
		if title == "" {
			title = src.Title
		}
	}
	if title == "" {
		title = deriveTitle(in.Prompt)
	}

	cost := constants.Cost(tier)
	if unlimited {
		cost = 0
	}

	// Snapshot of system load at submission, used for duration estimates.
	// A counting failure degrades the estimate, not the submission.
	concurrent, err := s.repos.Job.CountProcessing(ctx)
	if err != nil {
		s.logger.Warn("failed to count processing jobs", "error", err)
		concurrent = 0
	}

	if cost > 0 {
		if err := s.balance.Debit(ctx, userID, cost, in.JobID); err != nil {
			return nil, err
		}
	}

	request := models.GenerationRequest{
		Variables:   in.Variables,
		References:  in.References,
		AspectRatio: in.AspectRatio,
	}
	if len(in.MaskPNG) > 0 {
		request.MaskB64 = base64.StdEncoding.EncodeToString(in.MaskPNG)
	}
	requestJSON, err := json.Marshal(request)
	if err != nil {
		s.refundSubmit(ctx, userID, cost, in.JobID)
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	now := time.Now()
	job := &models.GenerationJob{
		ID:                 in.JobID,
		UserID:             userID,
		Status:             models.JobStatusProcessing,
		Tier:               tier,
		CostUSD:            cost,
		Prompt:             in.Prompt,
		Title:              title,
		SourceArtifactID:   sourceArtifactID,
		RequestJSON:        string(requestJSON),
		HasMask:            len(in.MaskPNG) > 0,
		ReferenceCount:     len(in.References),
		ConcurrentAtSubmit: concurrent + 1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repos.Job.Create(ctx, job); err != nil {
		s.refundSubmit(ctx, userID, cost, in.JobID)
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateJobID
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("generation submitted",
		"job_id", job.ID,
		"user_id", userID,
		"tier", tier,
		"cost_usd", cost,
		"has_mask", job.HasMask,
		"reference_count", job.ReferenceCount,
		"concurrent", job.ConcurrentAtSubmit,
	)

	return job, nil
}

// refundSubmit unwinds the optimistic debit when submission fails after it.
func (s *GenerationService) refundSubmit(ctx context.Context, userID string, cost float64, jobID string) {
	if cost <= 0 {
		return
	}
	if err := s.balance.Refund(ctx, userID, cost, jobID); err != nil {
		s.logger.Error("failed to refund after submission failure",
			"job_id", jobID, "user_id", userID, "cost_usd", cost, "error", err)
	}
}

// Process executes a claimed job to completion. Called by the worker; all
// failure paths refund the debit and mark the job failed.
func (s *GenerationService) Process(ctx context.Context, job *models.GenerationJob) {
	ctx = logging.WithUserID(logging.WithJobID(ctx, job.ID), job.UserID)
	logger := logging.FromContext(ctx, s.logger)
	start := time.Now()

	artifact, err := s.execute(ctx, job)
	if err != nil {
		s.Fail(ctx, job, err)
		return
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	job.DurationMs = time.Since(start).Milliseconds()
	if err := s.repos.Job.Update(ctx, job); err != nil {
		// Artifact exists; clients resolve through it regardless
		logger.Error("failed to mark job completed", "error", err)
	}

	logger.Info("generation completed",
		"artifact_id", artifact.ID,
		"version", artifact.Version,
		"duration_ms", job.DurationMs,
		"model", job.ModelVersion,
	)
}

func (s *GenerationService) execute(ctx context.Context, job *models.GenerationJob) (*models.Artifact, error) {
	var request models.GenerationRequest
	if job.RequestJSON != "" {
		if err := json.Unmarshal([]byte(job.RequestJSON), &request); err != nil {
			return nil, fmt.Errorf("failed to decode stored request: %w", err)
		}
	}

	input := parts.AssemblyInput{
		Instruction: job.Prompt,
		Variables:   request.Variables,
		References:  request.References,
	}

	if job.SourceArtifactID != nil {
		src, err := s.repos.Artifact.GetByID(ctx, *job.SourceArtifactID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up source artifact: %w", err)
		}
		if src == nil {
			return nil, ErrArtifactNotFound
		}
		data, err := s.store.Get(ctx, src.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch source image: %w", err)
		}
		input.Source = &parts.ImageInput{Data: data, MIME: "image/png"}
	}

	if request.MaskB64 != "" {
		mask, err := base64.StdEncoding.DecodeString(request.MaskB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode annotation overlay: %w", err)
		}
		input.Annotation = &parts.ImageInput{Data: mask, MIME: "image/png"}
	}

	assembled := s.assembler.Assemble(ctx, input)

	spec := constants.GetTierSpec(job.Tier)
	gen, ok := s.providers.Get(spec.Provider)
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", spec.Provider)
	}
	job.ModelVersion = spec.Model

	imageBytes, err := gen.Generate(ctx, assembled, provider.Options{
		Model:       spec.Model,
		AspectRatio: request.AspectRatio,
		OutputSize:  spec.OutputSize,
	})
	if err != nil {
		return nil, err
	}

	maxVersion, err := s.repos.Artifact.MaxVersion(ctx, job.UserID, job.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to determine artifact version: %w", err)
	}
	version := maxVersion + 1

	key := ArtifactKey(job.UserID, job.Title, version, job.ID)
	if err := s.store.Put(ctx, key, imageBytes, "image/png"); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	realW, realH := imageDimensions(imageBytes)
	width, height := realW, realH
	if job.SourceArtifactID != nil {
		// Edits keep the display size of the artifact they came from
		if src, err := s.repos.Artifact.GetByID(ctx, *job.SourceArtifactID); err == nil && src != nil && src.Width > 0 {
			width, height = src.Width, src.Height
		}
	}

	now := time.Now()
	artifact := &models.Artifact{
		ID:           job.ID, // artifact shares the job's ID
		UserID:       job.UserID,
		ParentID:     job.SourceArtifactID,
		Title:        job.Title,
		Version:      version,
		Prompt:       job.Prompt,
		ModelVersion: spec.Model,
		StorageKey:   key,
		Width:        width,
		Height:       height,
		RealWidth:    realW,
		RealHeight:   realH,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repos.Artifact.Create(ctx, artifact); err != nil {
		// The uploaded object is orphaned; the sweep can reclaim it later
		s.logger.Warn("artifact insert failed after upload", "job_id", job.ID, "key", key)
		return nil, fmt.Errorf("failed to create artifact: %w", err)
	}

	return artifact, nil
}

// Fail marks a job failed and refunds its debit. Refund failures are logged
// but do not block the status transition; the ledger entry can be replayed
// from the job row.
func (s *GenerationService) Fail(ctx context.Context, job *models.GenerationJob, cause error) {
	ctx = logging.WithUserID(logging.WithJobID(ctx, job.ID), job.UserID)
	logger := logging.FromContext(ctx, s.logger)

	if job.CostUSD > 0 {
		if err := s.balance.Refund(ctx, job.UserID, job.CostUSD, job.ID); err != nil {
			logger.Error("refund failed", "cost_usd", job.CostUSD, "error", err)
		}
	}

	now := time.Now()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = provider.UserMessage(cause)
	job.CompletedAt = &now
	if err := s.repos.Job.Update(ctx, job); err != nil {
		logger.Error("failed to mark job failed", "error", err)
	}

	logger.Warn("generation failed",
		"tier", job.Tier,
		"model", job.ModelVersion,
		"has_mask", job.HasMask,
		"reference_count", job.ReferenceCount,
		"error", cause,
	)
}

// SweepStaleJobs fails and refunds jobs stuck in processing longer than
// maxAge. Covers crashed workers and server restarts mid-generation.
func (s *GenerationService) SweepStaleJobs(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.repos.Job.FindStaleProcessing(ctx, maxAge)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale jobs: %w", err)
	}

	for _, job := range stale {
		s.Fail(ctx, job, fmt.Errorf("job stale after %s", maxAge))
	}

	if len(stale) > 0 {
		s.logger.Info("swept stale jobs", "count", len(stale), "max_age", maxAge.String())
	}
	return len(stale), nil
}

// GetJob returns a user's job.
func (s *GenerationService) GetJob(ctx context.Context, userID, jobID string) (*models.GenerationJob, error) {
	job, err := s.repos.Job.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns a user's jobs, newest first.
func (s *GenerationService) ListJobs(ctx context.Context, userID string, limit, offset int) ([]*models.GenerationJob, error) {
	return s.repos.Job.GetByUserID(ctx, userID, limit, offset)
}

// GetArtifact returns a user's artifact with a presigned download URL.
func (s *GenerationService) GetArtifact(ctx context.Context, userID, artifactID string) (*models.Artifact, string, error) {
	artifact, err := s.repos.Artifact.GetByID(ctx, artifactID)
	if err != nil {
		return nil, "", err
	}
	if artifact == nil || artifact.UserID != userID {
		return nil, "", ErrArtifactNotFound
	}

	url, err := s.store.PresignGet(ctx, artifact.StorageKey, s.presignExpiry)
	if err != nil {
		s.logger.Warn("failed to presign artifact url", "artifact_id", artifactID, "error", err)
		url = ""
	}
	return artifact, url, nil
}

// ListArtifacts returns a user's artifacts, newest first.
func (s *GenerationService) ListArtifacts(ctx context.Context, userID string, limit, offset int) ([]*models.Artifact, error) {
	return s.repos.Artifact.GetByUserID(ctx, userID, limit, offset)
}

// RenameArtifact changes an artifact's title after an ownership check.
func (s *GenerationService) RenameArtifact(ctx context.Context, userID, artifactID, title string) error {
	artifact, err := s.repos.Artifact.GetByID(ctx, artifactID)
	if err != nil {
		return err
	}
	if artifact == nil || artifact.UserID != userID {
		return ErrArtifactNotFound
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title must not be empty")
	}
	if err := s.repos.Artifact.UpdateTitle(ctx, artifactID, title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrArtifactNotFound
		}
		return err
	}
	return nil
}

// imageDimensions decodes just the image header. Unknown formats report
// zero dimensions rather than failing the job.
func imageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// deriveTitle builds a default title from the prompt's leading words.
func deriveTitle(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Untitled"
	}
	if len(prompt) <= 48 {
		return prompt
	}
	cut := prompt[:48]
	if idx := strings.LastIndex(cut, " "); idx > 24 {
		cut = cut[:idx]
	}
	return cut
}
