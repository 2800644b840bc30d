package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/easelhq/easel-api/internal/constants"
)

// ErrSupervisionExhausted marks a supervision that ran out of polls without
// the job reaching a terminal state. The optimistic debit is intentionally
// not refunded: the job may still complete server-side.
var ErrSupervisionExhausted = errors.New("supervision exhausted before the job finished")

// API is the server surface the orchestrator needs. Satisfied by *Client.
type API interface {
	SubmitGeneration(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	GetJob(ctx context.Context, jobID string) (*Job, error)
	GetArtifact(ctx context.Context, artifactID string) (*Artifact, error)
	GetBalance(ctx context.Context) (*Balance, error)
}

// CanvasArtifact is the canvas's view of an artifact: either a finished
// image or an in-progress placeholder awaiting its generation.
type CanvasArtifact struct {
	ID                string
	ParentID          string
	Title             string
	Version           int
	Prompt            string
	URL               string
	Width             int
	Height            int
	InProgress        bool
	EstimatedDuration time.Duration
}

// ArtifactStore is the canvas-side collection the orchestrator manages
// placeholders in. Implementations must be safe for concurrent use.
type ArtifactStore interface {
	Insert(a *CanvasArtifact)
	Replace(jobID string, a *CanvasArtifact)
	Remove(jobID string)
	MaxVersion(title string) int
	InProgress() []*CanvasArtifact
}

// Config tunes the orchestrator.
type Config struct {
	PollInterval  time.Duration                   // default 5s
	MaxPolls      int                             // default 60
	SubmitTimeout time.Duration                   // default 2m
	OnFailure     func(jobID string, cause error) // optional failure callback
}

// Orchestrator drives generations end to end on the client: optimistic
// billing, placeholder management, submission, and supervision until the
// server produces an artifact or a failed job.
type Orchestrator struct {
	api      API
	store    ArtifactStore
	ledger   *Ledger
	registry *supervisionRegistry
	cfg      Config
	logger   *slog.Logger

	mu    sync.Mutex
	costs map[string]float64 // jobID -> optimistic debit, for refunds

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(api API, store ArtifactStore, ledger *Ledger, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls == 0 {
		cfg.MaxPolls = 60
	}
	if cfg.SubmitTimeout == 0 {
		cfg.SubmitTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		api:      api,
		store:    store,
		ledger:   ledger,
		registry: newSupervisionRegistry(),
		cfg:      cfg,
		logger:   logger.With("component", "orchestrator"),
		costs:    make(map[string]float64),
		stop:     make(chan struct{}),
	}
}

// GenerateRequest is a client-side generation.
type GenerateRequest struct {
	Prompt      string
	Tier        string
	CostUSD     float64
	Title       string
	Source      *CanvasArtifact // artifact being edited, nil for fresh
	Variables   []Variable
	Mask        []byte // rasterized PNG annotation overlay
	References  []Reference
	AspectRatio string
}

// Generate debits locally, inserts a placeholder, submits, and starts
// supervision. On submit failure everything unwinds: the placeholder is
// removed and the debit refunded.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	title := req.Title
	if title == "" && req.Source != nil {
		title = req.Source.Title
	}

	if err := o.ledger.Debit(req.CostUSD); err != nil {
		return "", err
	}

	jobID := ulid.Make().String()
	version := o.store.MaxVersion(title) + 1

	// In-flight supervisions plus this one approximate server congestion
	estimate := constants.EstimateDuration(req.Tier, o.registry.count()+1)

	placeholder := &CanvasArtifact{
		ID:                jobID,
		Title:             title,
		Version:           version,
		InProgress:        true,
		EstimatedDuration: estimate,
	}
	if req.Source != nil {
		placeholder.ParentID = req.Source.ID
		placeholder.Width = req.Source.Width
		placeholder.Height = req.Source.Height
	}
	o.store.Insert(placeholder)

	submitCtx, cancel := context.WithTimeout(ctx, o.cfg.SubmitTimeout)
	defer cancel()

	submit := SubmitRequest{
		JobID:       jobID,
		Prompt:      req.Prompt,
		Tier:        req.Tier,
		Title:       title,
		Variables:   req.Variables,
		References:  req.References,
		AspectRatio: req.AspectRatio,
	}
	if req.Source != nil {
		submit.SourceArtifactID = req.Source.ID
	}
	if len(req.Mask) > 0 {
		submit.Mask = base64.StdEncoding.EncodeToString(req.Mask)
	}

	resp, err := o.api.SubmitGeneration(submitCtx, submit)
	if err != nil {
		o.store.Remove(jobID)
		o.ledger.Refund(req.CostUSD)
		return "", fmt.Errorf("submission failed: %w", err)
	}

	o.mu.Lock()
	o.costs[jobID] = resp.CostUSD
	o.mu.Unlock()

	o.StartSupervision(jobID)
	return jobID, nil
}

// StartSupervision begins polling for a job's outcome. A job already under
// supervision is left alone.
func (o *Orchestrator) StartSupervision(jobID string) {
	if !o.registry.add(jobID) {
		return
	}
	o.wg.Add(1)
	go o.supervise(jobID)
}

// ResumeInProgress re-attaches supervisors to placeholders left over from a
// previous session.
func (o *Orchestrator) ResumeInProgress() {
	for _, a := range o.store.InProgress() {
		if !o.registry.has(a.ID) {
			o.logger.Info("resuming supervision", "job_id", a.ID)
			o.StartSupervision(a.ID)
		}
	}
}

// Close stops all supervisors and waits for them to exit.
func (o *Orchestrator) Close() {
	close(o.stop)
	o.wg.Wait()
}

func (o *Orchestrator) supervise(jobID string) {
	defer o.wg.Done()
	defer o.registry.remove(jobID)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < o.cfg.MaxPolls; attempt++ {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PollInterval*2)
		done := o.poll(ctx, jobID)
		cancel()
		if done {
			return
		}
	}

	o.logger.Warn("supervision exhausted", "job_id", jobID)
	o.failCallback(jobID, ErrSupervisionExhausted)
}

// poll checks one round: artifact first, then a failed job. Returns true
// when supervision should stop.
func (o *Orchestrator) poll(ctx context.Context, jobID string) bool {
	artifact, err := o.api.GetArtifact(ctx, jobID)
	if err != nil {
		o.logger.Debug("artifact poll failed", "job_id", jobID, "error", err)
		return false
	}
	if artifact != nil {
		o.complete(jobID, artifact)
		return true
	}

	job, err := o.api.GetJob(ctx, jobID)
	if err != nil {
		o.logger.Debug("job poll failed", "job_id", jobID, "error", err)
		return false
	}
	if job != nil && job.Status == "failed" {
		o.fail(jobID, job)
		return true
	}
	return false
}

func (o *Orchestrator) complete(jobID string, artifact *Artifact) {
	final := &CanvasArtifact{
		ID:      artifact.ID,
		Title:   artifact.Title,
		Version: artifact.Version,
		Prompt:  artifact.Prompt,
		URL:     cacheBust(artifact.URL),
		Width:   artifact.Width,
		Height:  artifact.Height,
	}
	if artifact.ParentID != nil {
		final.ParentID = *artifact.ParentID
	}
	o.store.Replace(jobID, final)

	o.mu.Lock()
	delete(o.costs, jobID)
	o.mu.Unlock()

	o.logger.Info("generation completed", "job_id", jobID, "version", artifact.Version)
}

func (o *Orchestrator) fail(jobID string, job *Job) {
	o.store.Remove(jobID)

	o.mu.Lock()
	cost, ok := o.costs[jobID]
	delete(o.costs, jobID)
	o.mu.Unlock()
	if !ok {
		// Resumed supervision never saw the submit; trust the server's cost
		cost = job.CostUSD
	}
	o.ledger.Refund(cost)

	o.logger.Warn("generation failed", "job_id", jobID, "error", job.ErrorMessage)
	o.failCallback(jobID, errors.New(job.ErrorMessage))
}

func (o *Orchestrator) failCallback(jobID string, cause error) {
	if o.cfg.OnFailure != nil {
		o.cfg.OnFailure(jobID, cause)
	}
}

// SyncBalance pulls the authoritative balance into the local ledger.
func (o *Orchestrator) SyncBalance(ctx context.Context) error {
	balance, err := o.api.GetBalance(ctx)
	if err != nil {
		return err
	}
	o.ledger.Set(balance.BalanceUSD, balance.Unlimited)
	return nil
}

// cacheBust appends a timestamp query parameter so the canvas never shows a
// stale cached image for a reused placeholder slot.
func cacheBust(url string) string {
	if url == "" {
		return url
	}
	sep := "?"
	for _, c := range url {
		if c == '?' {
			sep = "&"
			break
		}
	}
	return fmt.Sprintf("%s%st=%d", url, sep, time.Now().UnixNano())
}
