// Package worker polls for unstarted generation jobs and drives them to
// completion.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/easelhq/easel-api/internal/logging"
	"github.com/easelhq/easel-api/internal/models"
	"github.com/easelhq/easel-api/internal/repository"
)

// Processor executes one claimed job. Implemented by the generation service.
type Processor interface {
	Process(ctx context.Context, job *models.GenerationJob)
}

// Worker runs a pool of goroutines that claim and process jobs.
type Worker struct {
	jobRepo      repository.JobRepository
	proc         Processor
	pollInterval time.Duration
	concurrency  int
	stop         chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
}

// New creates a new worker pool.
func New(jobRepo repository.JobRepository, proc Processor, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobRepo:      jobRepo,
		proc:         proc,
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		stop:         make(chan struct{}),
		logger:       logger.With("component", "worker"),
	}
}

// Start launches the worker goroutines. Does not block.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval.String())

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop waits for in-flight jobs to finish. Jobs already claimed complete;
// unclaimed jobs stay queued for the next start.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNext(ctx, workerID)
		}
	}
}

func (w *Worker) processNext(ctx context.Context, workerID int) {
	job, err := w.jobRepo.ClaimUnstarted(ctx)
	if err != nil {
		w.logger.Error("failed to claim job", "worker_id", workerID, "error", err)
		return
	}
	if job == nil {
		return
	}

	// Downstream stages pick the ids up via logging.FromContext
	ctx = logging.WithUserID(logging.WithJobID(ctx, job.ID), job.UserID)
	logging.FromContext(ctx, w.logger).Info("processing job", "worker_id", workerID, "tier", job.Tier)
	w.proc.Process(ctx, job)
}
