// Package main is the entry point for the easel-api server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/easelhq/easel-api/internal/config"
	"github.com/easelhq/easel-api/internal/constants"
	"github.com/easelhq/easel-api/internal/database"
	"github.com/easelhq/easel-api/internal/http/handlers"
	"github.com/easelhq/easel-api/internal/http/mw"
	"github.com/easelhq/easel-api/internal/http/routes"
	"github.com/easelhq/easel-api/internal/logging"
	"github.com/easelhq/easel-api/internal/provider"
	"github.com/easelhq/easel-api/internal/repository"
	"github.com/easelhq/easel-api/internal/service"
	"github.com/easelhq/easel-api/internal/version"
	"github.com/easelhq/easel-api/internal/worker"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting easel-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	// Provider registry from config (gemini inline, relay task-poll)
	providers := provider.InitRegistry(cfg, logger)
	logger.Info("provider registry initialized", "providers", providers.Names())

	services, err := service.New(cfg, repos, providers, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Jobs stuck in processing from a previous run are failed and refunded
	staleCount, err := services.Generation.SweepStaleJobs(context.Background(), cfg.StaleJobAge)
	if err != nil {
		logger.Warn("failed to sweep stale jobs", "error", err)
	} else if staleCount > 0 {
		logger.Info("swept stale jobs from previous run", "count", staleCount)
	}

	// Background worker claims and processes generation jobs
	jobWorker := worker.New(repos.Job, services.Generation, worker.Config{
		PollInterval: cfg.WorkerPollInterval,
		Concurrency:  cfg.WorkerConcurrency,
	}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	jobWorker.Start(ctx)

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Annotation overlays arrive base64-inline, so the body cap is generous
	router.Use(middleware.RequestSize(constants.MaxRequestBodySize))

	// Global rate limit by IP (fallback for unauthenticated requests)
	router.Use(httprate.LimitByIP(100, time.Minute))

	// Global concurrency throttle - prevent system overload
	router.Use(middleware.Throttle(100))

	// Huma API config with OpenAPI docs
	humaConfig := huma.DefaultConfig("Easel API", v.Short())
	humaConfig.Info.Description = "Asynchronous image generation API for the easel canvas: tiered generation jobs, versioned artifacts, and USD credit billing."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		mw.SecurityScheme: {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Session token or API key. Include your key in the Authorization header as `Bearer ez_your_key`.",
		},
	}

	api := humachi.New(router, humaConfig)
	api.UseMiddleware(mw.HumaAuth(api, services.Auth))

	h := handlers.New(services, cfg.StripeWebhookSecret, logger)
	routes.Register(api, h)

	// Stripe webhook (signature verified by handler, not user auth)
	if cfg.StripeWebhookSecret != "" {
		router.Post("/api/v1/webhooks/stripe", h.Stripe.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		// Stop the worker first so in-flight generations finish
		cancel()
		stopped := make(chan struct{})
		go func() {
			jobWorker.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(cfg.WorkerShutdownGracePeriod):
			logger.Warn("worker shutdown grace period exceeded")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
