// Package routes wires API operations to their handlers.
package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/easelhq/easel-api/internal/http/handlers"
	"github.com/easelhq/easel-api/internal/http/mw"
)

// Register registers all API routes with the given Huma API instance.
func Register(api huma.API, h *handlers.Handlers) {
	// =========================================================================
	// Public Routes (no auth required)
	// =========================================================================

	mw.PublicGet(api, "/api/v1/health", handlers.HealthCheck,
		mw.WithTags("Health"),
		mw.WithSummary("Health check"),
		mw.WithOperationID("healthCheck"))

	mw.PublicGet(api, "/api/v1/pricing/tiers", handlers.ListTiers,
		mw.WithTags("Pricing"),
		mw.WithSummary("List generation tiers"),
		mw.WithOperationID("listTiers"))

	// Kubernetes probes (hidden from docs - internal use only)
	mw.HiddenGet(api, "/healthz", handlers.Livez)
	mw.HiddenGet(api, "/readyz", handlers.Readyz)

	// =========================================================================
	// Protected Routes (require bearer auth)
	// =========================================================================

	// --- Generations ---
	mw.ProtectedPost(api, "/api/v1/generations", h.Generation.CreateGeneration,
		mw.WithTags("Generations"),
		mw.WithSummary("Submit a generation"),
		mw.WithDescription("Debits the caller and queues an asynchronous image generation. The job ID is client-generated and becomes the artifact ID on success."),
		mw.WithOperationID("createGeneration"))
	mw.ProtectedGet(api, "/api/v1/jobs", h.Generation.ListJobs,
		mw.WithTags("Generations"),
		mw.WithSummary("List jobs"),
		mw.WithOperationID("listJobs"))
	mw.ProtectedGet(api, "/api/v1/jobs/{id}", h.Generation.GetJob,
		mw.WithTags("Generations"),
		mw.WithSummary("Get job status"),
		mw.WithOperationID("getJob"))

	// --- Artifacts ---
	mw.ProtectedGet(api, "/api/v1/artifacts", h.Artifact.ListArtifacts,
		mw.WithTags("Artifacts"),
		mw.WithSummary("List artifacts"),
		mw.WithOperationID("listArtifacts"))
	mw.ProtectedGet(api, "/api/v1/artifacts/{id}", h.Artifact.GetArtifact,
		mw.WithTags("Artifacts"),
		mw.WithSummary("Get artifact with download URL"),
		mw.WithOperationID("getArtifact"))
	mw.ProtectedPatch(api, "/api/v1/artifacts/{id}", h.Artifact.RenameArtifact,
		mw.WithTags("Artifacts"),
		mw.WithSummary("Rename artifact"),
		mw.WithOperationID("renameArtifact"))

	// --- Billing ---
	mw.ProtectedGet(api, "/api/v1/balance", h.Balance.GetBalance,
		mw.WithTags("Billing"),
		mw.WithSummary("Get credit balance"),
		mw.WithOperationID("getBalance"))
	mw.ProtectedGet(api, "/api/v1/balance/transactions", h.Balance.ListTransactions,
		mw.WithTags("Billing"),
		mw.WithSummary("List credit transactions"),
		mw.WithOperationID("listTransactions"))

	// --- API Keys ---
	mw.ProtectedGet(api, "/api/v1/apikeys", h.APIKey.ListKeys,
		mw.WithTags("API Keys"),
		mw.WithSummary("List API keys"),
		mw.WithOperationID("listAPIKeys"))
	mw.ProtectedPost(api, "/api/v1/apikeys", h.APIKey.CreateKey,
		mw.WithTags("API Keys"),
		mw.WithSummary("Create API key"),
		mw.WithDescription("The full key value is returned exactly once."),
		mw.WithOperationID("createAPIKey"))
	mw.ProtectedDelete(api, "/api/v1/apikeys/{id}", h.APIKey.RevokeKey,
		mw.WithTags("API Keys"),
		mw.WithSummary("Revoke API key"),
		mw.WithOperationID("revokeAPIKey"))
}
