// Package provider dispatches image generation requests to upstream model
// providers. Two call styles are supported: inline providers return image
// bytes in the HTTP response (Gemini-style generateContent), and task-poll
// providers return a task ID that is polled until a result URL appears.
package provider

import (
	"context"

	"github.com/easelhq/easel-api/internal/parts"
)

// Options carries per-request generation settings.
type Options struct {
	Model       string
	AspectRatio string // e.g. "16:9", empty means provider default
	OutputSize  string // e.g. "2K", task-poll providers only
}

// Generator produces an image from an ordered part list.
type Generator interface {
	// Name is the registry key, matched against a tier's Provider field.
	Name() string

	// Generate returns the raw image bytes or a *ProviderError describing
	// why the upstream call failed.
	Generate(ctx context.Context, ps []parts.Part, opts Options) ([]byte, error)
}
