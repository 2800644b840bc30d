package provider

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/easelhq/easel-api/internal/config"
)

// Registry holds the configured generators keyed by name.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

// Register adds or replaces a generator under its own name.
func (r *Registry) Register(g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[g.Name()] = g
}

// Get returns the generator registered under name.
func (r *Registry) Get(name string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.generators[name]
	return g, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitRegistry builds the registry from configuration. Providers without
// credentials are skipped with a warning; tiers pointing at them will fail
// at dispatch time.
func InitRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()

	if cfg.GeminiAPIKey != "" {
		r.Register(NewInlineClient("gemini", cfg.GeminiBaseURL, cfg.GeminiAPIKey, logger))
	} else {
		logger.Warn("gemini provider not configured, fast tier unavailable")
	}

	if cfg.RelayAPIKey != "" {
		r.Register(NewTaskPollClient("relay", cfg.RelayBaseURL, cfg.RelayAPIKey, logger))
	} else {
		logger.Warn("relay provider not configured, pro tiers unavailable")
	}

	logger.Info("provider registry initialized", "providers", r.Names())
	return r
}
