// Package constants defines generation tier profiles and shared limits.
package constants

import (
	"sort"
	"sync"
	"time"
)

// Tier names. Unknown tiers fall back to TierFast everywhere.
const (
	TierFast  = "fast"
	TierPro1K = "pro-1k"
	TierPro2K = "pro-2k"
	TierPro4K = "pro-4k"
)

// TierSpec describes one generation tier: its price, which provider and
// model serve it, and the base duration used for client-side estimates.
type TierSpec struct {
	Name         string        `json:"name"`
	DisplayName  string        `json:"display_name"`
	Order        int           `json:"order"`
	CostUSD      float64       `json:"cost_usd"`
	BaseDuration time.Duration `json:"-"`
	Provider     string        `json:"-"` // registry key of the serving provider
	Model        string        `json:"model"`
	OutputSize   string        `json:"output_size"` // e.g. "2K"
}

var (
	tiersMu sync.RWMutex
	tiers   = map[string]TierSpec{
		TierFast: {
			Name:         TierFast,
			DisplayName:  "Fast",
			Order:        0,
			CostUSD:      0.04,
			BaseDuration: 15 * time.Second,
			Provider:     "gemini",
			Model:        "gemini-2.5-flash-image",
			OutputSize:   "1K",
		},
		TierPro1K: {
			Name:         TierPro1K,
			DisplayName:  "Pro 1K",
			Order:        1,
			CostUSD:      0.10,
			BaseDuration: 30 * time.Second,
			Provider:     "relay",
			Model:        "nano-banana-pro",
			OutputSize:   "1K",
		},
		TierPro2K: {
			Name:         TierPro2K,
			DisplayName:  "Pro 2K",
			Order:        2,
			CostUSD:      0.16,
			BaseDuration: 45 * time.Second,
			Provider:     "relay",
			Model:        "nano-banana-pro",
			OutputSize:   "2K",
		},
		TierPro4K: {
			Name:         TierPro4K,
			DisplayName:  "Pro 4K",
			Order:        3,
			CostUSD:      0.24,
			BaseDuration: 75 * time.Second,
			Provider:     "relay",
			Model:        "nano-banana-pro",
			OutputSize:   "4K",
		},
	}
)

// GetTierSpec returns the spec for a tier, falling back to the fast tier
// when the name is unknown.
func GetTierSpec(tier string) TierSpec {
	tiersMu.RLock()
	defer tiersMu.RUnlock()

	if spec, ok := tiers[tier]; ok {
		return spec
	}
	return tiers[TierFast]
}

// IsValidTier reports whether the tier name is known.
func IsValidTier(tier string) bool {
	tiersMu.RLock()
	defer tiersMu.RUnlock()

	_, ok := tiers[tier]
	return ok
}

// Cost returns the USD price of one generation at the given tier.
func Cost(tier string) float64 {
	return GetTierSpec(tier).CostUSD
}

// AllTiers returns every tier spec sorted by display order.
func AllTiers() []TierSpec {
	tiersMu.RLock()
	defer tiersMu.RUnlock()

	out := make([]TierSpec, 0, len(tiers))
	for _, spec := range tiers {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// EstimateDuration predicts how long a generation will take given how many
// jobs are running concurrently: base * (1 + 0.3 * max(0, concurrent-1)).
// A single job runs at base speed; each additional concurrent job adds 30%.
func EstimateDuration(tier string, concurrent int) time.Duration {
	spec := GetTierSpec(tier)
	extra := concurrent - 1
	if extra < 0 {
		extra = 0
	}
	return time.Duration(float64(spec.BaseDuration) * (1 + 0.3*float64(extra)))
}

// Shared limits.
const (
	// MaxRequestBodySize bounds generation submissions; annotation overlays
	// arrive base64-encoded inline so this is generous.
	MaxRequestBodySize = 24 * 1024 * 1024

	// MaxReferenceImages bounds how many reference URLs one submission may carry.
	MaxReferenceImages = 6

	// DefaultPageSize and MaxPageSize bound list endpoints.
	DefaultPageSize = 50
	MaxPageSize     = 200
)
