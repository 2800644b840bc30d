package constants

import (
	"testing"
	"time"
)

func TestCost(t *testing.T) {
	if got := Cost(TierPro1K); got != 0.10 {
		t.Errorf("Cost(pro-1k) = %v, want 0.10", got)
	}
	// Unknown tiers price as fast
	if got := Cost("does-not-exist"); got != Cost(TierFast) {
		t.Errorf("Cost(unknown) = %v, want fast cost %v", got, Cost(TierFast))
	}
}

func TestGetTierSpecFallback(t *testing.T) {
	spec := GetTierSpec("bogus")
	if spec.Name != TierFast {
		t.Errorf("expected fallback to fast tier, got %q", spec.Name)
	}
}

func TestEstimateDuration(t *testing.T) {
	base := GetTierSpec(TierPro2K).BaseDuration

	tests := []struct {
		name       string
		concurrent int
		want       time.Duration
	}{
		{"no other jobs", 1, base},
		{"zero clamps to base", 0, base},
		{"three concurrent", 3, time.Duration(float64(base) * 1.6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateDuration(TierPro2K, tt.concurrent); got != tt.want {
				t.Errorf("EstimateDuration(%d) = %v, want %v", tt.concurrent, got, tt.want)
			}
		})
	}
}

func TestAllTiersOrdered(t *testing.T) {
	all := AllTiers()
	if len(all) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Order >= all[i].Order {
			t.Errorf("tiers not sorted by order: %q before %q", all[i-1].Name, all[i].Name)
		}
	}
	if all[0].Name != TierFast {
		t.Errorf("expected fast tier first, got %q", all[0].Name)
	}
}
