package handlers

import (
	"context"

	"github.com/easelhq/easel-api/internal/constants"
)

// TierInfo is the public description of one generation tier.
type TierInfo struct {
	Name                string  `json:"name"`
	DisplayName         string  `json:"display_name"`
	CostUSD             float64 `json:"cost_usd"`
	Model               string  `json:"model"`
	OutputSize          string  `json:"output_size"`
	BaseDurationSeconds int     `json:"base_duration_seconds"`
}

// ListTiersOutput wraps the tier list.
type ListTiersOutput struct {
	Body struct {
		Tiers []TierInfo `json:"tiers"`
	}
}

// ListTiers returns every generation tier with its price. Public; pricing
// pages render from this.
func ListTiers(ctx context.Context, input *struct{}) (*ListTiersOutput, error) {
	specs := constants.AllTiers()
	tiers := make([]TierInfo, 0, len(specs))
	for _, spec := range specs {
		tiers = append(tiers, TierInfo{
			Name:                spec.Name,
			DisplayName:         spec.DisplayName,
			CostUSD:             spec.CostUSD,
			Model:               spec.Model,
			OutputSize:          spec.OutputSize,
			BaseDurationSeconds: int(spec.BaseDuration.Seconds()),
		})
	}
	out := &ListTiersOutput{}
	out.Body.Tiers = tiers
	return out, nil
}
