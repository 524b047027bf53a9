package scoring

import "github.com/creasty/defaults"

// Renormalization decides what happens to the remaining contributions when
// the external predicted score is unavailable.
type Renormalization string

const (
	// RenormProportional scales every remaining contribution by 1/(1-PredictedWeight).
	RenormProportional Renormalization = "proportional"
	// RenormNone leaves the remaining contributions untouched.
	RenormNone Renormalization = "none"
)

// Weights are the tunable coefficients of the composite score.
type Weights struct {
	PredictedWeight            float64         `yaml:"predicted_weight" default:"0.4" validate:"gte=0,lt=1"`
	SlopeClamp                 float64         `yaml:"slope_clamp" default:"5" validate:"gte=0"`
	SlopeMultiplier            float64         `yaml:"slope_multiplier" default:"2" validate:"gte=0"`
	ReversalRiskAdjustment     float64         `yaml:"reversal_risk_adjustment" default:"10" validate:"gte=0"`
	RelativeStrengthMultiplier float64         `yaml:"relative_strength_multiplier" default:"4" validate:"gte=0"`
	RelativeStrengthCap        float64         `yaml:"relative_strength_cap" default:"20" validate:"gte=0"`
	ConfluenceBonus            float64         `yaml:"confluence_bonus" default:"25" validate:"gte=0"`
	SqueezeBonus               float64         `yaml:"squeeze_bonus" default:"25" validate:"gte=0"`
	ConfidenceWeight           float64         `yaml:"confidence_weight" default:"0.2" validate:"gte=0"`
	Renormalization            Renormalization `yaml:"renormalization" default:"proportional" validate:"oneof=proportional none"`
}

func DefaultWeights() Weights {
	var w Weights
	_ = defaults.Set(&w)
	return w
}
