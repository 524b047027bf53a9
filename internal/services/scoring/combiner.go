package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"EdgeScan/internal/domain/models"
)

// Component labels, in the order they appear on a score.
const (
	LabelPredicted        = "predicted"
	LabelForecastSlope    = "forecast_slope"
	LabelReversalRisk     = "reversal_risk"
	LabelRelativeStrength = "relative_strength"
	LabelConfluence       = "confluence"
	LabelSqueeze          = "volatility_squeeze"
	LabelConfidence       = "confidence"
)

// Inputs is everything known about one symbol at scoring time. Nil
// pointers mark features that are structurally unavailable.
type Inputs struct {
	Symbol           string
	AsOf             time.Time
	Price            float64
	Signals          []models.Signal
	Suppressed       map[models.SignalKind]error
	PredictedScore   *float64
	Confidence       *float64
	ForecastSlope    *float64
	RelativeStrength *float64
}

// Combiner blends signals and side features into one EdgeScore. It holds
// no state besides its weights; equal inputs give equal scores.
type Combiner struct {
	w Weights
}

func NewCombiner(w Weights) *Combiner {
	return &Combiner{w: w}
}

func (c *Combiner) Weights() Weights { return c.w }

// Score computes the composite. Components that were evaluated are kept
// even when zero; unavailable ones are left out.
func (c *Combiner) Score(in Inputs) models.EdgeScore {
	var comps []models.ScoreComponent
	add := func(label string, v float64) {
		comps = append(comps, models.ScoreComponent{Label: label, Value: v})
	}

	scale := 1.0
	if in.PredictedScore != nil {
		add(LabelPredicted, *in.PredictedScore*c.w.PredictedWeight)
	} else if c.w.Renormalization == RenormProportional && c.w.PredictedWeight < 1 {
		scale = 1 / (1 - c.w.PredictedWeight)
	}

	if in.ForecastSlope != nil {
		add(LabelForecastSlope, scale*clamp(*in.ForecastSlope, -c.w.SlopeClamp, c.w.SlopeClamp)*c.w.SlopeMultiplier)
	}

	tier := models.RiskNeutral
	if !c.suppressed(in, models.KindReversal) {
		tier = Tier(in.Signals)
		add(LabelReversalRisk, scale*c.tierAdjustment(tier))
	}

	if in.RelativeStrength != nil {
		add(LabelRelativeStrength, scale*clamp(*in.RelativeStrength*c.w.RelativeStrengthMultiplier, 0, c.w.RelativeStrengthCap))
	}

	if !c.suppressed(in, models.KindConfluence) {
		v := 0.0
		if hasAt(in.Signals, models.KindConfluence, models.Bullish, in.AsOf) {
			v = c.w.ConfluenceBonus
		}
		add(LabelConfluence, scale*v)
	}

	if !c.suppressed(in, models.KindVolatilitySqueeze) {
		v := 0.0
		if hasAt(in.Signals, models.KindVolatilitySqueeze, "", in.AsOf) {
			v = c.w.SqueezeBonus
		}
		add(LabelSqueeze, scale*v)
	}

	confidence := 0.0
	if in.Confidence != nil {
		confidence = clamp(*in.Confidence, 0, 100)
		add(LabelConfidence, scale*confidence*c.w.ConfidenceWeight)
	}

	raw := 0.0
	for _, comp := range comps {
		raw += comp.Value
	}

	return models.EdgeScore{
		Symbol:      in.Symbol,
		Timestamp:   in.AsOf,
		Score:       Round1(clamp(raw, 0, 100)),
		Raw:         raw,
		Components:  comps,
		Confidence:  confidence,
		Price:       in.Price,
		Explanation: explain(comps, tier),
	}
}

func (c *Combiner) suppressed(in Inputs, kind models.SignalKind) bool {
	_, ok := in.Suppressed[kind]
	return ok
}

func (c *Combiner) tierAdjustment(t models.RiskTier) float64 {
	switch t {
	case models.RiskLow:
		return c.w.ReversalRiskAdjustment
	case models.RiskHigh:
		return -c.w.ReversalRiskAdjustment
	default:
		return 0
	}
}

// Tier classifies risk from the most recent reversal signal: bearish is
// high risk, bullish is low risk, none is neutral.
func Tier(sigs []models.Signal) models.RiskTier {
	var latest *models.Signal
	for i := range sigs {
		s := &sigs[i]
		if s.Kind != models.KindReversal || s.Direction == models.Neutral {
			continue
		}
		if latest == nil || s.Timestamp.After(latest.Timestamp) {
			latest = s
		}
	}
	switch {
	case latest == nil:
		return models.RiskNeutral
	case latest.Direction == models.Bearish:
		return models.RiskHigh
	default:
		return models.RiskLow
	}
}

func hasAt(sigs []models.Signal, kind models.SignalKind, dir models.Direction, ts time.Time) bool {
	for _, s := range sigs {
		if s.Kind != kind || !s.Timestamp.Equal(ts) {
			continue
		}
		if dir == "" || s.Direction == dir {
			return true
		}
	}
	return false
}

func explain(comps []models.ScoreComponent, tier models.RiskTier) string {
	parts := make([]string, 0, len(comps))
	for _, c := range comps {
		if c.Value == 0 {
			continue
		}
		label := c.Label
		if c.Label == LabelReversalRisk {
			label = fmt.Sprintf("%s(%s)", c.Label, tier)
		}
		parts = append(parts, fmt.Sprintf("%s %+.1f", label, c.Value))
	}
	if len(parts) == 0 {
		return "no contributing signals"
	}
	return strings.Join(parts, "; ")
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}
