package scoring

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EdgeScan/internal/domain/models"
)

var asOf = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func labels(s models.EdgeScore) []string {
	out := make([]string, len(s.Components))
	for i, c := range s.Components {
		out[i] = c.Label
	}
	return out
}

func TestScore_FullInputs(t *testing.T) {
	c := NewCombiner(DefaultWeights())
	got := c.Score(Inputs{
		Symbol: "AAA",
		AsOf:   asOf,
		Price:  12.5,
		Signals: []models.Signal{
			{Symbol: "AAA", Kind: models.KindReversal, Timestamp: asOf.AddDate(0, 0, -2), Direction: models.Bullish},
			{Symbol: "AAA", Kind: models.KindConfluence, Timestamp: asOf, Direction: models.Bullish},
		},
		PredictedScore:   f(50),
		Confidence:       f(80),
		ForecastSlope:    f(7),
		RelativeStrength: f(2.5),
	})

	assert.Equal(t, []string{
		LabelPredicted, LabelForecastSlope, LabelReversalRisk, LabelRelativeStrength,
		LabelConfluence, LabelSqueeze, LabelConfidence,
	}, labels(got))

	// 20 + 10 + 10 + 10 + 25 + 0 + 16
	assert.InDelta(t, 91.0, got.Raw, 1e-9)
	assert.Equal(t, 91.0, got.Score)
	assert.Equal(t, 80.0, got.Confidence)
	assert.Equal(t, 12.5, got.Price)
	assert.Contains(t, got.Explanation, "reversal_risk(low) +10.0")

	v, ok := got.Component(LabelSqueeze)
	require.True(t, ok, "evaluated zero components stay on the audit trail")
	assert.Equal(t, 0.0, v)
}

func TestScore_FullConfidenceIsWorthTwentyPoints(t *testing.T) {
	c := NewCombiner(DefaultWeights())
	got := c.Score(Inputs{Symbol: "AAA", AsOf: asOf, PredictedScore: f(0), Confidence: f(100)})
	v, ok := got.Component(LabelConfidence)
	require.True(t, ok)
	assert.Equal(t, 20.0, v)
}

func TestScore_ClampedToRange(t *testing.T) {
	c := NewCombiner(DefaultWeights())
	extremes := []float64{-1e12, -100, 0, 100, 1e12, math.Inf(1), math.Inf(-1), math.NaN()}
	for _, p := range extremes {
		for _, rs := range extremes {
			for _, slope := range extremes {
				got := c.Score(Inputs{
					Symbol:           "X",
					AsOf:             asOf,
					PredictedScore:   f(p),
					Confidence:       f(p),
					ForecastSlope:    f(slope),
					RelativeStrength: f(rs),
					Signals: []models.Signal{
						{Kind: models.KindReversal, Timestamp: asOf, Direction: models.Bearish},
					},
				})
				msg := fmt.Sprintf("p=%v rs=%v slope=%v", p, rs, slope)
				assert.GreaterOrEqual(t, got.Score, 0.0, msg)
				assert.LessOrEqual(t, got.Score, 100.0, msg)
			}
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	c := NewCombiner(DefaultWeights())
	in := Inputs{
		Symbol:           "AAA",
		AsOf:             asOf,
		PredictedScore:   f(61.37),
		Confidence:       f(55.5),
		ForecastSlope:    f(-1.23),
		RelativeStrength: f(0.77),
	}
	first := c.Score(in)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, c.Score(in))
	}
}

func TestScore_UnavailableInputsOmitted(t *testing.T) {
	c := NewCombiner(DefaultWeights())
	got := c.Score(Inputs{
		Symbol: "AAA",
		AsOf:   asOf,
		Suppressed: map[models.SignalKind]error{
			models.KindConfluence: models.ErrInsufficientHistory,
		},
	})
	assert.Equal(t, []string{LabelReversalRisk, LabelSqueeze}, labels(got))
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, "no contributing signals", got.Explanation)
}

func TestScore_Renormalization(t *testing.T) {
	in := Inputs{
		Symbol: "AAA",
		AsOf:   asOf,
		Signals: []models.Signal{
			{Kind: models.KindVolatilitySqueeze, Timestamp: asOf, Direction: models.Neutral},
		},
	}

	w := DefaultWeights()
	prop := NewCombiner(w).Score(in)
	sq, _ := prop.Component(LabelSqueeze)
	assert.InDelta(t, 25/0.6, sq, 1e-9)
	assert.Equal(t, 41.7, prop.Score)

	w.Renormalization = RenormNone
	none := NewCombiner(w).Score(in)
	sq, _ = none.Component(LabelSqueeze)
	assert.Equal(t, 25.0, sq)
	assert.Equal(t, 25.0, none.Score)

	// with a prediction present nothing is rescaled
	in.PredictedScore = f(0)
	withPred := NewCombiner(DefaultWeights()).Score(in)
	assert.Equal(t, 25.0, withPred.Score)
}

func TestScore_SqueezeOnlyCountsOnScoredBar(t *testing.T) {
	c := NewCombiner(DefaultWeights())
	got := c.Score(Inputs{
		Symbol:         "AAA",
		AsOf:           asOf,
		PredictedScore: f(0),
		Signals: []models.Signal{
			{Kind: models.KindVolatilitySqueeze, Timestamp: asOf.AddDate(0, 0, -1)},
		},
	})
	v, _ := got.Component(LabelSqueeze)
	assert.Equal(t, 0.0, v)
}

func TestTier(t *testing.T) {
	assert.Equal(t, models.RiskNeutral, Tier(nil))
	assert.Equal(t, models.RiskHigh, Tier([]models.Signal{
		{Kind: models.KindReversal, Timestamp: asOf.AddDate(0, 0, -3), Direction: models.Bullish},
		{Kind: models.KindReversal, Timestamp: asOf, Direction: models.Bearish},
	}))
	assert.Equal(t, models.RiskLow, Tier([]models.Signal{
		{Kind: models.KindReversal, Timestamp: asOf, Direction: models.Bullish},
		{Kind: models.KindMagicReversal, Timestamp: asOf.AddDate(0, 0, 1), Direction: models.Bearish},
	}))
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 41.7, Round1(25/0.6))
	assert.Equal(t, 0.1, Round1(0.05))
	assert.Equal(t, 99.9, Round1(99.94))
}
