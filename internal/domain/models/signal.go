package models

import "time"

// SignalKind names a detector.
type SignalKind string

const (
	KindReversal          SignalKind = "reversal"
	KindMagicReversal     SignalKind = "magic_reversal"
	KindMACrossover       SignalKind = "ma_crossover"
	KindFiftyTwoWeekHigh  SignalKind = "fifty_two_week_high"
	KindVolatilitySqueeze SignalKind = "volatility_squeeze"
	KindConfluence        SignalKind = "confluence"
	KindDivergence        SignalKind = "divergence"
	KindEWOTrend          SignalKind = "ewo_trend"
)

// AllKinds lists every detector in evaluation order.
var AllKinds = []SignalKind{
	KindReversal,
	KindMagicReversal,
	KindMACrossover,
	KindFiftyTwoWeekHigh,
	KindVolatilitySqueeze,
	KindConfluence,
	KindDivergence,
	KindEWOTrend,
}

type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Signal is a discrete, timestamped detector firing.
type Signal struct {
	Symbol    string     `json:"symbol"`
	Kind      SignalKind `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`
	Direction Direction  `json:"direction"`
	Strength  float64    `json:"strength"`
}

// Key identifies a signal for de-duplication.
func (s Signal) Key() string {
	return s.Symbol + "|" + string(s.Kind) + "|" + s.Timestamp.UTC().Format(time.RFC3339) + "|" + string(s.Direction)
}

// RiskTier is the reversal-derived risk classification used by the combiner.
type RiskTier string

const (
	RiskHigh    RiskTier = "high"
	RiskLow     RiskTier = "low"
	RiskNeutral RiskTier = "neutral"
)

// Prediction is what an external edge model returns for a symbol.
type Prediction struct {
	Score      float64 `json:"predicted_score"`
	Confidence float64 `json:"confidence"`
}

// ScoreComponent is one labelled contribution to a composite score.
type ScoreComponent struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// EdgeScore is the composite 0-100 ranking value of one symbol at one bar.
type EdgeScore struct {
	Symbol      string           `json:"symbol"`
	Timestamp   time.Time        `json:"timestamp"`
	Score       float64          `json:"score"`
	Raw         float64          `json:"raw"`
	Components  []ScoreComponent `json:"components"`
	Confidence  float64          `json:"confidence"`
	Price       float64          `json:"price"`
	Explanation string           `json:"explanation"`
}

// Component returns the value of the labelled component if present.
func (e EdgeScore) Component(label string) (float64, bool) {
	for _, c := range e.Components {
		if c.Label == label {
			return c.Value, true
		}
	}
	return 0, false
}

// SymbolAnalysis is the consolidated per-symbol view: signals, suppressed
// detectors and the composite score.
type SymbolAnalysis struct {
	Symbol     string                `json:"symbol"`
	Timestamp  time.Time             `json:"timestamp"`
	Price      float64               `json:"price"`
	Signals    []Signal              `json:"signals"`
	Suppressed map[SignalKind]string `json:"suppressed,omitempty"`
	Score      *EdgeScore            `json:"score,omitempty"`
	Errors     map[string]string     `json:"errors,omitempty"`
}
