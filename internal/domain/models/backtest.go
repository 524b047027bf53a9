package models

import "time"

// BacktestRecord pairs a logged prediction with the price realised after
// the lookahead. Only produced when the future bar exists.
type BacktestRecord struct {
	Symbol            string    `json:"symbol" db:"symbol"`
	SignalTimestamp   time.Time `json:"signal_timestamp" db:"signal_timestamp"`
	PredictedScore    float64   `json:"predicted_score" db:"predicted_score"`
	Confidence        float64   `json:"confidence" db:"confidence"`
	PriceAtSignal     float64   `json:"price_at_signal" db:"price_at_signal"`
	LookaheadDays     int       `json:"lookahead_days" db:"lookahead_days"`
	RealizedPrice     float64   `json:"realized_price" db:"realized_price"`
	RealizedReturnPct float64   `json:"realized_return_pct" db:"realized_return_pct"`
}

// ConfidenceBucket aggregates records whose confidence falls in [Low, High).
type ConfidenceBucket struct {
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Count      int     `json:"count"`
	MeanReturn float64 `json:"mean_return_pct"`
	HitRate    float64 `json:"hit_rate"`
}

// BacktestReport summarises an evaluation run.
type BacktestReport struct {
	Records     []BacktestRecord   `json:"records"`
	Evaluated   int                `json:"evaluated"`
	Filtered    int                `json:"filtered"`
	Pending     int                `json:"pending"`
	Failed      int                `json:"failed"`
	MeanReturn  float64            `json:"mean_return_pct"`
	HitRate     float64            `json:"hit_rate"`
	Correlation float64            `json:"correlation"`
	Buckets     []ConfidenceBucket `json:"buckets"`
}
