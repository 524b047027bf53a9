package models

// Requests for the scoring HTTP endpoints. Defined in domain for consistency and reuse.

type ScoreRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Benchmark string `query:"benchmark" json:"benchmark" default:"SPY"`
	Lookback  int    `query:"lookback" json:"lookback" default:"400" validate:"gte=60,lte=5000"`
}

type SignalsRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Lookback int    `query:"lookback" json:"lookback" default:"400" validate:"gte=60,lte=5000"`
	Recent   int    `query:"recent" json:"recent" default:"0" validate:"gte=0,lte=60"`
	TF       string `query:"tf" json:"tf" default:"1d" validate:"oneof=1d 1w"`
}

type BoardRequest struct {
	Top int `query:"top" json:"top" default:"20" validate:"gte=1,lte=1000"`
}

type BacktestRequest struct {
	Lookahead     int     `query:"lookahead" json:"lookahead" default:"5" validate:"gte=1,lte=250"`
	MinConfidence float64 `query:"min_confidence" json:"min_confidence" default:"50" validate:"gte=0,lte=100"`
}
