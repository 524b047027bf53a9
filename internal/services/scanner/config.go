package scanner

import "github.com/creasty/defaults"

// Config holds every detector threshold. The defaults are heuristics and
// are expected to be tuned against backtest output.
type Config struct {
	ReversalLookback    int     `yaml:"reversal_lookback" default:"5" validate:"gte=1"`
	ReversalSensitivity float64 `yaml:"reversal_sensitivity" default:"1.5" validate:"gt=0"`

	RSIOversold   float64 `yaml:"rsi_oversold" default:"30" validate:"gte=0,lte=100"`
	RSIOverbought float64 `yaml:"rsi_overbought" default:"70" validate:"gte=0,lte=100,gtfield=RSIOversold"`
	TrendFilter   bool    `yaml:"trend_filter" default:"true"`
	TrendPeriod   int     `yaml:"trend_period" default:"50" validate:"gte=1"`

	HighWindow    int     `yaml:"high_window" default:"252" validate:"gte=1"`
	HighTolerance float64 `yaml:"high_tolerance" default:"0.01" validate:"gte=0,lt=1"`
	HighMinBars   int     `yaml:"high_min_bars" default:"5" validate:"gte=1"`

	CrossoverPeriod int `yaml:"crossover_period" default:"200" validate:"gte=1"`
	CrossoverWindow int `yaml:"crossover_window" default:"5" validate:"gte=1"`

	SqueezePeriod   int     `yaml:"squeeze_period" default:"20" validate:"gte=2"`
	SqueezeStdDev   float64 `yaml:"squeeze_std_dev" default:"2" validate:"gt=0"`
	SqueezeQuantile float64 `yaml:"squeeze_quantile" default:"0.1" validate:"gt=0,lt=1"`
	SqueezeHistory  int     `yaml:"squeeze_history" default:"126" validate:"gte=2"`
	SqueezeMinBars  int     `yaml:"squeeze_min_bars" default:"50" validate:"gte=1"`

	DivergenceWindow int `yaml:"divergence_window" default:"20" validate:"gte=2"`

	RecentBars             int `yaml:"recent_bars" default:"5" validate:"gte=1"`
	ConfluenceWeeklyRecent int `yaml:"confluence_weekly_recent" default:"2" validate:"gte=1"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}
