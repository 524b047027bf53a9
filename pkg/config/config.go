package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	icache "EdgeScan/internal/service/cache"
	"EdgeScan/internal/service/finnhub"
	"EdgeScan/internal/services/analytics"
	"EdgeScan/internal/services/backtest"
	"EdgeScan/internal/services/features"
	"EdgeScan/internal/services/indicators"
	"EdgeScan/internal/services/scanner"
	"EdgeScan/internal/services/scoring"
	"EdgeScan/internal/usecase"
	pkgch "EdgeScan/pkg/clickhouse"
	xhttp "EdgeScan/pkg/http"
	pkgkafka "EdgeScan/pkg/kafka"
	"EdgeScan/pkg/logger"
	"EdgeScan/pkg/util"
)

const (
	PriceSourceFinnhub    = "finnhub"
	PriceSourceClickHouse = "clickhouse"

	SinkFile       = "file"
	SinkClickHouse = "clickhouse"
	SinkKafka      = "kafka"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         logger.Config `yaml:"log"`
	Server      xhttp.Config  `yaml:"server"`
	Metrics     struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	API struct {
		CacheTTL time.Duration `yaml:"cache_ttl" default:"60s"`
	} `yaml:"api"`

	Scan       usecase.ScanConfig `yaml:"scan"`
	Indicators indicators.Config  `yaml:"indicators"`
	Scanner    scanner.Config     `yaml:"scanner"`
	Features   features.Config    `yaml:"features"`
	Scoring    scoring.Weights    `yaml:"scoring"`
	Backtest   backtest.Config    `yaml:"backtest"`

	PriceSource struct {
		Type string `yaml:"type" default:"finnhub" validate:"oneof=finnhub clickhouse"`
	} `yaml:"price_source"`
	ScoreLog struct {
		Sink         string        `yaml:"sink" default:"file" validate:"oneof=file clickhouse kafka"`
		Path         string        `yaml:"path" default:"data/score_log.csv"`
		BacktestPath string        `yaml:"backtest_path" default:"data/backtest.csv"`
		BufferSize   int           `yaml:"buffer_size" default:"256" validate:"gte=1"`
		Retries      int           `yaml:"retries" default:"3" validate:"gte=0"`
		RetryBackoff time.Duration `yaml:"retry_backoff" default:"100ms"`
	} `yaml:"score_log"`

	Finnhub    finnhub.Config     `yaml:"finnhub"`
	ClickHouse pkgch.Config       `yaml:"clickhouse"`
	Kafka      pkgkafka.Config    `yaml:"kafka"`
	Redis      icache.RedisConfig `yaml:"redis"`
	EdgeModel  analytics.Config   `yaml:"edge_model"`
}

// Default returns a config built from struct-tag defaults only.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load applies defaults, then the YAML file at path (when non-empty),
// then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	c.applyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := env("FINNHUB_API_KEY"); ok {
		c.Finnhub.APIKey = v
	}
	if v, ok := env("SYMBOLS"); ok {
		c.Scan.Symbols = util.SplitList(v)
	}
	if v, ok := env("PRICE_SOURCE"); ok {
		c.PriceSource.Type = strings.ToLower(v)
	}
	if v, ok := env("SCORE_LOG"); ok {
		c.ScoreLog.Sink = strings.ToLower(v)
	}
	if v, ok := env("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v, ok := env("EDGE_MODEL_URL"); ok {
		c.EdgeModel.URL = v
	}
	if v, ok := env("CLICKHOUSE_HOST"); ok {
		c.ClickHouse.Host = v
	}
	if v, ok := env("REDIS_ADDR"); ok {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v, ok := env("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := env("SCAN_WORKERS"); ok {
		c.Scan.Workers = util.ParseIntDefault(v, c.Scan.Workers)
	}
}

// Validate checks struct tags and the cross-section requirements of the
// selected price source and score log sink.
func (c *Config) Validate() error {
	if err := xhttp.Validator().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return fmt.Errorf("%s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	needCH := c.PriceSource.Type == PriceSourceClickHouse || c.ScoreLog.Sink == SinkClickHouse
	if needCH && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for price_source %q / score_log %q", c.PriceSource.Type, c.ScoreLog.Sink)
	}
	if c.ScoreLog.Sink == SinkKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for the kafka score log")
	}
	if c.PriceSource.Type == PriceSourceFinnhub && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key (or FINNHUB_API_KEY) is required for the finnhub price source")
	}
	return nil
}

// ServerConfig is the server section with the metrics endpoint applied.
func (c *Config) ServerConfig() xhttp.Config {
	s := c.Server
	if c.Metrics.Enabled {
		s.MetricsPath = c.Metrics.Path
	}
	return s
}
