package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "SPY", c.Scan.Benchmark)
	assert.Equal(t, 400, c.Scan.LookbackDays)
	assert.Equal(t, 35, c.Indicators.SlowPeriod)
	assert.Equal(t, 0.4, c.Scoring.PredictedWeight)
	assert.Equal(t, 5, c.Backtest.LookaheadDays)
	assert.Equal(t, "edgescan.score_log", c.Kafka.Topic)
	assert.Equal(t, SinkFile, c.ScoreLog.Sink)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "/metrics", c.ServerConfig().MetricsPath)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "")
	path := writeYAML(t, `
environment: test
finnhub:
  api_key: k
scan:
  symbols: [AAPL, MSFT]
  workers: 8
scoring:
  renormalization: none
kafka:
  consumer:
    workers: 4
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, c.Scan.Symbols)
	assert.Equal(t, 8, c.Scan.Workers)
	assert.Equal(t, 30*time.Second, c.Scan.SymbolTimeout)
	assert.EqualValues(t, "none", c.Scoring.Renormalization)
	assert.Equal(t, 4, c.Kafka.Consumer.Workers)
	assert.Equal(t, 256, c.Kafka.Consumer.BufferSize)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "from-env")
	t.Setenv("SYMBOLS", "aapl, nvda")
	t.Setenv("SCORE_LOG", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("EDGE_MODEL_URL", "http://model:8000")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Finnhub.APIKey)
	assert.Equal(t, []string{"aapl", "nvda"}, c.Scan.Symbols)
	assert.Equal(t, SinkKafka, c.ScoreLog.Sink)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.EdgeModel.Enabled())
}

func TestValidate(t *testing.T) {
	c := Default()
	assert.ErrorContains(t, c.Validate(), "finnhub.api_key")

	c.Finnhub.APIKey = "k"
	require.NoError(t, c.Validate())

	c.PriceSource.Type = PriceSourceClickHouse
	assert.ErrorContains(t, c.Validate(), "clickhouse.host")
	c.ClickHouse.Host = "ch"
	require.NoError(t, c.Validate())

	c.ScoreLog.Sink = SinkKafka
	assert.ErrorContains(t, c.Validate(), "kafka.brokers")

	c = Default()
	c.Finnhub.APIKey = "k"
	c.Indicators.SlowPeriod = 3
	assert.Error(t, c.Validate())

	c = Default()
	c.Finnhub.APIKey = "k"
	c.ScoreLog.Sink = "s3"
	assert.Error(t, c.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeYAML(t, "scan: [oops"))
	assert.ErrorContains(t, err, "parse config")
}
