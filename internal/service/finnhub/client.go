package finnhub

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	"EdgeScan/internal/service/ratelimit"
	pkghttp "EdgeScan/pkg/http"
	"EdgeScan/pkg/logger"
)

type Config struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url" default:"https://finnhub.io/api/v1" validate:"url"`
	Timeout   time.Duration `yaml:"timeout" default:"10s"`
	RPS       float64       `yaml:"rps" default:"1" validate:"gte=0"`
	Burst     int           `yaml:"burst" default:"5" validate:"gte=1"`
	TripAfter uint32        `yaml:"trip_after" default:"3" validate:"gte=1"`
	OpenFor   time.Duration `yaml:"open_for" default:"60s"`
}

// Client fetches daily candles from the Finnhub REST API. Calls are rate
// limited and pass through a circuit breaker that opens after repeated
// transport or 5xx/429 failures.
type Client struct {
	cfg     Config
	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	l       *logger.Logger
	now     func() time.Time
}

var _ domrepo.PriceSupplier = (*Client)(nil)

func New(cfg Config, httpClient *pkghttp.Client, limiter *ratelimit.Limiter, l *logger.Logger) *Client {
	if l == nil {
		l = logger.Nop()
	}
	if httpClient == nil {
		httpClient = pkghttp.NewClient(pkghttp.WithTimeout(cfg.Timeout))
	}
	if limiter == nil {
		limiter = ratelimit.New(cfg.RPS, cfg.Burst)
	}
	c := &Client{cfg: cfg, http: httpClient, limiter: limiter, l: l, now: time.Now}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "finnhub",
		Timeout: cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

type candleResponse struct {
	Status string     `json:"s"`
	Time   []int64    `json:"t"`
	Open   []*float64 `json:"o"`
	High   []*float64 `json:"h"`
	Low    []*float64 `json:"l"`
	Close  []*float64 `json:"c"`
	Volume []*float64 `json:"v"`
}

// GetPriceSeries returns daily bars for the last lookbackDays calendar days.
// "no_data" yields an empty series; nulls in the payload become NaN.
func (c *Client) GetPriceSeries(ctx context.Context, symbol string, lookbackDays int) (models.PriceSeries, error) {
	if err := c.limiter.Wait(ctx, "finnhub"); err != nil {
		return models.PriceSeries{}, fmt.Errorf("finnhub rate limit wait: %w", err)
	}

	to := c.now().UTC()
	from := to.AddDate(0, 0, -lookbackDays)
	req := &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    strings.TrimRight(c.cfg.BaseURL, "/") + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"resolution": {"D"},
			"from":       {fmt.Sprint(from.Unix())},
			"to":         {fmt.Sprint(to.Unix())},
		},
		Headers: map[string]string{"X-Finnhub-Token": c.cfg.APIKey},
	}

	var resp candleResponse
	var permanent error
	_, err := c.breaker.Execute(func() (interface{}, error) {
		err := c.http.SendAndParse(ctx, req, &resp)
		var se *pkghttp.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			// a 4xx says nothing about upstream health
			permanent = err
			return nil, nil
		}
		return nil, err
	})
	if err == nil {
		err = permanent
	}
	if err != nil {
		c.l.Error("finnhub candle request", logger.Symbol(symbol), logger.Error(err))
		return models.PriceSeries{}, fmt.Errorf("finnhub candles %s: %w", symbol, err)
	}
	return toSeries(symbol, resp)
}

func toSeries(symbol string, r candleResponse) (models.PriceSeries, error) {
	out := models.PriceSeries{Symbol: symbol}
	if r.Status == "no_data" || len(r.Time) == 0 {
		return out, nil
	}
	if r.Status != "ok" {
		return out, fmt.Errorf("finnhub status %q: %w", r.Status, models.ErrDataUnavailable)
	}
	n := len(r.Time)
	for _, col := range [][]*float64{r.Open, r.High, r.Low, r.Close, r.Volume} {
		if len(col) != n {
			return out, fmt.Errorf("finnhub candle columns differ in length: %w", models.ErrComputation)
		}
	}
	out.Bars = make([]models.PriceBar, n)
	for i, ts := range r.Time {
		out.Bars[i] = models.PriceBar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   orNaN(r.Open[i]),
			High:   orNaN(r.High[i]),
			Low:    orNaN(r.Low[i]),
			Close:  orNaN(r.Close[i]),
			Volume: orNaN(r.Volume[i]),
		}
	}
	return out, nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
