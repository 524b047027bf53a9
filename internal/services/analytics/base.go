package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	xhttp "EdgeScan/pkg/http"
)

type Config struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout" default:"3s"`
	Attempts int           `yaml:"attempts" default:"3" validate:"gte=1"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"15m"`
}

// Enabled reports whether an edge model endpoint is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.URL) != "" }

// HTTPServiceBase posts JSON to a model service under one base URL.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

func NewHTTPServiceBase(cfg Config, client *xhttp.Client) *HTTPServiceBase {
	if client == nil {
		client = xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout))
	}
	return &HTTPServiceBase{baseURL: strings.TrimRight(cfg.URL, "/"), client: client}
}

func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload, dest interface{}) error {
	if b.baseURL == "" {
		return fmt.Errorf("model service url not configured")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    b.baseURL + path,
		Body:   payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transport failures, 429 and 5xx with a linear
// backoff. Other statuses are returned at once.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, path string, payload, dest interface{}, attempts int) error {
	var err error
	for i := 1; ; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || i >= attempts || !retryable(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
