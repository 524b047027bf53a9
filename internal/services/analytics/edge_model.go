package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"EdgeScan/internal/domain/models"
	domsvc "EdgeScan/internal/domain/service"
	"EdgeScan/internal/service/cache"
	xhttp "EdgeScan/pkg/http"
)

// HTTPEdgeModel asks an external model service for a predicted score.
// Answers are cached per symbol and feature vector for CacheTTL.
type HTTPEdgeModel struct {
	base     *HTTPServiceBase
	attempts int
	cache    cache.BytesCache
	cfg      Config
}

var _ domsvc.EdgeModel = (*HTTPEdgeModel)(nil)

func NewHTTPEdgeModel(cfg Config, client *xhttp.Client, c cache.BytesCache) *HTTPEdgeModel {
	return &HTTPEdgeModel{base: NewHTTPServiceBase(cfg, client), attempts: cfg.Attempts, cache: c, cfg: cfg}
}

type edgeRequest struct {
	Symbol   string             `json:"symbol"`
	Features map[string]float64 `json:"features"`
}

type edgeResponse struct {
	PredictedScore *float64 `json:"predicted_score"`
	Confidence     float64  `json:"confidence"`
}

// Predict returns models.ErrDataUnavailable when the service has no
// prediction for the symbol (404 or a null score).
func (m *HTTPEdgeModel) Predict(ctx context.Context, symbol string, features map[string]float64) (models.Prediction, error) {
	key := cacheKey(symbol, features)
	if m.cache != nil {
		if b, ok, err := m.cache.GetBytes(ctx, key); err == nil && ok {
			var p models.Prediction
			if json.Unmarshal(b, &p) == nil {
				return p, nil
			}
		}
	}

	var resp edgeResponse
	err := m.base.PostJSONWithRetry(ctx, "/edge/predict", edgeRequest{Symbol: symbol, Features: finite(features)}, &resp, m.attempts)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return models.Prediction{}, fmt.Errorf("edge model %s: %w", symbol, models.ErrDataUnavailable)
		}
		return models.Prediction{}, fmt.Errorf("edge model %s: %w", symbol, err)
	}
	if resp.PredictedScore == nil || math.IsNaN(*resp.PredictedScore) {
		return models.Prediction{}, fmt.Errorf("edge model %s returned no score: %w", symbol, models.ErrDataUnavailable)
	}

	p := models.Prediction{Score: *resp.PredictedScore, Confidence: resp.Confidence}
	if m.cache != nil {
		if b, err := json.Marshal(p); err == nil {
			_ = m.cache.SetBytes(ctx, key, b, m.cfg.CacheTTL)
		}
	}
	return p, nil
}

// finite drops NaN and Inf features, which JSON cannot carry.
func finite(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}

func cacheKey(symbol string, features map[string]float64) string {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("edgescan:edge:")
	sb.WriteString(symbol)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(features[k], 'g', 8, 64))
	}
	return sb.String()
}

// NoModel is used when no model service is configured.
type NoModel struct{}

func (NoModel) Predict(context.Context, string, map[string]float64) (models.Prediction, error) {
	return models.Prediction{}, models.ErrDataUnavailable
}
