package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"EdgeScan/internal/domain/models"
	domrepo "EdgeScan/internal/domain/repository"
	icache "EdgeScan/internal/service/cache"
	"EdgeScan/internal/services/backtest"
	"EdgeScan/internal/usecase"
	xhttp "EdgeScan/pkg/http"
	xlogger "EdgeScan/pkg/logger"
)

// EdgeHandler serves scores, signals, the ranked board and backtests.
type EdgeHandler struct {
	pipeline *usecase.EdgePipeline
	scanner  *usecase.BatchScanner
	backtest *usecase.BacktestRun
	board    domrepo.BoardCache
	cache    icache.BytesCache
	cacheTTL time.Duration
	l        *xlogger.Logger
}

var _ xhttp.Handler = (*EdgeHandler)(nil)

type EdgeHandlerParams struct {
	Pipeline *usecase.EdgePipeline
	Scanner  *usecase.BatchScanner
	Backtest *usecase.BacktestRun
	Board    domrepo.BoardCache
	// Cache holds rendered per-symbol responses for CacheTTL. Optional.
	Cache    icache.BytesCache
	CacheTTL time.Duration
	Logger   *xlogger.Logger
}

func NewEdgeHandler(p EdgeHandlerParams) *EdgeHandler {
	l := p.Logger
	if l == nil {
		l = xlogger.Nop()
	}
	return &EdgeHandler{
		pipeline: p.Pipeline,
		scanner:  p.Scanner,
		backtest: p.Backtest,
		board:    p.Board,
		cache:    p.Cache,
		cacheTTL: p.CacheTTL,
		l:        l,
	}
}

func (h *EdgeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/scores", h.Score)
	g.GET("/signals", h.Signals)
	g.GET("/board", h.Board)
	g.GET("/backtest", h.Backtest)
	if h.scanner != nil {
		g.POST("/scan", h.Scan)
	}
}

// Score returns the consolidated analysis of one symbol.
func (h *EdgeHandler) Score(c echo.Context) error {
	req := &models.ScoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := strings.ToUpper(req.Symbol)
	key := fmt.Sprintf("scores:%s:%s:%d", symbol, strings.ToUpper(req.Benchmark), req.Lookback)

	return h.cached(c, key, func(ctx context.Context) (interface{}, error) {
		return h.pipeline.AnalyzeWith(ctx, symbol, usecase.AnalyzeOptions{
			Benchmark:    strings.ToUpper(req.Benchmark),
			LookbackDays: req.Lookback,
		})
	})
}

type signalsResponse struct {
	Symbol     string                       `json:"symbol"`
	Timeframe  models.Timeframe             `json:"timeframe"`
	Timestamp  time.Time                    `json:"timestamp"`
	Signals    []models.Signal              `json:"signals"`
	Suppressed map[models.SignalKind]string `json:"suppressed,omitempty"`
}

// Signals lists the signals of the last Recent bars on the requested
// timeframe.
func (h *EdgeHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := strings.ToUpper(req.Symbol)
	tf := models.NormalizeTimeframe(req.TF)
	key := fmt.Sprintf("signals:%s:%s:%d:%d", symbol, tf, req.Lookback, req.Recent)

	return h.cached(c, key, func(ctx context.Context) (interface{}, error) {
		a, err := h.pipeline.AnalyzeWith(ctx, symbol, usecase.AnalyzeOptions{
			LookbackDays: req.Lookback,
			RecentBars:   req.Recent,
			Timeframe:    tf,
		})
		if err != nil {
			return nil, err
		}
		sigs := a.Signals
		if sigs == nil {
			sigs = []models.Signal{}
		}
		return signalsResponse{Symbol: a.Symbol, Timeframe: tf, Timestamp: a.Timestamp, Signals: sigs, Suppressed: a.Suppressed}, nil
	})
}

// Board returns the top of the latest ranked board.
func (h *EdgeHandler) Board(c echo.Context) error {
	req := &models.BoardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.board == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no board cache configured"))
	}
	board, ok, err := h.board.LatestBoard(c.Request().Context())
	if err != nil {
		h.l.Error("board cache read", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("board unavailable").WithError(err))
	}
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no scan has completed yet"))
	}
	board.Scores = board.Top(req.Top)
	return xhttp.SuccessResponse(c, board)
}

// Backtest replays the score log with the requested lookahead.
func (h *EdgeHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.backtest == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no score log configured"))
	}
	report, err := h.backtest.RunWith(c.Request().Context(), backtest.Config{
		LookaheadDays: req.Lookahead,
		MinConfidence: req.MinConfidence,
	})
	if err != nil {
		h.l.Error("backtest", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, report)
}

type scanRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,max=500,dive,required"`
}

// Scan runs a batch synchronously and returns its board.
func (h *EdgeHandler) Scan(c echo.Context) error {
	req := &scanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	board, err := h.scanner.Run(c.Request().Context(), req.Symbols)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, board)
}

// cached serves key from the response cache or computes, stores and
// serves it. Errors are never cached.
func (h *EdgeHandler) cached(c echo.Context, key string, compute func(context.Context) (interface{}, error)) error {
	ctx := c.Request().Context()
	if h.cache != nil {
		b, ok, err := h.cache.GetBytes(ctx, key)
		switch {
		case err != nil:
			h.l.Warn("response cache get", xlogger.String("key", key), xlogger.Error(err))
		case ok:
			return c.JSONBlob(http.StatusOK, b)
		}
	}

	res, err := compute(ctx)
	if err != nil {
		h.l.Warn("request failed", xlogger.String("key", key), xlogger.String("reason", models.Reason(err)), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	b, err := json.Marshal(xhttp.APIResponse{Status: http.StatusOK, Message: http.StatusText(http.StatusOK), Data: res})
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("encode response").WithError(err))
	}
	if h.cache != nil && h.cacheTTL > 0 {
		if err := h.cache.SetBytes(ctx, key, b, h.cacheTTL); err != nil {
			h.l.Warn("response cache set", xlogger.String("key", key), xlogger.Error(err))
		}
	}
	return c.JSONBlob(http.StatusOK, b)
}

// toAppError maps domain failures onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	reason := models.Reason(err)
	var e *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrDataUnavailable):
		e = xhttp.NotFoundError(err.Error())
	case errors.Is(err, models.ErrInsufficientHistory), errors.Is(err, models.ErrMissingField):
		e = xhttp.UnprocessableError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		e = xhttp.GatewayTimeoutError(err.Error())
	default:
		e = xhttp.InternalError("computation failed")
	}
	return e.WithParam("reason", reason).WithError(err)
}
