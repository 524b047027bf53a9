package models

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable is returned when the price supplier has nothing for a symbol.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInsufficientHistory marks a computation that needs more bars than supplied.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrMissingField is returned when a required bar field (Close) is absent.
	ErrMissingField = errors.New("missing field")
	// ErrComputation covers non-finite values and malformed series.
	ErrComputation = errors.New("computation error")
	// ErrFutureDataNotYetAvailable is returned by the backtest when the lookahead bar does not exist yet.
	ErrFutureDataNotYetAvailable = errors.New("future data not yet available")
)

// SymbolError ties a failure to the ticker it happened on.
type SymbolError struct {
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Symbol, e.Err)
}

func (e *SymbolError) Unwrap() error { return e.Err }

// Reason maps an error to a short, stable label used in logs and metric labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrComputation):
		return "computation_error"
	case errors.Is(err, ErrFutureDataNotYetAvailable):
		return "future_data_not_yet_available"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}
