package models

import "time"

// ScoreLogEntry is one durable row of the score log, appended once per
// scored symbol per run.
type ScoreLogEntry struct {
	RunID       string    `json:"run_id" db:"run_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	Symbol      string    `json:"symbol" db:"symbol"`
	Score       float64   `json:"score" db:"score"`
	Confidence  float64   `json:"confidence" db:"confidence"`
	Price       float64   `json:"price" db:"price"`
	Explanation string    `json:"explanation" db:"explanation"`
}

// NewScoreLogEntry flattens a score for the log.
func NewScoreLogEntry(runID string, s EdgeScore) ScoreLogEntry {
	return ScoreLogEntry{
		RunID:       runID,
		Timestamp:   s.Timestamp,
		Symbol:      s.Symbol,
		Score:       s.Score,
		Confidence:  s.Confidence,
		Price:       s.Price,
		Explanation: s.Explanation,
	}
}

// SymbolFailure records why a symbol did not make the board.
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// RankedBoard is the result of one batch run, best score first.
type RankedBoard struct {
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Scores    []EdgeScore     `json:"scores"`
	Failures  []SymbolFailure `json:"failures,omitempty"`
}

// Top returns at most n leading scores.
func (b RankedBoard) Top(n int) []EdgeScore {
	if n <= 0 || n >= len(b.Scores) {
		return b.Scores
	}
	return b.Scores[:n]
}
