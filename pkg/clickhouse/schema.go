package clickhouse

import "fmt"

// Schema returns the DDL for the price, score log and backtest tables in db.
func Schema(db string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.daily_bars (
			symbol LowCardinality(String),
			date   Date,
			open   Float64,
			high   Float64,
			low    Float64,
			close  Float64,
			volume Float64
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, date)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.score_log (
			run_id      String,
			timestamp   DateTime64(3, 'UTC'),
			symbol      LowCardinality(String),
			score       Float64,
			confidence  Float64,
			price       Float64,
			explanation String,
			inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
		) ENGINE = MergeTree ORDER BY (symbol, inserted_at)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_records (
			symbol              LowCardinality(String),
			signal_timestamp    DateTime64(3, 'UTC'),
			predicted_score     Float64,
			confidence          Float64,
			price_at_signal     Float64,
			lookahead_days      UInt16,
			realized_price      Float64,
			realized_return_pct Float64,
			inserted_at         DateTime64(3, 'UTC') DEFAULT now64(3)
		) ENGINE = MergeTree ORDER BY (symbol, signal_timestamp)`, db),
	}
}
