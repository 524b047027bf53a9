package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"EdgeScan/internal/domain/models"
	"EdgeScan/pkg/logger"
	"EdgeScan/pkg/server"
	"EdgeScan/pkg/util"
)

var (
	scanSymbols string
	scanTop     int
	jsonOut     bool

	serveEvery time.Duration

	ingestSymbols string
	ingestDays    int
	ingestSince   string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Score a universe and print the ranked board",
	Long: `Score every symbol (from --symbols or scan.symbols), append one score
log entry per scored symbol and publish the board to the cache.

Examples:
  edgescan scan --symbols AAPL,MSFT,NVDA
  edgescan scan --top 10 --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *server.App) error {
			board, err := app.Scan(ctx, util.SplitList(scanSymbols))
			if err != nil {
				return err
			}
			board.Scores = board.Top(scanTop)
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), board)
			}
			return writeBoard(cmd.OutOrStdout(), board)
		})
	},
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Evaluate logged scores against realised prices",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *server.App) error {
			report, err := app.Backtest(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writeReport(cmd.OutOrStdout(), report)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and the score log consumer when Kafka is configured)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *server.App) error {
			return app.Serve(ctx, serveEvery)
		})
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Persist score log entries from Kafka into ClickHouse",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *server.App) error {
			return app.Consume(ctx)
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Copy daily history from Finnhub into ClickHouse",
	Long: `Fetch daily candles from Finnhub and store them in ClickHouse so scans
can run with price_source.type=clickhouse.

Examples:
  edgescan ingest --symbols AAPL,SPY --days 800
  edgescan ingest --since 2022-01-01`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		days := ingestDays
		if ingestSince != "" {
			t, ok := util.ParseDate(ingestSince)
			if !ok {
				return fmt.Errorf("--since %q: want YYYY-MM-DD, RFC3339 or unix seconds", ingestSince)
			}
			days = util.DaysSince(t, time.Now())
		}
		return withApp(func(ctx context.Context, app *server.App) error {
			res, err := app.Ingest(ctx, util.SplitList(ingestSymbols), days)
			if err != nil {
				return err
			}
			app.Logger().Info("ingest finished", logger.Int("symbols", len(res.Bars)), logger.Int("failed", len(res.Failures)))
			return writeJSON(cmd.OutOrStdout(), res)
		})
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanSymbols, "symbols", "", "comma separated symbols (default scan.symbols)")
	scanCmd.Flags().IntVar(&scanTop, "top", 20, "rows to print")
	scanCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	backtestCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")

	serveCmd.Flags().DurationVar(&serveEvery, "scan-every", 0, "also scan the universe on this interval (0 disables)")

	ingestCmd.Flags().StringVar(&ingestSymbols, "symbols", "", "comma separated symbols (default scan.symbols)")
	ingestCmd.Flags().IntVar(&ingestDays, "days", 800, "calendar days of history")
	ingestCmd.Flags().StringVar(&ingestSince, "since", "", "fetch from this date instead of --days")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeBoard(w io.Writer, b models.RankedBoard) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RANK\tSYMBOL\tSCORE\tCONF\tPRICE\tAS OF\tEXPLANATION\n")
	for i, s := range b.Scores {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.0f\t%.2f\t%s\t%s\n",
			i+1, s.Symbol, s.Score, s.Confidence, s.Price, s.Timestamp.Format(time.DateOnly), s.Explanation)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, f := range b.Failures {
		fmt.Fprintf(os.Stderr, "skipped %s (%s): %s\n", f.Symbol, f.Reason, f.Error)
	}
	return nil
}

func writeReport(w io.Writer, r models.BacktestReport) error {
	fmt.Fprintf(w, "evaluated=%d pending=%d filtered=%d failed=%d\n", r.Evaluated, r.Pending, r.Filtered, r.Failed)
	fmt.Fprintf(w, "mean return %.2f%%  hit rate %.1f%%  correlation %.3f\n", r.MeanReturn, r.HitRate*100, r.Correlation)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CONFIDENCE\tN\tMEAN %%\tHIT %%\n")
	for _, b := range r.Buckets {
		fmt.Fprintf(tw, "%.0f-%.0f\t%d\t%.2f\t%.1f\n", b.Low, b.High, b.Count, b.MeanReturn, b.HitRate*100)
	}
	return tw.Flush()
}
