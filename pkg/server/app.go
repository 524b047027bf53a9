package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"EdgeScan/internal/domain/models"
	"EdgeScan/internal/usecase"
	"EdgeScan/pkg/config"
	xhttp "EdgeScan/pkg/http"
	pkgkafka "EdgeScan/pkg/kafka"
	"EdgeScan/pkg/logger"
)

// App bundles the wired components behind the CLI commands.
type App struct {
	cfg      *config.Config
	l        *logger.Logger
	scanner  *usecase.BatchScanner
	backtest *usecase.BacktestRun
	ingest   *usecase.Ingest
	http     *xhttp.Server
	consumer *pkgkafka.Consumer
	handler  pkgkafka.MessageHandler
}

type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Scanner  *usecase.BatchScanner
	Backtest *usecase.BacktestRun
	// Ingest is nil without a ClickHouse price store.
	Ingest *usecase.Ingest
	HTTP   *xhttp.Server
	// Consumer and Handler are nil without Kafka and ClickHouse.
	Consumer *pkgkafka.Consumer
	Handler  pkgkafka.MessageHandler
}

func New(p Params) *App {
	return &App{
		cfg:      p.Config,
		l:        p.Logger,
		scanner:  p.Scanner,
		backtest: p.Backtest,
		ingest:   p.Ingest,
		http:     p.HTTP,
		consumer: p.Consumer,
		handler:  p.Handler,
	}
}

func (a *App) Logger() *logger.Logger { return a.l }

// Scan runs one batch over symbols, or the configured universe.
func (a *App) Scan(ctx context.Context, symbols []string) (models.RankedBoard, error) {
	return a.scanner.Run(ctx, symbols)
}

func (a *App) Backtest(ctx context.Context) (models.BacktestReport, error) {
	if a.backtest == nil {
		return models.BacktestReport{}, errors.New("no readable score log configured")
	}
	return a.backtest.Run(ctx)
}

func (a *App) Ingest(ctx context.Context, symbols []string, lookbackDays int) (usecase.IngestResult, error) {
	if a.ingest == nil {
		return usecase.IngestResult{}, errors.New("ingest needs clickhouse.host")
	}
	if len(symbols) == 0 {
		symbols = a.cfg.Scan.Symbols
	}
	return a.ingest.Run(ctx, symbols, lookbackDays)
}

// Serve runs the HTTP API, and the score log consumer when configured,
// until ctx ends. With interval > 0 a scan also runs on that schedule.
func (a *App) Serve(ctx context.Context, interval time.Duration) error {
	if err := a.startConsumer(); err != nil {
		return err
	}
	if err := a.http.Start(); err != nil {
		return err
	}
	if interval > 0 {
		go a.schedule(ctx, interval)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case runErr = <-a.http.Errors():
	}
	return errors.Join(runErr, a.shutdown())
}

// Consume runs only the score log consumer until ctx ends.
func (a *App) Consume(ctx context.Context) error {
	if a.consumer == nil || a.handler == nil {
		return errors.New("consume needs kafka.brokers and clickhouse.host")
	}
	if err := a.startConsumer(); err != nil {
		return err
	}
	<-ctx.Done()
	return a.shutdown()
}

func (a *App) startConsumer() error {
	if a.consumer == nil || a.handler == nil {
		return nil
	}
	a.consumer.RegisterHandler(a.handler)
	a.consumer.WithConsumerHook(pkgkafka.RunIDHook())
	if err := a.consumer.Start(); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	a.l.Info("kafka consumer started", logger.String("topic", a.handler.Topic()))
	return nil
}

func (a *App) schedule(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.scanner.Run(ctx, nil); err != nil {
				a.l.Error("scheduled scan", logger.Error(err))
			}
		}
	}
}

func (a *App) shutdown() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.http != nil {
		if err := a.http.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop", logger.Error(err))
			errs = append(errs, err)
		}
	}
	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
