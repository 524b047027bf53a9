package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"EdgeScan/internal/domain/repository"
	domsvc "EdgeScan/internal/domain/service"
	"EdgeScan/internal/handler/api"
	mid "EdgeScan/internal/middleware"
	internalrepo "EdgeScan/internal/repository"
	icache "EdgeScan/internal/service/cache"
	"EdgeScan/internal/service/finnhub"
	svcmetrics "EdgeScan/internal/service/metrics"
	"EdgeScan/internal/service/ratelimit"
	"EdgeScan/internal/services/analytics"
	"EdgeScan/internal/services/features"
	"EdgeScan/internal/services/indicators"
	"EdgeScan/internal/services/scanner"
	"EdgeScan/internal/services/scoring"
	"EdgeScan/internal/usecase"
	pkgch "EdgeScan/pkg/clickhouse"
	"EdgeScan/pkg/config"
	xhttp "EdgeScan/pkg/http"
	pkgkafka "EdgeScan/pkg/kafka"
	"EdgeScan/pkg/logger"
	"EdgeScan/pkg/server"
)

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

func ProvideMetrics() repository.Metrics {
	return svcmetrics.NewScanMetrics(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient connects when clickhouse.host is set and ensures
// the schema exists. Without a host it returns nil.
func ProvideClickHouseClient(cfg *config.Config, l *logger.Logger) (*pkgch.Client, func(), error) {
	if cfg.ClickHouse.Host == "" {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(cfg.ClickHouse.Options()...)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", logger.String("host", cfg.ClickHouse.Host), logger.String("db", cfg.ClickHouse.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close", logger.Error(err))
		}
	}
	return client, cleanup, nil
}

func ProvidePriceStore(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) *internalrepo.CHPriceStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHPriceStore(ch, cfg.ClickHouse.Database, l)
}

func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Finnhub.Timeout))
}

func ProvideFinnhubClient(cfg *config.Config, client *xhttp.Client, l *logger.Logger) *finnhub.Client {
	lim := ratelimit.New(cfg.Finnhub.RPS, cfg.Finnhub.Burst)
	return finnhub.New(cfg.Finnhub, client, lim, l)
}

// ProvidePriceSupplier picks the price source named by price_source.type.
func ProvidePriceSupplier(cfg *config.Config, fh *finnhub.Client, store *internalrepo.CHPriceStore) (repository.PriceSupplier, error) {
	switch cfg.PriceSource.Type {
	case config.PriceSourceClickHouse:
		if store == nil {
			return nil, fmt.Errorf("price_source clickhouse needs clickhouse.host")
		}
		return store, nil
	default:
		return fh, nil
	}
}

// ProvideBytesCache is Redis when enabled, otherwise in-process.
func ProvideBytesCache(cfg *config.Config, l *logger.Logger) (icache.BytesCache, func()) {
	if !cfg.Redis.Enabled {
		return icache.NewTTLCache(), func() {}
	}
	rc := icache.NewRedisCache(cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Warn("redis unreachable, continuing", logger.String("addr", cfg.Redis.Addr), logger.Error(err))
	}
	return rc, func() { _ = rc.Close() }
}

func ProvideBoardCache(cfg *config.Config, c icache.BytesCache) repository.BoardCache {
	return icache.NewBoardStore(c, cfg.Redis.BoardTTL)
}

func ProvideEdgeModel(cfg *config.Config, c icache.BytesCache) domsvc.EdgeModel {
	if !cfg.EdgeModel.Enabled() {
		return analytics.NoModel{}
	}
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.EdgeModel.Timeout))
	return analytics.NewHTTPEdgeModel(cfg.EdgeModel, client, c)
}

func ProvideEdgePipeline(
	cfg *config.Config,
	prices repository.PriceSupplier,
	model domsvc.EdgeModel,
	metrics repository.Metrics,
	l *logger.Logger,
) *usecase.EdgePipeline {
	engine := indicators.NewEngine(cfg.Indicators)
	return usecase.NewEdgePipeline(
		cfg.Scan,
		prices,
		model,
		engine,
		scanner.New(cfg.Scanner, engine),
		features.NewExtractor(cfg.Features),
		scoring.NewCombiner(cfg.Scoring),
		metrics,
		l,
	)
}

func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	p, err := pkgkafka.NewProducer(cfg.Kafka.ProducerOptions()...)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, func() {
		if err := p.Close(); err != nil {
			l.Warn("kafka producer close", logger.Error(err))
		}
	}, nil
}

// ScoreStores groups the score log sink with where it is read back from
// and where backtest results go.
type ScoreStores struct {
	Sink     repository.ScoreLog
	Reader   repository.ScoreLogReader
	Backtest repository.BacktestSink
}

// ProvideScoreStores builds the sink named by score_log.sink. The Kafka
// sink reads back from ClickHouse, where the consumer lands the entries.
func ProvideScoreStores(cfg *config.Config, ch *pkgch.Client, producer *pkgkafka.Producer) (ScoreStores, func(), error) {
	var chLog *internalrepo.CHScoreLog
	if ch != nil {
		chLog = internalrepo.NewCHScoreLog(ch, cfg.ClickHouse.Database)
	}

	switch cfg.ScoreLog.Sink {
	case config.SinkClickHouse:
		if chLog == nil {
			return ScoreStores{}, nil, fmt.Errorf("score_log clickhouse needs clickhouse.host")
		}
		return ScoreStores{Sink: chLog, Reader: chLog, Backtest: chLog}, func() {}, nil

	case config.SinkKafka:
		if producer == nil {
			return ScoreStores{}, nil, fmt.Errorf("score_log kafka needs kafka.brokers")
		}
		s := ScoreStores{Sink: internalrepo.NewKafkaScoreLog(producer, cfg.Kafka.Topic)}
		if chLog != nil {
			s.Reader, s.Backtest = chLog, chLog
		}
		return s, func() {}, nil

	default:
		fl, err := internalrepo.NewFileScoreLog(cfg.ScoreLog.Path)
		if err != nil {
			return ScoreStores{}, nil, fmt.Errorf("score log file: %w", err)
		}
		return ScoreStores{
			Sink:     fl,
			Reader:   fl,
			Backtest: internalrepo.NewFileBacktestSink(cfg.ScoreLog.BacktestPath),
		}, func() {}, nil
	}
}

// ProvideScoreLogPipeline wraps the sink in the single writer queue. Its
// cleanup drains the queue and closes the sink.
func ProvideScoreLogPipeline(cfg *config.Config, stores ScoreStores, metrics repository.Metrics, l *logger.Logger) (*mid.ScoreLogPipeline, func()) {
	p := mid.NewScoreLogPipeline(stores.Sink, metrics,
		mid.WithBufferSize(cfg.ScoreLog.BufferSize),
		mid.WithRetry(cfg.ScoreLog.Retries, cfg.ScoreLog.RetryBackoff),
		mid.WithLogger(l),
	)
	p.Start()
	return p, func() {
		if err := p.Close(); err != nil {
			l.Warn("score log close", logger.Error(err))
		}
	}
}

func ProvideBatchScanner(
	pipeline *usecase.EdgePipeline,
	rec *mid.ScoreLogPipeline,
	board repository.BoardCache,
	metrics repository.Metrics,
	l *logger.Logger,
) *usecase.BatchScanner {
	return usecase.NewBatchScanner(usecase.BatchScannerParams{
		Pipeline: pipeline,
		Recorder: rec,
		Board:    board,
		Metrics:  metrics,
		Logger:   l,
	})
}

func ProvideBacktestRun(cfg *config.Config, stores ScoreStores, prices repository.PriceSupplier, metrics repository.Metrics, l *logger.Logger) *usecase.BacktestRun {
	if stores.Reader == nil {
		return nil
	}
	return usecase.NewBacktestRun(usecase.BacktestRunParams{
		Config:  cfg.Backtest,
		Log:     stores.Reader,
		Prices:  prices,
		Sink:    stores.Backtest,
		Metrics: metrics,
		Logger:  l,
	})
}

// ProvideIngest copies Finnhub history into ClickHouse. Nil without a
// price store.
func ProvideIngest(fh *finnhub.Client, store *internalrepo.CHPriceStore, metrics repository.Metrics, l *logger.Logger) *usecase.Ingest {
	if store == nil {
		return nil
	}
	return usecase.NewIngest(fh, store, metrics, l)
}

func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	opts := append(cfg.Kafka.ConsumerOptions(), pkgkafka.WithConsumerLogger(l))
	c, err := pkgkafka.NewConsumer(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return c, nil
}

// ProvideScoreLogHandler lands Kafka score log entries in ClickHouse.
func ProvideScoreLogHandler(cfg *config.Config, ch *pkgch.Client, metrics repository.Metrics) pkgkafka.MessageHandler {
	if ch == nil {
		return nil
	}
	return usecase.NewScoreLogHandler(cfg.Kafka.Topic, internalrepo.NewCHScoreLog(ch, cfg.ClickHouse.Database), metrics)
}

func ProvideEdgeHandler(
	cfg *config.Config,
	pipeline *usecase.EdgePipeline,
	bs *usecase.BatchScanner,
	bt *usecase.BacktestRun,
	board repository.BoardCache,
	c icache.BytesCache,
	l *logger.Logger,
) *api.EdgeHandler {
	return api.NewEdgeHandler(api.EdgeHandlerParams{
		Pipeline: pipeline,
		Scanner:  bs,
		Backtest: bt,
		Board:    board,
		Cache:    c,
		CacheTTL: cfg.API.CacheTTL,
		Logger:   l,
	})
}

func ProvideHTTPServer(cfg *config.Config, h *api.EdgeHandler, l *logger.Logger) *xhttp.Server {
	rl := cfg.Server.RateLimit
	return xhttp.NewServer(cfg.ServerConfig(), []xhttp.Handler{h},
		xhttp.WithLogger(l),
		xhttp.WithRateLimiter(ratelimit.New(rl.RPS, rl.Burst)),
	)
}

func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	bs *usecase.BatchScanner,
	bt *usecase.BacktestRun,
	ingest *usecase.Ingest,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
) *server.App {
	return server.New(server.Params{
		Config:   cfg,
		Logger:   l,
		Scanner:  bs,
		Backtest: bt,
		Ingest:   ingest,
		HTTP:     srv,
		Consumer: consumer,
		Handler:  handler,
	})
}
