package di

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"

	domrepo "SignalSim/internal/domain/repository"
	domsvc "SignalSim/internal/domain/service"
	"SignalSim/internal/handler/api"
	mid "SignalSim/internal/middleware"
	internalrepo "SignalSim/internal/repository"
	"SignalSim/internal/service/binance"
	"SignalSim/internal/service/ratelimit"
	"SignalSim/internal/services/classifier"
	"SignalSim/internal/usecase"
	"SignalSim/pkg/cache"
	pkgch "SignalSim/pkg/clickhouse"
	"SignalSim/pkg/config"
	xhttp "SignalSim/pkg/http"
	pkgkafka "SignalSim/pkg/kafka"
	applogger "SignalSim/pkg/logger"
	"SignalSim/pkg/metrics"
	"SignalSim/pkg/postgres"
	"SignalSim/pkg/server"
)

// Journal is the persistence backend: PostgreSQL when enabled, memory otherwise.
type Journal interface {
	domrepo.SignalJournal
	domrepo.SettingsStore
}

// ClassifierFactory builds a fresh classifier for every run.
type ClassifierFactory func() domsvc.SignalClassifier

var InfraSet = wire.NewSet(
	ProvideRecorder,
	wire.Bind(new(domrepo.Metrics), new(*metrics.Recorder)),
	ProvideCache,
	ProvideClickHouseClient,
	ProvideCandleArchive,
	ProvidePostgresClient,
	ProvideJournal,
	ProvideKafkaProducer,
	ProvideEventPublisher,
	ProvideHTTPClient,
)

var AppSet = wire.NewSet(
	ProvideBinanceSource,
	ProvideCandleSource,
	ProvidePipelineConfig,
	ProvideClassifierFactory,
	ProvidePipeline,
	ProvideSettingsService,
	ProvideKlineCollector,
	ProvideHandlers,
	ProvideHTTPServer,
	ProvideApp,
)

func ProvideRecorder() *metrics.Recorder {
	return metrics.New()
}

// ProvideCache builds the candle cache selected by cache.type.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	memory := func() cache.Service {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MaxItems),
			cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
		)
	}
	var svc cache.Service
	switch cfg.Cache.Type {
	case "redis", "layered":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedisCache(ctx,
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		svc = rc
		if cfg.Cache.Type == "layered" {
			svc = cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MaxItems))
		}
	default:
		svc = memory()
	}
	l.Info("cache ready", applogger.String("type", cfg.Cache.Type))
	return svc, func() { _ = svc.Close() }, nil
}

// ProvideClickHouseClient returns nil when the archive is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.CandleSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, func() { _ = client.Close() }, nil
}

// ProvideCandleArchive returns a nil interface when ClickHouse is disabled.
func ProvideCandleArchive(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) domrepo.CandleStore {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewCHCandleStore(ch, cfg.ClickHouse.Database)
	store.SetLogger(l)
	return store
}

// ProvidePostgresClient returns nil when PostgreSQL is disabled.
func ProvidePostgresClient(cfg *config.Config, l *applogger.Logger) (*postgres.Client, func(), error) {
	if !cfg.Postgres.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := postgres.NewClient(ctx,
		postgres.WithDSN(cfg.Postgres.DSN),
		postgres.WithPoolSize(cfg.Postgres.MaxConns, cfg.Postgres.MinConns),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres client: %w", err)
	}
	if err := client.Migrate(ctx, internalrepo.JournalSchema()); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("postgres schema: %w", err)
	}
	l.Info("postgres ready")
	return client, func() { _ = client.Close() }, nil
}

func ProvideJournal(pg *postgres.Client, l *applogger.Logger) Journal {
	if pg == nil {
		l.Warn("postgres disabled, settings and signal history are kept in memory")
		return internalrepo.NewMemoryJournal()
	}
	return internalrepo.NewPGJournal(pg.Pool())
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, rec *metrics.Recorder) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(rec.Registry()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) (domrepo.EventPublisher, func()) {
	if producer == nil {
		return internalrepo.NopPublisher{}, func() {}
	}
	pub := internalrepo.NewKafkaPublisher(producer, internalrepo.Topics{
		Signals: cfg.Kafka.Topics.Signals,
		Trades:  cfg.Kafka.Topics.Trades,
		Candles: cfg.Kafka.Topics.Candles,
	})
	return pub, func() { _ = pub.Close() }
}

func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithBaseURL(cfg.Binance.RestURL),
		xhttp.WithTimeout(cfg.Binance.Timeout),
		xhttp.WithRetries(2, 500*time.Millisecond),
	)
}

func ProvideBinanceSource(client *xhttp.Client, l *applogger.Logger) *internalrepo.BinanceSource {
	return internalrepo.NewBinanceSource(client, l)
}

// ProvideCandleSource fronts Binance with the cache and, when enabled, the archive.
func ProvideCandleSource(
	upstream *internalrepo.BinanceSource,
	c cache.Service,
	archive domrepo.CandleStore,
	m domrepo.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) domrepo.CandleSource {
	opts := []internalrepo.CachedSourceOption{
		internalrepo.WithCacheTTL(cfg.Cache.TTL),
		internalrepo.WithSourceMetrics(m),
		internalrepo.WithSourceLogger(l),
	}
	if archive != nil {
		opts = append(opts, internalrepo.WithArchive(archive))
	}
	return internalrepo.NewCachedSource(upstream, c, opts...)
}

func ProvidePipelineConfig(cfg *config.Config) usecase.PipelineConfig {
	pc := usecase.DefaultPipelineConfig()
	pc.Interval = domrepo.NormalizeInterval(cfg.Binance.Interval)
	pc.LookbackDays = cfg.Engine.LookbackDays
	pc.Horizon = cfg.Engine.Horizon
	pc.Threshold = cfg.Engine.Threshold
	pc.InitialCapital = cfg.Engine.InitialCapital
	pc.MinTradeCost = cfg.Engine.MinTradeCost
	pc.Risk.PositionSize = cfg.Risk.PositionSize
	pc.Risk.StopLoss = cfg.Risk.StopLoss
	pc.Risk.TakeProfit = cfg.Risk.TakeProfit
	return pc
}

func ProvideClassifierFactory(cfg *config.Config) ClassifierFactory {
	c := cfg.Engine.Classifier
	return func() domsvc.SignalClassifier {
		return classifier.New(
			classifier.WithEstimators(c.Estimators),
			classifier.WithLearningRate(c.LearningRate),
			classifier.WithMaxDepth(c.MaxDepth),
			classifier.WithMinRows(c.MinRows),
			classifier.WithTestFraction(c.TestFraction),
		)
	}
}

func ProvidePipeline(
	source domrepo.CandleSource,
	journal Journal,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	pc usecase.PipelineConfig,
	factory ClassifierFactory,
	l *applogger.Logger,
) *usecase.SignalPipeline {
	return usecase.NewSignalPipeline(source,
		usecase.WithSettings(journal),
		usecase.WithJournal(journal),
		usecase.WithEvents(events),
		usecase.WithMetrics(m),
		usecase.WithConfig(pc),
		usecase.WithClassifierFactory(factory),
		usecase.WithLogger(l),
	)
}

func ProvideSettingsService(journal Journal, lister *internalrepo.BinanceSource, c cache.Service, l *applogger.Logger) *usecase.SettingsService {
	return usecase.NewSettingsService(journal,
		usecase.WithSymbolLister(lister),
		usecase.WithTopSymbolsCache(c, 5*time.Minute),
		usecase.WithSettingsLogger(l),
	)
}

// ProvideKlineCollector returns nil unless binance.stream is set.
func ProvideKlineCollector(
	cfg *config.Config,
	archive domrepo.CandleStore,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.KlineCollector {
	if !cfg.Binance.Stream {
		return nil
	}
	iv := domrepo.NormalizeInterval(cfg.Binance.Interval)
	stream := binance.New(cfg.Binance.WebSocketURL, cfg.Binance.Symbols, iv,
		binance.WithReconnectDelay(cfg.Binance.ReconnectDelay),
		binance.WithPingInterval(cfg.Binance.PingInterval),
		binance.WithLogger(l),
	)
	gate := mid.NewCandleGate(usecase.NewCandleSink(iv, archive, events, m), m, mid.WithBufferSize(2000))
	return usecase.NewKlineCollector(stream, gate, m, l)
}

func ProvideHandlers(p *usecase.SignalPipeline, s *usecase.SettingsService, cfg *config.Config, l *applogger.Logger) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewRunsHandler(p, ratelimit.New(), cfg.Server.RunsPerMinute, cfg.Server.RunBurst, l),
		api.NewSettingsHandler(s, l),
	}
}

func ProvideHTTPServer(handlers []xhttp.Handler, rec *metrics.Recorder, cfg *config.Config, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(rec.Registry(), cfg.Metrics.Path))
	}
	return xhttp.NewServer(handlers, opts...)
}

func ProvideApp(cfg *config.Config, srv *xhttp.Server, collector *usecase.KlineCollector, l *applogger.Logger) *server.App {
	return server.New(cfg, srv, collector, l)
}
