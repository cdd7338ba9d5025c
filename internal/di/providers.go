package di

import (
	"context"
	"fmt"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/domain/repository"
	"GreyPulse/internal/gmp"
	"GreyPulse/internal/handler/api"
	internalrepo "GreyPulse/internal/repository"
	"GreyPulse/internal/scheduler"
	"GreyPulse/internal/source"
	"GreyPulse/internal/usecase"
	"GreyPulse/pkg/cache"
	pkgch "GreyPulse/pkg/clickhouse"
	"GreyPulse/pkg/config"
	pkgkafka "GreyPulse/pkg/kafka"
	"GreyPulse/pkg/logger"
	"GreyPulse/pkg/metrics"
	"GreyPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the database
// exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, 10*time.Second),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideObservationStore creates the ClickHouse-backed store and its table.
func ProvideObservationStore(client *pkgch.Client, cfg *config.Config) (repository.ObservationStore, error) {
	store := internalrepo.NewObservationStore(client, cfg.ClickHouse.Database+".gmp_observations")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("observation store init: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates the Kafka producer for spike events.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSpikePublisher creates the Kafka-backed spike publisher.
func ProvideSpikePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SpikePublisher {
	return internalrepo.NewKafkaSpikePublisher(producer, cfg.Kafka.SpikeTopic)
}

// ProvideCache builds the fetch cache: memory-only by default, layered over
// Redis when enabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Cache.Redis.Host),
		cache.WithRedisPort(cfg.Cache.Redis.Port),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix("greypulse"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideWeightTable seeds source reliability weights from config.
func ProvideWeightTable(cfg *config.Config) *gmp.WeightTable {
	return gmp.NewWeightTable(cfg.SourceWeights(), cfg.Validator.DefaultWeight)
}

// ProvideValidator creates the consensus validator.
func ProvideValidator(cfg *config.Config, weights *gmp.WeightTable) *gmp.Validator {
	return gmp.NewValidator(gmp.ValidatorConfig{
		MinSources:           cfg.Validator.MinSources,
		OutlierZThreshold:    cfg.Validator.OutlierZThreshold,
		MaxVarianceThreshold: cfg.Validator.MaxVarianceThreshold,
		TimeWindow:           cfg.Validator.TimeWindow,
		OutlierFallbackRatio: cfg.Validator.OutlierFallbackRatio,
	}, weights)
}

// Sources groups the configured adapters. Stream adapters are listed twice:
// once behind the common interface and once concretely, because their
// connection lifecycle is owned by the app.
type Sources struct {
	Adapters []repository.SourceAdapter
	Streams  []*source.StreamAdapter
}

// ProvideSources builds one adapter per configured endpoint. Stream adapters
// are returned unstarted; the app starts them on Run.
func ProvideSources(cfg *config.Config, log *logger.Logger) (*Sources, error) {
	s := &Sources{Adapters: make([]repository.SourceAdapter, 0, len(cfg.Sources.Endpoints))}
	for _, ep := range cfg.Sources.Endpoints {
		switch ep.Type {
		case "http":
			s.Adapters = append(s.Adapters, source.NewHTTPAdapter(ep.ID, ep.URL, ep.Timeout, log))
		case "stream":
			st := source.NewStreamAdapter(ep.ID, ep.URL, log)
			s.Streams = append(s.Streams, st)
			s.Adapters = append(s.Adapters, st)
		case "mock":
			s.Adapters = append(s.Adapters, source.NewMockAdapter(ep.ID, mockValues(cfg)))
		default:
			return nil, fmt.Errorf("source %s: unknown type %q", ep.ID, ep.Type)
		}
	}
	return s, nil
}

// mockValues derives a deterministic fixture table from the registered IPOs.
func mockValues(cfg *config.Config) map[string]float64 {
	out := make(map[string]float64, len(cfg.IPOs))
	for i, ipo := range cfg.IPOs {
		// Spread values so the fixture produces varied premiums.
		out[ipo.Key] = float64(10 + 15*i)
	}
	return out
}

// ProvideOrchestrator creates the fan-out fetcher.
func ProvideOrchestrator(sources *Sources, c cache.Service, log *logger.Logger, m repository.Metrics, cfg *config.Config) *usecase.FetchOrchestrator {
	return usecase.NewFetchOrchestrator(sources.Adapters, log, m,
		usecase.WithFetchTimeout(cfg.Sources.FetchTimeout),
		usecase.WithRetryPolicy(usecase.RetryPolicy{
			Attempts:   cfg.Sources.Retry.Attempts,
			BackoffMin: cfg.Sources.Retry.BackoffMin,
			BackoffMax: cfg.Sources.Retry.BackoffMax,
		}),
		usecase.WithFetchCache(c, cfg.Cache.TTL),
	)
}

// ProvideValidationRun assembles the full pipeline use case.
func ProvideValidationRun(
	orch *usecase.FetchOrchestrator,
	store repository.ObservationStore,
	publisher repository.SpikePublisher,
	validator *gmp.Validator,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.ValidationRun {
	return usecase.NewValidationRun(orch, store, publisher, validator, m, log,
		usecase.WithCycleConfig(usecase.CycleConfig{
			SpikeThreshold: cfg.Spike.Threshold,
			SpikeLookback:  cfg.Spike.Lookback,
			BaselineLimit:  cfg.Spike.BaselineLimit,
			Workers:        cfg.Scheduler.Workers,
			Profit: gmp.ProfitThresholds{
				MinProfitPercentage: cfg.Profit.MinProfitPercentage,
				MinAbsoluteProfit:   cfg.Profit.MinAbsoluteProfit,
			},
		}),
		usecase.WithIPOReference(referenceIPOs(cfg)),
	)
}

// referenceIPOs converts the config entries into domain records. Keys are
// normalized the same way scraped names are.
func referenceIPOs(cfg *config.Config) []models.IPO {
	out := make([]models.IPO, 0, len(cfg.IPOs))
	for _, e := range cfg.IPOs {
		key := e.Key
		if key == "" {
			key = e.Name
		}
		status := models.IPOStatus(e.Status)
		if status == "" {
			status = models.StatusOpen
		}
		out = append(out, models.IPO{
			Key:           models.NormalizeIPOKey(key),
			Name:          e.Name,
			IssuePriceMin: e.IssuePriceMin,
			IssuePriceMax: e.IssuePriceMax,
			LotSize:       e.LotSize,
			Board:         e.Board,
			Status:        status,
		})
	}
	return out
}

// ProvideScheduler creates the cron scheduler.
func ProvideScheduler(ctx context.Context, run *usecase.ValidationRun, store repository.ObservationStore, weights *gmp.WeightTable, cfg *config.Config, log *logger.Logger) (*scheduler.Scheduler, error) {
	s := scheduler.New(ctx, run, store, weights, cfg.SourceWeights(), log)
	if err := s.Register(cfg.Scheduler.RefreshCron, cfg.Scheduler.WeightsCron); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(log *logger.Logger, run *usecase.ValidationRun) *api.GMPHandler {
	return api.NewGMPHandler(log, run)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler *api.GMPHandler,
	sched *scheduler.Scheduler,
	sources *Sources,
	store repository.ObservationStore,
	publisher repository.SpikePublisher,
) *server.App {
	streams := make([]server.Stream, 0, len(sources.Streams))
	for _, s := range sources.Streams {
		streams = append(streams, s)
	}
	return server.New(cfg, log, handler, sched, streams, store, publisher)
}
