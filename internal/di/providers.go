package di

import (
	"context"
	"fmt"
	"time"

	"CreditLens/internal/domain/models"
	"CreditLens/internal/domain/repository"
	"CreditLens/internal/handler/api"
	mid "CreditLens/internal/middleware"
	internalrepo "CreditLens/internal/repository"
	"CreditLens/internal/services/explain"
	"CreditLens/internal/services/features"
	"CreditLens/internal/services/normalize"
	"CreditLens/internal/services/scoring"
	"CreditLens/internal/services/snapshot"
	"CreditLens/internal/services/training"
	"CreditLens/internal/usecase"
	"CreditLens/pkg/cache"
	pkgch "CreditLens/pkg/clickhouse"
	"CreditLens/pkg/config"
	xhttp "CreditLens/pkg/http"
	pkgkafka "CreditLens/pkg/kafka"
	"CreditLens/pkg/logger"
	"CreditLens/pkg/metrics"
	"CreditLens/pkg/queue"
	"CreditLens/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client. Returns nil when the
// memory backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Storage.Type != "clickhouse" {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append(
		[]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.SchemaStatements(cfg.ClickHouse.Database)...,
	)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when Kafka is off.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the read cache: Redis when enabled, in-process otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideObservationStore creates the observation store.
func ProvideObservationStore(cfg *config.Config, chClient *pkgch.Client, l *logger.Logger) repository.ObservationStore {
	if cfg.Storage.Type == "clickhouse" && chClient != nil {
		obs := internalrepo.NewCHObservationStore(chClient)
		obs.SetLogger(l)
		return obs
	}
	return internalrepo.NewMemoryObservationStore()
}

// ProvideSnapshotStore creates the feature snapshot store.
func ProvideSnapshotStore(cfg *config.Config, chClient *pkgch.Client) repository.SnapshotStore {
	if cfg.Storage.Type == "clickhouse" && chClient != nil {
		return internalrepo.NewCHSnapshotStore(chClient)
	}
	return internalrepo.NewMemorySnapshotStore()
}

// ProvideScoreStore creates the score store.
func ProvideScoreStore(cfg *config.Config, chClient *pkgch.Client) repository.ScoreStore {
	if cfg.Storage.Type == "clickhouse" && chClient != nil {
		return internalrepo.NewCHScoreStore(chClient)
	}
	return internalrepo.NewMemoryScoreStore()
}

type nopDocumentStore struct{}

func (nopDocumentStore) PutHeadline(context.Context, string, string, time.Time) error { return nil }

// ProvideDocumentStore creates the headline document store.
func ProvideDocumentStore(cfg *config.Config, c cache.Service) repository.DocumentStore {
	if rc, ok := c.(*cache.RedisCache); ok && cfg.Redis.Enabled {
		return internalrepo.NewRedisDocumentStore(rc.Client(), cfg.Redis.Prefix)
	}
	return nopDocumentStore{}
}

type nopScorePublisher struct{}

func (nopScorePublisher) Publish(context.Context, models.ScoreBundle) error { return nil }
func (nopScorePublisher) Close() error                                      { return nil }

// ProvideScorePublisher creates the outbound score event publisher.
func ProvideScorePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ScorePublisher {
	if producer == nil {
		return nopScorePublisher{}
	}
	return internalrepo.NewKafkaScorePublisher(producer, cfg.Kafka.ScoresTopic)
}

// ProvideFeatureSchema returns the feature catalog used for snapshots.
func ProvideFeatureSchema() []features.Spec {
	return features.DefaultSchema()
}

// ProvideRegistry creates the in-process model registry.
func ProvideRegistry() *scoring.Registry {
	return scoring.NewRegistry()
}

// ProvideIngestUseCase creates the observation ingest use case.
func ProvideIngestUseCase(
	cfg *config.Config,
	obs repository.ObservationStore,
	docs repository.DocumentStore,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.IngestUseCase {
	return usecase.NewIngestUseCase(normalize.New(cfg.Scoring.ClockSkew), obs, docs, m, l)
}

// ProvideIngestPipeline wraps ingest with throttling and retry buffering.
func ProvideIngestPipeline(ingest *usecase.IngestUseCase, m repository.Metrics) *mid.IngestPipeline {
	return mid.NewIngestPipeline(ingest, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideScorePipeline creates the snapshot -> score -> explanation pipeline.
func ProvideScorePipeline(
	cfg *config.Config,
	schema []features.Spec,
	obs repository.ObservationStore,
	snaps repository.SnapshotStore,
	scores repository.ScoreStore,
	registry *scoring.Registry,
	pub repository.ScorePublisher,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.ScorePipeline {
	maxImputed := cfg.Scoring.MaxImputedFraction
	if maxImputed <= 0 {
		maxImputed = 0.5
	}
	topK := cfg.Scoring.TopKFactors
	if topK <= 0 {
		topK = 5
	}
	builder := snapshot.NewBuilder(schema, obs, snaps, maxImputed)
	return usecase.NewScorePipeline(
		builder,
		scoring.NewLogisticScorer(),
		explain.NewGenerator(features.Labels(schema), topK),
		registry,
		scores,
		pub,
		m,
		l,
	)
}

// ProvideClassScores creates the asset-class aggregate use case.
func ProvideClassScores(cfg *config.Config, pipeline *usecase.ScorePipeline, registry *scoring.Registry) *usecase.ClassScoreUseCase {
	return usecase.NewClassScoreUseCase(pipeline, registry, cfg.Scoring.AssetClasses)
}

// ProvideCoordinator creates the retraining coordinator.
func ProvideCoordinator(cfg *config.Config, schema []features.Spec, registry *scoring.Registry, l *logger.Logger) *training.Coordinator {
	cc := training.DefaultCoordinatorConfig()
	if cfg.Retrain.Epochs > 0 {
		cc.Trainer.Epochs = cfg.Retrain.Epochs
	}
	if cfg.Retrain.LearningRate > 0 {
		cc.Trainer.LearningRate = cfg.Retrain.LearningRate
	}
	if cfg.Retrain.L2 > 0 {
		cc.Trainer.L2 = cfg.Retrain.L2
	}
	if cfg.Retrain.HoldoutEvery > 1 {
		cc.Trainer.HoldoutEvery = cfg.Retrain.HoldoutEvery
	}
	if cfg.Retrain.ThresholdLow > 0 && cfg.Retrain.ThresholdMedium > 0 {
		cc.Trainer.Thresholds = models.RiskThresholds{
			Low:    cfg.Retrain.ThresholdLow,
			Medium: cfg.Retrain.ThresholdMedium,
		}
	}
	if cfg.Retrain.RegressionTolerance > 0 {
		cc.RegressionTolerance = cfg.Retrain.RegressionTolerance
	}
	if cfg.Retrain.ConsistencyThreshold > 0 {
		cc.ConsistencyThreshold = cfg.Retrain.ConsistencyThreshold
	}
	if cfg.Retrain.StabilityThreshold > 0 {
		cc.StabilityThreshold = cfg.Retrain.StabilityThreshold
	}
	return training.NewCoordinator(registry, features.Names(schema), cc, l)
}

// ProvideRetrainQueue creates the Redis-backed retrain queue, or nil when
// Redis is off (retrains then run synchronously through the submit endpoint).
func ProvideRetrainQueue(cfg *config.Config, c cache.Service, coordinator *training.Coordinator, l *logger.Logger) *queue.RedisQueue {
	rc, ok := c.(*cache.RedisCache)
	if !ok || !cfg.Redis.Enabled {
		return nil
	}
	qc := &queue.QueueConfig{
		Workers:    cfg.Retrain.Queue.Workers,
		QueueSize:  cfg.Retrain.Queue.QueueSize,
		RetryLimit: cfg.Retrain.Queue.RetryLimit,
		RetryDelay: cfg.Retrain.Queue.RetryDelay,
	}
	q := queue.NewRedisQueue(l, qc, rc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewRetrainJob(coordinator, l))
	return q
}

// ProvideObservationsHandler registers the Kafka handler for the observations topic.
func ProvideObservationsHandler(cfg *config.Config, ingest *usecase.IngestUseCase, m repository.Metrics) *usecase.KafkaObservationsHandler {
	return usecase.NewKafkaObservationsHandler(cfg.Kafka.ObservationsTopic, ingest, m)
}

// ProvideHTTPHandler assembles the HTTP surface.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *logger.Logger,
	pipe *mid.IngestPipeline,
	pipeline *usecase.ScorePipeline,
	classes *usecase.ClassScoreUseCase,
	coordinator *training.Coordinator,
	q *queue.RedisQueue,
	c cache.Service,
) xhttp.Handler {
	scores := api.NewScoresEchoHandler(l, pipeline, classes)
	scores.SetCache(c)

	var qs queue.QueueService
	if q != nil {
		qs = q
	}
	return xhttp.Handlers{
		api.NewObservationsEchoHandler(l, pipe),
		scores,
		api.NewModelsEchoHandler(l, coordinator, qs),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	pipe *mid.IngestPipeline,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaObservationsHandler,
	coordinator *training.Coordinator,
	chClient *pkgch.Client,
	pub repository.ScorePublisher,
	q *queue.RedisQueue,
	h xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, pipe, consumer, kh, coordinator, chClient)
	app.SetHTTPHandler(h)
	app.SetPublisher(pub)
	app.SetQueue(q)
	return app
}
