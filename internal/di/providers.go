package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domrepo "DefiGuard/internal/domain/repository"
	"DefiGuard/internal/handler/api"
	"DefiGuard/internal/handler/ws"
	mid "DefiGuard/internal/middleware"
	internalrepo "DefiGuard/internal/repository"
	"DefiGuard/internal/service/capture"
	svcmetrics "DefiGuard/internal/service/metrics"
	"DefiGuard/internal/service/ratelimit"
	"DefiGuard/internal/services/anomaly"
	"DefiGuard/internal/services/biometrics"
	"DefiGuard/internal/services/liquidity"
	"DefiGuard/internal/services/risk"
	"DefiGuard/internal/usecase"
	"DefiGuard/pkg/cache"
	pkgch "DefiGuard/pkg/clickhouse"
	"DefiGuard/pkg/config"
	xhttp "DefiGuard/pkg/http"
	pkgkafka "DefiGuard/pkg/kafka"
	applogger "DefiGuard/pkg/logger"
	"DefiGuard/pkg/metrics"
	"DefiGuard/pkg/queue"
	"DefiGuard/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideRegisterer returns the registry shared by every collector.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideLogger builds the application logger. With Kafka enabled, repeated warnings and
// errors are aggregated and shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.FlushInterval,
			CountThreshold: 100,
			Topic:          cfg.Log.Topic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) domrepo.Metrics {
	svcmetrics.Register()
	return metrics.New(reg)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideAuditStore creates the audit tables and returns the store, or nil without ClickHouse.
func ProvideAuditStore(ch *pkgch.Client, l *applogger.Logger) (domrepo.AuditStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseAuditStore(ch, l)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
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
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreateTopics),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideKafkaConsumer creates the pool metrics consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg prometheus.Registerer) (*pkgkafka.Consumer, error) {
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
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewLoggingHook(l, time.Second))
	return consumer, nil
}

// ProvideRedisCache connects to Redis, or returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache layers an in-process cache over Redis, or uses memory alone.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if rc == nil {
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.LocalCache.MaxSize),
			cache.WithMemoryCleanup(cfg.LocalCache.Cleanup),
		)
		return mc, func() { _ = mc.Close() }
	}
	lc := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.LocalCache.MaxSize),
		cache.WithLayeredMemoryTTL(cfg.LocalCache.TTL),
	)
	return lc, func() { _ = lc.Close() }
}

// ProvideAuditQueue creates the Redis audit queue when both Redis and the audit store exist.
func ProvideAuditQueue(cfg *config.Config, rc *cache.RedisCache, store domrepo.AuditStore, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil || store == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Concurrency,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Queue.Name))
	q.RegisterJobs(usecase.AuditJobs(store))
	return q
}

// ProvideAuditSink routes audit records to every configured destination.
func ProvideAuditSink(
	cfg *config.Config,
	q *queue.RedisQueue,
	store domrepo.AuditStore,
	producer *pkgkafka.Producer,
	l *applogger.Logger,
) domrepo.AuditSink {
	var sinks internalrepo.FanoutAuditSink
	switch {
	case q != nil:
		sinks = append(sinks, internalrepo.NewQueueAuditSink(q))
	case store != nil:
		sinks = append(sinks, internalrepo.NewStoreAuditSink(store))
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaAuditPublisher(producer, cfg.Kafka.Topics.Audit))
	}
	if len(sinks) == 0 {
		return internalrepo.NewLogAuditSink(l)
	}
	return sinks
}

// ProvideSubmitter publishes to Kafka, or logs intents when Kafka is disabled.
func ProvideSubmitter(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) domrepo.TransferSubmitter {
	if producer == nil {
		return internalrepo.NewDryRunSubmitter(l)
	}
	return internalrepo.NewKafkaTransferSubmitter(producer, cfg, l)
}

func ProvideAptosClient(cfg *config.Config, l *applogger.Logger) domrepo.ChainClient {
	return internalrepo.NewAptosClient(cfg, l)
}

func ProvideHistoryProvider(chain domrepo.ChainClient, cfg *config.Config) domrepo.HistoryProvider {
	return internalrepo.NewChainHistoryProvider(chain, cfg)
}

func ProvideTrustProvider(chain domrepo.ChainClient, c cache.Service, cfg *config.Config, l *applogger.Logger) domrepo.TrustProvider {
	return internalrepo.NewCachedTrustProvider(internalrepo.NewChainTrustProvider(chain, cfg), c, cfg, l)
}

func ProvidePoolProvider(chain domrepo.ChainClient, cfg *config.Config) domrepo.PoolStateProvider {
	return internalrepo.NewChainPoolProvider(chain, cfg)
}

func ProvideVerifier(cfg *config.Config) *biometrics.Verifier {
	return biometrics.NewVerifier(cfg.Engine.Biometric)
}

func ProvideScorer(cfg *config.Config) *risk.Scorer {
	return risk.NewScorer(cfg.Engine.Risk)
}

func ProvideRuleDetector(cfg *config.Config) *anomaly.RuleDetector {
	return anomaly.NewRuleDetector(cfg.Engine.Anomaly)
}

func ProvideZScoreDetector(cfg *config.Config) *anomaly.ZScoreDetector {
	return anomaly.NewZScoreDetector(cfg.Engine.Anomaly)
}

func ProvideLiquidityOptimizer(cfg *config.Config) *liquidity.Optimizer {
	return liquidity.NewOptimizer(cfg.Engine.Liquidity)
}

func ProvideAuditor(sink domrepo.AuditSink, m domrepo.Metrics, l *applogger.Logger) *usecase.BackgroundAuditor {
	return usecase.NewBackgroundAuditor(sink, m, l)
}

func ProvideMonitor(
	history domrepo.HistoryProvider,
	rules *anomaly.RuleDetector,
	zscore *anomaly.ZScoreDetector,
	scorer *risk.Scorer,
	submitter domrepo.TransferSubmitter,
	aud *usecase.BackgroundAuditor,
	m domrepo.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.TransactionMonitor {
	opts := []usecase.MonitorOption{usecase.WithIdleTTL(cfg.Monitor.IdleTTL)}
	if cfg.Monitor.RiskResponses {
		opts = append(opts, usecase.WithRiskResponses(scorer, submitter,
			cfg.Aptos.ModuleAddress, cfg.Engine.Decision.HighRiskRecommendation))
	}
	return usecase.NewTransactionMonitor(history, rules, zscore, aud, m, l, opts...)
}

func ProvideAssessor(
	verifier *biometrics.Verifier,
	scorer *risk.Scorer,
	rules *anomaly.RuleDetector,
	history domrepo.HistoryProvider,
	trust domrepo.TrustProvider,
	submitter domrepo.TransferSubmitter,
	aud *usecase.BackgroundAuditor,
	m domrepo.Metrics,
	mon *usecase.TransactionMonitor,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Assessor {
	return usecase.NewAssessor(verifier, scorer, rules, history, trust, submitter, aud, m, cfg, l,
		usecase.WithMonitor(mon))
}

func ProvidePoolOptimizer(
	pools domrepo.PoolStateProvider,
	opt *liquidity.Optimizer,
	submitter domrepo.TransferSubmitter,
	c cache.Service,
	aud *usecase.BackgroundAuditor,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.PoolOptimizer {
	return usecase.NewPoolOptimizer(pools, opt, submitter, c, aud, m, l)
}

// ProvidePoolPipeline builds the pipeline between the pool metrics consumer and the optimizer.
func ProvidePoolPipeline(opt *usecase.PoolOptimizer, cfg *config.Config, l *applogger.Logger) *mid.PoolPipeline {
	return mid.NewPoolPipeline(opt, l,
		mid.WithThrottleInterval(cfg.Pipeline.ThrottleInterval),
		mid.WithBufferSize(cfg.Pipeline.BufferSize),
		mid.WithWorkers(cfg.Pipeline.Workers),
		mid.WithMaxRetries(cfg.Pipeline.MaxRetries),
	)
}

func ProvidePoolMetricsHandler(cfg *config.Config, pipe *mid.PoolPipeline) *usecase.PoolMetricsHandler {
	return usecase.NewPoolMetricsHandler(cfg.Kafka.Topics.PoolMetrics, pipe)
}

func ProvideCaptureStore(l *applogger.Logger) *capture.Store {
	return capture.NewStore(l)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
}

// ProvideHandlers collects every HTTP route group.
func ProvideHandlers(
	l *applogger.Logger,
	verifier *biometrics.Verifier,
	scorer *risk.Scorer,
	rules *anomaly.RuleDetector,
	zscore *anomaly.ZScoreDetector,
	opt *liquidity.Optimizer,
	assessor *usecase.Assessor,
	pools *usecase.PoolOptimizer,
	mon *usecase.TransactionMonitor,
	store *capture.Store,
	limiter *ratelimit.Limiter,
	ch *pkgch.Client,
	rc *cache.RedisCache,
) []xhttp.Handler {
	checks := map[string]api.Check{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }
	}
	return []xhttp.Handler{
		api.NewEnginesHandler(l, verifier, scorer, rules, zscore, opt),
		api.NewTransactionsHandler(l, assessor, pools, mon, store, limiter),
		ws.NewBiometricsHandler(store, l),
		api.NewHealthHandler(checks),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handlers []xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh *usecase.PoolMetricsHandler,
	pipe *mid.PoolPipeline,
	q *queue.RedisQueue,
	store *capture.Store,
	limiter *ratelimit.Limiter,
	aud *usecase.BackgroundAuditor,
	mon *usecase.TransactionMonitor,
) *server.App {
	return server.New(cfg, l, handlers,
		server.WithConsumer(consumer, kh, pipe),
		server.WithAuditQueue(q),
		server.WithCapture(store),
		server.WithLimiter(limiter),
		server.WithDrain(aud, mon),
	)
}
