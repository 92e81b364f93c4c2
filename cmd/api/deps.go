package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/health"
	"github.com/noah-isme/toko-pos/internal/lock"
	"github.com/noah-isme/toko-pos/internal/migrations"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/queue"
	"github.com/noah-isme/toko-pos/internal/receipt"
	"github.com/noah-isme/toko-pos/internal/resilience"
	"github.com/noah-isme/toko-pos/internal/sales"
)

// dependencies holds the optional backing services. Either may be nil in
// memory mode.
type dependencies struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

func connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metricsEnabled bool) (*dependencies, error) {
	deps := &dependencies{}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if cfg.NeedsPostgres() {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse database config: %w", err)
		}
		poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = "toko-pos"

		pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		deps.Pool = pool
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if metricsEnabled {
			if err := redisotel.InstrumentMetrics(client); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			deps.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.Redis = client
	}
	return deps, nil
}

func (d *dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

func (d *dependencies) migrate(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	runner := migrations.Runner{DatabaseURL: cfg.DatabaseURL, Logger: logger}
	if d.Redis != nil {
		runner.Locker = &lock.Locker{R: d.Redis}
	}
	return runner.Up(ctx)
}

func (d *dependencies) catalogStore(cfg *config.Config, logger zerolog.Logger) catalog.Store {
	var store catalog.Store
	if cfg.StorageDriver == config.DriverPostgres {
		store = catalog.NewPostgresStore(d.Pool)
	} else {
		store = catalog.NewMemoryStore(catalog.DemoProducts())
	}
	if d.Redis == nil {
		return store
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "catalog_cache",
		MinRequests:  5,
		FailureRatio: 0.5,
		OpenFor:      30 * time.Second,
		Logger:       logger,
	})
	return catalog.NewCachedStore(store, catalog.NewCache(d.Redis, cfg.CatalogCacheTTL), breaker, logger)
}

func (d *dependencies) salesLedger() sales.Ledger {
	if d.Pool != nil {
		return sales.NewPostgresLedger(d.Pool)
	}
	return sales.NewMemoryLedger()
}

func (d *dependencies) receiptSlot(cfg *config.Config, logger zerolog.Logger) receipt.Slot {
	switch cfg.ReceiptSlot {
	case config.DriverRedis:
		return receipt.NewRedisSlot(d.Redis, receipt.DefaultRedisKey, logger)
	case config.DriverPostgres:
		return receipt.NewPostgresSlot(d.Pool, logger)
	default:
		return receipt.NewMemorySlot()
	}
}

// eventBus wires sale.completed to the ledger, either directly or through the
// asynq worker. The returned func closes the queue client.
func (d *dependencies) eventBus(cfg *config.Config, ledger sales.Ledger, logger zerolog.Logger) (*events.Bus, func(), error) {
	bus := &events.Bus{}
	if d.Pool != nil {
		bus.Store = events.NewPostgresStore(d.Pool)
	}
	if cfg.SalesRecording != config.RecordQueue {
		bus.Notifiers = []events.Notifier{sales.LedgerNotifier{Ledger: ledger, Logger: logger}}
		return bus, func() {}, nil
	}

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse asynq redis uri: %w", err)
	}
	client := asynq.NewClient(opt)
	bus.Notifiers = []events.Notifier{sales.TaskNotifier{
		Client:    client,
		Queue:     cfg.SalesQueue,
		MaxRetry:  10,
		Retention: 24 * time.Hour,
		Logger:    logger,
	}}
	return bus, func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}, nil
}

// queueAdmin returns nil unless sales are recorded through asynq.
func (d *dependencies) queueAdmin(cfg *config.Config, logger zerolog.Logger) (*queue.AdminHandler, func(), error) {
	if cfg.SalesRecording != config.RecordQueue {
		return nil, func() {}, nil
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse asynq redis uri: %w", err)
	}
	inspector := asynq.NewInspector(opt)
	return &queue.AdminHandler{Inspector: inspector, Logger: logger}, func() { _ = inspector.Close() }, nil
}

func (d *dependencies) probes(cfg *config.Config) []health.Probe {
	var probes []health.Probe
	if d.Pool != nil {
		probes = append(probes, health.Probe{
			Name:    "db",
			Timeout: cfg.Obs.ReadyDBTimeout,
			Ping:    d.Pool.Ping,
		})
	}
	if d.Redis != nil {
		probes = append(probes, health.Probe{
			Name:    "redis",
			Timeout: cfg.Obs.ReadyRedisTimeout,
			Ping:    func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() },
		})
	}
	return probes
}
