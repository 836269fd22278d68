package main

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hcp_job_processor/internal/adapters"
	"hcp_job_processor/internal/adapters/storage"
	"hcp_job_processor/internal/scheduler"
	"hcp_job_processor/platform/config"
	"hcp_job_processor/platform/db"
	"hcp_job_processor/platform/keylock"
	"hcp_job_processor/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	if !cfg.IsSchedulerEnabled() {
		panic("REDIS_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()

	locker := keylock.NewRedis(redisClient, cfg.GetLockTTL(), keylock.WithLostHandler(func(key string, err error) {
		log.Warn("job lock release failed", "key", key, "error", err)
	}))

	processor, err := adapters.NewJobProcessor(pool, cfg, locker, log)
	if err != nil {
		log.Error("failed to initialize job processor", "error", err)
		panic("failed to initialize job processor: " + err.Error())
	}

	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		cleanup := scheduler.NewArchiveCleanup(storageSvc, cfg.GetMinioBucketWebhookArchive(), log,
			cfg.GetArchiveCleanupInterval(), cfg.GetArchiveRetention())
		go cleanup.Run(ctx)
	}

	worker, err := scheduler.NewWorker(cfg, scheduler.NewJobEventHandler(processor, log), log)
	if err != nil {
		log.Error("failed to initialize job event worker", "error", err)
		panic("failed to initialize job event worker: " + err.Error())
	}

	worker.Run(ctx)
}

func newRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{}
		}
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redis.NewClient(opt), nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
