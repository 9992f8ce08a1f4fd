// Package bootstrap opens the infrastructure shared by the api and worker
// processes: the lead store, the task queue and the brand registry.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/queue"
	"leadcrm_backend/internal/queue/broker"
	"leadcrm_backend/internal/queue/memory"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/db"
	"leadcrm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreConfig is what OpenStore needs.
type StoreConfig interface {
	config.StoreConfig
	config.DatabaseConfig
}

// Queue is a queue.Queue that can also answer readiness probes.
type Queue interface {
	queue.Queue
	Ping(ctx context.Context) error
}

// OpenStore returns the configured lead store and a cleanup func.
// The postgres driver migrates the schema before handing out the repository.
func OpenStore(ctx context.Context, cfg StoreConfig, log *logger.Logger) (repository.Store, func(), error) {
	if cfg.GetStoreDriver() != config.StoreDriverPostgres {
		log.Warn("using in-memory lead store; data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		return nil, nil, err
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, nil, err
	}
	log.Info("database connection established")

	return repository.New(pool), pool.Close, nil
}

// OpenQueue returns the configured task queue.
func OpenQueue(cfg config.SchedulerConfig, log *logger.Logger) (Queue, error) {
	switch cfg.GetQueueDriver() {
	case config.QueueDriverRedis:
		b, err := broker.New(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("init broker: %w", err)
		}
		return b, nil
	default:
		return memory.New(cfg.GetQueuePollInterval(), log), nil
	}
}

// LoadBrands builds the registry from the built-in brand plus the optional brands file.
func LoadBrands(cfg config.BrandsConfig, log *logger.Logger) (*brands.Registry, error) {
	registry := brands.NewDefaultRegistry()
	n, err := brands.LoadFile(registry, cfg.GetBrandsFile())
	if err != nil {
		return nil, err
	}
	log.Info("brand registry loaded", "fromFile", n, "active", registry.CountActive())
	return registry, nil
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
