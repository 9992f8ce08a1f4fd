// Command worker consumes lead dispatch tasks from the Redis broker. It lets
// delivery scale separately from the api process, which also consumes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"leadcrm_backend/internal/bootstrap"
	"leadcrm_backend/internal/dispatch"
	"leadcrm_backend/internal/leads"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/events"
	"leadcrm_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)

	if cfg.QueueDriver != config.QueueDriverRedis {
		panic("worker requires QUEUE_DRIVER=redis; the memory queue only runs inside the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open lead store", "error", err)
		panic("failed to open lead store: " + err.Error())
	}
	defer closeStore()

	q, err := bootstrap.OpenQueue(cfg, log)
	if err != nil {
		log.Error("failed to open task queue", "error", err)
		panic("failed to open task queue: " + err.Error())
	}
	defer func() { _ = q.Close() }()

	registry, err := bootstrap.LoadBrands(cfg, log)
	if err != nil {
		log.Error("failed to load brands", "error", err)
		panic("failed to load brands: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	leads.SubscribeMetrics(eventBus)

	scheduler := dispatch.NewScheduler(q)
	dispatcher := dispatch.New(store, registry, scheduler, dispatch.NewTrackerClient(nil), eventBus, cfg, log)
	dispatcher.Register(q)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return q.Run(gctx)
	})
	g.Go(func() error {
		dispatch.NewSweeper(store, scheduler, cfg, log).Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("worker error", "error", err)
		panic("worker error: " + err.Error())
	}
	eventBus.Wait()
	log.Info("worker stopped")
}
