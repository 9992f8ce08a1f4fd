package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadcrm_backend/internal/bootstrap"
	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/dispatch"
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/internal/leads"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/events"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "queue", cfg.QueueDriver)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	leads.SubscribeMetrics(eventBus)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Dispatch
	// ========================================================================

	scheduler := dispatch.NewScheduler(q)
	dispatcher := dispatch.New(store, registry, scheduler, dispatch.NewTrackerClient(nil), eventBus, cfg, log)
	dispatcher.Register(q)
	sweeper := dispatch.NewSweeper(store, scheduler, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: map[string]apphttp.HealthChecker{
			"store": store,
			"queue": q,
		},
		Modules: []apphttp.Module{
			brands.NewModule(registry, val),
			leads.NewModule(store, registry, scheduler, eventBus, val, cfg, log),
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apphttp.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return q.Run(gctx)
	})
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		eventBus.Wait()
		panic("server error: " + err.Error())
	}
	eventBus.Wait()
	log.Info("server stopped")
}
