// Package broker is the Redis-backed Queue backend built on asynq. Tasks
// survive process restarts and can be consumed by a separate worker process.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadcrm_backend/internal/queue"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const defaultQueueName = "leads"

// Broker implements queue.Queue on asynq.
type Broker struct {
	client *asynq.Client
	rdb    *redis.Client
	opt    asynq.RedisClientOpt

	queue       string
	concurrency int
	log         *logger.Logger

	mu       sync.Mutex
	handlers map[string]queue.HandlerFunc
}

var _ queue.Queue = (*Broker)(nil)

// New connects the producer side. The consumer starts in Run.
func New(cfg config.SchedulerConfig, log *logger.Logger) (*Broker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opts, err := redisOptions(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	name := cfg.GetAsynqQueueName()
	if name == "" {
		name = defaultQueueName
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	opt := redisClientOpt(opts)
	return &Broker{
		client:      asynq.NewClient(opt),
		rdb:         redis.NewClient(opts),
		opt:         opt,
		queue:       name,
		concurrency: concurrency,
		log:         log,
		handlers:    make(map[string]queue.HandlerFunc),
	}, nil
}

// Enqueue schedules task. asynq's own retry is disabled; the dispatcher
// re-enqueues with its backoff delay instead.
func (b *Broker) Enqueue(ctx context.Context, task queue.Task, delay time.Duration) error {
	opts := []asynq.Option{asynq.Queue(b.queue), asynq.MaxRetry(0)}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	_, err := b.client.EnqueueContext(ctx, asynq.NewTask(task.Type, task.Payload), opts...)
	return err
}

func (b *Broker) Handle(taskType string, fn queue.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[taskType] = fn
}

// Run starts the asynq server and blocks until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	server := asynq.NewServer(b.opt, asynq.Config{
		Concurrency: b.concurrency,
		Queues: map[string]int{
			b.queue: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			b.log.Error("task failed", "type", task.Type(), "error", err)
		}),
	})

	if err := server.Start(b.mux()); err != nil {
		return fmt.Errorf("start broker worker: %w", err)
	}
	b.log.Info("broker worker started", "queue", b.queue, "concurrency", b.concurrency)

	<-ctx.Done()
	server.Shutdown()
	b.log.Info("broker worker stopped")
	return nil
}

func (b *Broker) mux() *asynq.ServeMux {
	b.mu.Lock()
	defer b.mu.Unlock()

	mux := asynq.NewServeMux()
	for taskType, fn := range b.handlers {
		mux.HandleFunc(taskType, adapt(fn))
	}
	return mux
}

func adapt(fn queue.HandlerFunc) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		return fn(ctx, queue.Task{Type: t.Type(), Payload: t.Payload()})
	}
}

// Ping checks Redis connectivity for readiness probes.
func (b *Broker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *Broker) Close() error {
	clientErr := b.client.Close()
	if err := b.rdb.Close(); err != nil {
		return err
	}
	return clientErr
}
