// Package queue defines the task queue the dispatcher runs on. Two backends
// implement it: an in-process polled queue (queue/memory) and a Redis-backed
// broker (queue/broker).
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("queue closed")

// Task is a unit of work: a type name routing it to a handler and an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// HandlerFunc processes one task. A returned error is logged; retries are
// the handler's business and go through Enqueue with an explicit delay.
type HandlerFunc func(ctx context.Context, task Task) error

// Queue schedules tasks and runs registered handlers for them.
type Queue interface {
	// Enqueue schedules task to run no earlier than delay from now.
	Enqueue(ctx context.Context, task Task, delay time.Duration) error
	// Handle registers fn for taskType. Must be called before Run.
	Handle(taskType string, fn HandlerFunc)
	// Run processes tasks until ctx is cancelled.
	Run(ctx context.Context) error
	Close() error
}
