package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/phms-engine/pkg/logger"
)

// QueueConfig configures a Queue.
type QueueConfig struct {
	Size          int
	RetryAttempts int
	RetryDelay    time.Duration
}

// Queue hands items from producers that must not block to a single consumer
// goroutine that may do slow I/O.
type Queue[T any] struct {
	name   string
	items  chan T
	handle func(context.Context, T) error
	config QueueConfig
	logger *logger.Logger
	done   chan struct{}
}

func NewQueue[T any](
	name string,
	config QueueConfig,
	handle func(context.Context, T) error,
	logger *logger.Logger,
) *Queue[T] {
	// Config validation instead of defaults
	if config.Size <= 0 {
		panic("Size must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay < 0 {
		panic("RetryDelay must not be negative")
	}

	return &Queue[T]{
		name:   name,
		items:  make(chan T, config.Size),
		handle: handle,
		config: config,
		logger: logger.Named(name),
		done:   make(chan struct{}),
	}
}

// Enqueue adds item without blocking. It reports false when the queue is full.
func (q *Queue[T]) Enqueue(item T) bool {
	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Start consumes until ctx is cancelled. Items still queued at that point are
// discarded.
func (q *Queue[T]) Start(ctx context.Context) {
	defer close(q.done)
	q.logger.Info("Starting queue worker")

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("Shutting down queue worker", "discarded", len(q.items))
			return
		case item := <-q.items:
			err := retry(ctx, q.config.RetryAttempts, q.config.RetryDelay, func() error {
				return q.handle(ctx, item)
			})
			if err != nil {
				q.logger.Error(err, "Failed to process item")
			}
		}
	}
}

// Done is closed once Start has returned.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}

// Helper retry function
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(delay):
			}
		}
	}
	return err
}
