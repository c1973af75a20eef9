// Package jobs runs background work on a bounded in-memory worker pool.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the buffer cannot take another item.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned by Enqueue after Stop.
	ErrQueueClosed = errors.New("queue is closed")
)

// Handler processes one payload.
type Handler[T any] func(ctx context.Context, payload T) error

// Config configures worker pool behaviour.
type Config struct {
	Workers     int
	BufferSize  int
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *zap.Logger
}

// Queue dispatches payloads to a fixed set of workers. Enqueue never blocks.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config

	items   chan T
	ctx     context.Context
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

// New builds a queue with the provided handler.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		items:   make(chan T, cfg.BufferSize),
	}
}

// Start launches the workers. Items enqueued earlier are processed too.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.ctx = ctx
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Enqueue hands payload to the workers.
func (q *Queue[T]) Enqueue(payload T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.items <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new items and waits until the buffer is drained or ctx ends.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name))
		return nil
	case <-ctx.Done():
		q.cfg.Logger.Warn("queue stopped before draining", zap.String("queue", q.name), zap.Int("pending", len(q.items)))
		return ctx.Err()
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for payload := range q.items {
		q.process(payload)
	}
}

func (q *Queue[T]) process(payload T) {
	var err error
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		if err = q.handler(q.ctx, payload); err == nil {
			return
		}
		if attempt == q.cfg.MaxAttempts {
			break
		}
		q.cfg.Logger.Warn("job failed, retrying", zap.String("queue", q.name), zap.Int("attempt", attempt), zap.Error(err))
		timer := time.NewTimer(q.cfg.RetryDelay)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			q.cfg.Logger.Error("job abandoned", zap.String("queue", q.name), zap.Error(err))
			return
		case <-timer.C:
		}
	}
	q.cfg.Logger.Error("job exceeded retries", zap.String("queue", q.name), zap.Int("attempts", q.cfg.MaxAttempts), zap.Error(err))
}
