// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package workqueue provides serial work queues: every task scheduled on one
// Queue runs on the same goroutine, in scheduling order, one at a time.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/rs/zerolog"
)

// ErrClosed is returned when scheduling on a closed queue.
var ErrClosed = errors.New("work queue closed")

// Task is one unit of work. ctx is the queue's lifetime context; it is
// canceled only after Close has drained every task scheduled before it.
type Task func(ctx context.Context)

// Queue is an unbounded FIFO executed by a single worker goroutine.
// Schedule never blocks the caller.
type Queue struct {
	name   string
	logger zerolog.Logger

	mu     sync.Mutex
	items  []Task
	closed bool

	wake   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts a queue. name identifies it in logs.
func New(name string) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		name:   name,
		logger: log.WithComponent("workqueue").With().Str("queue", name).Logger(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go q.run()
	return q
}

// Name returns the queue identity.
func (q *Queue) Name() string {
	return q.name
}

// Schedule appends t to the queue.
func (q *Queue) Schedule(t Task) error {
	if t == nil {
		return fmt.Errorf("workqueue %s: nil task", q.name)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Barrier schedules an empty task and waits until it has run, i.e. until
// every task scheduled before it has completed.
func (q *Queue) Barrier(ctx context.Context) error {
	reached := make(chan struct{})
	if err := q.Schedule(func(context.Context) { close(reached) }); err != nil {
		return err
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workqueue %s barrier: %w", q.name, ctx.Err())
	}
}

// Stop stops accepting tasks without waiting. Tasks already queued still
// run. Stop may be called from inside a task.
func (q *Queue) Stop() {
	q.mu.Lock()
	already := q.closed
	q.closed = true
	q.mu.Unlock()

	if !already {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

// Close stops the queue and waits until the worker has drained what was
// already queued and exited. Close is idempotent.
func (q *Queue) Close(ctx context.Context) error {
	q.Stop()
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workqueue %s close: %w", q.name, ctx.Err())
	}
}

func (q *Queue) next() (Task, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false, q.closed
	}
	t := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, true, false
}

func (q *Queue) run() {
	defer close(q.done)
	defer q.cancel()
	for {
		t, ok, closed := q.next()
		if closed {
			return
		}
		if !ok {
			<-q.wake
			continue
		}
		q.exec(t)
	}
}

func (q *Queue) exec(t Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().
				Str(log.FieldEvent, "workqueue.task_panic").
				Interface("panic", r).
				Msg("work queue task panicked")
		}
	}()
	t(q.ctx)
}
