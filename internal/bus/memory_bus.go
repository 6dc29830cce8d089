// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/ManuGH/xg2g-archive/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// MemoryBus is an in-process pub/sub. Publish blocks while a subscriber's
// buffer is full, until the publish context is done. A subscriber whose
// buffer is still full when the publish deadline passes is closed, so one
// that stops reading cannot hold up later publishes.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub
	buffer int
}

const dropLogEvery = 100

var dropCount atomic.Uint64

func NewMemoryBus() *MemoryBus {
	return NewMemoryBusWithBuffer(DefaultBuffer)
}

// NewMemoryBusWithBuffer creates a bus whose subscriber channels hold buffer messages.
func NewMemoryBusWithBuffer(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBus{subs: make(map[string][]*memSub), buffer: buffer}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	var (
		lagging []*memSub
		err     error
	)
	b.mu.RLock()
	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- msg:
			continue
		case <-sub.done:
			continue
		default:
		}
		if err != nil {
			// Past the deadline nobody is waited for.
			lagging = append(lagging, sub)
			continue
		}
		select {
		case sub.ch <- msg:
		case <-sub.done:
			// closing subscriber; skip it
		case <-ctx.Done():
			err = ctx.Err()
			if !errors.Is(err, context.DeadlineExceeded) {
				b.mu.RUnlock()
				recordDrop(topic, publishDropReason(err))
				return fmt.Errorf("publish topic %q: %w", topic, err)
			}
			lagging = append(lagging, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range lagging {
		_ = sub.Close()
		metrics.IncBusDropReason(topic, "slow_subscriber")
		log.L().Warn().
			Str(log.FieldTopic, topic).
			Msg("memory bus closed a subscriber that stopped reading")
	}
	if err != nil {
		recordDrop(topic, publishDropReason(err))
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}
	metrics.IncBusPublished(topic, "memory")
	return nil
}

func recordDrop(topic, reason string) {
	metrics.IncBusDropReason(topic, reason)
	count := dropCount.Add(1)
	if count%dropLogEvery == 1 {
		log.L().Warn().
			Str(log.FieldTopic, topic).
			Str("reason", reason).
			Uint64("dropped", count).
			Msg("memory bus failed to publish due to context cancellation")
	}
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	sub := &memSub{b: b, topic: topic, ch: make(chan Message, b.buffer), done: make(chan struct{})}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return sub, nil
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Message
	// done is closed before the bus lock is taken so that a publisher
	// blocked on a full ch lets go of its read lock.
	done      chan struct{}
	closeOnce sync.Once
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.closeOnce.Do(s.close)
	return nil
}

func (s *memSub) close() {
	close(s.done)

	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	close(s.ch)
}

// Ensure compliance
var _ Bus = (*MemoryBus)(nil)
