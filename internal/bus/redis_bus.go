// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ManuGH/xg2g-archive/internal/log"
	"github.com/ManuGH/xg2g-archive/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisBus publishes JSON-encoded messages on Redis pub/sub channels named
// prefix + topic. Delivery is fire-and-forget: messages published while no
// subscriber is attached are lost.
type RedisBus struct {
	client *redis.Client
	prefix string
	buffer int
}

// NewRedisBus wraps an existing client. The caller owns the client.
func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	return &RedisBus{client: client, prefix: prefix, buffer: DefaultBuffer}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + topic
}

func (b *RedisBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		metrics.IncBusDropReason(topic, "encode")
		return fmt.Errorf("encode message for topic %q: %w", topic, err)
	}
	if err := b.client.Publish(ctx, b.channel(topic), payload).Err(); err != nil {
		metrics.IncBusDropReason(topic, "redis")
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}
	metrics.IncBusPublished(topic, "redis")
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	ps := b.client.Subscribe(ctx, b.channel(topic))
	// Wait for the subscription confirmation so that no message published
	// after Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe topic %q: %w", topic, err)
	}

	s := &redisSub{ps: ps, ch: make(chan Message, b.buffer), done: make(chan struct{})}
	go s.pump(topic)
	return s, nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func (s *redisSub) pump(topic string) {
	defer close(s.ch)
	in := s.ps.Channel()
	for {
		select {
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.ch <- json.RawMessage(m.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSub) C() <-chan Message {
	return s.ch
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		if err != nil {
			log.L().Debug().Err(err).Msg("close redis subscription")
		}
	})
	return err
}

var _ Bus = (*RedisBus)(nil)
