// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus carries stream completion events from the archive dispatcher
// to whoever is waiting on them.
package bus

import "context"

// Message is an opaque event payload.
// In-memory subscribers receive the published value as is; Redis subscribers
// receive the JSON encoding as json.RawMessage.
type Message interface{}

type Subscriber interface {
	// C returns a read-only message channel. It is closed by Close.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the event transport abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
