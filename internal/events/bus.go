// Package events is the cross-cutting event bus used to fan daemon-wide
// notifications (agent created/resumed/deleted, published by the daemon's
// telemetry wrapper) out to whichever components subscribed, independent
// of the per-agent adapter.Event stream the manager already handles
// directly.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one bus message.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// New creates an Event with a fresh id and current timestamp.
func New(eventType, source string, data map[string]any) *Event {
	return &Event{ID: uuid.New().String(), Type: eventType, Source: source, Timestamp: time.Now().UTC(), Data: data}
}

// Handler processes one delivered Event.
type Handler func(ctx context.Context, event *Event) error

// Subscription is an active subscription handle.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the cross-cutting publish/subscribe abstraction. Both the
// in-memory and NATS-backed implementations satisfy it so the daemon can
// run standalone or fan events out to a shared broker.
type Bus interface {
	Publish(ctx context.Context, subject string, event *Event) error
	Subscribe(subject string, handler Handler) (Subscription, error)
	Close()
}
