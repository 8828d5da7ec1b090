// Package events provides the push streams the engine exposes to the
// presentation layer: a multi-subscriber publish/subscribe bus keyed by
// stream kind.
package events

import (
	"sync"
	"time"
)

// StreamKind identifies one outbound stream.
type StreamKind string

const (
	// StreamProgress carries a per-command Progress snapshot after every
	// mutation.
	StreamProgress StreamKind = "progress"
	// StreamProgressMap carries the full live command map on demand.
	StreamProgressMap StreamKind = "progress_map"
	// StreamNotifications carries user-facing notices.
	StreamNotifications StreamKind = "notifications"
	// StreamAlerts carries triggered and resolved alerts.
	StreamAlerts StreamKind = "alerts"
	// StreamMetrics carries raw performance metrics as they are recorded.
	StreamMetrics StreamKind = "metrics"
	// StreamAnalytics carries periodic analytics snapshots.
	StreamAnalytics StreamKind = "analytics"
	// StreamStall carries stall and resume transitions.
	StreamStall StreamKind = "stall"
)

// Event is one published item. Payload holds a deep copy of the domain
// object for the stream kind; subscribers may retain it freely.
type Event struct {
	Kind      StreamKind
	CommandID string
	Timestamp time.Time
	Payload   any
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

// Bus is a non-blocking pub/sub fan-out. Delivery is asynchronous via a
// buffered channel per subscriber; a full channel drops the event for that
// subscriber so a slow consumer can never stall the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[StreamKind][]chan Event
	bufferSize  int
}

// NewBus creates a bus with the given buffer size per subscriber.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[StreamKind][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber for one stream kind. The function is
// invoked from a dedicated goroutine; a panic inside it is recovered so one
// broken subscriber cannot take the bus down. Returns an unsubscribe func.
func (b *Bus) Subscribe(kind StreamKind, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[kind] = append(b.subscribers[kind], ch)

	go func() {
		for event := range ch {
			func() {
				defer func() {
					recover()
				}()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[kind]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[kind] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish fans an event out to every subscriber of the kind. Never blocks:
// a full subscriber channel drops the event for that subscriber only.
func (b *Bus) Publish(kind StreamKind, commandID string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Kind:      kind,
		CommandID: commandID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	for _, ch := range b.subscribers[kind] {
		select {
		case ch <- event:
		default:
			// Channel full, drop for this subscriber.
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, kind)
	}
}
