// Package eventbus is the in-process, synchronous topic bus every subsystem
// publishes cross-cutting events to (campaign started, resource uploaded,
// hash cracked, ...). Handlers run sequentially, in subscription order,
// within one Publish call; a handler failure is recorded and does not stop
// the remaining handlers from running.
//
// Design note (spec §9, "Event bus in a systems language"): the handler
// registry is a map guarded by a RWMutex. Publish takes the read lock only
// long enough to copy out the handler slice for the topic, then releases it
// before calling any handler — so a handler may itself Subscribe or Publish
// without deadlocking.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one published event. A non-nil return is recorded as a
// HandlerFailure; it never stops sibling handlers from running.
type Handler func(ctx context.Context, payload map[string]any) error

// HandlerFailure describes one handler's failure during a Publish call.
type HandlerFailure struct {
	HandlerName string
	Err         error
	EventType   string
}

func (f HandlerFailure) Error() string {
	return fmt.Sprintf("handler %s failed for %s: %v", f.HandlerName, f.EventType, f.Err)
}

type subscription struct {
	name    string
	handler Handler
}

// Bus is a topic-keyed pub/sub registry. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{topics: make(map[string][]subscription)}
}

var (
	defaultMu   sync.Mutex
	defaultBus  *Bus
)

// Default returns the process-singleton Bus, creating it on first use.
func Default() *Bus {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus == nil {
		defaultBus = New()
	}
	return defaultBus
}

// Subscribe appends handler to eventType's handler list. name is used only
// for diagnostics (HandlerFailure.HandlerName, unsubscribe-not-found logs).
func (b *Bus) Subscribe(eventType string, name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[eventType] = append(b.topics[eventType], subscription{name: name, handler: handler})
}

// Unsubscribe removes the first handler registered under name for eventType.
// A missing handler logs a warning and never fails — mirroring spec §4.2.
func (b *Bus) Unsubscribe(eventType string, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[eventType]
	for i, s := range subs {
		if s.name == name {
			b.topics[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
	slog.Warn("eventbus: unsubscribe found no matching handler", "event_type", eventType, "handler", name)
}

// Clear removes every handler from every topic. Test hook only.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = make(map[string][]subscription)
}

// Publish resolves eventType's handlers in subscription order and calls each
// sequentially, within this call. Handlers observe payload in that same
// order; a handler's error is recorded as a HandlerFailure and does not
// prevent later handlers from running. A topic with no handlers is a no-op
// returning nil. Publish itself does not hold the bus lock while handlers
// run, so handlers may Subscribe/Publish/Unsubscribe freely.
func (b *Bus) Publish(ctx context.Context, eventType string, payload map[string]any) []HandlerFailure {
	b.mu.RLock()
	subs := make([]subscription, len(b.topics[eventType]))
	copy(subs, b.topics[eventType])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	var failures []HandlerFailure
	for _, s := range subs {
		if err := callHandler(ctx, s.handler, payload); err != nil {
			failures = append(failures, HandlerFailure{HandlerName: s.name, Err: err, EventType: eventType})
		}
	}
	return failures
}

// callHandler isolates a handler panic (a programming error in a handler
// must not crash the publisher) and reports it as a regular failure.
func callHandler(ctx context.Context, h Handler, payload map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, payload)
}
