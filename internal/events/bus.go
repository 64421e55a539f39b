// Package events provides a typed, one-way publish/subscribe bus.
//
// Emit invokes the subscribers of an event name synchronously, most
// recently registered first, on the emitting goroutine. A subscriber that
// needs to block or call back into the emitter must hand the work to its
// own goroutine. There is no request/response path through the bus.
package events

import (
	"sync"

	"watchalong/internal/logging"
)

// Handler receives one emitted payload.
type Handler[P any] func(P)

// Bus fans out payloads of type P to subscribers keyed by event name.
type Bus[P any] struct {
	mu     sync.RWMutex
	subs   map[string][]Handler[P] // newest first
	closed bool
}

// New creates an empty bus.
func New[P any]() *Bus[P] {
	return &Bus[P]{subs: make(map[string][]Handler[P])}
}

// Subscribe registers h for every future emission of name.
// Subscriptions live until the bus is closed.
func (b *Bus[P]) Subscribe(name string, h Handler[P]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.subs[name] = append([]Handler[P]{h}, b.subs[name]...)
}

// Emit calls every subscriber of name with payload, newest first, and
// returns once all of them have returned. A panicking subscriber is logged
// and skipped. Emit is a no-op when nobody subscribed or the bus is closed.
func (b *Bus[P]) Emit(name string, payload P) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	hs := b.subs[name]
	b.mu.RUnlock()

	for _, h := range hs {
		deliver(name, h, payload)
	}
}

// Close drops every subscription. Later calls to Subscribe and Emit do
// nothing.
func (b *Bus[P]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
}

func deliver[P any](name string, h Handler[P], p P) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategorySession).Error("subscriber of %q panicked: %v", name, r)
		}
	}()
	h(p)
}
