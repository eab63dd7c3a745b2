package signal

import (
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// subscription represents a registered handler.
type subscription struct {
	id      uint64
	name    string
	handler Handler
}

// Bus is an in-process Center. Post calls every handler observing the name,
// in registration order, on the posting goroutine.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // name -> subscriptions
	nextID        atomic.Uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
	}
}

// Observe implements Center.
func (b *Bus) Observe(name string, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{
		id:      b.nextID.Add(1),
		name:    name,
		handler: h,
	}
	b.subscriptions[name] = append(b.subscriptions[name], sub)
	return &busSubscription{bus: b, id: sub.id, name: name}
}

// unsubscribe removes a subscription by id. Returns true if it was found.
func (b *Bus) unsubscribe(name string, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[name]
	for i, sub := range subs {
		if sub.id == id {
			remaining := make([]subscription, 0, len(subs)-1)
			remaining = append(remaining, subs[:i]...)
			remaining = append(remaining, subs[i+1:]...)
			if len(remaining) == 0 {
				delete(b.subscriptions, name)
			} else {
				b.subscriptions[name] = remaining
			}
			return true
		}
	}
	return false
}

// Post implements Center. A panicking handler is logged and recovered so it
// cannot block delivery to the remaining handlers.
func (b *Bus) Post(name string) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subscriptions[name]))
	copy(subs, b.subscriptions[name])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.safeCall(sub.handler, name)
	}
}

func (b *Bus) safeCall(h Handler, name string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: signal handler panicked for %s: %v\n%s", name, r, debug.Stack())
		}
	}()
	h(name)
}

// HasObservers reports whether any subscription exists for name.
func (b *Bus) HasObservers(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[name]) > 0
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

type busSubscription struct {
	bus  *Bus
	id   uint64
	name string
	once sync.Once
}

func (s *busSubscription) Cancel() {
	s.once.Do(func() { s.bus.unsubscribe(s.name, s.id) })
}
