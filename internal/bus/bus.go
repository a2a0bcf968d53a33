// Package bus provides synchronous in-process pub/sub. Handlers run on the
// emitting goroutine in subscription order; slow work belongs in the
// subscriber, not the bus.
package bus

import (
	"sync"
)

// Handler consumes one published event.
type Handler func(event any)

// DiagnosticLogger receives reports of recovered handler panics. Swallowed
// handler failures are isolated from other subscribers but never lost.
type DiagnosticLogger interface {
	Error(msg string, args ...any)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a synchronous topic-based event bus.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	topics map[string][]subscription
	diag   DiagnosticLogger
}

// New constructs a Bus. diag may be nil, in which case handler panics are
// recovered silently.
func New(diag DiagnosticLogger) *Bus {
	return &Bus{
		topics: make(map[string][]subscription),
		diag:   diag,
	}
}

// Subscribe registers handler for topic and returns an unsubscribe function.
// Calling the returned function more than once is a no-op, and a handler may
// unsubscribe itself during its own invocation.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(topic, id)
		})
	}
}

func (b *Bus) unsubscribe(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, sub := range subs {
		if sub.id == id {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// Emit delivers event to every handler subscribed to topic, in subscription
// order, on the calling goroutine. A panicking handler is recovered and
// reported; remaining handlers still run. The subscriber list is snapshotted
// before delivery, so mid-emission unsubscribes never break the iteration.
func (b *Bus) Emit(topic string, event any) {
	b.mu.Lock()
	subs := make([]subscription, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(topic, sub, event)
	}
}

func (b *Bus) deliver(topic string, sub subscription, event any) {
	defer func() {
		if r := recover(); r != nil && b.diag != nil {
			b.diag.Error("event handler panic", "topic", topic, "panic", r)
		}
	}()
	sub.handler(event)
}

// SubscriberCount reports how many handlers are registered for topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
