// Package eventbus fans out lifecycle events from App to Ui: shutdown
// requests and cache-invalidation notices, so the TUI can react (show a
// farewell screen, refresh a view) without App reaching into Ui's state
// directly.
package eventbus

import "sync"

// EventType identifies the kind of lifecycle event published.
type EventType int

const (
	// EventShutdownRequested is published when App begins an ordered
	// shutdown (TUI exit, signal, or command completion).
	EventShutdownRequested EventType = iota
	// EventCacheInvalidated is published after a `cache invalidate` call
	// completes, naming which list (or "" for all lists) was cleared.
	EventCacheInvalidated
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type EventType
	List string
}

// Metrics is a snapshot of bus activity, useful for diagnostics.
type Metrics struct {
	EventsPublished   int
	EventsDelivered   int
	EventsDropped     int
	SubscribersActive int
	SubscribersTotal  int
}

const subscriberBufferSize = 100

// Bus is a fan-out publisher: every Subscribe call gets its own buffered
// channel, and Publish never blocks: a slow or absent subscriber drops
// events past its buffer instead of stalling App's shutdown sequence.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int

	published int
	delivered int
	dropped   int
	totalSubs int

	closed bool
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// Subscribe registers a new listener and returns its event channel plus an
// unsubscribe function. The channel is closed when unsub is called or the
// bus is closed.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.totalSubs++

	ch := make(chan Event, subscriberBufferSize)
	b.subscribers[id] = ch

	return ch, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(ch)
}

// Publish fans event out to every current subscriber without blocking.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.published++

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
			b.delivered++
		default:
			b.dropped++
		}
	}
}

// PublishShutdownRequested is a convenience wrapper for the common
// zero-payload shutdown event.
func (b *Bus) PublishShutdownRequested() {
	b.Publish(Event{Type: EventShutdownRequested})
}

// PublishCacheInvalidated announces that list (or "" for all lists) was
// invalidated.
func (b *Bus) PublishCacheInvalidated(list string) {
	b.Publish(Event{Type: EventCacheInvalidated, List: list})
}

// SubscriberCount returns the number of currently active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Metrics returns a snapshot of bus activity counters.
func (b *Bus) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Metrics{
		EventsPublished:   b.published,
		EventsDelivered:   b.delivered,
		EventsDropped:     b.dropped,
		SubscribersActive: len(b.subscribers),
		SubscribersTotal:  b.totalSubs,
	}
}

// Close closes every subscriber channel and marks the bus closed; further
// Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
