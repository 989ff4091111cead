// Package live fans classified log events out to dashboard stream
// subscribers. A bounded ring keeps the most recent events for late
// joiners and polling clients; per-subscriber queues are bounded and
// lossy so one stalled reader can never back-pressure ingest.
package live

import (
	"sync"

	"github.com/anomi-sec/anomi/pkg/model"
)

// Broadcaster owns the recent-events ring and the subscriber set.
type Broadcaster struct {
	mu     sync.Mutex
	ring   []model.LiveEvent // fixed-size, head is the next write slot
	head   int
	count  int
	queue  int
	subs   map[*Subscriber]struct{}
	closed bool
}

// Subscriber receives events published after Subscribe. Its channel is
// closed when the subscriber is removed or the broadcaster shuts down.
type Subscriber struct {
	ch chan model.LiveEvent
}

// Events returns the subscriber's receive channel.
func (s *Subscriber) Events() <-chan model.LiveEvent { return s.ch }

// New creates a broadcaster holding the latest capacity events, with
// per-subscriber queues of queue entries.
func New(capacity, queue int) *Broadcaster {
	if capacity <= 0 {
		capacity = 500
	}
	if queue <= 0 {
		queue = 16
	}
	return &Broadcaster{
		ring:  make([]model.LiveEvent, capacity),
		queue: queue,
		subs:  make(map[*Subscriber]struct{}),
	}
}

// Publish writes ev into the ring and delivers it to every subscriber.
// The ring write is O(1), overwriting the oldest slot once full.
// Delivery never blocks: when a subscriber's queue is full its oldest
// queued event is discarded to make room.
func (b *Broadcaster) Publish(ev model.LiveEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.ring[b.head] = ev
	b.head = (b.head + 1) % len(b.ring)
	if b.count < len(b.ring) {
		b.count++
	}

	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			// Queue full; shed the oldest entry and retry once.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- ev:
			default:
			}
		}
	}
}

// Snapshot returns up to limit recent events, newest first. limit <= 0
// means the whole ring.
func (b *Broadcaster) Snapshot(limit int) []model.LiveEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.LiveEvent, n)
	for i := 0; i < n; i++ {
		out[i] = b.ring[(b.head-1-i+len(b.ring))%len(b.ring)]
	}
	return out
}

// Subscribe registers a new subscriber. The returned cancel func is
// idempotent and closes the subscriber's channel.
func (b *Broadcaster) Subscribe() (*Subscriber, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscriber{ch: make(chan model.LiveEvent, b.queue)}
	if b.closed {
		close(s.ch)
		return s, func() {}
	}
	b.subs[s] = struct{}{}

	return s, func() { b.unsubscribe(s) }
}

func (b *Broadcaster) unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
}

// SubscriberCount reports the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close removes all subscribers and stops accepting events.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}
