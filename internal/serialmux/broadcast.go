package serialmux

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/alexconrey/webmux/internal/metrics"
)

// ErrSubscriptionClosed is returned by Recv once the session has been
// destroyed and the subscription drained.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Event is one delivery from a subscription. Either Data is a byte block
// read from the device, or Lagged reports how many blocks were dropped
// because the subscriber fell behind.
type Event struct {
	Data   []byte
	Lagged uint64
}

// Subscriber observes byte blocks published after it attached. A subscriber
// that cannot keep up loses the oldest unread blocks and is told so via a
// Lagged event; it never blocks the publisher or other subscribers.
type Subscriber struct {
	id      string
	ch      chan []byte
	dropped atomic.Uint64
	b       *broadcaster
}

// Recv returns the next event. A pending lag notice is delivered before any
// further data so the gap is observable in order.
func (s *Subscriber) Recv(ctx context.Context) (Event, error) {
	if n := s.dropped.Swap(0); n > 0 {
		return Event{Lagged: n}, nil
	}

	select {
	case data, ok := <-s.ch:
		if !ok {
			return Event{}, ErrSubscriptionClosed
		}
		return Event{Data: data}, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close detaches the subscriber from the broadcast. Idempotent.
func (s *Subscriber) Close() {
	s.b.unsubscribe(s.id)
}

// broadcaster fans byte blocks out to an unbounded set of subscribers, each
// with its own bounded ring. Publishing never blocks: when a subscriber's
// ring is full the oldest block is evicted and counted against it.
type broadcaster struct {
	name     string
	capacity int

	mu     sync.Mutex
	subs   map[string]*Subscriber
	closed bool
}

func newBroadcaster(name string, capacity int) *broadcaster {
	return &broadcaster{
		name:     name,
		capacity: capacity,
		subs:     make(map[string]*Subscriber),
	}
}

func (b *broadcaster) subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan []byte, b.capacity),
		b:  b,
	}

	b.mu.Lock()
	if b.closed {
		// Hand back a drained subscription so callers observe closure
		// instead of blocking forever.
		close(sub.ch)
		b.mu.Unlock()
		return sub
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	metrics.SubscriberAttached(b.name)
	return sub
}

func (b *broadcaster) unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		close(sub.ch)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if ok {
		metrics.SubscriberDetached(b.name)
	}
}

// publish delivers block to every subscriber, evicting the oldest unread
// block from any full ring. Only the session's reader goroutine publishes,
// so a ring with one slot freed cannot refill before the retry. Returns the
// number of subscribers that received the block directly.
func (b *broadcaster) publish(block []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}

	delivered := 0
	for _, sub := range b.subs {
		select {
		case sub.ch <- block:
			delivered++
			continue
		default:
		}

		// Ring full: drop the oldest block and count the gap.
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
			metrics.AddDroppedBlocks(b.name, 1)
		default:
		}

		select {
		case sub.ch <- block:
			delivered++
		default:
		}
	}
	return delivered
}

// close detaches every subscriber and rejects future publishes. Buffered
// blocks remain readable; subscribers then observe ErrSubscriptionClosed.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
		metrics.SubscriberDetached(b.name)
	}
}

// subscriberCount reports the number of attached subscribers.
func (b *broadcaster) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
