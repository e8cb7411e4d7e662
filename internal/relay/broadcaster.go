// Package relay fans broadcast-topic messages out to realtime subscribers.
package relay

import (
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
)

// subscriberBuffer is how many undelivered messages a subscriber may lag by
// before new ones are skipped.
const subscriberBuffer = 100

// Broadcaster delivers each message to every current subscriber.
type Broadcaster struct {
	subscribers map[uint64]chan domain.Broadcast
	nextID      atomic.Uint64
	mu          sync.RWMutex
	metrics     *observability.Metrics
}

func NewBroadcaster(metrics *observability.Metrics) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan domain.Broadcast),
		metrics:     metrics,
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan domain.Broadcast) {
	id := b.nextID.Add(1)
	ch := make(chan domain.Broadcast, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.metrics.RelaySubscribers.Set(float64(len(b.subscribers)))
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.metrics.RelaySubscribers.Set(float64(len(b.subscribers)))
	b.mu.Unlock()
}

// Broadcast never blocks; subscribers whose buffer is full miss the message.
func (b *Broadcaster) Broadcast(msg domain.Broadcast) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.metrics.RelaySubscribers.Set(0)
}
