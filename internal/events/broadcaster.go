package events

import (
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 100

type subscriber struct {
	ch            chan Event
	institutionID string // empty receives every institution
}

// Broadcaster fans events out to in-process subscribers. Sends never block:
// a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]*subscriber),
	}
}

// Subscribe registers a subscriber for one institution, or all when
// institutionID is empty. Events without an institution reach everyone.
func (b *Broadcaster) Subscribe(institutionID string) (uint64, <-chan Event) {
	id := b.nextID.Add(1)
	sub := &subscriber{
		ch:            make(chan Event, subscriberBuffer),
		institutionID: institutionID,
	}

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	return id, sub.ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.institutionID != "" && e.InstitutionID != "" && sub.institutionID != e.InstitutionID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
