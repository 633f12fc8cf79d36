// Package feed provides pub-sub plumbing: a fan-out broadcaster, a keyed
// subscription manager, and a periodic snapshot publisher.
package feed

import (
	"sync"
)

// PublishReport summarises one broadcast attempt.
type PublishReport struct {
	Delivered   int
	DroppedFull int
}

// Broadcaster fans values out to every subscriber without blocking the
// publisher: a subscriber whose buffer is full misses the value.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]chan T
	nextID uint64
	buffer int
	closed bool
}

// NewBroadcaster builds a broadcaster whose subscribers get buffers of the
// given depth.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster[T]{subs: make(map[uint64]chan T), buffer: buffer}
}

// Subscribe registers a new subscriber. The cancel func detaches it and
// closes its channel.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish try-sends the value to every subscriber.
func (b *Broadcaster[T]) Publish(v T) PublishReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	var report PublishReport
	for _, ch := range b.subs {
		select {
		case ch <- v:
			report.Delivered++
		default:
			report.DroppedFull++
		}
	}
	return report
}

// Len returns the live subscriber count.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches and closes every subscriber.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
