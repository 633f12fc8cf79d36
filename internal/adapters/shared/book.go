// Package shared holds the transport pieces every venue adapter reuses: the
// reconnecting websocket session, the subscription replay book, and the
// throttled REST client.
package shared

import "sync"

// SubscriptionBook remembers the full set of subscribe payloads per key so a
// reconnecting session can replay them on a fresh socket.
type SubscriptionBook struct {
	mu       sync.Mutex
	payloads map[string][]byte
	order    []string
}

// NewSubscriptionBook builds an empty book.
func NewSubscriptionBook() *SubscriptionBook {
	return &SubscriptionBook{payloads: make(map[string][]byte)}
}

// Add registers the payload for the key, replacing a prior entry.
func (b *SubscriptionBook) Add(key string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.payloads[key]; !exists {
		b.order = append(b.order, key)
	}
	b.payloads[key] = append([]byte(nil), payload...)
}

// Remove drops the key's payload.
func (b *SubscriptionBook) Remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.payloads[key]; !exists {
		return
	}
	delete(b.payloads, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Has reports whether the key is registered.
func (b *SubscriptionBook) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.payloads[key]
	return ok
}

// Snapshot returns every payload in registration order.
func (b *SubscriptionBook) Snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, append([]byte(nil), b.payloads[key]...))
	}
	return out
}

// Len returns the number of registered subscriptions.
func (b *SubscriptionBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.payloads)
}
