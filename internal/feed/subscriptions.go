package feed

import (
	"sync"

	"github.com/straddle-io/straddle/internal/observability"
)

// ConnID identifies one external subscriber connection.
type ConnID uint64

// Subscriptions is a keyed fan-out: connections subscribe to string keys and
// receive every value published for those keys. A connection that cannot
// keep up (full buffer) has its subscription cancelled rather than slowing
// the publisher.
type Subscriptions[T any] struct {
	mu     sync.Mutex
	nextID ConnID
	byKey  map[string]map[ConnID]struct{}
	conns  map[ConnID]chan T
	keys   map[ConnID]map[string]struct{}
	buffer int
}

// NewSubscriptions builds an empty manager with the given per-connection
// buffer depth.
func NewSubscriptions[T any](buffer int) *Subscriptions[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Subscriptions[T]{
		byKey:  make(map[string]map[ConnID]struct{}),
		conns:  make(map[ConnID]chan T),
		keys:   make(map[ConnID]map[string]struct{}),
		buffer: buffer,
	}
}

// Connect registers a connection and returns its id and receive channel.
func (s *Subscriptions[T]) Connect() (ConnID, <-chan T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan T, s.buffer)
	s.conns[id] = ch
	s.keys[id] = make(map[string]struct{})
	return id, ch
}

// Subscribe attaches the connection to a key.
func (s *Subscriptions[T]) Subscribe(id ConnID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return
	}
	set := s.byKey[key]
	if set == nil {
		set = make(map[ConnID]struct{})
		s.byKey[key] = set
	}
	set[id] = struct{}{}
	s.keys[id][key] = struct{}{}
}

// Unsubscribe detaches the connection from a key.
func (s *Subscriptions[T]) Unsubscribe(id ConnID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked(id, key)
}

// Disconnect removes the connection entirely and closes its channel.
func (s *Subscriptions[T]) Disconnect(id ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked(id)
}

// Publish delivers the value to every connection subscribed to the key.
// A connection with a full buffer is disconnected.
func (s *Subscriptions[T]) Publish(key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.byKey[key] {
		ch, ok := s.conns[id]
		if !ok {
			s.detachLocked(id, key)
			continue
		}
		select {
		case ch <- v:
		default:
			observability.Log().Warn("subscriber lagging, cancelling subscription",
				observability.F("conn", uint64(id)),
				observability.F("key", key))
			s.disconnectLocked(id)
		}
	}
}

func (s *Subscriptions[T]) detachLocked(id ConnID, key string) {
	if set, ok := s.byKey[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.byKey, key)
		}
	}
	if keys, ok := s.keys[id]; ok {
		delete(keys, key)
	}
}

func (s *Subscriptions[T]) disconnectLocked(id ConnID) {
	ch, ok := s.conns[id]
	if !ok {
		return
	}
	for key := range s.keys[id] {
		if set, ok := s.byKey[key]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.byKey, key)
			}
		}
	}
	delete(s.keys, id)
	delete(s.conns, id)
	close(ch)
}
