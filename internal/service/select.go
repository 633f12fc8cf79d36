package service

import (
	"context"
	"errors"
	"sync"

	"github.com/straddle-io/straddle/internal/observability"
)

type result[Resp any] struct {
	resp Resp
	err  error
}

// Select composes N services into one. Each child is pumped by its own
// goroutine into a shared stream; a child whose Next returns ErrClosed is
// removed, and the composite closes once every child has closed. Accept is
// the OR of the children; Request routes to the first child that accepts.
//
// A child producing a burst may momentarily monopolise the merged stream;
// consumers must not rely on cross-child fairness.
type Select[Req, Resp any] struct {
	mu       sync.RWMutex
	children []Service[Req, Resp]

	merged chan result[Resp]
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSelect builds the composite and starts pumping its children.
func NewSelect[Req, Resp any](children ...Service[Req, Resp]) *Select[Req, Resp] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Select[Req, Resp]{
		children: append([]Service[Req, Resp](nil), children...),
		merged:   make(chan result[Resp]),
		cancel:   cancel,
	}
	for _, child := range s.children {
		s.wg.Add(1)
		go s.pump(ctx, child)
	}
	go func() {
		s.wg.Wait()
		close(s.merged)
	}()
	return s
}

func (s *Select[Req, Resp]) pump(ctx context.Context, child Service[Req, Resp]) {
	defer s.wg.Done()
	defer s.removeChild(child)
	for {
		resp, err := child.Next(ctx)
		if errors.Is(err, ErrClosed) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case s.merged <- result[Resp]{resp: resp, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Select[Req, Resp]) removeChild(child Service[Req, Resp]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			break
		}
	}
	observability.Log().Debug("select child closed",
		observability.F("remaining", len(s.children)))
}

// Accept reports whether any child accepts the request.
func (s *Select[Req, Resp]) Accept(req Req) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, child := range s.children {
		if child.Accept(req) {
			return true
		}
	}
	return false
}

// Request routes the request to the first accepting child.
func (s *Select[Req, Resp]) Request(ctx context.Context, req Req) error {
	s.mu.RLock()
	var target Service[Req, Resp]
	for _, child := range s.children {
		if child.Accept(req) {
			target = child
			break
		}
	}
	s.mu.RUnlock()
	if target == nil {
		return ErrNoService
	}
	return target.Request(ctx, req)
}

// Next yields the next event from any child, or ErrClosed once every child
// has closed.
func (s *Select[Req, Resp]) Next(ctx context.Context) (Resp, error) {
	var zero Resp
	select {
	case r, ok := <-s.merged:
		if !ok {
			return zero, ErrClosed
		}
		return r.resp, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close cancels the child pumps and closes every child that exposes a
// Close method. Pending Next calls drain the remaining buffered events
// before observing ErrClosed.
func (s *Select[Req, Resp]) Close() {
	s.once.Do(func() {
		s.cancel()
		s.mu.RLock()
		children := append([]Service[Req, Resp](nil), s.children...)
		s.mu.RUnlock()
		for _, child := range children {
			if c, ok := any(child).(interface{ Close() }); ok {
				c.Close()
			}
		}
	})
}

// Size returns the number of live children.
func (s *Select[Req, Resp]) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.children)
}
