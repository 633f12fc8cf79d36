package strategy

import (
	"context"
	"sync"

	"github.com/straddle-io/straddle/errs"
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
)

const completedCacheSize = 512

// Placer submits execution requests; in production it is the execution
// select's Request method.
type Placer func(ctx context.Context, req schema.ExecutionRequest) error

// AsyncOrder follows one placed order through its update stream. Updates is
// closed after the terminal update is delivered.
type AsyncOrder struct {
	Lid     schema.OrderLid
	updates chan schema.UpdateOrder
	mu      sync.Mutex
	last    schema.UpdateOrder
	hasLast bool
}

// Updates returns the order's update stream.
func (a *AsyncOrder) Updates() <-chan schema.UpdateOrder { return a.updates }

// Last returns the most recent update seen.
func (a *AsyncOrder) Last() (schema.UpdateOrder, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.hasLast
}

// Await consumes updates until a terminal status arrives.
func (a *AsyncOrder) Await(ctx context.Context) (schema.UpdateOrder, error) {
	for {
		select {
		case u, ok := <-a.updates:
			if !ok {
				last, has := a.Last()
				if has {
					return last, nil
				}
				return schema.UpdateOrder{}, errs.New("strategy", errs.CodeUnavailable,
					errs.WithMessage("order stream closed without updates"))
			}
			if u.Status.IsDead() {
				return u, nil
			}
		case <-ctx.Done():
			return schema.UpdateOrder{}, ctx.Err()
		}
	}
}

func (a *AsyncOrder) push(u schema.UpdateOrder) {
	a.mu.Lock()
	a.last = u
	a.hasLast = true
	a.mu.Unlock()
	select {
	case a.updates <- u:
	default:
		// Drop the oldest buffered update to make room for the newest.
		select {
		case <-a.updates:
		default:
		}
		select {
		case a.updates <- u:
		default:
		}
	}
}

// Registry tracks placed orders by local id, routes venue updates to their
// AsyncOrder streams, and retires streams when orders die. Updates for
// recently retired orders are folded into a bounded completed cache so late
// duplicates are still visible.
type Registry struct {
	place Placer

	mu        sync.Mutex
	live      map[schema.OrderLid]*AsyncOrder
	completed map[schema.OrderLid]schema.UpdateOrder
	retired   []schema.OrderLid
}

// NewRegistry builds a registry that submits through place.
func NewRegistry(place Placer) *Registry {
	return &Registry{
		place:     place,
		live:      make(map[schema.OrderLid]*AsyncOrder),
		completed: make(map[schema.OrderLid]schema.UpdateOrder),
	}
}

// Send places the order and returns its update stream. A local id collision
// fails without placing.
func (r *Registry) Send(ctx context.Context, p schema.RequestPlaceOrder) (*AsyncOrder, error) {
	if p.Lid == "" {
		return nil, errs.New("strategy", errs.CodeInvalid, errs.WithMessage("empty local order id"))
	}
	r.mu.Lock()
	if _, dup := r.live[p.Lid]; dup {
		r.mu.Unlock()
		return nil, errs.New("strategy", errs.CodeConflict,
			errs.WithCanonicalCode(errs.CanonicalDuplicateOrder),
			errs.WithMessage(string(p.Lid)))
	}
	a := &AsyncOrder{Lid: p.Lid, updates: make(chan schema.UpdateOrder, 64)}
	r.live[p.Lid] = a
	r.mu.Unlock()

	if err := r.place(ctx, schema.PlaceOrderRequest(p)); err != nil {
		r.mu.Lock()
		delete(r.live, p.Lid)
		r.mu.Unlock()
		close(a.updates)
		return nil, err
	}
	return a, nil
}

// Route delivers one venue update to its stream. Returns false when the
// order is unknown to the registry.
func (r *Registry) Route(u schema.UpdateOrder) bool {
	if u.Lid == "" {
		return false
	}
	r.mu.Lock()
	a, ok := r.live[u.Lid]
	if !ok {
		if _, wasCompleted := r.completed[u.Lid]; wasCompleted {
			r.completed[u.Lid] = u
			r.mu.Unlock()
			return true
		}
		r.mu.Unlock()
		return false
	}
	if u.Status.IsDead() {
		delete(r.live, u.Lid)
		r.retireLocked(u)
	}
	r.mu.Unlock()

	a.push(u)
	if u.Status.IsDead() {
		close(a.updates)
	}
	return true
}

// Live returns the number of orders with open streams.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Completed returns the last update of a retired order, if still cached.
func (r *Registry) Completed(lid schema.OrderLid) (schema.UpdateOrder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.completed[lid]
	return u, ok
}

func (r *Registry) retireLocked(u schema.UpdateOrder) {
	if len(r.retired) >= completedCacheSize {
		oldest := r.retired[0]
		r.retired = r.retired[1:]
		delete(r.completed, oldest)
		observability.Log().Debug("completed order evicted from cache",
			observability.F("lid", string(oldest)))
	}
	r.retired = append(r.retired, u.Lid)
	r.completed[u.Lid] = u
}
