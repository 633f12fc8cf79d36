// Package mock provides scripted in-memory venue adapters for tests and
// paper trading. The execution service walks placed orders through the
// acknowledgement and fill ladder according to per-instrument scripts, and
// the feed service replays injected market events.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/straddle-io/straddle/errs"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
)

// FillStep is one scripted partial fill.
type FillStep struct {
	Size  float64
	Price float64 // zero means the order price
}

// Script controls how the execution service treats orders on one instrument.
// The zero value acknowledges and fully fills at the order price.
type Script struct {
	Reject       bool
	RejectReason string
	// HoldOpen acknowledges the order and leaves it resting until cancelled.
	HoldOpen bool
	// Fills overrides the default single full fill.
	Fills []FillStep
}

// Execution is a scripted execution adapter for one venue and account.
type Execution struct {
	venue   schema.Exchange
	account schema.AccountId

	mu        sync.Mutex
	scripts   map[schema.InstrumentCode]Script
	orders    map[schema.OrderLid]*schema.Order
	positions map[schema.InstrumentCode]schema.PositionValues
	entries   map[schema.InstrumentCode]float64

	out    chan schema.ExecutionResponse
	sidSeq atomic.Uint64
	closed chan struct{}
	once   sync.Once
}

var _ service.Service[schema.ExecutionRequest, schema.ExecutionResponse] = (*Execution)(nil)

// NewExecution builds a scripted execution service.
func NewExecution(venue schema.Exchange, account schema.AccountId) *Execution {
	return &Execution{
		venue:     venue,
		account:   account,
		scripts:   make(map[schema.InstrumentCode]Script),
		orders:    make(map[schema.OrderLid]*schema.Order),
		positions: make(map[schema.InstrumentCode]schema.PositionValues),
		entries:   make(map[schema.InstrumentCode]float64),
		out:       make(chan schema.ExecutionResponse, 256),
		closed:    make(chan struct{}),
	}
}

// SetScript installs the script for one instrument.
func (e *Execution) SetScript(code schema.InstrumentCode, s Script) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[code] = s
}

// SetPosition seeds a venue position for sync requests.
func (e *Execution) SetPosition(code schema.InstrumentCode, total float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positions[code] = schema.PositionValues{Total: total, Available: total}
}

// Accept reports whether the request targets this venue.
func (e *Execution) Accept(req schema.ExecutionRequest) bool {
	ex, ok := req.TargetExchange()
	return ok && ex == e.venue
}

// Request processes one execution request synchronously, queueing the
// resulting response events.
func (e *Execution) Request(ctx context.Context, req schema.ExecutionRequest) error {
	switch req.Kind {
	case schema.ReqPlaceOrder:
		return e.placeOrder(ctx, req.Place)
	case schema.ReqCancelOrder:
		return e.cancelOrder(ctx, req.Cancel)
	case schema.ReqCancelAllOrders:
		return e.cancelAll(ctx, req.Range)
	case schema.ReqSyncOrders:
		return e.syncOrders(ctx, req.Range)
	case schema.ReqGetPositions, schema.ReqQueryAssets:
		return e.syncPositions(ctx)
	case schema.ReqUpdateLeverage:
		return e.emit(ctx, schema.TextResponse("leverage updated"))
	default:
		return errs.New(e.venue.String(), errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("unsupported request kind %s", req.Kind)))
	}
}

// Next returns the next queued response.
func (e *Execution) Next(ctx context.Context) (schema.ExecutionResponse, error) {
	select {
	case resp := <-e.out:
		return resp, nil
	case <-e.closed:
		select {
		case resp := <-e.out:
			return resp, nil
		default:
			return schema.ExecutionResponse{}, service.ErrClosed
		}
	case <-ctx.Done():
		return schema.ExecutionResponse{}, ctx.Err()
	}
}

// Close ends the response stream once drained.
func (e *Execution) Close() {
	e.once.Do(func() { close(e.closed) })
}

// Orders returns a snapshot of all orders the venue has seen.
func (e *Execution) Orders() []*schema.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*schema.Order, 0, len(e.orders))
	for _, o := range e.orders {
		c := *o
		out = append(out, &c)
	}
	return out
}

func (e *Execution) placeOrder(ctx context.Context, p *schema.RequestPlaceOrder) error {
	if p == nil {
		return errs.New(e.venue.String(), errs.CodeInvalid, errs.WithMessage("nil place payload"))
	}
	if p.Price <= 0 || p.Size <= 0 {
		return errs.New(e.venue.String(), errs.CodeInvalid,
			errs.WithMessage("zero price or size"))
	}

	e.mu.Lock()
	if _, dup := e.orders[p.Lid]; dup {
		e.mu.Unlock()
		return errs.New(e.venue.String(), errs.CodeConflict,
			errs.WithCanonicalCode(errs.CanonicalDuplicateOrder),
			errs.WithMessage(string(p.Lid)))
	}
	order := p.ToOrder()
	order.Sid = schema.OrderSid(fmt.Sprintf("sid-%d", e.sidSeq.Add(1)))
	script := e.scripts[p.Instrument]
	e.orders[p.Lid] = order
	e.mu.Unlock()

	if script.Reject {
		order.Status = schema.StatusRejected
		return e.emitOrder(ctx, order, schema.UpdateOrder{
			Lid: order.Lid, Cid: order.Cid, Sid: order.Sid,
			Instrument: order.Instrument, Account: order.Account,
			Side: order.Side, Status: schema.StatusRejected,
			Reason: script.RejectReason, UpdateLt: time.Now(),
		})
	}

	order.Status = schema.StatusReceived
	if err := e.emitOrder(ctx, order, schema.UpdateOrder{
		Lid: order.Lid, Cid: order.Cid, Sid: order.Sid,
		Instrument: order.Instrument, Account: order.Account,
		Side: order.Side, Effect: order.Effect, Status: schema.StatusReceived,
		Price: order.Price, Size: order.Size, UpdateLt: time.Now(),
	}); err != nil {
		return err
	}

	if script.HoldOpen {
		order.Status = schema.StatusOpen
		return e.emitOrder(ctx, order, schema.UpdateOrder{
			Lid: order.Lid, Sid: order.Sid, Instrument: order.Instrument,
			Account: order.Account, Status: schema.StatusOpen, UpdateLt: time.Now(),
		})
	}

	fills := script.Fills
	if len(fills) == 0 {
		fills = []FillStep{{Size: order.Size}}
	}
	for _, step := range fills {
		price := step.Price
		if price == 0 {
			price = order.Price
		}
		order.FilledSize += step.Size
		order.LastFilledSize = step.Size
		order.LastFilledPrice = price
		order.AverageFilledPrice = price
		status := schema.StatusPartiallyFilled
		if order.FilledSize >= order.Size {
			status = schema.StatusFilled
		}
		order.Status = status
		e.applyFill(order.Instrument, step.Size*order.Side.Sign(), price)
		if err := e.emitOrder(ctx, order, schema.UpdateOrder{
			Lid: order.Lid, Sid: order.Sid, Instrument: order.Instrument,
			Account: order.Account, Side: order.Side, Effect: order.Effect, Status: status,
			FilledSize:      order.FilledSize,
			LastFilledSize:  step.Size,
			LastFilledPrice: price,
			UpdateLt:        time.Now(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Execution) cancelOrder(ctx context.Context, c *schema.RequestCancelOrder) error {
	if c == nil {
		return errs.New(e.venue.String(), errs.CodeInvalid, errs.WithMessage("nil cancel payload"))
	}
	e.mu.Lock()
	var target *schema.Order
	for _, o := range e.orders {
		if (c.Lid != "" && o.Lid == c.Lid) ||
			(c.Cid != "" && o.Cid == c.Cid) ||
			(c.Sid != "" && o.Sid == c.Sid) {
			target = o
			break
		}
	}
	e.mu.Unlock()
	if target == nil {
		return errs.New(e.venue.String(), errs.CodeNotFound,
			errs.WithCanonicalCode(errs.CanonicalOrderNotFound))
	}
	if target.Status.IsDead() {
		return nil
	}
	target.Status = schema.StatusCancelled
	return e.emitOrder(ctx, target, schema.UpdateOrder{
		Lid: target.Lid, Sid: target.Sid, Instrument: target.Instrument,
		Account: target.Account, Status: schema.StatusCancelled, UpdateLt: time.Now(),
	})
}

func (e *Execution) cancelAll(ctx context.Context, rng schema.InstrumentSelector) error {
	e.mu.Lock()
	var live []*schema.Order
	for _, o := range e.orders {
		if !o.Status.IsDead() && rng.MatchInstrument(o.Instrument) {
			live = append(live, o)
		}
	}
	e.mu.Unlock()
	for _, o := range live {
		o.Status = schema.StatusCancelled
		if err := e.emitOrder(ctx, o, schema.UpdateOrder{
			Lid: o.Lid, Sid: o.Sid, Instrument: o.Instrument,
			Account: o.Account, Status: schema.StatusCancelled, UpdateLt: time.Now(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Execution) syncOrders(ctx context.Context, rng schema.InstrumentSelector) error {
	e.mu.Lock()
	var updates []schema.UpdateOrder
	for _, o := range e.orders {
		if !o.Status.IsDead() && rng.MatchInstrument(o.Instrument) {
			updates = append(updates, schema.UpdateFromOrder(o))
		}
	}
	e.mu.Unlock()
	sync := schema.SyncOrders{Account: e.account, Range: rng, Full: true, Orders: updates}
	return e.emit(ctx, schema.SyncOrdersResponse(sync))
}

func (e *Execution) syncPositions(ctx context.Context) error {
	e.mu.Lock()
	updates := make([]schema.UpdatePosition, 0, len(e.positions))
	for code, values := range e.positions {
		u := schema.SetPosition(code, values.Total, values.Available, values.Locked)
		u.EntryPrice = e.entries[code]
		updates = append(updates, u)
	}
	e.mu.Unlock()
	return e.emit(ctx, schema.PositionsResponse(
		schema.SyncBalancesAndPositions(e.account, e.venue, updates)))
}

func (e *Execution) applyFill(code schema.InstrumentCode, signed, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	values := e.positions[code]
	values.Total += signed
	values.Available += signed
	e.positions[code] = values
	e.entries[code] = price
}

func (e *Execution) emitOrder(ctx context.Context, o *schema.Order, u schema.UpdateOrder) error {
	e.mu.Lock()
	o.UpdateLt = time.Now()
	e.mu.Unlock()
	return e.emit(ctx, schema.OrderUpdateResponse(e.account, u))
}

func (e *Execution) emit(ctx context.Context, resp schema.ExecutionResponse) error {
	select {
	case e.out <- resp:
		return nil
	case <-e.closed:
		return service.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
