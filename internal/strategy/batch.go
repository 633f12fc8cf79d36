package strategy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/straddle-io/straddle/errs"
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
)

// IDGen issues local order ids: six digits of the epoch second and a four
// digit rolling counter.
type IDGen struct {
	counter atomic.Uint64
	now     func() time.Time
}

// NewIDGen builds a generator on the wall clock.
func NewIDGen() *IDGen { return &IDGen{now: time.Now} }

// Next returns a fresh local id.
func (g *IDGen) Next() schema.OrderLid {
	now := g.now
	if now == nil {
		now = time.Now
	}
	return schema.OrderLid(fmt.Sprintf("%06d%04d",
		now().Unix()%1_000_000, g.counter.Add(1)%10_000))
}

// PlaceMode orders the legs of a batch.
type PlaceMode uint8

const (
	// PlaceSequential places legs one at a time, stopping on the first
	// failure.
	PlaceSequential PlaceMode = iota
	// PlaceConcurrent places all legs at once.
	PlaceConcurrent
)

// Batch is a group of hedged legs placed together, joined by a shared batch
// id stamped on every leg.
type Batch struct {
	// ID joins the legs. Place assigns a fresh uuid when empty.
	ID   string
	Legs []schema.RequestPlaceOrder
	Mode PlaceMode
	// Retries is how many extra attempts each leg gets. Every attempt uses
	// fresh local and client ids so venue-side dedup never sees a replay.
	Retries int
}

// batchRecord tracks one placed batch: leg streams in leg order and each
// placed client id's leg index.
type batchRecord struct {
	legs []*AsyncOrder
	cids map[schema.OrderCid]int
}

type batchRef struct {
	id    string
	index int
}

// BatchPlacer places batches through a registry and tracks them by batch id
// until released.
type BatchPlacer struct {
	registry *Registry
	ids      *IDGen

	mu      sync.Mutex
	batches map[string]*batchRecord
	byCid   map[schema.OrderCid]batchRef
}

// NewBatchPlacer wires a placer to the registry and id generator.
func NewBatchPlacer(registry *Registry, ids *IDGen) *BatchPlacer {
	return &BatchPlacer{
		registry: registry,
		ids:      ids,
		batches:  make(map[string]*batchRecord),
		byCid:    make(map[schema.OrderCid]batchRef),
	}
}

// Place submits every leg and returns their update streams in leg order.
// Sequential batches stop at the first exhausted leg; concurrent batches
// place everything and report the first failure.
func (b *BatchPlacer) Place(ctx context.Context, batch Batch) ([]*AsyncOrder, error) {
	if len(batch.Legs) == 0 {
		return nil, errs.New("strategy", errs.CodeInvalid, errs.WithMessage("empty batch"))
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	b.mu.Lock()
	b.batches[batch.ID] = &batchRecord{
		legs: make([]*AsyncOrder, len(batch.Legs)),
		cids: make(map[schema.OrderCid]int, len(batch.Legs)),
	}
	b.mu.Unlock()
	orders := make([]*AsyncOrder, len(batch.Legs))

	if batch.Mode == PlaceConcurrent {
		p := pool.New().WithErrors().WithContext(ctx)
		for i := range batch.Legs {
			i := i
			p.Go(func(ctx context.Context) error {
				a, err := b.placeLeg(ctx, batch.ID, i, batch.Legs[i], batch.Retries)
				if err != nil {
					return err
				}
				orders[i] = a
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return orders, err
		}
		return orders, nil
	}

	for i := range batch.Legs {
		a, err := b.placeLeg(ctx, batch.ID, i, batch.Legs[i], batch.Retries)
		if err != nil {
			return orders, err
		}
		orders[i] = a
	}
	return orders, nil
}

// BatchLegs returns the update streams of a tracked batch in leg order.
func (b *BatchPlacer) BatchLegs(id string) ([]*AsyncOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.batches[id]
	if !ok {
		return nil, false
	}
	legs := make([]*AsyncOrder, len(rec.legs))
	copy(legs, rec.legs)
	return legs, true
}

// LegByCid resolves a client order id to its batch id and leg index.
func (b *BatchPlacer) LegByCid(cid schema.OrderCid) (string, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ref, ok := b.byCid[cid]
	return ref.id, ref.index, ok
}

// Release drops a completed batch and its client id index.
func (b *BatchPlacer) Release(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.batches[id]
	if !ok {
		return
	}
	for cid := range rec.cids {
		delete(b.byCid, cid)
	}
	delete(b.batches, id)
}

func (b *BatchPlacer) record(id string, index int, cid schema.OrderCid, a *AsyncOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.batches[id]
	if !ok {
		return
	}
	rec.legs[index] = a
	rec.cids[cid] = index
	b.byCid[cid] = batchRef{id: id, index: index}
}

func (b *BatchPlacer) placeLeg(ctx context.Context, batchID string, index int, leg schema.RequestPlaceOrder, retries int) (*AsyncOrder, error) {
	leg.BatchId = batchID
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		leg.Lid = b.ids.Next()
		leg.Cid = schema.OrderCid(uuid.NewString())
		a, err := b.registry.Send(ctx, leg)
		if err == nil {
			b.record(batchID, index, leg.Cid, a)
			return a, nil
		}
		lastErr = err
		observability.Log().Warn("leg placement failed",
			observability.F("instrument", leg.Instrument.String()),
			observability.F("attempt", attempt+1),
			observability.F("error", err.Error()))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
