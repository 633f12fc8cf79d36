package strategy

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/straddle-io/straddle/internal/accounting"
	"github.com/straddle-io/straddle/internal/instruments"
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/pricing"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
)

// PairSpec is one traded pair: the legs, the quoter tuning, and the accounts
// holding each leg.
type PairSpec struct {
	Pair     pricing.Pair
	Quoter   QuoterConfig
	AccountX schema.AccountId
	AccountY schema.AccountId
}

// EngineConfig tunes the strategy engine.
type EngineConfig struct {
	Pairs []PairSpec
	// MinOrderSize suppresses dust orders.
	MinOrderSize float64
	// Retries per leg placement.
	Retries int
}

type pairState struct {
	spec   PairSpec
	quoter *Quoter
}

// Engine consumes spread rows and execution responses: rows drive the per
// pair quoters and order placement, responses keep portfolios, the order
// registry and the ledger current.
type Engine struct {
	cfg         EngineConfig
	portfolios  *accounting.PortfolioMulti
	registry    *Registry
	placer      *BatchPlacer
	exec        Placer
	ledger      *Ledger
	instruments *instruments.Registry
	pairs       map[schema.Asset]*pairState
}

// NewEngine wires an engine. The instrument registry may be nil; sizes are
// then used unrounded.
func NewEngine(cfg EngineConfig, portfolios *accounting.PortfolioMulti, exec Placer, reg *instruments.Registry) *Engine {
	registry := NewRegistry(exec)
	e := &Engine{
		cfg:         cfg,
		portfolios:  portfolios,
		registry:    registry,
		placer:      NewBatchPlacer(registry, NewIDGen()),
		exec:        exec,
		ledger:      NewLedger(),
		instruments: reg,
		pairs:       make(map[schema.Asset]*pairState),
	}
	for _, spec := range cfg.Pairs {
		e.pairs[spec.Pair.Asset] = &pairState{spec: spec, quoter: NewQuoter(spec.Quoter)}
	}
	return e
}

// Registry exposes the order registry for response routing.
func (e *Engine) Registry() *Registry { return e.registry }

// Ledger exposes the realized-profit ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// OnSpreadRow evaluates the pair's quoter against the row and moves live
// positions toward the recommended targets.
func (e *Engine) OnSpreadRow(ctx context.Context, row pricing.SpreadRow) error {
	st, ok := e.pairs[row.Asset]
	if !ok {
		return nil
	}
	pfX := e.portfolios.Resolve(st.spec.AccountX)
	pfY := e.portfolios.Resolve(st.spec.AccountY)

	rec := st.quoter.Evaluate(QuoterInputs{
		BidX: row.BidX, AskX: row.AskX,
		BidY: row.BidY, AskY: row.AskY,
		XPos: pfX.SignedPosition(st.spec.Pair.X),
		YPos: pfY.SignedPosition(st.spec.Pair.Y),
	})

	if rec.CancelLive {
		if err := e.cancelPairOrders(ctx, st); err != nil {
			observability.Log().Warn("cancel on state change failed",
				observability.F("asset", string(row.Asset)),
				observability.F("error", err.Error()))
		}
	}
	if rec.TargetX == nil || rec.TargetY == nil {
		return nil
	}

	effect := schema.EffectOpen
	if rec.State == StateCloseLongX || rec.State == StateCloseShortX {
		effect = schema.EffectClose
	}

	var legs []schema.RequestPlaceOrder
	if leg, ok := e.legFor(st.spec.Pair.X, st.spec.AccountX, *rec.TargetX-pfX.SignedPosition(st.spec.Pair.X), row.BidX, row.AskX, effect); ok {
		legs = append(legs, leg)
	}
	if leg, ok := e.legFor(st.spec.Pair.Y, st.spec.AccountY, *rec.TargetY-pfY.SignedPosition(st.spec.Pair.Y), row.BidY, row.AskY, effect); ok {
		legs = append(legs, leg)
	}
	if len(legs) == 0 {
		return nil
	}
	batch := Batch{
		ID:      uuid.NewString(),
		Legs:    legs,
		Mode:    PlaceConcurrent,
		Retries: e.cfg.Retries,
	}
	orders, err := e.placer.Place(ctx, batch)
	if err != nil {
		e.placer.Release(batch.ID)
		return err
	}
	go e.awaitBatch(ctx, batch.ID, orders)
	return nil
}

// awaitBatch follows every leg to a terminal state and then drops the batch
// from the tracker. A leg that dies unfilled leaves the pair partially
// hedged; the next spread row re-targets it.
func (e *Engine) awaitBatch(ctx context.Context, id string, orders []*AsyncOrder) {
	defer e.placer.Release(id)
	for _, a := range orders {
		if a == nil {
			continue
		}
		final, err := a.Await(ctx)
		if err != nil {
			observability.Log().Warn("batch leg await failed",
				observability.F("batch", id),
				observability.F("lid", string(a.Lid)),
				observability.F("error", err.Error()))
			continue
		}
		if final.Status != schema.StatusFilled {
			observability.Log().Warn("batch leg ended unfilled",
				observability.F("batch", id),
				observability.F("lid", string(a.Lid)),
				observability.F("status", final.Status.String()))
		}
	}
}

func (e *Engine) legFor(code schema.InstrumentCode, account schema.AccountId, delta, bid, ask float64, effect schema.PositionEffect) (schema.RequestPlaceOrder, bool) {
	size := math.Abs(delta)
	if size < e.cfg.MinOrderSize || size == 0 {
		return schema.RequestPlaceOrder{}, false
	}
	side := schema.SideBuy
	price := ask
	if delta < 0 {
		side = schema.SideSell
		price = bid
	}
	if e.instruments != nil {
		if details, ok := e.instruments.ByCode(code); ok {
			size = details.RoundSize(size)
			price = details.RoundPrice(price)
			if !details.ValidSize(size) {
				return schema.RequestPlaceOrder{}, false
			}
		}
	}
	if price <= 0 || size <= 0 {
		return schema.RequestPlaceOrder{}, false
	}
	return schema.RequestPlaceOrder{
		Instrument: code,
		Account:    account,
		Side:       side,
		Type:       schema.OrderTypeLimit,
		Tif:        schema.TifIOC,
		Effect:     effect,
		Price:      price,
		Size:       size,
	}, true
}

func (e *Engine) cancelPairOrders(ctx context.Context, st *pairState) error {
	cancelErrs := make([]error, 0, 2)
	for _, leg := range []schema.InstrumentCode{st.spec.Pair.X, st.spec.Pair.Y} {
		req := schema.CancelAllOrdersRequest(schema.SelectInstrument(leg.Exchange, leg))
		cancelErrs = append(cancelErrs, e.exec(ctx, req))
	}
	return observability.AggregateErrors("cancel pair orders", cancelErrs,
		observability.F("asset", string(st.spec.Pair.Asset)))
}

// OnExecutionResponse folds one adapter event into the portfolios, routes
// order updates to their streams, and books fills into the ledger.
func (e *Engine) OnExecutionResponse(resp schema.ExecutionResponse) {
	e.portfolios.Apply(&resp)
	e.routeAndBook(resp)
}

func (e *Engine) routeAndBook(resp schema.ExecutionResponse) {
	switch resp.Kind {
	case schema.RespUpdateOrder:
		if resp.Order == nil {
			return
		}
		e.registry.Route(*resp.Order)
		e.bookFill(*resp.Order)
	case schema.RespGroup:
		for _, sub := range resp.Group {
			e.routeAndBook(sub)
		}
	}
}

func (e *Engine) bookFill(u schema.UpdateOrder) {
	if u.LastFilledSize <= 0 || u.LastFilledPrice <= 0 {
		return
	}
	if u.Status != schema.StatusFilled && u.Status != schema.StatusPartiallyFilled {
		return
	}
	closed := e.ledger.RecordFill(u.Instrument, u.Effect, u.Side, u.LastFilledPrice, u.LastFilledSize, u.UpdateLt)
	for _, lot := range closed {
		observability.Log().Info("lot closed",
			observability.F("instrument", lot.Entry.Instrument.String()),
			observability.F("size", lot.ClosedSize),
			observability.F("profit_usd", lot.ClosedProfitUSD))
	}
}

// Run pumps rows and execution responses until the context ends. next is
// typically the execution select's Next.
func (e *Engine) Run(ctx context.Context, rows <-chan pricing.SpreadRow, next func(context.Context) (schema.ExecutionResponse, error)) {
	var wg conc.WaitGroup
	wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case row, ok := <-rows:
				if !ok {
					return
				}
				if err := e.OnSpreadRow(ctx, row); err != nil {
					observability.Log().Warn("spread row handling failed",
						observability.F("asset", string(row.Asset)),
						observability.F("error", err.Error()))
				}
			}
		}
	})
	wg.Go(func() {
		for {
			resp, err := next(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, service.ErrClosed) {
					return
				}
				observability.Log().Warn("execution stream error",
					observability.F("error", err.Error()))
				continue
			}
			e.OnExecutionResponse(resp)
		}
	})
	wg.Wait()
}
