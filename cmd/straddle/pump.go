package main

import (
	"context"
	"errors"
	"time"

	"github.com/straddle-io/straddle/config"
	"github.com/straddle-io/straddle/internal/feed"
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/persistence/postgres"
	"github.com/straddle-io/straddle/internal/pricing"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
	"github.com/straddle-io/straddle/internal/signals"
	"github.com/straddle-io/straddle/internal/strategy"
	"github.com/straddle-io/straddle/lib/async"
)

type pumpDeps struct {
	feeds   feedService
	mgr     *pricing.Manager
	acc     *pricing.Accumulator
	diff    *signals.DifferenceConverter
	change  *signals.ChangeConverter
	chain   signals.Chain
	store   *postgres.Store
	writes  *async.Pool
	rows    chan<- pricing.SpreadRow
	rowFeed *feed.Broadcaster[pricing.SpreadRow]
}

// pumpMarketData drains the merged feed stream into the price manager and
// fans resulting spread rows out to the engine, the accumulator, the row
// broadcast and the Postgres sink.
func pumpMarketData(ctx context.Context, d pumpDeps) {
	log := observability.Log()
	for {
		ev, err := d.feeds.Next(ctx)
		if errors.Is(err, service.ErrClosed) || ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("market feed error", observability.F("error", err.Error()))
			continue
		}
		if ev.Kind == schema.EvFundingRate && ev.FundingRate != nil {
			funding := *ev.FundingRate
			d.submit(ctx, func(taskCtx context.Context) error {
				return d.store.Market.UpsertFunding(taskCtx, funding)
			})
		}
		for _, row := range d.mgr.Apply(ev) {
			d.handleRow(ctx, row)
		}
	}
}

func (d pumpDeps) handleRow(ctx context.Context, row pricing.SpreadRow) {
	d.acc.Observe(row)
	d.rowFeed.Publish(row)
	d.submit(ctx, func(taskCtx context.Context) error {
		return d.store.Market.InsertSpread(taskCtx, row)
	})

	if change, ok := d.change.Observe(row.Asset, (row.BidX+row.AskX)/2, row.Time); ok {
		d.submit(ctx, func(taskCtx context.Context) error {
			return d.store.Market.InsertChange(taskCtx, change)
		})
	}

	if sig, ok := d.diff.Convert(row); ok && d.chain.Allow(sig) {
		observability.Telemetry().IncCounter("signals_emitted", 1,
			map[string]string{"asset": string(sig.Asset)})
		d.submit(ctx, func(taskCtx context.Context) error {
			if err := d.store.Market.InsertDifference(taskCtx, sig); err != nil {
				return err
			}
			_, err := d.store.Market.InsertEvent(taskCtx, sig.Asset,
				signals.EventCaptured, sig.Level, sig.Bp, sig.Time)
			return err
		})
	}

	select {
	case d.rows <- row:
	case <-ctx.Done():
	}
}

func (d pumpDeps) submit(ctx context.Context, task async.Task) {
	if err := d.writes.Submit(ctx, wrapWrite(task)); err != nil && ctx.Err() == nil {
		observability.Log().Warn("persistence write dropped",
			observability.F("error", err.Error()))
	}
}

func wrapWrite(task async.Task) async.Task {
	return func(ctx context.Context) error {
		if err := task(ctx); err != nil {
			observability.Log().Warn("persistence write failed",
				observability.F("error", err.Error()))
		}
		return nil
	}
}

// persistingNext wraps the execution stream so every order and position
// update also lands in Postgres before the engine consumes it.
func persistingNext(execs execService, store *postgres.Store, writes *async.Pool) func(context.Context) (schema.ExecutionResponse, error) {
	var persist func(ctx context.Context, resp schema.ExecutionResponse)
	persist = func(ctx context.Context, resp schema.ExecutionResponse) {
		switch resp.Kind {
		case schema.RespUpdateOrder:
			if resp.Order == nil || !resp.Order.HasIdentity() {
				return
			}
			order := resp.Order.ToOrder()
			if order.Account == "" {
				order.Account = resp.Account
			}
			submitWrite(ctx, writes, func(taskCtx context.Context) error {
				return store.Trading.UpsertOrder(taskCtx, order)
			})
		case schema.RespUpdatePositions:
			if resp.Positions == nil {
				return
			}
			account := resp.Positions.Account
			for _, entry := range resp.Positions.Positions {
				var p schema.Position
				p.Instrument = entry.Instrument
				entry.ApplyTo(&p)
				position := p
				submitWrite(ctx, writes, func(taskCtx context.Context) error {
					return store.Trading.UpsertPosition(taskCtx, account, position)
				})
			}
		case schema.RespGroup:
			for _, child := range resp.Group {
				persist(ctx, child)
			}
		}
	}
	return func(ctx context.Context) (schema.ExecutionResponse, error) {
		resp, err := execs.Next(ctx)
		if err != nil {
			return resp, err
		}
		persist(ctx, resp)
		return resp, nil
	}
}

func submitWrite(ctx context.Context, writes *async.Pool, task async.Task) {
	if err := writes.Submit(ctx, wrapWrite(task)); err != nil && ctx.Err() == nil {
		observability.Log().Warn("persistence write dropped",
			observability.F("error", err.Error()))
	}
}

// runSyncTicker periodically reconciles orders and positions per venue.
func runSyncTicker(ctx context.Context, cfg config.Settings, execs execService) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	log := observability.Log()
	for {
		select {
		case <-ticker.C:
			for _, v := range cfg.Venues {
				ex, ok := schema.ParseExchange(v.Exchange)
				if !ok {
					continue
				}
				rng := schema.SelectExchange(ex)
				account := schema.AccountId(v.Account)
				requests := []schema.ExecutionRequest{
					{Kind: schema.ReqSyncOrders, Range: rng, Account: account},
					{Kind: schema.ReqGetPositions, Range: rng, Account: account},
				}
				for _, req := range requests {
					err := execs.Request(ctx, req)
					if err != nil && !errors.Is(err, service.ErrNoService) {
						log.Warn("venue sync failed",
							observability.F("venue", v.Exchange),
							observability.F("kind", req.Kind.String()),
							observability.F("error", err.Error()))
					}
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// runLedgerFlusher persists newly realized lots.
func runLedgerFlusher(ctx context.Context, ledger *strategy.Ledger, store *postgres.Store, writes *async.Pool) {
	ticker := time.NewTicker(ledgerFlushEvery)
	defer ticker.Stop()
	persisted := 0
	for {
		select {
		case <-ticker.C:
			lots := ledger.ClosedLots()
			for _, lot := range lots[persisted:] {
				closed := lot
				submitWrite(ctx, writes, func(taskCtx context.Context) error {
					return store.Trading.InsertClosedLot(taskCtx, closed)
				})
			}
			persisted = len(lots)
		case <-ctx.Done():
			return
		}
	}
}
