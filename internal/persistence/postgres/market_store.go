package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/straddle-io/straddle/internal/pricing"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/signals"
)

// MarketStore persists spread rows, derived signals and funding observations.
type MarketStore struct {
	pool *pgxpool.Pool
}

const spreadInsertSQL = `
INSERT INTO spread (asset, exchange_x, exchange_y, bid_x, ask_x, bid_y, ask_y, observed_at)
VALUES (@asset, @exchange_x, @exchange_y, @bid_x, @ask_x, @bid_y, @ask_y, @observed_at)`

// InsertSpread appends one cross-venue observation.
func (s *MarketStore) InsertSpread(ctx context.Context, row pricing.SpreadRow) error {
	_, err := s.pool.Exec(ctx, spreadInsertSQL, pgx.NamedArgs{
		"asset":       string(row.Asset),
		"exchange_x":  row.ExX.String(),
		"exchange_y":  row.ExY.String(),
		"bid_x":       row.BidX,
		"ask_x":       row.AskX,
		"bid_y":       row.BidY,
		"ask_y":       row.AskY,
		"observed_at": row.Time,
	})
	return err
}

const differenceInsertSQL = `
INSERT INTO signal_difference (asset, exchange_x, exchange_y, bp_buy_x, bp_buy_y, bp, level, observed_at)
VALUES (@asset, @exchange_x, @exchange_y, @bp_buy_x, @bp_buy_y, @bp, @level, @observed_at)`

// InsertDifference appends one graded difference signal.
func (s *MarketStore) InsertDifference(ctx context.Context, sig signals.Signal) error {
	_, err := s.pool.Exec(ctx, differenceInsertSQL, pgx.NamedArgs{
		"asset":       string(sig.Asset),
		"exchange_x":  sig.ExX.String(),
		"exchange_y":  sig.ExY.String(),
		"bp_buy_x":    sig.BpBuyX,
		"bp_buy_y":    sig.BpBuyY,
		"bp":          sig.Bp,
		"level":       sig.Level.String(),
		"observed_at": sig.Time,
	})
	return err
}

const changeInsertSQL = `
INSERT INTO signal_change (asset, high, low, is_rising, move_bp, observed_at)
VALUES (@asset, @high, @low, @is_rising, @move_bp, @observed_at)`

// InsertChange appends one rolling high-low observation.
func (s *MarketStore) InsertChange(ctx context.Context, ch signals.Change) error {
	_, err := s.pool.Exec(ctx, changeInsertSQL, pgx.NamedArgs{
		"asset":       string(ch.Asset),
		"high":        ch.High,
		"low":         ch.Low,
		"is_rising":   ch.IsRising,
		"move_bp":     ch.MoveBp,
		"observed_at": ch.Time,
	})
	return err
}

const fundingUpsertSQL = `
INSERT INTO funding_rate (exchange, symbol, rate, next_funding, updated_at)
VALUES (@exchange, @symbol, @rate, @next_funding, @updated_at)
ON CONFLICT (exchange, symbol) DO UPDATE
SET rate = EXCLUDED.rate, next_funding = EXCLUDED.next_funding, updated_at = EXCLUDED.updated_at`

// UpsertFunding keeps one row per venue and symbol, latest observation wins.
func (s *MarketStore) UpsertFunding(ctx context.Context, f schema.FundingRate) error {
	updated := f.Time
	if updated.IsZero() {
		updated = time.Now()
	}
	var next any
	if !f.NextFunding.IsZero() {
		next = f.NextFunding
	}
	_, err := s.pool.Exec(ctx, fundingUpsertSQL, pgx.NamedArgs{
		"exchange":     f.Instrument.Exchange.String(),
		"symbol":       f.Instrument.String(),
		"rate":         f.Rate,
		"next_funding": next,
		"updated_at":   updated,
	})
	return err
}

const eventInsertSQL = `
INSERT INTO events (asset, status, level, bp, created_at, updated_at)
VALUES (@asset, @status, @level, @bp, @created_at, @updated_at)
RETURNING id`

// InsertEvent books a new opportunity event and returns its id.
func (s *MarketStore) InsertEvent(ctx context.Context, asset schema.Asset, status signals.EventStatus, level signals.Level, bp float64, at time.Time) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, eventInsertSQL, pgx.NamedArgs{
		"asset":      string(asset),
		"status":     status.String(),
		"level":      level.String(),
		"bp":         bp,
		"created_at": at,
		"updated_at": at,
	}).Scan(&id)
	return id, err
}

const eventStatusSQL = `
UPDATE events SET status = @status, updated_at = @updated_at WHERE id = @id`

// UpdateEventStatus advances one event's lifecycle state.
func (s *MarketStore) UpdateEventStatus(ctx context.Context, id int64, status signals.EventStatus, at time.Time) error {
	_, err := s.pool.Exec(ctx, eventStatusSQL, pgx.NamedArgs{
		"id": id, "status": status.String(), "updated_at": at,
	})
	return err
}
