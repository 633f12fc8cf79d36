package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/strategy"
)

// TradingStore persists orders, positions and realized ledger rows.
type TradingStore struct {
	pool *pgxpool.Pool
}

const orderUpsertSQL = `
INSERT INTO orders (
    lid, cid, sid, instrument, account, side, order_type, status,
    price, size, filled_size, avg_filled_price, created_at, updated_at
) VALUES (
    @lid, @cid, @sid, @instrument, @account, @side, @order_type, @status,
    @price, @size, @filled_size, @avg_filled_price, @created_at, @updated_at
)
ON CONFLICT (lid) DO UPDATE SET
    cid = EXCLUDED.cid,
    sid = EXCLUDED.sid,
    status = EXCLUDED.status,
    filled_size = EXCLUDED.filled_size,
    avg_filled_price = EXCLUDED.avg_filled_price,
    updated_at = EXCLUDED.updated_at`

// UpsertOrder writes the latest view of one order.
func (s *TradingStore) UpsertOrder(ctx context.Context, o *schema.Order) error {
	_, err := s.pool.Exec(ctx, orderUpsertSQL, pgx.NamedArgs{
		"lid":              string(o.Lid),
		"cid":              string(o.Cid),
		"sid":              string(o.Sid),
		"instrument":       o.Instrument.String(),
		"account":          string(o.Account),
		"side":             o.Side.String(),
		"order_type":       o.Type.String(),
		"status":           o.Status.String(),
		"price":            o.Price,
		"size":             o.Size,
		"filled_size":      o.FilledSize,
		"avg_filled_price": o.AverageFilledPrice,
		"created_at":       o.CreateLt,
		"updated_at":       o.UpdateLt,
	})
	return err
}

const positionUpsertSQL = `
INSERT INTO position (account, instrument, total, available, locked, entry_price, updated_at)
VALUES (@account, @instrument, @total, @available, @locked, @entry_price, @updated_at)
ON CONFLICT (account, instrument) DO UPDATE SET
    total = EXCLUDED.total,
    available = EXCLUDED.available,
    locked = EXCLUDED.locked,
    entry_price = EXCLUDED.entry_price,
    updated_at = EXCLUDED.updated_at`

// UpsertPosition writes the latest view of one position.
func (s *TradingStore) UpsertPosition(ctx context.Context, account schema.AccountId, p schema.Position) error {
	updated := p.UpdateLt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.pool.Exec(ctx, positionUpsertSQL, pgx.NamedArgs{
		"account":     string(account),
		"instrument":  p.Instrument.String(),
		"total":       p.Total,
		"available":   p.Available,
		"locked":      p.Locked,
		"entry_price": p.EntryPrice,
		"updated_at":  updated,
	})
	return err
}

const ledgerInsertSQL = `
INSERT INTO ledger (
    instrument, side, open_price, close_price, closed_size,
    closed_profit_usd, opened_at, closed_at
) VALUES (
    @instrument, @side, @open_price, @close_price, @closed_size,
    @closed_profit_usd, @opened_at, @closed_at
)`

// InsertClosedLot appends one realized pairing.
func (s *TradingStore) InsertClosedLot(ctx context.Context, lot strategy.ClosedLot) error {
	_, err := s.pool.Exec(ctx, ledgerInsertSQL, pgx.NamedArgs{
		"instrument":        lot.Entry.Instrument.String(),
		"side":              lot.Entry.Side.String(),
		"open_price":        lot.Entry.OpenPrice,
		"close_price":       lot.ClosePrice,
		"closed_size":       lot.ClosedSize,
		"closed_profit_usd": lot.ClosedProfitUSD,
		"opened_at":         lot.Entry.OpenTime,
		"closed_at":         lot.CloseTime,
	})
	return err
}
