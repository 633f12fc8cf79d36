package strategy

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/straddle-io/straddle/internal/schema"
)

// LedgerEntry is one opened lot. Size is the remaining open size; profit is
// realized on Closed rows.
type LedgerEntry struct {
	ID         int64
	Instrument schema.InstrumentCode
	Side       schema.Side
	OpenPrice  float64
	Size       float64
	OpenTime   time.Time
}

// ClosedLot is one realized FIFO pairing.
type ClosedLot struct {
	Entry           LedgerEntry
	ClosePrice      float64
	ClosedSize      float64
	CloseTime       time.Time
	ClosedProfitUSD float64
}

// Ledger pairs opening and closing fills per instrument first-in first-out
// and realizes profit in USD.
type Ledger struct {
	mu     sync.Mutex
	nextID int64
	open   map[schema.InstrumentCode][]LedgerEntry
	closed []ClosedLot
}

// NewLedger builds an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{nextID: 1, open: make(map[schema.InstrumentCode][]LedgerEntry)}
}

// RecordOpen books an opening fill as a new lot and returns its id.
func (l *Ledger) RecordOpen(instrument schema.InstrumentCode, side schema.Side, price, size float64, at time.Time) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.open[instrument] = append(l.open[instrument], LedgerEntry{
		ID:         id,
		Instrument: instrument,
		Side:       side,
		OpenPrice:  price,
		Size:       size,
		OpenTime:   at,
	})
	return id
}

// RecordClose consumes open lots oldest-first until the closing size is
// exhausted and returns the realized pairings. Profit per lot is
// (close - open) * size * sign of the opening side. Closing size beyond the
// open lots is ignored.
func (l *Ledger) RecordClose(instrument schema.InstrumentCode, price, size float64, at time.Time) []ClosedLot {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ClosedLot
	remaining := decimal.NewFromFloat(size)
	queue := l.open[instrument]
	for len(queue) > 0 && remaining.IsPositive() {
		lot := &queue[0]
		lotSize := decimal.NewFromFloat(lot.Size)
		take := lotSize
		if remaining.LessThan(lotSize) {
			take = remaining
		}

		openPrice := decimal.NewFromFloat(lot.OpenPrice)
		closePrice := decimal.NewFromFloat(price)
		sign := decimal.NewFromFloat(lot.Side.Sign())
		profit := closePrice.Sub(openPrice).Mul(take).Mul(sign)

		closedSize, _ := take.Float64()
		profitUSD, _ := profit.Float64()
		out = append(out, ClosedLot{
			Entry:           *lot,
			ClosePrice:      price,
			ClosedSize:      closedSize,
			CloseTime:       at,
			ClosedProfitUSD: profitUSD,
		})

		remaining = remaining.Sub(take)
		if take.Equal(lotSize) {
			queue = queue[1:]
		} else {
			rest, _ := lotSize.Sub(take).Float64()
			lot.Size = rest
		}
	}
	if len(queue) == 0 {
		delete(l.open, instrument)
	} else {
		l.open[instrument] = queue
	}
	l.closed = append(l.closed, out...)
	return out
}

// RecordFill routes a fill to the open or close path by position effect.
func (l *Ledger) RecordFill(instrument schema.InstrumentCode, effect schema.PositionEffect, side schema.Side, price, size float64, at time.Time) []ClosedLot {
	if effect == schema.EffectClose {
		return l.RecordClose(instrument, price, size, at)
	}
	l.RecordOpen(instrument, side, price, size, at)
	return nil
}

// OpenLots returns the remaining open lots for the instrument in FIFO order.
func (l *Ledger) OpenLots(instrument schema.InstrumentCode) []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LedgerEntry(nil), l.open[instrument]...)
}

// ClosedLots returns every realized pairing so far.
func (l *Ledger) ClosedLots() []ClosedLot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ClosedLot(nil), l.closed...)
}

// RealizedUSD sums realized profit across all instruments.
func (l *Ledger) RealizedUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for _, lot := range l.closed {
		total = total.Add(decimal.NewFromFloat(lot.ClosedProfitUSD))
	}
	f, _ := total.Float64()
	return f
}
