// Package book maintains incremental L2 order books from canonical quote
// operations.
package book

import (
	"time"

	"github.com/straddle-io/straddle/internal/schema"
)

// DefaultDepth is the per-side level cap used across the pricing layer.
const DefaultDepth = 100

// Level is one price level of a book side.
type Level struct {
	Price  float64
	Size   float64
	Number int
}

type halfBook struct {
	intent schema.Intent
	depth  int
	levels []Level
}

func newHalfBook(intent schema.Intent, depth int) halfBook {
	return halfBook{intent: intent, depth: depth, levels: make([]Level, 0, depth)}
}

// better reports whether price a sits closer to the top of this side than b.
func (h *halfBook) better(a, b float64) bool {
	if h.intent == schema.IntentBid {
		return a > b
	}
	return a < b
}

func (h *halfBook) updateByPrice(q schema.Quote) {
	idx := len(h.levels)
	for i, lvl := range h.levels {
		if lvl.Price == q.Price {
			if q.Size == 0 {
				h.levels = append(h.levels[:i], h.levels[i+1:]...)
			} else {
				h.levels[i].Size = q.Size
				h.levels[i].Number = q.Number
			}
			return
		}
		if h.better(q.Price, lvl.Price) {
			idx = i
			break
		}
	}
	if q.Size == 0 {
		return
	}
	if idx >= h.depth {
		return
	}
	h.levels = append(h.levels, Level{})
	copy(h.levels[idx+1:], h.levels[idx:])
	h.levels[idx] = Level{Price: q.Price, Size: q.Size, Number: q.Number}
	if len(h.levels) > h.depth {
		h.levels = h.levels[:h.depth]
	}
}

func (h *halfBook) updateByLevel(q schema.Quote) {
	if q.Level < 1 || q.Level > h.depth {
		return
	}
	if q.Size == 0 {
		if q.Level <= len(h.levels) {
			i := q.Level - 1
			h.levels = append(h.levels[:i], h.levels[i+1:]...)
		}
		return
	}
	for len(h.levels) < q.Level {
		h.levels = append(h.levels, Level{})
	}
	h.levels[q.Level-1] = Level{Price: q.Price, Size: q.Size, Number: q.Number}
}

func (h *halfBook) deleteFirstN(n int) {
	if n <= 0 {
		return
	}
	if n >= len(h.levels) {
		h.levels = h.levels[:0]
		return
	}
	h.levels = append(h.levels[:0], h.levels[n:]...)
}

func (h *halfBook) deleteLastN(n int) {
	if n <= 0 {
		return
	}
	if n >= len(h.levels) {
		h.levels = h.levels[:0]
		return
	}
	h.levels = h.levels[:len(h.levels)-n]
}

func (h *halfBook) clear() { h.levels = h.levels[:0] }

func (h *halfBook) best() (Level, bool) {
	for _, lvl := range h.levels {
		if lvl.Size > 0 {
			return lvl, true
		}
	}
	return Level{}, false
}

// L2OrderBook holds two price-ordered sides of up to depth levels each.
// It is not safe for concurrent use; the owning price manager serialises
// access.
type L2OrderBook struct {
	Instrument   schema.InstrumentCode
	bids         halfBook
	asks         halfBook
	lastSeq      uint64
	exchangeTime time.Time
}

// NewL2OrderBook builds an empty book. Non-positive depth selects DefaultDepth.
func NewL2OrderBook(instrument schema.InstrumentCode, depth int) *L2OrderBook {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &L2OrderBook{
		Instrument: instrument,
		bids:       newHalfBook(schema.IntentBid, depth),
		asks:       newHalfBook(schema.IntentAsk, depth),
	}
}

// ApplyQuote applies one quote operation to the addressed side.
func (b *L2OrderBook) ApplyQuote(q schema.Quote) {
	side := &b.bids
	if q.Intent == schema.IntentAsk {
		side = &b.asks
	}
	switch q.Operation {
	case schema.OpUpdateByPrice:
		side.updateByPrice(q)
	case schema.OpUpdateByLevel:
		side.updateByLevel(q)
	case schema.OpDeleteFirstN:
		side.deleteFirstN(q.Number)
	case schema.OpDeleteLastN:
		side.deleteLastN(q.Number)
	case schema.OpDeleteSide:
		side.clear()
	}
}

// Apply applies a full quote batch in order and records its sequence range.
func (b *L2OrderBook) Apply(qs schema.Quotes) {
	for _, q := range qs.Quotes {
		b.ApplyQuote(q)
	}
	if qs.LastSeq != 0 {
		b.lastSeq = qs.LastSeq
	}
	if !qs.ExchangeTime.IsZero() {
		b.exchangeTime = qs.ExchangeTime
	}
}

// BestBid returns the top bid level, if any.
func (b *L2OrderBook) BestBid() (Level, bool) { return b.bids.best() }

// BestAsk returns the top ask level, if any.
func (b *L2OrderBook) BestAsk() (Level, bool) { return b.asks.best() }

// Bids returns a copy of the bid side, best first.
func (b *L2OrderBook) Bids() []Level { return append([]Level(nil), b.bids.levels...) }

// Asks returns a copy of the ask side, best first.
func (b *L2OrderBook) Asks() []Level { return append([]Level(nil), b.asks.levels...) }

// LastSeq returns the venue sequence of the last applied batch.
func (b *L2OrderBook) LastSeq() uint64 { return b.lastSeq }

// ExchangeTime returns the venue timestamp of the last applied batch.
func (b *L2OrderBook) ExchangeTime() time.Time { return b.exchangeTime }
