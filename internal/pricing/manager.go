// Package pricing maintains per-instrument order books, derives top-of-book
// prices, and joins the two legs of each configured pair into cross-venue
// spread rows.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/straddle-io/straddle/internal/book"
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
)

// TopOfBook is the latest best bid and ask for one instrument.
type TopOfBook struct {
	Bid     float64
	BidSize float64
	Ask     float64
	AskSize float64
	Time    time.Time
}

// Valid reports whether both sides are present and positive.
func (t TopOfBook) Valid() bool {
	return t.Bid > 0 && t.Ask > 0
}

// Pair names the two venue legs tracked for one asset. X is the traded leg,
// Y the hedge leg.
type Pair struct {
	Asset schema.Asset
	X     schema.InstrumentCode
	Y     schema.InstrumentCode
}

// SpreadRow is one cross-venue best bid and ask observation for a pair,
// emitted whenever either leg's top of book moves and both legs are present.
type SpreadRow struct {
	Asset schema.Asset
	ExX   schema.Exchange
	ExY   schema.Exchange
	BidX  float64
	AskX  float64
	BidY  float64
	AskY  float64
	Time  time.Time
}

// Manager folds market events into books and tops, and emits spread rows for
// configured pairs.
type Manager struct {
	mu       sync.RWMutex
	pairs    []Pair
	byLeg    map[schema.InstrumentCode][]int
	books    map[schema.InstrumentCode]*book.L2OrderBook
	tops     map[schema.InstrumentCode]TopOfBook
	fundings map[schema.InstrumentCode]schema.FundingRate
}

// NewManager builds a manager tracking the given pairs.
func NewManager(pairs []Pair) *Manager {
	m := &Manager{
		pairs:    pairs,
		byLeg:    make(map[schema.InstrumentCode][]int),
		books:    make(map[schema.InstrumentCode]*book.L2OrderBook),
		tops:     make(map[schema.InstrumentCode]TopOfBook),
		fundings: make(map[schema.InstrumentCode]schema.FundingRate),
	}
	for i, p := range pairs {
		m.byLeg[p.X] = append(m.byLeg[p.X], i)
		m.byLeg[p.Y] = append(m.byLeg[p.Y], i)
	}
	return m
}

// Apply folds one market event and returns any spread rows it produced.
func (m *Manager) Apply(ev schema.MarketEvent) []SpreadRow {
	switch ev.Kind {
	case schema.EvQuotes:
		if ev.Quotes == nil {
			return nil
		}
		return m.applyQuotes(ev.Quotes)
	case schema.EvBookTicker:
		if ev.BookTicker == nil {
			return nil
		}
		return m.applyTop(ev.BookTicker.Instrument, TopOfBook{
			Bid:     ev.BookTicker.BidPrice,
			BidSize: ev.BookTicker.BidSize,
			Ask:     ev.BookTicker.AskPrice,
			AskSize: ev.BookTicker.AskSize,
			Time:    ev.BookTicker.ExchangeTime,
		})
	case schema.EvFundingRate:
		if ev.FundingRate != nil {
			m.upsertFunding(*ev.FundingRate)
		}
	case schema.EvFundingRates:
		for _, f := range ev.FundingRates {
			m.upsertFunding(f)
		}
	}
	return nil
}

func (m *Manager) applyQuotes(q *schema.Quotes) []SpreadRow {
	m.mu.Lock()
	b := m.books[q.Instrument]
	if b == nil {
		b = book.NewL2OrderBook(q.Instrument, book.DefaultDepth)
		m.books[q.Instrument] = b
	}
	b.Apply(*q)
	top := TopOfBook{Time: q.ExchangeTime}
	if bid, ok := b.BestBid(); ok {
		top.Bid, top.BidSize = bid.Price, bid.Size
	}
	if ask, ok := b.BestAsk(); ok {
		top.Ask, top.AskSize = ask.Price, ask.Size
	}
	m.mu.Unlock()
	return m.applyTop(q.Instrument, top)
}

func (m *Manager) applyTop(code schema.InstrumentCode, top TopOfBook) []SpreadRow {
	if top.Time.IsZero() {
		top.Time = time.Now()
	}
	m.mu.Lock()
	m.tops[code] = top
	var rows []SpreadRow
	for _, i := range m.byLeg[code] {
		p := m.pairs[i]
		topX, okX := m.tops[p.X]
		topY, okY := m.tops[p.Y]
		if !okX || !okY || !topX.Valid() || !topY.Valid() {
			continue
		}
		rows = append(rows, SpreadRow{
			Asset: p.Asset,
			ExX:   p.X.Exchange,
			ExY:   p.Y.Exchange,
			BidX:  topX.Bid,
			AskX:  topX.Ask,
			BidY:  topY.Bid,
			AskY:  topY.Ask,
			Time:  top.Time,
		})
	}
	m.mu.Unlock()
	return rows
}

func (m *Manager) upsertFunding(f schema.FundingRate) {
	m.mu.Lock()
	m.fundings[f.Instrument] = f
	m.mu.Unlock()
}

// Top returns the latest top of book for the instrument.
func (m *Manager) Top(code schema.InstrumentCode) (TopOfBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	top, ok := m.tops[code]
	return top, ok
}

// Funding returns the latest funding observation for the instrument.
func (m *Manager) Funding(code schema.InstrumentCode) (schema.FundingRate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fundings[code]
	return f, ok
}

// Book returns the live book for the instrument, if any.
func (m *Manager) Book(code schema.InstrumentCode) *book.L2OrderBook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.books[code]
}

// Stale returns the legs that have not ticked within maxAge.
func (m *Manager) Stale(maxAge time.Duration, now time.Time) []schema.InstrumentCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schema.InstrumentCode
	seen := make(map[schema.InstrumentCode]struct{})
	for _, p := range m.pairs {
		for _, leg := range []schema.InstrumentCode{p.X, p.Y} {
			if _, dup := seen[leg]; dup {
				continue
			}
			seen[leg] = struct{}{}
			top, ok := m.tops[leg]
			if !ok || now.Sub(top.Time) > maxAge {
				out = append(out, leg)
			}
		}
	}
	return out
}

// Watchdog logs an error for every silent leg each interval. It never stops
// the feed; silence is reported and left to the operator.
func (m *Manager) Watchdog(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, leg := range m.Stale(interval, now) {
				observability.Log().Error("price feed silent",
					observability.F("instrument", leg.String()),
					observability.F("threshold", interval.String()))
			}
		}
	}
}
