package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
)

// Feed is a scripted market-data service: tests subscribe through the normal
// request path and inject events with the Push helpers.
type Feed struct {
	venue schema.Exchange

	mu   sync.Mutex
	subs map[string]struct{}

	out    chan schema.MarketEvent
	closed chan struct{}
	once   sync.Once
}

var _ service.Service[schema.MarketFeedRequest, schema.MarketEvent] = (*Feed)(nil)

// NewFeed builds a scripted feed for one venue.
func NewFeed(venue schema.Exchange) *Feed {
	return &Feed{
		venue:  venue,
		subs:   make(map[string]struct{}),
		out:    make(chan schema.MarketEvent, 256),
		closed: make(chan struct{}),
	}
}

// Accept reports whether the subscription targets this venue.
func (f *Feed) Accept(req schema.MarketFeedRequest) bool {
	return req.Exchange == f.venue
}

// Request registers the subscription keys.
func (f *Feed) Request(_ context.Context, req schema.MarketFeedRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sym := range req.Symbols {
		f.subs[subKey(req.Topic, sym)] = struct{}{}
	}
	return nil
}

// Next returns the next injected event.
func (f *Feed) Next(ctx context.Context) (schema.MarketEvent, error) {
	select {
	case ev := <-f.out:
		return ev, nil
	case <-f.closed:
		select {
		case ev := <-f.out:
			return ev, nil
		default:
			return schema.MarketEvent{}, service.ErrClosed
		}
	case <-ctx.Done():
		return schema.MarketEvent{}, ctx.Err()
	}
}

// Close ends the event stream once drained.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.closed) })
}

// Subscribed reports whether the topic and symbol pair was requested.
func (f *Feed) Subscribed(topic schema.FeedTopic, sym schema.Symbol) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[subKey(topic, sym)]
	return ok
}

// Push injects a raw event regardless of subscriptions.
func (f *Feed) Push(ev schema.MarketEvent) {
	select {
	case f.out <- ev:
	case <-f.closed:
	}
}

// PushBookTicker injects a top-of-book snapshot for the instrument.
func (f *Feed) PushBookTicker(code schema.InstrumentCode, bid, bidSize, ask, askSize float64) {
	f.Push(schema.BookTickerEvent(f.venue, schema.BookTicker{
		Instrument:   code,
		BidPrice:     bid,
		BidSize:      bidSize,
		AskPrice:     ask,
		AskSize:      askSize,
		ExchangeTime: time.Now(),
		ReceivedTime: time.Now(),
	}))
}

// PushQuotes injects a two-sided level-1 book delta for the instrument.
func (f *Feed) PushQuotes(code schema.InstrumentCode, bid, bidSize, ask, askSize float64) {
	now := time.Now()
	f.Push(schema.QuotesEvent(f.venue, schema.Quotes{
		Instrument:   code,
		ExchangeTime: now,
		ReceivedTime: now,
		Quotes: []schema.Quote{
			schema.QuoteByLevel(schema.IntentBid, 1, bid, bidSize),
			schema.QuoteByLevel(schema.IntentAsk, 1, ask, askSize),
		},
	}))
}

// PushFunding injects a funding observation.
func (f *Feed) PushFunding(code schema.InstrumentCode, rate float64, next time.Time) {
	f.Push(schema.FundingRateEvent(f.venue, schema.FundingRate{
		Instrument:  code,
		Rate:        rate,
		NextFunding: next,
		Time:        time.Now(),
	}))
}

func subKey(topic schema.FeedTopic, sym schema.Symbol) string {
	return fmt.Sprintf("%s:%s", topic, sym)
}
