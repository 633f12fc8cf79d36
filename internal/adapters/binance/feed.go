// Package binance adapts Binance USD-M futures to the venue service
// contracts: a websocket market feed and a REST plus user-stream execution
// service.
package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/straddle-io/straddle/internal/adapters/shared"
	"github.com/straddle-io/straddle/internal/instruments"
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
)

const (
	// DefaultWSBaseURL is the production USD-M futures stream endpoint.
	DefaultWSBaseURL = "wss://fstream.binance.com"
	// DefaultRESTBaseURL is the production USD-M futures REST endpoint.
	DefaultRESTBaseURL = "https://fapi.binance.com"
)

// FeedConfig tunes one Binance market-data connection.
type FeedConfig struct {
	// WSBaseURL overrides the stream endpoint, mainly for tests.
	WSBaseURL string
	// Registry resolves venue tickers back to instrument codes. Optional;
	// unresolved symbols fall back to symbol-addressed codes.
	Registry *instruments.Registry
	Buffer   int
}

// Feed streams normalized market events from the combined-stream socket.
type Feed struct {
	venue    schema.Exchange
	session  *shared.Session
	registry *instruments.Registry

	out    chan schema.MarketEvent
	closed chan struct{}
	once   sync.Once
}

var _ service.Service[schema.MarketFeedRequest, schema.MarketEvent] = (*Feed)(nil)

// NewFeed dials the combined stream and starts the frame pump.
func NewFeed(ctx context.Context, cfg FeedConfig) (*Feed, error) {
	base := cfg.WSBaseURL
	if base == "" {
		base = DefaultWSBaseURL
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	f := &Feed{
		venue:    schema.ExchangeBinanceFutures,
		registry: cfg.Registry,
		out:      make(chan schema.MarketEvent, cfg.Buffer),
		closed:   make(chan struct{}),
	}
	f.session = shared.NewSession(ctx, shared.SessionConfig{
		Venue: f.venue.String(),
		URL:   base + "/stream",
	}, nil)
	if err := f.session.Start(); err != nil {
		return nil, err
	}
	go f.pump()
	return f, nil
}

// Accept reports whether the subscription targets Binance futures.
func (f *Feed) Accept(req schema.MarketFeedRequest) bool {
	return req.Exchange == f.venue
}

// Request subscribes the streams covering the requested topic and symbols.
// Already-registered streams are skipped; registered streams are replayed
// onto every reconnect by the session.
func (f *Feed) Request(ctx context.Context, req schema.MarketFeedRequest) error {
	for _, sym := range req.Symbols {
		stream, err := streamName(req.Topic, sym)
		if err != nil {
			return err
		}
		book := f.session.Book()
		if book.Has(stream) {
			continue
		}
		payload, err := json.Marshal(wsSubscribe{
			Method: "SUBSCRIBE",
			Params: []string{stream},
			ID:     f.session.NextRequestID(),
		})
		if err != nil {
			return err
		}
		book.Add(stream, payload)
		if err := f.session.SendControl(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// Next returns the next normalized event.
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

// Close tears down the socket; Next drains buffered events then reports
// ErrClosed.
func (f *Feed) Close() {
	f.session.Stop()
	f.once.Do(func() { close(f.closed) })
}

func (f *Feed) pump() {
	for frame := range f.session.Frames() {
		if !f.handleFrame(frame) {
			return
		}
	}
	f.once.Do(func() { close(f.closed) })
}

// handleFrame normalizes one frame onto the event stream. It returns false
// once the feed is closed.
func (f *Feed) handleFrame(frame []byte) bool {
	ev, ok, err := f.parseFrame(frame, time.Now())
	if err != nil {
		observability.Telemetry().IncCounter("feed_decode_errors", 1,
			map[string]string{"venue": f.venue.String()})
		observability.Log().Warn("binance frame dropped",
			observability.F("venue", f.venue.String()),
			observability.F("error", err.Error()))
		return true
	}
	if !ok {
		return true
	}
	select {
	case f.out <- ev:
		return true
	case <-f.closed:
		return false
	}
}

// parseFrame normalizes one websocket frame. ok is false for control acks
// and event types outside the subscribed families.
func (f *Feed) parseFrame(frame []byte, now time.Time) (schema.MarketEvent, bool, error) {
	var envelope wsEnvelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return schema.MarketEvent{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if envelope.ID != nil {
		return schema.MarketEvent{}, false, nil
	}
	data := envelope.Data
	if len(data) == 0 {
		data = frame
	}
	switch inferEventType(envelope.Stream, data) {
	case "depthUpdate":
		return f.parseDepth(data, now)
	case "bookTicker":
		return f.parseBookTicker(data, now)
	case "markPriceUpdate":
		return f.parseMarkPrice(data, now)
	case "aggTrade":
		return f.parseAggTrade(data, now)
	default:
		return schema.MarketEvent{}, false, nil
	}
}

func (f *Feed) parseDepth(data []byte, now time.Time) (schema.MarketEvent, bool, error) {
	var payload depthUpdate
	if err := json.Unmarshal(data, &payload); err != nil {
		return schema.MarketEvent{}, false, fmt.Errorf("decode depth update: %w", err)
	}
	quotes := make([]schema.Quote, 0, len(payload.Bids)+len(payload.Asks))
	for _, level := range payload.Bids {
		if len(level) < 2 {
			continue
		}
		quotes = append(quotes, schema.QuoteByPrice(schema.IntentBid, mustFloat(level[0]), mustFloat(level[1])))
	}
	for _, level := range payload.Asks {
		if len(level) < 2 {
			continue
		}
		quotes = append(quotes, schema.QuoteByPrice(schema.IntentAsk, mustFloat(level[0]), mustFloat(level[1])))
	}
	return schema.QuotesEvent(f.venue, schema.Quotes{
		Instrument:   f.instrument(payload.Symbol),
		FirstSeq:     payload.FirstID,
		LastSeq:      payload.FinalID,
		ExchangeTime: time.UnixMilli(payload.EventTime),
		ReceivedTime: now,
		Quotes:       quotes,
	}), true, nil
}

func (f *Feed) parseBookTicker(data []byte, now time.Time) (schema.MarketEvent, bool, error) {
	var payload bookTickerUpdate
	if err := json.Unmarshal(data, &payload); err != nil {
		return schema.MarketEvent{}, false, fmt.Errorf("decode book ticker: %w", err)
	}
	return schema.BookTickerEvent(f.venue, schema.BookTicker{
		Instrument:   f.instrument(payload.Symbol),
		BidPrice:     mustFloat(payload.BidPrice),
		BidSize:      mustFloat(payload.BidSize),
		AskPrice:     mustFloat(payload.AskPrice),
		AskSize:      mustFloat(payload.AskSize),
		ExchangeTime: time.UnixMilli(payload.EventTime),
		ReceivedTime: now,
	}), true, nil
}

func (f *Feed) parseMarkPrice(data []byte, now time.Time) (schema.MarketEvent, bool, error) {
	var payload markPriceUpdate
	if err := json.Unmarshal(data, &payload); err != nil {
		return schema.MarketEvent{}, false, fmt.Errorf("decode mark price: %w", err)
	}
	rate, err := parseFloat(payload.FundingRate)
	if err != nil {
		return schema.MarketEvent{}, false, err
	}
	return schema.FundingRateEvent(f.venue, schema.FundingRate{
		Instrument:  f.instrument(payload.Symbol),
		Rate:        rate,
		NextFunding: time.UnixMilli(payload.NextFunding),
		Time:        time.UnixMilli(payload.EventTime),
	}), true, nil
}

func (f *Feed) parseAggTrade(data []byte, now time.Time) (schema.MarketEvent, bool, error) {
	var payload struct {
		EventType    string `json:"e"`
		EventTime    int64  `json:"E"`
		Symbol       string `json:"s"`
		Price        string `json:"p"`
		Quantity     string `json:"q"`
		IsBuyerMaker bool   `json:"m"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return schema.MarketEvent{}, false, fmt.Errorf("decode agg trade: %w", err)
	}
	side := schema.SideBuy
	if payload.IsBuyerMaker {
		side = schema.SideSell
	}
	return schema.TradeEvent(f.venue, schema.Trade{
		Instrument:   f.instrument(payload.Symbol),
		Side:         side,
		Price:        mustFloat(payload.Price),
		Size:         mustFloat(payload.Quantity),
		ExchangeTime: time.UnixMilli(payload.EventTime),
		ReceivedTime: now,
	}), true, nil
}

func (f *Feed) instrument(raw string) schema.InstrumentCode {
	sym := schema.InternSymbol(strings.ToUpper(raw))
	if f.registry != nil {
		if d, ok := f.registry.BySymbol(f.venue, sym); ok {
			return d.Code
		}
	}
	return schema.CodeForSymbol(f.venue, sym)
}

func streamName(topic schema.FeedTopic, sym schema.Symbol) (string, error) {
	lower := strings.ToLower(string(sym))
	switch topic {
	case schema.TopicDepth:
		return lower + "@depth@100ms", nil
	case schema.TopicBookTicker:
		return lower + "@bookTicker", nil
	case schema.TopicFundingRate, schema.TopicPrice:
		return lower + "@markPrice@1s", nil
	case schema.TopicTrade:
		return lower + "@aggTrade", nil
	default:
		return "", fmt.Errorf("binance: unsupported feed topic %s", topic)
	}
}

// inferEventType prefers the embedded "e" tag and falls back to the stream
// suffix for streams that omit it.
func inferEventType(stream string, data []byte) string {
	var tagged struct {
		EventType string `json:"e"`
	}
	if err := json.Unmarshal(data, &tagged); err == nil && tagged.EventType != "" {
		return tagged.EventType
	}
	switch {
	case strings.Contains(stream, "bookTicker"):
		return "bookTicker"
	case strings.Contains(stream, "depth"):
		return "depthUpdate"
	case strings.Contains(stream, "markPrice"):
		return "markPriceUpdate"
	case strings.Contains(stream, "aggTrade"):
		return "aggTrade"
	default:
		return ""
	}
}
