package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/straddle-io/straddle/errs"
	"github.com/straddle-io/straddle/internal/adapters/shared"
	"github.com/straddle-io/straddle/internal/instruments"
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
)

const listenKeyKeepalive = 30 * time.Minute

// ExecConfig tunes one Binance execution connection.
type ExecConfig struct {
	RESTBaseURL string
	// WSBaseURL enables the user data stream. Empty leaves the service
	// REST-only, which tests and read-only deployments use.
	WSBaseURL string
	APIKey    string
	APISecret string
	Account   schema.AccountId
	Registry  *instruments.Registry
	Buffer    int
}

// Execution places and cancels orders over REST and forwards user-stream
// order and account updates as execution responses.
type Execution struct {
	venue    schema.Exchange
	account  schema.AccountId
	rest     *shared.RESTClient
	registry *instruments.Registry
	session  *shared.Session

	out    chan schema.ExecutionResponse
	closed chan struct{}
	once   sync.Once
}

var _ service.Service[schema.ExecutionRequest, schema.ExecutionResponse] = (*Execution)(nil)

// NewExecution builds the execution service and, when a stream endpoint is
// configured, attaches the user data stream.
func NewExecution(ctx context.Context, cfg ExecConfig) (*Execution, error) {
	if cfg.RESTBaseURL == "" {
		cfg.RESTBaseURL = DefaultRESTBaseURL
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	venue := schema.ExchangeBinanceFutures
	e := &Execution{
		venue:    venue,
		account:  cfg.Account,
		registry: cfg.Registry,
		rest: shared.NewRESTClient(shared.RESTConfig{
			Venue:   venue.String(),
			BaseURL: cfg.RESTBaseURL,
		}, &shared.HMACSigner{APIKey: cfg.APIKey, APISecret: cfg.APISecret}),
		out:    make(chan schema.ExecutionResponse, cfg.Buffer),
		closed: make(chan struct{}),
	}
	if cfg.WSBaseURL != "" {
		if err := e.startUserStream(ctx, cfg.WSBaseURL); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Execution) startUserStream(ctx context.Context, wsBase string) error {
	body, err := e.rest.Signed(ctx, http.MethodPost, "/fapi/v1/listenKey", url.Values{}, nil)
	if err != nil {
		return err
	}
	var key restListenKey
	if err := json.Unmarshal(body, &key); err != nil {
		return fmt.Errorf("decode listen key: %w", err)
	}
	if key.ListenKey == "" {
		return errs.New(e.venue.String(), errs.CodeVenue,
			errs.WithMessage("empty listen key"))
	}
	e.session = shared.NewSession(ctx, shared.SessionConfig{
		Venue: e.venue.String(),
		URL:   wsBase + "/ws/" + key.ListenKey,
	}, nil)
	if err := e.session.Start(); err != nil {
		return err
	}
	go e.pumpUserStream()
	go e.keepaliveListenKey(ctx)
	return nil
}

// keepaliveListenKey extends the listen key before its 60 minute expiry.
func (e *Execution) keepaliveListenKey(ctx context.Context) {
	ticker := time.NewTicker(listenKeyKeepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := e.rest.Signed(ctx, http.MethodPut, "/fapi/v1/listenKey", url.Values{}, nil); err != nil {
				observability.Log().Warn("listen key keepalive failed",
					observability.F("venue", e.venue.String()),
					observability.F("error", err.Error()))
			}
		case <-ctx.Done():
			return
		case <-e.closed:
			return
		}
	}
}

// Accept reports whether the request targets Binance futures.
func (e *Execution) Accept(req schema.ExecutionRequest) bool {
	venue, ok := req.TargetExchange()
	return ok && venue == e.venue
}

// Request executes the venue call synchronously; resulting state lands on
// the response stream.
func (e *Execution) Request(ctx context.Context, req schema.ExecutionRequest) error {
	switch req.Kind {
	case schema.ReqPlaceOrder:
		return e.placeOrder(ctx, req.Place)
	case schema.ReqCancelOrder:
		return e.cancelOrder(ctx, req.Cancel)
	case schema.ReqCancelAllOrders:
		return e.cancelAll(ctx, req.Range)
	case schema.ReqSyncOrders:
		return e.syncOrders(ctx, req)
	case schema.ReqGetPositions, schema.ReqQueryAssets:
		return e.syncAccount(ctx, req.Account)
	case schema.ReqUpdateLeverage:
		return e.updateLeverage(ctx, req.Leverage)
	default:
		return errs.New(e.venue.String(), errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("unsupported execution request %s", req.Kind)))
	}
}

// Next returns the next execution response.
func (e *Execution) Next(ctx context.Context) (schema.ExecutionResponse, error) {
	select {
	case resp := <-e.out:
		return resp, nil
	case <-e.closed:
		select {
		case resp := <-e.out:
			return resp, nil
		default:
			return schema.ExecutionResponse{}, service.ErrClosed
		}
	case <-ctx.Done():
		return schema.ExecutionResponse{}, ctx.Err()
	}
}

// Close stops the user stream; Next drains buffered responses then reports
// ErrClosed.
func (e *Execution) Close() {
	if e.session != nil {
		e.session.Stop()
	}
	e.once.Do(func() { close(e.closed) })
}

func (e *Execution) placeOrder(ctx context.Context, p *schema.RequestPlaceOrder) error {
	if p == nil {
		return errs.New(e.venue.String(), errs.CodeInvalid, errs.WithMessage("missing place payload"))
	}
	sym, err := e.nativeSymbol(p.Instrument)
	if err != nil {
		return err
	}
	query := url.Values{}
	query.Set("symbol", sym)
	query.Set("side", strings.ToUpper(p.Side.String()))
	query.Set("quantity", formatFloat(p.Size))
	query.Set("newClientOrderId", string(p.Cid))
	switch p.Type {
	case schema.OrderTypeMarket:
		query.Set("type", "MARKET")
	default:
		query.Set("type", "LIMIT")
		query.Set("price", formatFloat(p.Price))
		query.Set("timeInForce", tifParam(p.Tif))
	}
	if p.Effect == schema.EffectClose {
		query.Set("reduceOnly", "true")
	}
	body, err := e.rest.Signed(ctx, http.MethodPost, "/fapi/v1/order", query, nil)
	if err != nil {
		return err
	}
	var ack restOrderAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("decode order ack: %w", err)
	}
	update := e.updateFromAck(p.Instrument, ack)
	update.Lid = p.Lid
	update.Side = p.Side
	update.Effect = p.Effect
	e.emit(schema.OrderUpdateResponse(e.account, update))
	return nil
}

func (e *Execution) cancelOrder(ctx context.Context, c *schema.RequestCancelOrder) error {
	if c == nil {
		return errs.New(e.venue.String(), errs.CodeInvalid, errs.WithMessage("missing cancel payload"))
	}
	sym, err := e.nativeSymbol(c.Instrument)
	if err != nil {
		return err
	}
	query := url.Values{}
	query.Set("symbol", sym)
	switch {
	case c.Sid != "":
		query.Set("orderId", string(c.Sid))
	case c.Cid != "":
		query.Set("origClientOrderId", string(c.Cid))
	default:
		return errs.New(e.venue.String(), errs.CodeInvalid,
			errs.WithMessage("cancel needs a venue or client order id"))
	}
	body, err := e.rest.Signed(ctx, http.MethodDelete, "/fapi/v1/order", query, nil)
	if err != nil {
		return err
	}
	var ack restOrderAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("decode cancel ack: %w", err)
	}
	update := e.updateFromAck(c.Instrument, ack)
	update.Lid = c.Lid
	e.emit(schema.OrderUpdateResponse(e.account, update))
	return nil
}

func (e *Execution) cancelAll(ctx context.Context, rng schema.InstrumentSelector) error {
	syms, err := e.symbolsInRange(rng)
	if err != nil {
		return err
	}
	for _, sym := range syms {
		query := url.Values{}
		query.Set("symbol", sym)
		if _, err := e.rest.Signed(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", query, nil); err != nil {
			return err
		}
	}
	return nil
}

func (e *Execution) syncOrders(ctx context.Context, req schema.ExecutionRequest) error {
	query := url.Values{}
	if req.Range.Kind == schema.SelectorInstrument || req.Range.Kind == schema.SelectorSymbol {
		syms, err := e.symbolsInRange(req.Range)
		if err != nil {
			return err
		}
		if len(syms) == 1 {
			query.Set("symbol", syms[0])
		}
	}
	body, err := e.rest.Signed(ctx, http.MethodGet, "/fapi/v1/openOrders", query, nil)
	if err != nil {
		return err
	}
	var acks []restOrderAck
	if err := json.Unmarshal(body, &acks); err != nil {
		return fmt.Errorf("decode open orders: %w", err)
	}
	updates := make([]schema.UpdateOrder, 0, len(acks))
	for _, ack := range acks {
		updates = append(updates, e.updateFromAck(e.instrument(ack.Symbol), ack))
	}
	account := req.Account
	if account == "" {
		account = e.account
	}
	e.emit(schema.SyncOrdersResponse(schema.SyncOrdersForExchange(account, e.venue, updates)))
	return nil
}

func (e *Execution) syncAccount(ctx context.Context, account schema.AccountId) error {
	body, err := e.rest.Signed(ctx, http.MethodGet, "/fapi/v2/account", url.Values{}, nil)
	if err != nil {
		return err
	}
	var snapshot restAccount
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return fmt.Errorf("decode account: %w", err)
	}
	if account == "" {
		account = e.account
	}
	entries := make([]schema.UpdatePosition, 0, len(snapshot.Assets)+len(snapshot.Positions))
	for _, a := range snapshot.Assets {
		total := mustFloat(a.WalletBalance)
		available := mustFloat(a.Available)
		entries = append(entries, schema.SetPosition(
			schema.CodeForAsset(e.venue, schema.InternAsset(a.Asset)),
			total, available, total-available))
	}
	for _, p := range snapshot.Positions {
		amount := mustFloat(p.PositionAmt)
		if amount == 0 {
			continue
		}
		entries = append(entries, schema.SetPosition(e.instrument(p.Symbol), amount, amount, 0))
	}
	e.emit(schema.PositionsResponse(schema.SyncBalancesAndPositions(account, e.venue, entries)))
	return nil
}

func (e *Execution) updateLeverage(ctx context.Context, l *schema.RequestUpdateLeverage) error {
	if l == nil {
		return errs.New(e.venue.String(), errs.CodeInvalid, errs.WithMessage("missing leverage payload"))
	}
	sym, err := e.nativeSymbol(l.Instrument)
	if err != nil {
		return err
	}
	query := url.Values{}
	query.Set("symbol", sym)
	query.Set("leverage", strconv.Itoa(l.Leverage))
	if _, err := e.rest.Signed(ctx, http.MethodPost, "/fapi/v1/leverage", query, nil); err != nil {
		return err
	}
	e.emit(schema.TextResponse(fmt.Sprintf("leverage %s %dx", sym, l.Leverage)))
	return nil
}

func (e *Execution) pumpUserStream() {
	for frame := range e.session.Frames() {
		resp, ok, err := e.parseUserFrame(frame, time.Now())
		if err != nil {
			observability.Telemetry().IncCounter("feed_decode_errors", 1,
				map[string]string{"venue": e.venue.String()})
			observability.Log().Warn("binance user frame dropped",
				observability.F("venue", e.venue.String()),
				observability.F("error", err.Error()))
			continue
		}
		if ok {
			e.emit(resp)
		}
	}
	e.once.Do(func() { close(e.closed) })
}

// parseUserFrame maps one user data stream frame. ok is false for event
// types outside the order and account families.
func (e *Execution) parseUserFrame(frame []byte, now time.Time) (schema.ExecutionResponse, bool, error) {
	var tagged struct {
		EventType string `json:"e"`
	}
	if err := json.Unmarshal(frame, &tagged); err != nil {
		return schema.ExecutionResponse{}, false, fmt.Errorf("decode user frame: %w", err)
	}
	switch tagged.EventType {
	case "ORDER_TRADE_UPDATE":
		var payload orderTradeUpdate
		if err := json.Unmarshal(frame, &payload); err != nil {
			return schema.ExecutionResponse{}, false, fmt.Errorf("decode order update: %w", err)
		}
		o := payload.Order
		update := schema.UpdateOrder{
			Cid:                schema.OrderCid(o.ClientOrderID),
			Sid:                schema.OrderSid(strconv.FormatInt(o.OrderID, 10)),
			Instrument:         e.instrument(o.Symbol),
			Account:            e.account,
			Side:               sideFromVenue(o.Side),
			Status:             statusFromVenue(o.Status),
			Price:              mustFloat(o.OrigPrice),
			Size:               mustFloat(o.OrigQty),
			FilledSize:         mustFloat(o.FilledQty),
			LastFilledSize:     mustFloat(o.LastFilledQty),
			LastFilledPrice:    mustFloat(o.LastPrice),
			AverageFilledPrice: mustFloat(o.AvgPrice),
			UpdateLt:           now,
			UpdateEt:           time.UnixMilli(payload.EventTime),
			UpdateTst:          time.UnixMilli(o.TradeTime),
		}
		if o.ReduceOnly {
			update.Effect = schema.EffectClose
		}
		return schema.OrderUpdateResponse(e.account, update), true, nil
	case "ACCOUNT_UPDATE":
		var payload accountUpdate
		if err := json.Unmarshal(frame, &payload); err != nil {
			return schema.ExecutionResponse{}, false, fmt.Errorf("decode account update: %w", err)
		}
		entries := make([]schema.UpdatePosition, 0, len(payload.Data.Balances)+len(payload.Data.Positions))
		for _, b := range payload.Data.Balances {
			total := mustFloat(b.Balance)
			entries = append(entries, schema.SetPosition(
				schema.CodeForAsset(e.venue, schema.InternAsset(b.Asset)), total, total, 0))
		}
		for _, p := range payload.Data.Positions {
			amount := mustFloat(p.Amount)
			entries = append(entries, schema.SetPosition(e.instrument(p.Symbol), amount, amount, 0))
		}
		// Deltas are not authoritative over the whole venue, so the range
		// must not trigger a cull of unrefreshed positions.
		return schema.PositionsResponse(schema.UpdatePositions{
			Account:   e.account,
			Range:     schema.SelectNone(),
			Positions: entries,
		}), true, nil
	default:
		return schema.ExecutionResponse{}, false, nil
	}
}

func (e *Execution) updateFromAck(code schema.InstrumentCode, ack restOrderAck) schema.UpdateOrder {
	update := schema.UpdateOrder{
		Cid:                schema.OrderCid(ack.ClientOrderID),
		Sid:                schema.OrderSid(strconv.FormatInt(ack.OrderID, 10)),
		Instrument:         code,
		Account:            e.account,
		Side:               sideFromVenue(ack.Side),
		Status:             statusFromVenue(ack.Status),
		Price:              mustFloat(ack.Price),
		Size:               mustFloat(ack.OrigQty),
		FilledSize:         mustFloat(ack.ExecutedQty),
		AverageFilledPrice: mustFloat(ack.AvgPrice),
		UpdateLt:           time.Now(),
	}
	if ack.UpdateTime > 0 {
		update.UpdateEt = time.UnixMilli(ack.UpdateTime)
	}
	return update
}

func (e *Execution) emit(resp schema.ExecutionResponse) {
	select {
	case e.out <- resp:
	case <-e.closed:
	}
}

func (e *Execution) instrument(raw string) schema.InstrumentCode {
	sym := schema.InternSymbol(strings.ToUpper(raw))
	if e.registry != nil {
		if d, ok := e.registry.BySymbol(e.venue, sym); ok {
			return d.Code
		}
	}
	return schema.CodeForSymbol(e.venue, sym)
}

// nativeSymbol maps an instrument code back to the venue ticker.
func (e *Execution) nativeSymbol(code schema.InstrumentCode) (string, error) {
	if e.registry != nil {
		if d, ok := e.registry.ByCode(code); ok && !d.Symbol.IsEmpty() {
			return string(d.Symbol), nil
		}
	}
	if !code.Symbol.IsEmpty() {
		return strings.ToUpper(string(code.Symbol)), nil
	}
	if code.Kind == schema.CodeSimple {
		return strings.ToUpper(string(code.Base) + string(code.Quote)), nil
	}
	return "", errs.New(e.venue.String(), errs.CodeInvalid,
		errs.WithMessage(fmt.Sprintf("no venue symbol for %s", code)))
}

func (e *Execution) symbolsInRange(rng schema.InstrumentSelector) ([]string, error) {
	switch rng.Kind {
	case schema.SelectorInstrument:
		sym, err := e.nativeSymbol(rng.Code)
		if err != nil {
			return nil, err
		}
		return []string{sym}, nil
	case schema.SelectorSymbol:
		return []string{strings.ToUpper(string(rng.Symbol))}, nil
	}
	if e.registry == nil {
		return nil, errs.New(e.venue.String(), errs.CodeInvalid,
			errs.WithMessage("range selector needs an instrument registry"))
	}
	details := e.registry.Select(rng)
	syms := make([]string, 0, len(details))
	for _, d := range details {
		if d.Code.Exchange == e.venue && !d.Symbol.IsEmpty() {
			syms = append(syms, string(d.Symbol))
		}
	}
	return syms, nil
}

func sideFromVenue(raw string) schema.Side {
	switch strings.ToUpper(raw) {
	case "BUY":
		return schema.SideBuy
	case "SELL":
		return schema.SideSell
	default:
		return schema.SideUnknown
	}
}

func statusFromVenue(raw string) schema.OrderStatus {
	switch strings.ToUpper(raw) {
	case "NEW":
		return schema.StatusOpen
	case "PARTIALLY_FILLED":
		return schema.StatusPartiallyFilled
	case "FILLED":
		return schema.StatusFilled
	case "CANCELED":
		return schema.StatusCancelled
	case "REJECTED":
		return schema.StatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return schema.StatusExpired
	default:
		return schema.StatusUnknown
	}
}

func tifParam(tif schema.TimeInForce) string {
	switch tif {
	case schema.TifIOC:
		return "IOC"
	case schema.TifFOK:
		return "FOK"
	default:
		return "GTC"
	}
}
