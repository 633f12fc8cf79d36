package schema

// ExecResponseKind tags the ExecutionResponse variant.
type ExecResponseKind uint8

const (
	RespNoop ExecResponseKind = iota
	RespText
	RespError
	RespSyncOrders
	RespUpdateOrder
	RespUpdatePositions
	RespUpdatePosition
	RespUpdateFunding
	RespUpdateBook
	RespTradeOrder
	RespCompleteOrder
	RespGroup
)

var execResponseNames = [...]string{
	"noop", "text", "error", "sync_orders", "update_order",
	"update_positions", "update_position", "update_funding", "update_book",
	"trade_order", "complete_order", "group",
}

func (k ExecResponseKind) String() string {
	if int(k) < len(execResponseNames) {
		return execResponseNames[k]
	}
	return "noop"
}

// ExecutionResponse is the tagged event union produced by execution adapters
// and consumed by the accounting engine. Exactly one payload field matching
// Kind is populated; Account scopes payloads that do not carry their own.
type ExecutionResponse struct {
	Kind      ExecResponseKind `json:"kind"`
	Account   AccountId        `json:"account,omitempty"`
	Text      string           `json:"text,omitempty"`
	Error     string           `json:"error,omitempty"`
	Sync      *SyncOrders      `json:"sync,omitempty"`
	Order     *UpdateOrder     `json:"order,omitempty"`
	Positions *UpdatePositions `json:"positions,omitempty"`
	Position  *UpdatePosition  `json:"position,omitempty"`
	Funding   *FundingRate     `json:"funding,omitempty"`
	Book      *Quotes          `json:"book,omitempty"`
	Trade     *Order           `json:"trade,omitempty"`
	Complete  *Order           `json:"complete,omitempty"`
	Group     []ExecutionResponse `json:"group,omitempty"`
}

// NoopResponse is the empty response.
func NoopResponse() ExecutionResponse { return ExecutionResponse{Kind: RespNoop} }

// TextResponse wraps free-form venue text (raw dumps, acks).
func TextResponse(text string) ExecutionResponse {
	return ExecutionResponse{Kind: RespText, Text: text}
}

// ErrorResponse wraps a decode or protocol failure without killing the feed.
func ErrorResponse(msg string) ExecutionResponse {
	return ExecutionResponse{Kind: RespError, Error: msg}
}

// OrderUpdateResponse wraps one order patch.
func OrderUpdateResponse(account AccountId, u UpdateOrder) ExecutionResponse {
	return ExecutionResponse{Kind: RespUpdateOrder, Account: account, Order: &u}
}

// SyncOrdersResponse wraps an authoritative order enumeration.
func SyncOrdersResponse(s SyncOrders) ExecutionResponse {
	return ExecutionResponse{Kind: RespSyncOrders, Account: s.Account, Sync: &s}
}

// PositionsResponse wraps a position sync batch.
func PositionsResponse(p UpdatePositions) ExecutionResponse {
	return ExecutionResponse{Kind: RespUpdatePositions, Account: p.Account, Positions: &p}
}

// PositionResponse wraps a single position delta.
func PositionResponse(account AccountId, p UpdatePosition) ExecutionResponse {
	return ExecutionResponse{Kind: RespUpdatePosition, Account: account, Position: &p}
}

// FundingResponse wraps a funding observation on the execution stream.
func FundingResponse(account AccountId, f FundingRate) ExecutionResponse {
	return ExecutionResponse{Kind: RespUpdateFunding, Account: account, Funding: &f}
}

// GroupResponse applies the contained responses in order.
func GroupResponse(rs ...ExecutionResponse) ExecutionResponse {
	return ExecutionResponse{Kind: RespGroup, Group: rs}
}

// MarketEventKind tags the MarketEvent variant.
type MarketEventKind uint8

const (
	EvString MarketEventKind = iota
	EvTrade
	EvTrades
	EvQuotes
	EvBookTicker
	EvOHLCVT
	EvPrice
	EvFundingRate
	EvFundingRates
)

var marketEventNames = [...]string{
	"string", "trade", "trades", "quotes", "book_ticker", "ohlcvt",
	"price", "funding_rate", "funding_rates",
}

func (k MarketEventKind) String() string {
	if int(k) < len(marketEventNames) {
		return marketEventNames[k]
	}
	return "string"
}

// MarketEvent is the tagged market-data union produced by feed adapters.
type MarketEvent struct {
	Kind         MarketEventKind `json:"kind"`
	Exchange     Exchange        `json:"exchange,omitempty"`
	String       string          `json:"string,omitempty"`
	Trade        *Trade          `json:"trade,omitempty"`
	Trades       []Trade         `json:"trades,omitempty"`
	Quotes       *Quotes         `json:"quotes,omitempty"`
	BookTicker   *BookTicker     `json:"book_ticker,omitempty"`
	OHLCVT       *OHLCVT         `json:"ohlcvt,omitempty"`
	Price        *PriceUpdate    `json:"price,omitempty"`
	FundingRate  *FundingRate    `json:"funding_rate,omitempty"`
	FundingRates []FundingRate   `json:"funding_rates,omitempty"`
}

// QuotesEvent wraps a book delta.
func QuotesEvent(exchange Exchange, q Quotes) MarketEvent {
	return MarketEvent{Kind: EvQuotes, Exchange: exchange, Quotes: &q}
}

// TradeEvent wraps one trade print.
func TradeEvent(exchange Exchange, t Trade) MarketEvent {
	return MarketEvent{Kind: EvTrade, Exchange: exchange, Trade: &t}
}

// BookTickerEvent wraps a top-of-book snapshot.
func BookTickerEvent(exchange Exchange, bt BookTicker) MarketEvent {
	return MarketEvent{Kind: EvBookTicker, Exchange: exchange, BookTicker: &bt}
}

// FundingRateEvent wraps one funding observation.
func FundingRateEvent(exchange Exchange, f FundingRate) MarketEvent {
	return MarketEvent{Kind: EvFundingRate, Exchange: exchange, FundingRate: &f}
}

// StringEvent wraps raw venue text when raw dumping is enabled.
func StringEvent(exchange Exchange, s string) MarketEvent {
	return MarketEvent{Kind: EvString, Exchange: exchange, String: s}
}
