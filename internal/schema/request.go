package schema

import "time"

// RequestPlaceOrder is the outbound order placement payload.
type RequestPlaceOrder struct {
	Lid        OrderLid       `json:"lid"`
	Cid        OrderCid       `json:"cid"`
	Instrument InstrumentCode `json:"instrument"`
	Account    AccountId      `json:"account"`
	Side       Side           `json:"side"`
	Type       OrderType      `json:"type"`
	Tif        TimeInForce    `json:"tif"`
	Effect     PositionEffect `json:"effect"`
	Price      float64        `json:"price"`
	StopPrice  float64        `json:"stop_price,omitempty"`
	Size       float64        `json:"size"`
	StrategyId int64          `json:"strategy_id,omitempty"`
	EventId    int64          `json:"event_id,omitempty"`
	OpeningCid OrderCid       `json:"opening_cid,omitempty"`
	// BatchId joins the hedged legs placed together as one batch.
	BatchId string `json:"batch_id,omitempty"`
}

// ToOrder materialises the local Pending order for the request.
func (r *RequestPlaceOrder) ToOrder() *Order {
	o := NewOrder(r.Lid, r.Cid, r.Instrument, r.Account, r.Side, r.Size, r.Price)
	o.Type = r.Type
	o.Tif = r.Tif
	o.Effect = r.Effect
	o.StopPrice = r.StopPrice
	o.StrategyId = r.StrategyId
	o.EventId = r.EventId
	o.OpeningCid = r.OpeningCid
	o.Managed = true
	return o
}

// RequestCancelOrder cancels one order, addressed by any known id.
type RequestCancelOrder struct {
	Lid        OrderLid       `json:"lid,omitempty"`
	Cid        OrderCid       `json:"cid,omitempty"`
	Sid        OrderSid       `json:"sid,omitempty"`
	Instrument InstrumentCode `json:"instrument"`
	Account    AccountId      `json:"account,omitempty"`
}

// RequestUpdateLeverage sets venue leverage for one instrument.
type RequestUpdateLeverage struct {
	Instrument InstrumentCode `json:"instrument"`
	Account    AccountId      `json:"account,omitempty"`
	Leverage   int            `json:"leverage"`
}

// ExecRequestKind tags the ExecutionRequest variant.
type ExecRequestKind uint8

const (
	ReqPlaceOrder ExecRequestKind = iota
	ReqCancelOrder
	ReqCancelAllOrders
	ReqSyncOrders
	ReqGetPositions
	ReqQueryAssets
	ReqUpdateLeverage
)

func (k ExecRequestKind) String() string {
	switch k {
	case ReqPlaceOrder:
		return "place_order"
	case ReqCancelOrder:
		return "cancel_order"
	case ReqCancelAllOrders:
		return "cancel_all_orders"
	case ReqSyncOrders:
		return "sync_orders"
	case ReqGetPositions:
		return "get_positions"
	case ReqQueryAssets:
		return "query_assets"
	case ReqUpdateLeverage:
		return "update_leverage"
	default:
		return "unknown"
	}
}

// ExecutionRequest is the tagged request union routed through the execution
// select. Exactly one payload field matching Kind is populated.
type ExecutionRequest struct {
	Kind     ExecRequestKind       `json:"kind"`
	Place    *RequestPlaceOrder    `json:"place,omitempty"`
	Cancel   *RequestCancelOrder   `json:"cancel,omitempty"`
	Leverage *RequestUpdateLeverage `json:"leverage,omitempty"`
	Range    InstrumentSelector    `json:"range,omitempty"`
	Account  AccountId             `json:"account,omitempty"`
}

// PlaceOrderRequest wraps a placement payload.
func PlaceOrderRequest(p RequestPlaceOrder) ExecutionRequest {
	return ExecutionRequest{Kind: ReqPlaceOrder, Place: &p}
}

// CancelOrderRequest wraps a cancel payload.
func CancelOrderRequest(c RequestCancelOrder) ExecutionRequest {
	return ExecutionRequest{Kind: ReqCancelOrder, Cancel: &c}
}

// CancelAllOrdersRequest cancels every live order inside the range.
func CancelAllOrdersRequest(rng InstrumentSelector) ExecutionRequest {
	return ExecutionRequest{Kind: ReqCancelAllOrders, Range: rng}
}

// SyncOrdersRequest asks the adapter for a full order enumeration.
func SyncOrdersRequest(rng InstrumentSelector) ExecutionRequest {
	return ExecutionRequest{Kind: ReqSyncOrders, Range: rng}
}

// TargetExchange returns the venue the request addresses, if determinable.
func (r ExecutionRequest) TargetExchange() (Exchange, bool) {
	switch r.Kind {
	case ReqPlaceOrder:
		if r.Place != nil {
			return r.Place.Instrument.Exchange, r.Place.Instrument.HasExchange()
		}
	case ReqCancelOrder:
		if r.Cancel != nil {
			return r.Cancel.Instrument.Exchange, r.Cancel.Instrument.HasExchange()
		}
	case ReqUpdateLeverage:
		if r.Leverage != nil {
			return r.Leverage.Instrument.Exchange, r.Leverage.Instrument.HasExchange()
		}
	default:
		return r.Range.GetExchange()
	}
	return ExchangeNull, false
}

// FeedTopic names one market-data subscription family.
type FeedTopic uint8

const (
	TopicTrade FeedTopic = iota
	TopicBookTicker
	TopicOHLCVT
	TopicLiquidation
	TopicPrice
	TopicFundingRate
	TopicDepth
)

func (t FeedTopic) String() string {
	switch t {
	case TopicBookTicker:
		return "book_ticker"
	case TopicOHLCVT:
		return "ohlcvt"
	case TopicLiquidation:
		return "liquidation"
	case TopicPrice:
		return "price"
	case TopicFundingRate:
		return "funding_rate"
	case TopicDepth:
		return "depth"
	default:
		return "trade"
	}
}

// MarketFeedRequest is a subscription specification for one venue feed.
type MarketFeedRequest struct {
	Exchange    Exchange      `json:"exchange"`
	Topic       FeedTopic     `json:"topic"`
	Symbols     []Symbol      `json:"symbols"`
	DepthLevels int           `json:"depth_levels,omitempty"`
	Interval    time.Duration `json:"interval,omitempty"`
}
