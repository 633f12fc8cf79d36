package schema

import (
	"strings"
	"time"
)

// OrderLid is the locally generated order id, the primary key on our side.
type OrderLid string

// OrderCid is the client order id sent to the venue.
type OrderCid string

// OrderSid is the server order id assigned by the venue.
type OrderSid string

// AccountId names one trading account on one venue.
type AccountId string

// Side is the taker direction of an order.
type Side uint8

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

// Sign returns +1 for buys, -1 for sells, 0 otherwise.
func (s Side) Sign() float64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	default:
		return 0
	}
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseSide resolves a side name case-insensitively.
func ParseSide(raw string) Side {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "bid", "long":
		return SideBuy
	case "sell", "ask", "short":
		return SideSell
	default:
		return SideUnknown
	}
}

// OrderType enumerates the supported order flavours.
type OrderType uint8

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
	OrderTypePostOnly
	OrderTypeStopMarket
	OrderTypeStopLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	case OrderTypePostOnly:
		return "post_only"
	case OrderTypeStopMarket:
		return "stop_market"
	case OrderTypeStopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// TimeInForce enumerates order lifetimes.
type TimeInForce uint8

const (
	TifGTC TimeInForce = iota
	TifIOC
	TifFOK
)

func (t TimeInForce) String() string {
	switch t {
	case TifIOC:
		return "ioc"
	case TifFOK:
		return "fok"
	default:
		return "gtc"
	}
}

// PositionEffect marks whether an order opens or closes strategy exposure.
type PositionEffect uint8

const (
	EffectNA PositionEffect = iota
	EffectOpen
	EffectClose
	EffectManual
)

func (e PositionEffect) String() string {
	switch e {
	case EffectOpen:
		return "open"
	case EffectClose:
		return "close"
	case EffectManual:
		return "manual"
	default:
		return "na"
	}
}

// OrderStatus is the order lifecycle ladder. The numeric order is a total
// rank: a status transition is a regression iff the new rank is lower.
type OrderStatus uint8

const (
	StatusUnknown OrderStatus = iota
	StatusPending
	StatusSent
	StatusReceived
	StatusUntriggered
	StatusTriggered
	StatusOpen
	StatusPartiallyFilled
	StatusCancelPending
	StatusCancelSent
	StatusCancelReceived
	StatusCancelled
	StatusFilled
	StatusAbsent
	StatusRejected
	StatusExpired
	StatusError
	StatusDiscarded
)

var orderStatusNames = [...]string{
	"unknown", "pending", "sent", "received", "untriggered", "triggered",
	"open", "partially_filled", "cancel_pending", "cancel_sent",
	"cancel_received", "cancelled", "filled", "absent", "rejected",
	"expired", "error", "discarded",
}

func (s OrderStatus) String() string {
	if int(s) < len(orderStatusNames) {
		return orderStatusNames[s]
	}
	return "unknown"
}

// IsNew reports whether the order has been created locally but not yet
// acknowledged as live by the venue.
func (s OrderStatus) IsNew() bool {
	return s == StatusPending || s == StatusSent || s == StatusReceived
}

// IsOpen reports whether the order is live on the venue.
func (s OrderStatus) IsOpen() bool {
	return s == StatusOpen || s == StatusPartiallyFilled || s == StatusUntriggered
}

// IsCancel reports whether the order is anywhere on the cancel path.
func (s OrderStatus) IsCancel() bool {
	return s == StatusCancelPending || s == StatusCancelSent ||
		s == StatusCancelReceived || s == StatusCancelled
}

// IsDead reports whether the order reached a terminal state.
func (s OrderStatus) IsDead() bool {
	switch s {
	case StatusAbsent, StatusFilled, StatusCancelled, StatusRejected,
		StatusExpired, StatusError, StatusDiscarded:
		return true
	default:
		return false
	}
}

// FillOverrunSlack is the tolerated filled/size overshoot before a warning.
const FillOverrunSlack = 1.05

// Order is the mutable local record of one order.
type Order struct {
	Lid        OrderLid
	Cid        OrderCid
	Sid        OrderSid
	Instrument InstrumentCode
	Account    AccountId
	Side       Side
	Type       OrderType
	Tif        TimeInForce
	Effect     PositionEffect

	Price     float64
	StopPrice float64
	Size      float64

	Status             OrderStatus
	FilledSize         float64
	LastFilledSize     float64
	LastFilledPrice    float64
	AverageFilledPrice float64

	CreateLt  time.Time
	OpenLt    time.Time
	CloseLt   time.Time
	CancelLt  time.Time
	UpdateLt  time.Time
	UpdateEt  time.Time
	UpdateTst time.Time

	StrategyId int64
	EventId    int64
	OpeningCid OrderCid
	Managed    bool
	Updated    bool
}

// NewOrder constructs an order in the Pending state.
func NewOrder(lid OrderLid, cid OrderCid, instrument InstrumentCode, account AccountId, side Side, size, price float64) *Order {
	now := time.Now()
	o := &Order{
		Lid:        lid,
		Cid:        cid,
		Instrument: instrument,
		Account:    account,
		Side:       side,
		Type:       OrderTypeLimit,
		Tif:        TifGTC,
		Effect:     EffectNA,
		Price:      price,
		Size:       size,
		Status:     StatusPending,
		CreateLt:   now,
		UpdateLt:   now,
	}
	return o
}

// IsOlderThan reports whether this order's state strictly precedes the
// (status, filled) pair of an incoming update.
func (o *Order) IsOlderThan(status OrderStatus, filled float64) bool {
	return o.FilledSize < filled || o.Status < status
}

// RemainingSize returns the unfilled quantity, floored at zero.
func (o *Order) RemainingSize() float64 {
	if rem := o.Size - o.FilledSize; rem > 0 {
		return rem
	}
	return 0
}

// SignedFilled returns the filled size signed by order side.
func (o *Order) SignedFilled() float64 {
	return o.FilledSize * o.Side.Sign()
}
