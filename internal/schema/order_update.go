package schema

import "time"

// UpdateOrder is a partial patch for one order. Empty ids and zero prices or
// sizes mean "leave unchanged"; Reason carries venue rejection text and is
// logged rather than stored.
type UpdateOrder struct {
	Lid        OrderLid       `json:"lid,omitempty"`
	Cid        OrderCid       `json:"cid,omitempty"`
	Sid        OrderSid       `json:"sid,omitempty"`
	Instrument InstrumentCode `json:"instrument"`
	Account    AccountId      `json:"account,omitempty"`
	Side       Side           `json:"side,omitempty"`
	Effect     PositionEffect `json:"effect,omitempty"`

	Status             OrderStatus `json:"status"`
	Price              float64     `json:"price,omitempty"`
	Size               float64     `json:"size,omitempty"`
	FilledSize         float64     `json:"filled_size,omitempty"`
	LastFilledSize     float64     `json:"last_filled_size,omitempty"`
	LastFilledPrice    float64     `json:"last_filled_price,omitempty"`
	AverageFilledPrice float64     `json:"average_filled_price,omitempty"`

	UpdateLt  time.Time `json:"update_lt"`
	UpdateEt  time.Time `json:"update_et,omitempty"`
	UpdateTst time.Time `json:"update_tst,omitempty"`

	StrategyId int64     `json:"strategy_id,omitempty"`
	OpeningCid OrderCid  `json:"opening_cid,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// HasIdentity reports whether the update can be matched to a cached order.
func (u *UpdateOrder) HasIdentity() bool {
	return u.Lid != "" || u.Cid != "" || u.Sid != ""
}

// ToOrder materialises a fresh order from the patch. Used when a sync or
// delta references an order the cache has never seen.
func (u *UpdateOrder) ToOrder() *Order {
	now := u.UpdateLt
	if now.IsZero() {
		now = time.Now()
	}
	o := &Order{
		Lid:                u.Lid,
		Cid:                u.Cid,
		Sid:                u.Sid,
		Instrument:         u.Instrument,
		Account:            u.Account,
		Side:               u.Side,
		Effect:             u.Effect,
		Price:              u.Price,
		Size:               u.Size,
		Status:             u.Status,
		FilledSize:         u.FilledSize,
		LastFilledSize:     u.LastFilledSize,
		LastFilledPrice:    u.LastFilledPrice,
		AverageFilledPrice: u.AverageFilledPrice,
		CreateLt:           now,
		UpdateLt:           now,
		UpdateEt:           u.UpdateEt,
		UpdateTst:          u.UpdateTst,
		StrategyId:         u.StrategyId,
		OpeningCid:         u.OpeningCid,
		Updated:            true,
	}
	return o
}

// UpdateFromOrder converts an order snapshot back into a patch, used by
// adapters that sync by enumerating live venue orders.
func UpdateFromOrder(o *Order) UpdateOrder {
	return UpdateOrder{
		Lid:                o.Lid,
		Cid:                o.Cid,
		Sid:                o.Sid,
		Instrument:         o.Instrument,
		Account:            o.Account,
		Side:               o.Side,
		Effect:             o.Effect,
		Status:             o.Status,
		Price:              o.Price,
		Size:               o.Size,
		FilledSize:         o.FilledSize,
		LastFilledSize:     o.LastFilledSize,
		LastFilledPrice:    o.LastFilledPrice,
		AverageFilledPrice: o.AverageFilledPrice,
		UpdateLt:           o.UpdateLt,
		UpdateEt:           o.UpdateEt,
		UpdateTst:          o.UpdateTst,
		StrategyId:         o.StrategyId,
		OpeningCid:         o.OpeningCid,
	}
}

// SyncOrders is an authoritative enumeration of venue orders over a range.
// Full syncs cull cached orders inside the range that the enumeration did not
// refresh, except orders still in a new (pre-acknowledgement) state.
type SyncOrders struct {
	Account AccountId          `json:"account"`
	Range   InstrumentSelector `json:"range"`
	Full    bool               `json:"full"`
	Orders  []UpdateOrder      `json:"orders"`
}

// SyncOrdersForExchange builds a full per-venue sync.
func SyncOrdersForExchange(account AccountId, exchange Exchange, orders []UpdateOrder) SyncOrders {
	return SyncOrders{Account: account, Range: SelectExchange(exchange), Full: true, Orders: orders}
}

// SyncOrdersForInstrument builds a full per-instrument sync.
func SyncOrdersForInstrument(account AccountId, exchange Exchange, code InstrumentCode, orders []UpdateOrder) SyncOrders {
	return SyncOrders{Account: account, Range: SelectInstrument(exchange, code), Full: true, Orders: orders}
}

// SyncOrdersForExchanges builds a full sync spanning several venues.
func SyncOrdersForExchanges(account AccountId, exchanges []Exchange, orders []UpdateOrder) SyncOrders {
	return SyncOrders{Account: account, Range: SelectExchanges(exchanges...), Full: true, Orders: orders}
}
