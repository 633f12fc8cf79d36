package schema

import "time"

// Intent marks which side of the book a quote addresses.
type Intent uint8

const (
	IntentBid Intent = iota
	IntentAsk
)

func (i Intent) String() string {
	if i == IntentAsk {
		return "ask"
	}
	return "bid"
}

// QuoteOp enumerates incremental book operations.
type QuoteOp uint8

const (
	// OpUpdateByPrice inserts or replaces the level at the quote's price;
	// zero size deletes it.
	OpUpdateByPrice QuoteOp = iota
	// OpUpdateByLevel overwrites the 1-based level index; zero size deletes.
	OpUpdateByLevel
	// OpDeleteFirstN removes the top N levels of the side.
	OpDeleteFirstN
	// OpDeleteLastN removes the bottom N levels of the side.
	OpDeleteLastN
	// OpDeleteSide clears the entire side.
	OpDeleteSide
)

func (op QuoteOp) String() string {
	switch op {
	case OpUpdateByLevel:
		return "update_by_level"
	case OpDeleteFirstN:
		return "delete_first_n"
	case OpDeleteLastN:
		return "delete_last_n"
	case OpDeleteSide:
		return "delete_side"
	default:
		return "update_by_price"
	}
}

// Quote is one incremental book operation.
type Quote struct {
	Intent    Intent  `json:"intent"`
	Level     int     `json:"level,omitempty"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Number    int     `json:"number,omitempty"`
	Operation QuoteOp `json:"operation"`
}

// QuoteByPrice builds a price-addressed update.
func QuoteByPrice(intent Intent, price, size float64) Quote {
	return Quote{Intent: intent, Price: price, Size: size, Operation: OpUpdateByPrice}
}

// QuoteByLevel builds a level-addressed update (level is 1-based).
func QuoteByLevel(intent Intent, level int, price, size float64) Quote {
	return Quote{Intent: intent, Level: level, Price: price, Size: size, Operation: OpUpdateByLevel}
}

// QuoteDeleteSide clears one side.
func QuoteDeleteSide(intent Intent) Quote {
	return Quote{Intent: intent, Operation: OpDeleteSide}
}

// Quotes is one venue book delta: an ordered batch of quote operations with
// the venue sequence range it covers.
type Quotes struct {
	Instrument   InstrumentCode `json:"instrument"`
	FirstSeq     uint64         `json:"first_seq"`
	LastSeq      uint64         `json:"last_seq"`
	ExchangeTime time.Time      `json:"exchange_time"`
	ReceivedTime time.Time      `json:"received_time"`
	Quotes       []Quote        `json:"quotes"`
}

// Trade is one normalized public trade print.
type Trade struct {
	Instrument   InstrumentCode `json:"instrument"`
	Side         Side           `json:"side"`
	Price        float64        `json:"price"`
	Size         float64        `json:"size"`
	ExchangeTime time.Time      `json:"exchange_time"`
	ReceivedTime time.Time      `json:"received_time"`
}

// BookTicker is a top-of-book snapshot.
type BookTicker struct {
	Instrument   InstrumentCode `json:"instrument"`
	BidPrice     float64        `json:"bid_price"`
	BidSize      float64        `json:"bid_size"`
	AskPrice     float64        `json:"ask_price"`
	AskSize      float64        `json:"ask_size"`
	ExchangeTime time.Time      `json:"exchange_time"`
	ReceivedTime time.Time      `json:"received_time"`
}

// OHLCVT is one candlestick with trade count.
type OHLCVT struct {
	Instrument InstrumentCode `json:"instrument"`
	Open       float64        `json:"open"`
	High       float64        `json:"high"`
	Low        float64        `json:"low"`
	Close      float64        `json:"close"`
	Volume     float64        `json:"volume"`
	Trades     int64          `json:"trades"`
	Interval   time.Duration  `json:"interval"`
	OpenTime   time.Time      `json:"open_time"`
}

// PriceUpdate carries a single derived price (index, mark, or last).
type PriceUpdate struct {
	Instrument InstrumentCode `json:"instrument"`
	Price      float64        `json:"price"`
	Time       time.Time      `json:"time"`
}

// FundingRate is one venue funding-rate observation.
type FundingRate struct {
	Instrument  InstrumentCode `json:"instrument"`
	Rate        float64        `json:"rate"`
	NextFunding time.Time      `json:"next_funding"`
	Time        time.Time      `json:"time"`
}
