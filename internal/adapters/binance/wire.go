package binance

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// Combined-stream envelope: every frame from /stream wraps the payload with
// the stream name that produced it.
type wsEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	// Control acks arrive outside the envelope.
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
}

type wsSubscribe struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

type depthUpdate struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	FirstID   uint64     `json:"U"`
	FinalID   uint64     `json:"u"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

type bookTickerUpdate struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	BidPrice  string `json:"b"`
	BidSize   string `json:"B"`
	AskPrice  string `json:"a"`
	AskSize   string `json:"A"`
}

type markPriceUpdate struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	MarkPrice   string `json:"p"`
	FundingRate string `json:"r"`
	NextFunding int64  `json:"T"`
}

type orderTradeUpdate struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol        string `json:"s"`
		ClientOrderID string `json:"c"`
		Side          string `json:"S"`
		OrderType     string `json:"o"`
		TimeInForce   string `json:"f"`
		OrigQty       string `json:"q"`
		OrigPrice     string `json:"p"`
		AvgPrice      string `json:"ap"`
		ExecType      string `json:"x"`
		Status        string `json:"X"`
		OrderID       int64  `json:"i"`
		LastFilledQty string `json:"l"`
		FilledQty     string `json:"z"`
		LastPrice     string `json:"L"`
		TradeTime     int64  `json:"T"`
		ReduceOnly    bool   `json:"R"`
	} `json:"o"`
}

type accountUpdate struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Data      struct {
		Reason    string `json:"m"`
		Balances  []wireBalance  `json:"B"`
		Positions []wirePosition `json:"P"`
	} `json:"a"`
}

type wireBalance struct {
	Asset   string `json:"a"`
	Balance string `json:"wb"`
}

type wirePosition struct {
	Symbol     string `json:"s"`
	Amount     string `json:"pa"`
	EntryPrice string `json:"ep"`
}

type restOrderAck struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	Side          string `json:"side"`
	UpdateTime    int64  `json:"updateTime"`
}

type restAccount struct {
	Assets []struct {
		Asset         string `json:"asset"`
		WalletBalance string `json:"walletBalance"`
		Available     string `json:"availableBalance"`
	} `json:"assets"`
	Positions []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
		EntryPrice  string `json:"entryPrice"`
	} `json:"positions"`
}

type restListenKey struct {
	ListenKey string `json:"listenKey"`
}

type restExchangeInfo struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		Status            string `json:"status"`
		BaseAsset         string `json:"baseAsset"`
		QuoteAsset        string `json:"quoteAsset"`
		MarginAsset       string `json:"marginAsset"`
		ContractType      string `json:"contractType"`
		PricePrecision    int32  `json:"pricePrecision"`
		QuantityPrecision int32  `json:"quantityPrecision"`
		OnboardDate       int64  `json:"onboardDate"`
		DeliveryDate      int64  `json:"deliveryDate"`
		Filters           []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
			StepSize   string `json:"stepSize"`
			MinQty     string `json:"minQty"`
			MaxQty     string `json:"maxQty"`
		} `json:"filters"`
	} `json:"symbols"`
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse binance decimal %q: %w", raw, err)
	}
	return v, nil
}

// mustFloat is for fields where a malformed value should zero out rather
// than drop the whole message.
func mustFloat(raw string) float64 {
	v, _ := parseFloat(raw)
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
