// Package schema defines the canonical identifier and message types shared by
// every venue adapter, the accounting engine, and the strategy layer.
package schema

import (
	"strings"
)

// Exchange enumerates the supported venues. The numeric order is total and
// stable; it is used for deterministic iteration and map-free comparisons.
type Exchange uint8

const (
	ExchangeNull Exchange = iota
	ExchangeMock
	ExchangeBinanceSpot
	ExchangeBinanceMargin
	ExchangeBinanceFutures
	ExchangeBybit
	ExchangeBitget
	ExchangeCoinbase
	ExchangeDrift
	ExchangeGateioSpot
	ExchangeGateioMargin
	ExchangeGateioPerpetual
	ExchangeHyperliquid
)

var exchangeTickers = map[Exchange]string{
	ExchangeNull:            "null",
	ExchangeMock:            "mock",
	ExchangeBinanceSpot:     "binance_spot",
	ExchangeBinanceMargin:   "binance_margin",
	ExchangeBinanceFutures:  "binance_futures",
	ExchangeBybit:           "bybit",
	ExchangeBitget:          "bitget",
	ExchangeCoinbase:        "coinbase",
	ExchangeDrift:           "drift",
	ExchangeGateioSpot:      "gateio_spot",
	ExchangeGateioMargin:    "gateio_margin",
	ExchangeGateioPerpetual: "gateio_perpetual",
	ExchangeHyperliquid:     "hyperliquid",
}

var exchangeByTicker = func() map[string]Exchange {
	out := make(map[string]Exchange, len(exchangeTickers))
	for e, t := range exchangeTickers {
		out[t] = e
	}
	return out
}()

// String returns the stable lowercase ticker for the exchange.
func (e Exchange) String() string {
	if t, ok := exchangeTickers[e]; ok {
		return t
	}
	return "null"
}

// IsNull reports whether the exchange is unset.
func (e Exchange) IsNull() bool { return e == ExchangeNull }

// ParseExchange resolves a ticker string to an Exchange. Unknown tickers map
// to ExchangeNull with ok=false.
func ParseExchange(s string) (Exchange, bool) {
	e, ok := exchangeByTicker[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return ExchangeNull, false
	}
	return e, true
}

// Network identifies the chain or venue environment an adapter targets.
type Network uint8

const (
	NetworkMainnet Network = iota
	NetworkTestnet
	NetworkDevnet
)

// String returns the lowercase network name.
func (n Network) String() string {
	switch n {
	case NetworkTestnet:
		return "testnet"
	case NetworkDevnet:
		return "devnet"
	default:
		return "mainnet"
	}
}

// ParseNetwork resolves a network name, defaulting to mainnet.
func ParseNetwork(s string) Network {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "testnet":
		return NetworkTestnet
	case "devnet":
		return NetworkDevnet
	default:
		return NetworkMainnet
	}
}
