package schema

import (
	"fmt"
	"time"
)

// Settlement distinguishes linear (quote-settled) from inverse (base-settled)
// derivative contracts.
type Settlement uint8

const (
	SettlementLinear Settlement = iota
	SettlementInverse
)

func (s Settlement) String() string {
	if s == SettlementInverse {
		return "inverse"
	}
	return "linear"
}

// PositionDirection models venues with hedged position modes.
type PositionDirection uint8

const (
	DirectionEither PositionDirection = iota
	DirectionLong
	DirectionShort
)

func (d PositionDirection) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "either"
	}
}

// InstrumentKind tags the InstrumentType variant.
type InstrumentKind uint8

const (
	InstrumentSpot InstrumentKind = iota
	InstrumentMargin
	InstrumentPerpetual
	InstrumentDelivery
	InstrumentOption
)

func (k InstrumentKind) String() string {
	switch k {
	case InstrumentMargin:
		return "margin"
	case InstrumentPerpetual:
		return "perpetual"
	case InstrumentDelivery:
		return "delivery"
	case InstrumentOption:
		return "option"
	default:
		return "spot"
	}
}

// InstrumentType is a tagged variant describing the contract family.
// Settlement and Direction are meaningful only for Perpetual; Delivery adds a
// settlement date (unix seconds, comparable).
type InstrumentType struct {
	Kind       InstrumentKind
	Settlement Settlement
	Direction  PositionDirection
	Delivery   int64
}

// TypeSpot is the zero-value spot instrument type.
var TypeSpot = InstrumentType{Kind: InstrumentSpot, Settlement: SettlementLinear, Direction: DirectionEither, Delivery: 0}

// TypePerpetual builds a perpetual contract type.
func TypePerpetual(settlement Settlement, direction PositionDirection) InstrumentType {
	return InstrumentType{Kind: InstrumentPerpetual, Settlement: settlement, Direction: direction, Delivery: 0}
}

// TypeDelivery builds a dated futures contract type.
func TypeDelivery(settlement Settlement, date time.Time) InstrumentType {
	return InstrumentType{Kind: InstrumentDelivery, Settlement: settlement, Direction: DirectionEither, Delivery: date.Unix()}
}

// IsDerivative reports whether the type carries leverage-style positions.
func (t InstrumentType) IsDerivative() bool {
	return t.Kind == InstrumentPerpetual || t.Kind == InstrumentDelivery || t.Kind == InstrumentOption
}

func (t InstrumentType) String() string {
	switch t.Kind {
	case InstrumentPerpetual:
		return fmt.Sprintf("perpetual(%s,%s)", t.Settlement, t.Direction)
	case InstrumentDelivery:
		return fmt.Sprintf("delivery(%s,%d)", t.Settlement, t.Delivery)
	default:
		return t.Kind.String()
	}
}

// Category groups instruments for sync-style range selectors.
type Category uint8

const (
	// CategoryUnspecified marks a selector whose range is not authoritative.
	CategoryUnspecified Category = iota
	// CategoryAsset covers wallet balances (asset-addressed entries).
	CategoryAsset
	// CategorySpot covers spot and margin pairs.
	CategorySpot
	// CategoryFutures covers perpetual and delivery contracts.
	CategoryFutures
	// CategoryAll covers every entry on the exchange.
	CategoryAll
)

func (c Category) String() string {
	switch c {
	case CategoryAsset:
		return "asset"
	case CategorySpot:
		return "spot"
	case CategoryFutures:
		return "futures"
	case CategoryAll:
		return "all"
	default:
		return "unspecified"
	}
}

// CodeKind tags the InstrumentCode variant.
type CodeKind uint8

const (
	CodeNone CodeKind = iota
	// CodeExposure addresses synthetic exposure to an asset with no venue.
	CodeExposure
	// CodeAsset addresses a wallet balance of one asset, optionally on a venue.
	CodeAsset
	// CodeToken addresses an on-chain token by asset ticker.
	CodeToken
	// CodeSymbol addresses an instrument by its venue-native ticker.
	CodeSymbol
	// CodeSimple addresses an instrument by (exchange, base, quote, type).
	CodeSimple
	CodeCFD
	CodeDefiSwap
)

// InstrumentCode addresses one instrument. It is a comparable value type and
// is used directly as a map key throughout the accounting engine.
type InstrumentCode struct {
	Kind     CodeKind
	Exchange Exchange
	Symbol   Symbol
	Base     Asset
	Quote    Asset
	Type     InstrumentType
}

// NoCode is the unset instrument code.
var NoCode = InstrumentCode{}

// CodeForAsset addresses a wallet balance on a venue.
func CodeForAsset(exchange Exchange, asset Asset) InstrumentCode {
	return InstrumentCode{Kind: CodeAsset, Exchange: exchange, Base: asset}
}

// CodeForExposure addresses venue-less exposure to an asset.
func CodeForExposure(asset Asset) InstrumentCode {
	return InstrumentCode{Kind: CodeExposure, Base: asset}
}

// CodeForSymbol addresses an instrument by its venue ticker.
func CodeForSymbol(exchange Exchange, symbol Symbol) InstrumentCode {
	return InstrumentCode{Kind: CodeSymbol, Exchange: exchange, Symbol: symbol}
}

// CodeForSimple addresses an instrument structurally.
func CodeForSimple(exchange Exchange, base, quote Asset, typ InstrumentType) InstrumentCode {
	return InstrumentCode{Kind: CodeSimple, Exchange: exchange, Base: base, Quote: quote, Type: typ}
}

// IsNone reports whether the code is unset.
func (c InstrumentCode) IsNone() bool { return c.Kind == CodeNone }

// HasExchange reports whether the code is bound to a venue.
func (c InstrumentCode) HasExchange() bool { return !c.Exchange.IsNull() }

// BaseAsset returns the asset the code exposes, if any.
func (c InstrumentCode) BaseAsset() Asset { return c.Base }

// Category classifies the code for range selectors.
func (c InstrumentCode) Category() Category {
	switch c.Kind {
	case CodeAsset, CodeExposure, CodeToken:
		return CategoryAsset
	case CodeSimple:
		if c.Type.IsDerivative() {
			return CategoryFutures
		}
		return CategorySpot
	case CodeSymbol:
		return CategorySpot
	default:
		return CategoryUnspecified
	}
}

func (c InstrumentCode) String() string {
	switch c.Kind {
	case CodeNone:
		return "none"
	case CodeExposure:
		return fmt.Sprintf("exposure:%s", c.Base)
	case CodeAsset:
		if c.HasExchange() {
			return fmt.Sprintf("asset:%s:%s", c.Exchange, c.Base)
		}
		return fmt.Sprintf("asset:%s", c.Base)
	case CodeToken:
		return fmt.Sprintf("token:%s", c.Base)
	case CodeSymbol:
		return fmt.Sprintf("%s:%s", c.Exchange, c.Symbol)
	case CodeSimple:
		return fmt.Sprintf("%s:%s-%s:%s", c.Exchange, c.Base, c.Quote, c.Type)
	case CodeCFD:
		return fmt.Sprintf("cfd:%s", c.Base)
	case CodeDefiSwap:
		return fmt.Sprintf("defiswap:%s-%s", c.Base, c.Quote)
	default:
		return "none"
	}
}
