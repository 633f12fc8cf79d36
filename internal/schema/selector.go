package schema

import "fmt"

// SelectorKind tags the InstrumentSelector variant.
type SelectorKind uint8

const (
	SelectorNone SelectorKind = iota
	SelectorAll
	SelectorExchange
	SelectorExchanges
	SelectorSymbol
	SelectorSimple
	SelectorCode
	SelectorInstrument
	SelectorCategory
	SelectorCategoryQuote
	SelectorIndex
	SelectorCategoryIndex
)

// InstrumentSelector is a range matcher over instrument codes. Sync-style
// updates use it to decide which cached entries they are authoritative over.
type InstrumentSelector struct {
	Kind      SelectorKind
	Exchange  Exchange
	Exchanges []Exchange
	Symbol    Symbol
	Base      Asset
	Quote     Asset
	Type      InstrumentType
	Category  Category
	Code      InstrumentCode
}

// SelectAll matches every instrument.
func SelectAll() InstrumentSelector { return InstrumentSelector{Kind: SelectorAll} }

// SelectNone matches nothing.
func SelectNone() InstrumentSelector { return InstrumentSelector{Kind: SelectorNone} }

// SelectExchange matches every instrument on one venue.
func SelectExchange(e Exchange) InstrumentSelector {
	return InstrumentSelector{Kind: SelectorExchange, Exchange: e}
}

// SelectExchanges matches every instrument on any of the venues.
func SelectExchanges(es ...Exchange) InstrumentSelector {
	return InstrumentSelector{Kind: SelectorExchanges, Exchanges: es}
}

// SelectSymbol matches one venue ticker.
func SelectSymbol(e Exchange, s Symbol) InstrumentSelector {
	return InstrumentSelector{Kind: SelectorSymbol, Exchange: e, Symbol: s}
}

// SelectInstrument matches exactly one instrument code.
func SelectInstrument(e Exchange, code InstrumentCode) InstrumentSelector {
	return InstrumentSelector{Kind: SelectorInstrument, Exchange: e, Code: code}
}

// SelectCategory matches every instrument of a category on one venue.
func SelectCategory(e Exchange, cat Category) InstrumentSelector {
	return InstrumentSelector{Kind: SelectorCategory, Exchange: e, Category: cat}
}

// SelectCategoryQuote narrows SelectCategory to one quote asset.
func SelectCategoryQuote(e Exchange, cat Category, quote Asset) InstrumentSelector {
	return InstrumentSelector{Kind: SelectorCategoryQuote, Exchange: e, Category: cat, Quote: quote}
}

// GetExchange returns the single venue the selector is scoped to, if any.
func (s InstrumentSelector) GetExchange() (Exchange, bool) {
	switch s.Kind {
	case SelectorExchange, SelectorSymbol, SelectorSimple, SelectorInstrument,
		SelectorCategory, SelectorCategoryQuote, SelectorCategoryIndex:
		return s.Exchange, !s.Exchange.IsNull()
	case SelectorCode:
		return s.Code.Exchange, s.Code.HasExchange()
	default:
		return ExchangeNull, false
	}
}

// ShouldSync reports whether the selector describes an authoritative range.
// A sync over a non-authoritative range must not cull un-refreshed entries.
func (s InstrumentSelector) ShouldSync() bool {
	switch s.Kind {
	case SelectorNone:
		return false
	case SelectorCategory, SelectorCategoryQuote:
		return s.Category != CategoryUnspecified
	default:
		return true
	}
}

// MatchInstrument reports whether the code falls inside the selector's range.
func (s InstrumentSelector) MatchInstrument(c InstrumentCode) bool {
	switch s.Kind {
	case SelectorAll:
		return true
	case SelectorNone:
		return false
	case SelectorExchange:
		return c.Exchange == s.Exchange && c.HasExchange()
	case SelectorExchanges:
		if !c.HasExchange() {
			return false
		}
		for _, e := range s.Exchanges {
			if c.Exchange == e {
				return true
			}
		}
		return false
	case SelectorSymbol:
		return c.Kind == CodeSymbol && c.Exchange == s.Exchange && c.Symbol == s.Symbol
	case SelectorSimple:
		return c.Kind == CodeSimple && c.Exchange == s.Exchange &&
			c.Base == s.Base && c.Quote == s.Quote && c.Type == s.Type
	case SelectorCode:
		return c == s.Code
	case SelectorInstrument:
		return c.Exchange == s.Exchange && c == s.Code
	case SelectorCategory:
		return s.matchCategory(c)
	case SelectorCategoryQuote:
		return s.matchCategory(c) && c.Quote == s.Quote
	case SelectorIndex, SelectorCategoryIndex:
		// Index selectors address derived price feeds, never concrete instruments.
		return false
	default:
		return false
	}
}

func (s InstrumentSelector) matchCategory(c InstrumentCode) bool {
	if c.Exchange != s.Exchange || !c.HasExchange() {
		return false
	}
	switch s.Category {
	case CategoryAll:
		return true
	case CategoryUnspecified:
		return false
	default:
		return c.Category() == s.Category
	}
}

func (s InstrumentSelector) String() string {
	switch s.Kind {
	case SelectorAll:
		return "all"
	case SelectorNone:
		return "none"
	case SelectorExchange:
		return fmt.Sprintf("exchange(%s)", s.Exchange)
	case SelectorExchanges:
		return fmt.Sprintf("exchanges(%v)", s.Exchanges)
	case SelectorSymbol:
		return fmt.Sprintf("symbol(%s,%s)", s.Exchange, s.Symbol)
	case SelectorSimple:
		return fmt.Sprintf("simple(%s,%s,%s,%s)", s.Exchange, s.Base, s.Quote, s.Type)
	case SelectorCode:
		return fmt.Sprintf("code(%s)", s.Code)
	case SelectorInstrument:
		return fmt.Sprintf("instrument(%s,%s)", s.Exchange, s.Code)
	case SelectorCategory:
		return fmt.Sprintf("category(%s,%s)", s.Exchange, s.Category)
	case SelectorCategoryQuote:
		return fmt.Sprintf("category_quote(%s,%s,%s)", s.Exchange, s.Category, s.Quote)
	case SelectorIndex:
		return "index"
	case SelectorCategoryIndex:
		return fmt.Sprintf("category_index(%s)", s.Exchange)
	default:
		return "none"
	}
}
