package book

import (
	"testing"

	"github.com/straddle-io/straddle/internal/schema"
)

func testCode() schema.InstrumentCode {
	return schema.CodeForSymbol(schema.ExchangeBybit, "BTCUSDT")
}

func TestUpdateByPriceKeepsSidesSorted(t *testing.T) {
	b := NewL2OrderBook(testCode(), 5)
	for _, q := range []schema.Quote{
		schema.QuoteByPrice(schema.IntentBid, 100, 1),
		schema.QuoteByPrice(schema.IntentBid, 102, 1),
		schema.QuoteByPrice(schema.IntentBid, 101, 1),
		schema.QuoteByPrice(schema.IntentAsk, 105, 1),
		schema.QuoteByPrice(schema.IntentAsk, 103, 1),
		schema.QuoteByPrice(schema.IntentAsk, 104, 1),
	} {
		b.ApplyQuote(q)
	}
	bids := b.Bids()
	if len(bids) != 3 || bids[0].Price != 102 || bids[1].Price != 101 || bids[2].Price != 100 {
		t.Fatalf("bids not descending: %+v", bids)
	}
	asks := b.Asks()
	if len(asks) != 3 || asks[0].Price != 103 || asks[1].Price != 104 || asks[2].Price != 105 {
		t.Fatalf("asks not ascending: %+v", asks)
	}
	best, ok := b.BestBid()
	if !ok || best.Price != 102 {
		t.Fatalf("best bid: %+v ok=%v", best, ok)
	}
}

func TestUpdateByPriceZeroSizeDeletes(t *testing.T) {
	b := NewL2OrderBook(testCode(), 5)
	b.ApplyQuote(schema.QuoteByPrice(schema.IntentBid, 100, 1))
	b.ApplyQuote(schema.QuoteByPrice(schema.IntentBid, 100, 0))
	if _, ok := b.BestBid(); ok {
		t.Fatal("zero-size update must delete the level")
	}
}

func TestUpdateByPriceDepthCap(t *testing.T) {
	b := NewL2OrderBook(testCode(), 3)
	for i := 0; i < 5; i++ {
		b.ApplyQuote(schema.QuoteByPrice(schema.IntentBid, 100-float64(i), 1))
	}
	if got := len(b.Bids()); got != 3 {
		t.Fatalf("depth cap: got %d levels", got)
	}
	// A better price still displaces the worst level.
	b.ApplyQuote(schema.QuoteByPrice(schema.IntentBid, 101, 1))
	bids := b.Bids()
	if len(bids) != 3 || bids[0].Price != 101 {
		t.Fatalf("insert at top under cap: %+v", bids)
	}
}

func TestUpdateByLevelPadsGaps(t *testing.T) {
	b := NewL2OrderBook(testCode(), 10)
	b.ApplyQuote(schema.QuoteByLevel(schema.IntentAsk, 3, 105, 2))
	asks := b.Asks()
	if len(asks) != 3 {
		t.Fatalf("level padding: got %d levels", len(asks))
	}
	if asks[2].Price != 105 || asks[2].Size != 2 {
		t.Fatalf("level 3 not set: %+v", asks)
	}
	// Padded empty levels are skipped by best-ask.
	best, ok := b.BestAsk()
	if !ok || best.Price != 105 {
		t.Fatalf("best ask must skip padded levels: %+v ok=%v", best, ok)
	}
	b.ApplyQuote(schema.QuoteByLevel(schema.IntentAsk, 3, 0, 0))
	if got := len(b.Asks()); got != 2 {
		t.Fatalf("zero-size level delete: got %d levels", got)
	}
}

func TestDeleteSideClearsOnlyThatSide(t *testing.T) {
	b := NewL2OrderBook(testCode(), 5)
	b.ApplyQuote(schema.QuoteByPrice(schema.IntentBid, 100, 1))
	b.ApplyQuote(schema.QuoteByPrice(schema.IntentBid, 99, 1))
	b.ApplyQuote(schema.QuoteByPrice(schema.IntentAsk, 101, 1))
	b.Apply(schema.Quotes{
		Instrument: testCode(),
		Quotes:     []schema.Quote{schema.QuoteDeleteSide(schema.IntentBid)},
	})
	if got := len(b.Bids()); got != 0 {
		t.Fatalf("bids must be empty after DeleteSide, got %d", got)
	}
	if got := len(b.Asks()); got != 1 {
		t.Fatalf("asks must be unchanged after bid DeleteSide, got %d", got)
	}
}

func TestDeleteFirstAndLastN(t *testing.T) {
	b := NewL2OrderBook(testCode(), 10)
	for i := 0; i < 5; i++ {
		b.ApplyQuote(schema.QuoteByPrice(schema.IntentBid, 100-float64(i), 1))
	}
	b.ApplyQuote(schema.Quote{Intent: schema.IntentBid, Number: 2, Operation: schema.OpDeleteFirstN})
	bids := b.Bids()
	if len(bids) != 3 || bids[0].Price != 98 {
		t.Fatalf("delete first 2: %+v", bids)
	}
	b.ApplyQuote(schema.Quote{Intent: schema.IntentBid, Number: 2, Operation: schema.OpDeleteLastN})
	bids = b.Bids()
	if len(bids) != 1 || bids[0].Price != 98 {
		t.Fatalf("delete last 2: %+v", bids)
	}
}
