package schema

import "testing"

func TestSelectorMatchInstrument(t *testing.T) {
	btcPerp := CodeForSimple(ExchangeBybit, "BTC", "USDT", TypePerpetual(SettlementLinear, DirectionEither))
	ethSpot := CodeForSimple(ExchangeBybit, "ETH", "USDT", TypeSpot)
	binSym := CodeForSymbol(ExchangeBinanceFutures, "BTCUSDT")
	walletBTC := CodeForAsset(ExchangeBybit, "BTC")

	cases := []struct {
		name string
		sel  InstrumentSelector
		code InstrumentCode
		want bool
	}{
		{"all matches anything", SelectAll(), btcPerp, true},
		{"none matches nothing", SelectNone(), btcPerp, false},
		{"exchange match", SelectExchange(ExchangeBybit), btcPerp, true},
		{"exchange mismatch", SelectExchange(ExchangeBybit), binSym, false},
		{"exchanges any", SelectExchanges(ExchangeBitget, ExchangeBinanceFutures), binSym, true},
		{"symbol match", SelectSymbol(ExchangeBinanceFutures, "BTCUSDT"), binSym, true},
		{"symbol wrong venue", SelectSymbol(ExchangeBybit, "BTCUSDT"), binSym, false},
		{"category futures hits perp", SelectCategory(ExchangeBybit, CategoryFutures), btcPerp, true},
		{"category futures skips spot", SelectCategory(ExchangeBybit, CategoryFutures), ethSpot, false},
		{"category asset hits wallet", SelectCategory(ExchangeBybit, CategoryAsset), walletBTC, true},
		{"category all hits wallet", SelectCategory(ExchangeBybit, CategoryAll), walletBTC, true},
		{"category quote narrows", SelectCategoryQuote(ExchangeBybit, CategoryFutures, "USDT"), btcPerp, true},
		{"category quote wrong quote", SelectCategoryQuote(ExchangeBybit, CategoryFutures, "USDC"), btcPerp, false},
		{"instrument exact", SelectInstrument(ExchangeBybit, btcPerp), btcPerp, true},
		{"instrument other", SelectInstrument(ExchangeBybit, btcPerp), ethSpot, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sel.MatchInstrument(tc.code); got != tc.want {
				t.Fatalf("%s.MatchInstrument(%s)=%v want %v", tc.sel, tc.code, got, tc.want)
			}
		})
	}
}

func TestSelectorShouldSync(t *testing.T) {
	if SelectNone().ShouldSync() {
		t.Error("none selector must not be authoritative")
	}
	if (InstrumentSelector{Kind: SelectorCategory, Exchange: ExchangeBybit}).ShouldSync() {
		t.Error("category selector without a category must not be authoritative")
	}
	if !SelectCategory(ExchangeBybit, CategoryFutures).ShouldSync() {
		t.Error("category futures selector must be authoritative")
	}
	if !SelectExchange(ExchangeBybit).ShouldSync() {
		t.Error("exchange selector must be authoritative")
	}
}

func TestExecutionRequestTargetExchange(t *testing.T) {
	req := PlaceOrderRequest(RequestPlaceOrder{
		Lid:        "L1",
		Instrument: CodeForSymbol(ExchangeBinanceFutures, "BTCUSDT"),
	})
	ex, ok := req.TargetExchange()
	if !ok || ex != ExchangeBinanceFutures {
		t.Fatalf("place target: got %s ok=%v", ex, ok)
	}
	sync := SyncOrdersRequest(SelectExchange(ExchangeBybit))
	ex, ok = sync.TargetExchange()
	if !ok || ex != ExchangeBybit {
		t.Fatalf("sync target: got %s ok=%v", ex, ok)
	}
}

func TestMarketEventWireRoundtrip(t *testing.T) {
	ev := BookTickerEvent(ExchangeBybit, BookTicker{
		Instrument: CodeForSymbol(ExchangeBybit, "BTCUSDT"),
		BidPrice:   100.0, BidSize: 2, AskPrice: 100.1, AskSize: 3,
	})
	raw, err := EncodeMarketEvent(ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeMarketEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Kind != EvBookTicker || back.BookTicker == nil {
		t.Fatalf("kind lost: %+v", back)
	}
	if back.BookTicker.BidPrice != 100.0 || back.BookTicker.AskPrice != 100.1 {
		t.Fatalf("payload lost: %+v", back.BookTicker)
	}
}
