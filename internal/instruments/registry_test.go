package instruments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/straddle-io/straddle/internal/schema"
)

func btcPerpDetails() *Details {
	return &Details{
		Code: schema.CodeForSimple(schema.ExchangeBinanceFutures, "BTC", "USDT",
			schema.TypePerpetual(schema.SettlementLinear, schema.DirectionEither)),
		Symbol: "BTCUSDT",
		Base:   AssetInfo{Asset: "BTC", Precision: 8},
		Quote:  AssetInfo{Asset: "USDT", Precision: 2},
		Lot: SizedLimit{
			Min:  decimal.RequireFromString("0.001"),
			Max:  decimal.RequireFromString("1000"),
			Step: decimal.RequireFromString("0.001"),
		},
		Tick:   SizedLimit{Step: decimal.RequireFromString("0.1")},
		Status: StatusTrading,
	}
}

func TestRoundSizeFloorsOntoLotGrid(t *testing.T) {
	d := btcPerpDetails()
	cases := []struct {
		in   float64
		want float64
	}{
		{0.0019, 0.001},
		{0.001, 0.001},
		{0.12349, 0.123},
		{1.0, 1.0},
	}
	for _, tc := range cases {
		if got := d.RoundSize(tc.in); got != tc.want {
			t.Errorf("RoundSize(%v)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestRoundPriceSnapsToTick(t *testing.T) {
	d := btcPerpDetails()
	if got := d.RoundPrice(20000.16); got != 20000.2 {
		t.Fatalf("RoundPrice: got %v", got)
	}
	if got := d.RoundPrice(20000.14); got != 20000.1 {
		t.Fatalf("RoundPrice: got %v", got)
	}
}

func TestValidSizeBounds(t *testing.T) {
	d := btcPerpDetails()
	if d.ValidSize(0.0001) {
		t.Fatal("below-min size must be invalid")
	}
	if !d.ValidSize(0.5) {
		t.Fatal("in-range size must be valid")
	}
	if d.ValidSize(2000) {
		t.Fatal("above-max size must be invalid")
	}
}

func TestRegistryLoadAndSelect(t *testing.T) {
	r := NewRegistry()
	d := btcPerpDetails()
	err := r.Load(context.Background(), StaticLoader{
		Venue:   schema.ExchangeBinanceFutures,
		Details: []*Details{d},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, ok := r.ByCode(d.Code); !ok || got != d {
		t.Fatal("details must be shared by reference")
	}
	if _, ok := r.BySymbol(schema.ExchangeBinanceFutures, "BTCUSDT"); !ok {
		t.Fatal("symbol index must resolve")
	}
	matches := r.Select(schema.SelectCategory(schema.ExchangeBinanceFutures, schema.CategoryFutures))
	if len(matches) != 1 {
		t.Fatalf("selector match: got %d", len(matches))
	}
}
