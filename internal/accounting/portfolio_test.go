package accounting

import (
	"fmt"
	"testing"

	"github.com/straddle-io/straddle/internal/schema"
)

func TestFillDeltaFoldsIntoPosition(t *testing.T) {
	p := NewPortfolio("acct")
	code := schema.CodeForSymbol(schema.ExchangeBinanceFutures, "BTCUSDT")
	p.InsertOrder(schema.NewOrder("L1", "C1", code, "acct", schema.SideBuy, 0.01, 20000))

	p.Apply(&schema.ExecutionResponse{
		Kind: schema.RespUpdateOrder, Account: "acct",
		Order: &schema.UpdateOrder{Lid: "L1", Sid: "S1", Status: schema.StatusReceived},
	})
	p.Apply(&schema.ExecutionResponse{
		Kind: schema.RespUpdateOrder, Account: "acct",
		Order: &schema.UpdateOrder{
			Lid: "L1", Status: schema.StatusFilled,
			FilledSize: 0.01, LastFilledPrice: 20000,
		},
	})

	pos, ok := p.Position(code)
	if !ok {
		t.Fatal("fill must create the position")
	}
	if pos.EffectiveTotal() != 0.01 {
		t.Fatalf("position total: got %v want 0.01", pos.EffectiveTotal())
	}
	o, _ := p.Order("L1")
	if o.Status != schema.StatusFilled {
		t.Fatalf("order status: got %s", o.Status)
	}
}

func TestDuplicateFillDoesNotDoubleCount(t *testing.T) {
	p := NewPortfolio("acct")
	code := schema.CodeForSymbol(schema.ExchangeBinanceFutures, "BTCUSDT")
	p.InsertOrder(schema.NewOrder("L1", "C1", code, "acct", schema.SideBuy, 0.01, 20000))
	fill := schema.UpdateOrder{Lid: "L1", Status: schema.StatusFilled, FilledSize: 0.01}
	p.ApplyUpdateOrder(&fill)
	dup := fill
	p.ApplyUpdateOrder(&dup)
	if got := p.SignedPosition(code); got != 0.01 {
		t.Fatalf("replayed fill must not double count: got %v", got)
	}
}

func TestPositionSyncWithCategoryQuoteSelector(t *testing.T) {
	p := NewPortfolio("acct")
	btcSpot := schema.CodeForSimple(schema.ExchangeBybit, "BTC", "USDT", schema.TypeSpot)
	ethPerp := schema.CodeForSimple(schema.ExchangeBybit, "ETH", "USDT",
		schema.TypePerpetual(schema.SettlementLinear, schema.DirectionEither))
	set1 := schema.SetPosition(btcSpot, 1, 1, 0)
	set2 := schema.SetPosition(ethPerp, 2, 2, 0)
	p.ApplyUpdatePosition(&set1)
	p.ApplyUpdatePosition(&set2)

	p.ApplyUpdatePositions(&schema.UpdatePositions{
		Account: "acct",
		Range:   schema.SelectCategoryQuote(schema.ExchangeBybit, schema.CategoryFutures, "USDT"),
	})

	if pos, ok := p.Position(btcSpot); !ok || pos.EffectiveTotal() != 1 {
		t.Fatalf("spot position must be untouched by the futures sync: %+v ok=%v", pos, ok)
	}
	if _, ok := p.Position(ethPerp); ok {
		t.Fatal("unrefreshed futures position must be removed by the sync")
	}
}

func TestNonAuthoritativeRangeNeverCulls(t *testing.T) {
	p := NewPortfolio("acct")
	code := schema.CodeForSimple(schema.ExchangeBybit, "ETH", "USDT",
		schema.TypePerpetual(schema.SettlementLinear, schema.DirectionEither))
	set := schema.SetPosition(code, 2, 2, 0)
	p.ApplyUpdatePosition(&set)

	p.ApplyUpdatePositions(&schema.UpdatePositions{
		Account: "acct",
		Range:   schema.InstrumentSelector{Kind: schema.SelectorCategory, Exchange: schema.ExchangeBybit},
	})
	if _, ok := p.Position(code); !ok {
		t.Fatal("category selector without a category must not cull positions")
	}
}

func TestUpdatePositionSetThenAdd(t *testing.T) {
	p := NewPortfolio("acct")
	code := schema.CodeForAsset(schema.ExchangeBybit, "USDT")
	u := schema.UpdatePosition{
		Instrument: code,
		SetValues:  &schema.PositionValues{Total: 100, Available: 90, Locked: 10},
		AddValues:  &schema.PositionValues{Total: 5, Available: 5},
		EntryPrice: 1,
	}
	p.ApplyUpdatePosition(&u)
	pos, _ := p.Position(code)
	if pos.Total != 105 || pos.Available != 95 || pos.Locked != 10 {
		t.Fatalf("set-then-add order violated: %+v", pos)
	}
}

func TestGroupResponseAppliesInOrder(t *testing.T) {
	m := NewPortfolioMulti()
	code := schema.CodeForSymbol(schema.ExchangeBybit, "ETHUSDT")
	group := schema.GroupResponse(
		schema.OrderUpdateResponse("acct", schema.UpdateOrder{
			Lid: "L1", Instrument: code, Side: schema.SideBuy,
			Status: schema.StatusOpen, Size: 1, Price: 2000,
		}),
		schema.OrderUpdateResponse("acct", schema.UpdateOrder{
			Lid: "L1", Status: schema.StatusFilled, FilledSize: 1,
		}),
	)
	group.Account = "acct"
	m.Apply(&group)

	p := m.Resolve("acct")
	o, ok := p.Order("L1")
	if !ok || o.Status != schema.StatusFilled {
		t.Fatalf("group application: %+v ok=%v", o, ok)
	}
	if got := p.SignedPosition(code); got != 1 {
		t.Fatalf("fill inside group must reach the position: got %v", got)
	}
}

func TestRecentOrderUpdatesBounded(t *testing.T) {
	p := NewPortfolio("acct")
	code := schema.CodeForSymbol(schema.ExchangeBybit, "ETHUSDT")
	for i := 0; i < orderUpdateHistory+10; i++ {
		u := schema.UpdateOrder{
			Lid:        schema.OrderLid(fmt.Sprintf("L%04d", i)),
			Instrument: code,
			Status:     schema.StatusOpen,
			Size:       1,
		}
		p.ApplyUpdateOrder(&u)
	}
	if got := len(p.RecentOrderUpdates()); got > orderUpdateHistory {
		t.Fatalf("update history must stay bounded: got %d", got)
	}
}
