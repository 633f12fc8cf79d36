package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/straddle-io/straddle/config"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
)

var btcPerp = schema.CodeForSimple(schema.ExchangeMock, "BTC", "USDT",
	schema.TypePerpetual(schema.SettlementLinear, schema.DirectionEither))

func place(lid string, side schema.Side, size, price float64) schema.ExecutionRequest {
	return schema.PlaceOrderRequest(schema.RequestPlaceOrder{
		Lid:        schema.OrderLid(lid),
		Cid:        schema.OrderCid("c-" + lid),
		Instrument: btcPerp,
		Account:    "acct",
		Side:       side,
		Type:       schema.OrderTypeLimit,
		Price:      price,
		Size:       size,
	})
}

func drainOrders(t *testing.T, e *Execution, n int) []schema.UpdateOrder {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var out []schema.UpdateOrder
	for len(out) < n {
		resp, err := e.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if resp.Kind == schema.RespUpdateOrder {
			out = append(out, *resp.Order)
		}
	}
	return out
}

func TestExecutionPlaceWalksAckThenFill(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	ctx := context.Background()

	if err := e.Request(ctx, place("L1", schema.SideBuy, 0.01, 20000)); err != nil {
		t.Fatal(err)
	}
	updates := drainOrders(t, e, 2)
	if updates[0].Status != schema.StatusReceived || updates[0].Sid == "" {
		t.Fatalf("first update must be received with sid: %+v", updates[0])
	}
	if updates[1].Status != schema.StatusFilled || updates[1].FilledSize != 0.01 {
		t.Fatalf("second update must be full fill: %+v", updates[1])
	}
	if updates[1].LastFilledPrice != 20000 {
		t.Fatalf("fill price defaults to order price: %v", updates[1].LastFilledPrice)
	}
}

func TestExecutionScriptedPartialFills(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	e.SetScript(btcPerp, Script{Fills: []FillStep{
		{Size: 0.004, Price: 19999},
		{Size: 0.006, Price: 20001},
	}})
	if err := e.Request(context.Background(), place("L1", schema.SideBuy, 0.01, 20000)); err != nil {
		t.Fatal(err)
	}
	updates := drainOrders(t, e, 3)
	if updates[1].Status != schema.StatusPartiallyFilled || updates[1].FilledSize != 0.004 {
		t.Fatalf("partial fill: %+v", updates[1])
	}
	if updates[2].Status != schema.StatusFilled || updates[2].FilledSize != 0.01 {
		t.Fatalf("final fill: %+v", updates[2])
	}
}

func TestExecutionRejectScript(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	e.SetScript(btcPerp, Script{Reject: true, RejectReason: "margin"})
	if err := e.Request(context.Background(), place("L1", schema.SideBuy, 0.01, 20000)); err != nil {
		t.Fatal(err)
	}
	updates := drainOrders(t, e, 1)
	if updates[0].Status != schema.StatusRejected || updates[0].Reason != "margin" {
		t.Fatalf("reject update: %+v", updates[0])
	}
}

func TestExecutionRejectsZeroPriceOrSize(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	if err := e.Request(context.Background(), place("L1", schema.SideBuy, 0, 20000)); err == nil {
		t.Fatal("zero size must fail")
	}
	if err := e.Request(context.Background(), place("L2", schema.SideBuy, 0.01, 0)); err == nil {
		t.Fatal("zero price must fail")
	}
}

func TestExecutionDuplicateLidFails(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	ctx := context.Background()
	if err := e.Request(ctx, place("L1", schema.SideBuy, 0.01, 20000)); err != nil {
		t.Fatal(err)
	}
	if err := e.Request(ctx, place("L1", schema.SideBuy, 0.01, 20000)); err == nil {
		t.Fatal("duplicate lid must fail")
	}
}

func TestExecutionCancelHeldOrder(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	e.SetScript(btcPerp, Script{HoldOpen: true})
	ctx := context.Background()
	if err := e.Request(ctx, place("L1", schema.SideBuy, 0.01, 20000)); err != nil {
		t.Fatal(err)
	}
	drainOrders(t, e, 2) // received, open
	if err := e.Request(ctx, schema.CancelOrderRequest(schema.RequestCancelOrder{
		Lid: "L1", Instrument: btcPerp,
	})); err != nil {
		t.Fatal(err)
	}
	updates := drainOrders(t, e, 1)
	if updates[0].Status != schema.StatusCancelled {
		t.Fatalf("cancel update: %+v", updates[0])
	}

	// Unknown order cancels fail.
	err := e.Request(ctx, schema.CancelOrderRequest(schema.RequestCancelOrder{
		Lid: "missing", Instrument: btcPerp,
	}))
	if err == nil {
		t.Fatal("cancel of unknown order must fail")
	}
}

func TestExecutionSyncOrdersEnumeratesLive(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	e.SetScript(btcPerp, Script{HoldOpen: true})
	ctx := context.Background()
	if err := e.Request(ctx, place("L1", schema.SideBuy, 0.01, 20000)); err != nil {
		t.Fatal(err)
	}
	drainOrders(t, e, 2)
	if err := e.Request(ctx, schema.SyncOrdersRequest(schema.SelectExchange(schema.ExchangeMock))); err != nil {
		t.Fatal(err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	for {
		resp, err := e.Next(waitCtx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if resp.Kind != schema.RespSyncOrders {
			continue
		}
		if !resp.Sync.Full || len(resp.Sync.Orders) != 1 || resp.Sync.Orders[0].Lid != "L1" {
			t.Fatalf("sync payload: %+v", resp.Sync)
		}
		return
	}
}

func TestExecutionPositionsFollowFills(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	ctx := context.Background()
	if err := e.Request(ctx, place("L1", schema.SideBuy, 0.01, 20000)); err != nil {
		t.Fatal(err)
	}
	drainOrders(t, e, 2)
	if err := e.Request(ctx, schema.ExecutionRequest{
		Kind: schema.ReqGetPositions, Range: schema.SelectExchange(schema.ExchangeMock),
	}); err != nil {
		t.Fatal(err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	for {
		resp, err := e.Next(waitCtx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if resp.Kind != schema.RespUpdatePositions {
			continue
		}
		got := resp.Positions.Positions
		if len(got) != 1 || got[0].SetValues == nil || got[0].SetValues.Total != 0.01 {
			t.Fatalf("positions: %+v", got)
		}
		return
	}
}

func TestExecutionCloseYieldsErrClosed(t *testing.T) {
	e := NewExecution(schema.ExchangeMock, "acct")
	e.Close()
	_, err := e.Next(context.Background())
	if !errors.Is(err, service.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestBuildersAssembleSelect(t *testing.T) {
	venues := []config.VenueConfig{
		{Exchange: "mock", Account: "acct-a"},
		{Exchange: "mock", Account: "acct-b"},
	}

	feeds := service.NewBuilderManager[config.VenueConfig, schema.MarketFeedRequest, schema.MarketEvent]()
	feeds.Register(FeedBuilder{})
	feedSel, err := feeds.BuildSelect(venues)
	if err != nil {
		t.Fatalf("build feeds: %v", err)
	}
	defer feedSel.Close()
	if feedSel.Size() != 2 {
		t.Fatalf("feed children: %d", feedSel.Size())
	}

	execs := service.NewBuilderManager[config.VenueConfig, schema.ExecutionRequest, schema.ExecutionResponse]()
	execs.Register(ExecBuilder{})
	execSel, err := execs.BuildSelect(venues)
	if err != nil {
		t.Fatalf("build executions: %v", err)
	}
	defer execSel.Close()
	if execSel.Size() != 2 {
		t.Fatalf("execution children: %d", execSel.Size())
	}

	if _, err := execs.BuildSelect([]config.VenueConfig{{Exchange: "binance_futures"}}); err == nil {
		t.Fatal("unserved venue must fail the build")
	}
}

func TestFeedAcceptAndPush(t *testing.T) {
	f := NewFeed(schema.ExchangeMock)
	if !f.Accept(schema.MarketFeedRequest{Exchange: schema.ExchangeMock}) {
		t.Fatal("must accept own venue")
	}
	if f.Accept(schema.MarketFeedRequest{Exchange: schema.ExchangeBinanceFutures}) {
		t.Fatal("must reject other venues")
	}

	if err := f.Request(context.Background(), schema.MarketFeedRequest{
		Exchange: schema.ExchangeMock,
		Topic:    schema.TopicDepth,
		Symbols:  []schema.Symbol{"BTCUSDT"},
	}); err != nil {
		t.Fatal(err)
	}
	if !f.Subscribed(schema.TopicDepth, "BTCUSDT") {
		t.Fatal("subscription must be recorded")
	}

	f.PushQuotes(btcPerp, 19999, 1, 20001, 1)
	ev, err := f.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != schema.EvQuotes || len(ev.Quotes.Quotes) != 2 {
		t.Fatalf("event: %+v", ev)
	}
}
