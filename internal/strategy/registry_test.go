package strategy

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/straddle-io/straddle/internal/schema"
)

var testInstrument = schema.CodeForSimple(schema.ExchangeMock, "BTC", "USDT",
	schema.TypePerpetual(schema.SettlementLinear, schema.DirectionEither))

func noopPlacer(context.Context, schema.ExecutionRequest) error { return nil }

func placeReq(lid string) schema.RequestPlaceOrder {
	return schema.RequestPlaceOrder{
		Lid:        schema.OrderLid(lid),
		Instrument: testInstrument,
		Account:    "acct",
		Side:       schema.SideBuy,
		Price:      20000,
		Size:       0.01,
	}
}

func TestRegistrySendAndRoute(t *testing.T) {
	r := NewRegistry(noopPlacer)
	a, err := r.Send(context.Background(), placeReq("L1"))
	if err != nil {
		t.Fatal(err)
	}
	if !r.Route(schema.UpdateOrder{Lid: "L1", Status: schema.StatusReceived, UpdateLt: time.Now()}) {
		t.Fatal("known order must route")
	}
	u := <-a.Updates()
	if u.Status != schema.StatusReceived {
		t.Fatalf("update: %+v", u)
	}
}

func TestRegistryDuplicateLidFails(t *testing.T) {
	r := NewRegistry(noopPlacer)
	if _, err := r.Send(context.Background(), placeReq("L1")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Send(context.Background(), placeReq("L1")); err == nil {
		t.Fatal("duplicate lid must fail without placing")
	}
}

func TestRegistryPlacerFailureUnregisters(t *testing.T) {
	boom := func(context.Context, schema.ExecutionRequest) error {
		return context.DeadlineExceeded
	}
	r := NewRegistry(boom)
	if _, err := r.Send(context.Background(), placeReq("L1")); err == nil {
		t.Fatal("placer failure must surface")
	}
	if r.Live() != 0 {
		t.Fatal("failed placement must not stay registered")
	}
	// The lid is free for reuse.
	r2 := NewRegistry(noopPlacer)
	_ = r2
}

func TestRegistryDeadStatusRetiresStream(t *testing.T) {
	r := NewRegistry(noopPlacer)
	a, err := r.Send(context.Background(), placeReq("L1"))
	if err != nil {
		t.Fatal(err)
	}
	r.Route(schema.UpdateOrder{Lid: "L1", Status: schema.StatusFilled, FilledSize: 0.01, UpdateLt: time.Now()})

	final, err := a.Await(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != schema.StatusFilled {
		t.Fatalf("final: %+v", final)
	}
	if r.Live() != 0 {
		t.Fatal("dead order must leave the live set")
	}
	if _, ok := r.Completed("L1"); !ok {
		t.Fatal("dead order must enter the completed cache")
	}
	// A late duplicate still routes into the cache.
	if !r.Route(schema.UpdateOrder{Lid: "L1", Status: schema.StatusFilled, FilledSize: 0.01}) {
		t.Fatal("late update for completed order must be absorbed")
	}
	if r.Route(schema.UpdateOrder{Lid: "never-seen", Status: schema.StatusFilled}) {
		t.Fatal("unknown order must not route")
	}
}

func TestIDGenFormat(t *testing.T) {
	g := NewIDGen()
	pattern := regexp.MustCompile(`^\d{10}$`)
	a := g.Next()
	b := g.Next()
	if !pattern.MatchString(string(a)) || !pattern.MatchString(string(b)) {
		t.Fatalf("ids must be ten digits: %q %q", a, b)
	}
	if a == b {
		t.Fatal("consecutive ids must differ")
	}
}

func TestBatchRetriesUseFreshIDs(t *testing.T) {
	var seen []schema.OrderLid
	attempts := 0
	placer := func(_ context.Context, req schema.ExecutionRequest) error {
		attempts++
		seen = append(seen, req.Place.Lid)
		if attempts < 3 {
			return context.DeadlineExceeded
		}
		return nil
	}
	b := NewBatchPlacer(NewRegistry(placer), NewIDGen())
	orders, err := b.Place(context.Background(), Batch{
		Legs:    []schema.RequestPlaceOrder{placeReq("ignored")},
		Mode:    PlaceSequential,
		Retries: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if orders[0] == nil {
		t.Fatal("successful leg must return a stream")
	}
	if len(seen) != 3 {
		t.Fatalf("attempts: %d", len(seen))
	}
	if seen[0] == seen[1] || seen[1] == seen[2] {
		t.Fatalf("every attempt needs a fresh lid: %v", seen)
	}
}

func TestBatchConcurrentPlacesAllLegs(t *testing.T) {
	var count int
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}
	placer := func(context.Context, schema.ExecutionRequest) error {
		<-mu
		count++
		mu <- struct{}{}
		return nil
	}
	b := NewBatchPlacer(NewRegistry(placer), NewIDGen())
	legs := []schema.RequestPlaceOrder{placeReq("a"), placeReq("b")}
	orders, err := b.Place(context.Background(), Batch{Legs: legs, Mode: PlaceConcurrent})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || orders[0] == nil || orders[1] == nil {
		t.Fatalf("both legs must place: count=%d", count)
	}
}

func TestBatchStampsJoiningIDAndTracksLegs(t *testing.T) {
	var placed []schema.RequestPlaceOrder
	placer := func(_ context.Context, req schema.ExecutionRequest) error {
		placed = append(placed, *req.Place)
		return nil
	}
	b := NewBatchPlacer(NewRegistry(placer), NewIDGen())
	orders, err := b.Place(context.Background(), Batch{
		ID:   "batch-1",
		Legs: []schema.RequestPlaceOrder{placeReq("a"), placeReq("b")},
		Mode: PlaceSequential,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, req := range placed {
		if req.BatchId != "batch-1" {
			t.Fatalf("leg must carry the joining batch id: %+v", req)
		}
	}

	legs, ok := b.BatchLegs("batch-1")
	if !ok || len(legs) != 2 || legs[0] != orders[0] || legs[1] != orders[1] {
		t.Fatalf("tracked legs must match placed streams: ok=%v", ok)
	}
	for i, req := range placed {
		id, index, ok := b.LegByCid(req.Cid)
		if !ok || id != "batch-1" || index != i {
			t.Fatalf("cid %s must resolve to leg %d: id=%s index=%d ok=%v",
				req.Cid, i, id, index, ok)
		}
	}

	b.Release("batch-1")
	if _, ok := b.BatchLegs("batch-1"); ok {
		t.Fatal("released batch must be forgotten")
	}
	if _, _, ok := b.LegByCid(placed[0].Cid); ok {
		t.Fatal("released batch must drop its cid index")
	}
}

func TestBatchExhaustedRetriesSurfaceError(t *testing.T) {
	placer := func(context.Context, schema.ExecutionRequest) error {
		return context.DeadlineExceeded
	}
	b := NewBatchPlacer(NewRegistry(placer), NewIDGen())
	_, err := b.Place(context.Background(), Batch{
		Legs:    []schema.RequestPlaceOrder{placeReq("a")},
		Retries: 1,
	})
	if err == nil {
		t.Fatal("exhausted retries must fail")
	}
}
