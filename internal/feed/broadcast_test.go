package feed

import (
	"context"
	"testing"
	"time"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster[int](4)
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	report := b.Publish(42)
	if report.Delivered != 2 || report.DroppedFull != 0 {
		t.Fatalf("publish report: %+v", report)
	}
	if got := <-ch1; got != 42 {
		t.Fatalf("subscriber 1: got %d", got)
	}
	if got := <-ch2; got != 42 {
		t.Fatalf("subscriber 2: got %d", got)
	}
}

func TestBroadcasterDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroadcaster[int](1)
	_, cancel := b.Subscribe()
	defer cancel()
	b.Publish(1)
	report := b.Publish(2)
	if report.DroppedFull != 1 {
		t.Fatalf("full subscriber must drop, report=%+v", report)
	}
}

func TestBroadcasterCancelDetaches(t *testing.T) {
	b := NewBroadcaster[int](1)
	ch, cancel := b.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("cancelled subscriber channel must be closed")
	}
	if b.Len() != 0 {
		t.Fatalf("subscriber leak: %d", b.Len())
	}
}

func TestSubscriptionsKeyedFanOut(t *testing.T) {
	s := NewSubscriptions[string](4)
	id1, ch1 := s.Connect()
	id2, ch2 := s.Connect()
	s.Subscribe(id1, "btc")
	s.Subscribe(id2, "eth")

	s.Publish("btc", "tick")
	select {
	case got := <-ch1:
		if got != "tick" {
			t.Fatalf("keyed delivery: %q", got)
		}
	default:
		t.Fatal("btc subscriber must receive the publish")
	}
	select {
	case got := <-ch2:
		t.Fatalf("eth subscriber must not receive btc publish: %q", got)
	default:
	}
}

func TestSubscriptionsCancelsLaggingConnection(t *testing.T) {
	s := NewSubscriptions[int](1)
	id, ch := s.Connect()
	s.Subscribe(id, "k")
	s.Publish("k", 1)
	s.Publish("k", 2) // buffer full: connection is cancelled

	if got, ok := <-ch; !ok || got != 1 {
		t.Fatalf("first value must be buffered: %d ok=%v", got, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatal("lagging connection channel must be closed")
	}
	s.Publish("k", 3) // must not panic after disconnect
}

func TestSnapshotPublisherTicks(t *testing.T) {
	b := NewBroadcaster[int](8)
	ch, cancel := b.Subscribe()
	defer cancel()
	n := 0
	p := NewSnapshotPublisher(10*time.Millisecond, func() int { n++; return n }, b)
	ctx, stop := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer stop()
	go p.Run(ctx)

	select {
	case v := <-ch:
		if v < 1 {
			t.Fatalf("snapshot value: %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot publisher did not tick")
	}
}
