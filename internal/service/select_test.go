package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubService yields a scripted sequence of ints and then closes.
type stubService struct {
	tag      string
	events   chan int
	requests chan string
}

func newStub(tag string, events ...int) *stubService {
	s := &stubService{
		tag:      tag,
		events:   make(chan int, len(events)),
		requests: make(chan string, 8),
	}
	for _, e := range events {
		s.events <- e
	}
	close(s.events)
	return s
}

func (s *stubService) Accept(req string) bool { return req == s.tag }

func (s *stubService) Request(_ context.Context, req string) error {
	s.requests <- req
	return nil
}

func (s *stubService) Next(ctx context.Context) (int, error) {
	select {
	case v, ok := <-s.events:
		if !ok {
			return 0, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func collect(t *testing.T, sel *Select[string, int], n int) []int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out []int
	for len(out) < n {
		v, err := sel.Next(ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, v)
	}
	return out
}

func TestSelectMergesAllChildren(t *testing.T) {
	sel := NewSelect[string, int](newStub("a", 1, 2), newStub("b", 3))
	got := collect(t, sel, 3)
	if len(got) != 3 {
		t.Fatalf("merged events: got %v", got)
	}
	sum := 0
	for _, v := range got {
		sum += v
	}
	if sum != 6 {
		t.Fatalf("events lost or duplicated: %v", got)
	}
}

func TestSelectClosesAfterAllChildrenClose(t *testing.T) {
	sel := NewSelect[string, int](newStub("a", 1), newStub("b"))
	collect(t, sel, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, err := sel.Next(ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	if sel.Size() != 0 {
		t.Fatalf("closed children must be removed, size=%d", sel.Size())
	}
}

func TestSelectRoutesRequestToFirstAcceptingChild(t *testing.T) {
	a := newStub("a")
	b := newStub("b")
	sel := NewSelect[string, int](a, b)
	if !sel.Accept("b") {
		t.Fatal("accept must be the OR of the children")
	}
	if sel.Accept("c") {
		t.Fatal("no child accepts c")
	}
	if err := sel.Request(context.Background(), "b"); err != nil {
		t.Fatalf("request: %v", err)
	}
	select {
	case got := <-b.requests:
		if got != "b" {
			t.Fatalf("routed payload: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("request did not reach the accepting child")
	}
	select {
	case got := <-a.requests:
		t.Fatalf("request leaked to non-accepting child: %q", got)
	default:
	}
	if err := sel.Request(context.Background(), "c"); !errors.Is(err, ErrNoService) {
		t.Fatalf("unroutable request: got %v", err)
	}
}

type stubBuilder struct {
	tag string
}

func (b stubBuilder) Accept(cfg string) bool { return cfg == b.tag }

func (b stubBuilder) Build(cfg string) (Service[string, int], error) {
	return newStub(cfg, 1), nil
}

func TestBuilderManagerResolvesAndSplits(t *testing.T) {
	m := NewBuilderManager[string, string, int]().WithSplit(func(cfg string) []string {
		if cfg == "a+b" {
			return []string{"a", "b"}
		}
		return []string{cfg}
	})
	m.Register(stubBuilder{tag: "a"})
	m.Register(stubBuilder{tag: "b"})

	if _, ok := m.FindBuilder("a"); !ok {
		t.Fatal("builder for a must resolve")
	}
	if _, ok := m.FindBuilder("z"); ok {
		t.Fatal("unknown config must not resolve")
	}

	sel, err := m.BuildSelect([]string{"a+b"})
	if err != nil {
		t.Fatalf("build select: %v", err)
	}
	if sel.Size() != 2 {
		t.Fatalf("split config must produce per-resource children, size=%d", sel.Size())
	}
	if _, err := m.BuildSelect([]string{"z"}); err == nil {
		t.Fatal("unbuildable config must be a fatal error")
	}
}
