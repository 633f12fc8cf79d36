package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestSubscriptionBookReplayOrder(t *testing.T) {
	b := NewSubscriptionBook()
	b.Add("a", []byte("1"))
	b.Add("b", []byte("2"))
	b.Add("a", []byte("3")) // replace keeps original position
	b.Add("c", []byte("4"))
	b.Remove("b")

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size: %d", len(snap))
	}
	if string(snap[0]) != "3" || string(snap[1]) != "4" {
		t.Fatalf("snapshot order: %q %q", snap[0], snap[1])
	}
	if b.Has("b") {
		t.Fatal("removed key must be gone")
	}
	if b.Len() != 2 {
		t.Fatalf("len: %d", b.Len())
	}
}

func TestHMACSignerSetsSignatureAndKeyHeader(t *testing.T) {
	signer := &HMACSigner{
		APIKey:    "key",
		APISecret: "secret",
		Now:       func() time.Time { return time.UnixMilli(1700000000000) },
	}
	req, err := http.NewRequest(http.MethodGet, "https://venue.test/api", nil)
	if err != nil {
		t.Fatal(err)
	}
	query := url.Values{"symbol": {"BTCUSDT"}}
	if err := signer.Sign(req, query, nil); err != nil {
		t.Fatal(err)
	}
	signed := req.URL.Query()
	if signed.Get("timestamp") != "1700000000000" {
		t.Fatalf("timestamp: %q", signed.Get("timestamp"))
	}
	if signed.Get("signature") == "" {
		t.Fatal("signature missing")
	}
	if req.Header.Get("X-MBX-APIKEY") != "key" {
		t.Fatalf("key header: %q", req.Header.Get("X-MBX-APIKEY"))
	}

	// Same inputs sign identically.
	req2, _ := http.NewRequest(http.MethodGet, "https://venue.test/api", nil)
	if err := signer.Sign(req2, url.Values{"symbol": {"BTCUSDT"}}, nil); err != nil {
		t.Fatal(err)
	}
	if req.URL.Query().Get("signature") != req2.URL.Query().Get("signature") {
		t.Fatal("signature must be deterministic")
	}
}

func TestRESTClientMapsStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/denied":
			w.WriteHeader(http.StatusForbidden)
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	c := NewRESTClient(RESTConfig{Venue: "mock", BaseURL: srv.URL}, nil)
	ctx := context.Background()

	if _, err := c.Get(ctx, "/ok", nil); err != nil {
		t.Fatalf("ok path: %v", err)
	}
	_, err := c.Get(ctx, "/limited", nil)
	if err == nil || !strings.Contains(err.Error(), "rate_limited") {
		t.Fatalf("429 must map to rate_limited: %v", err)
	}
	_, err = c.Get(ctx, "/denied", nil)
	if err == nil || !strings.Contains(err.Error(), "code=auth") {
		t.Fatalf("403 must map to auth: %v", err)
	}
	if _, err := c.Signed(ctx, http.MethodPost, "/ok", nil, nil); err == nil {
		t.Fatal("signed request without signer must fail")
	}
}

func TestSessionConnectsAndReplaysSubscriptions(t *testing.T) {
	received := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			received <- string(data)
			if err := conn.Write(ctx, websocket.MessageText, append([]byte("ack:"), data...)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	book := NewSubscriptionBook()
	book.Add("depth", []byte("sub-depth"))

	s := NewSession(context.Background(), SessionConfig{Venue: "mock", URL: wsURL}, book)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	select {
	case got := <-received:
		if got != "sub-depth" {
			t.Fatalf("replayed payload: %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscription was not replayed on connect")
	}

	select {
	case frame := <-s.Frames():
		if string(frame) != "ack:sub-depth" {
			t.Fatalf("frame: %q", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frame not delivered")
	}

	if id := s.NextRequestID(); id != 1 {
		t.Fatalf("first request id: %d", id)
	}
	if id := s.NextRequestID(); id != 2 {
		t.Fatalf("second request id: %d", id)
	}
}
