package schema

import "testing"

func TestOrderStatusPredicates(t *testing.T) {
	cases := []struct {
		status OrderStatus
		isNew  bool
		isOpen bool
		cancel bool
		dead   bool
	}{
		{StatusUnknown, false, false, false, false},
		{StatusPending, true, false, false, false},
		{StatusSent, true, false, false, false},
		{StatusReceived, true, false, false, false},
		{StatusUntriggered, false, true, false, false},
		{StatusOpen, false, true, false, false},
		{StatusPartiallyFilled, false, true, false, false},
		{StatusCancelPending, false, false, true, false},
		{StatusCancelSent, false, false, true, false},
		{StatusCancelReceived, false, false, true, false},
		{StatusCancelled, false, false, true, true},
		{StatusFilled, false, false, false, true},
		{StatusAbsent, false, false, false, true},
		{StatusRejected, false, false, false, true},
		{StatusExpired, false, false, false, true},
		{StatusError, false, false, false, true},
		{StatusDiscarded, false, false, false, true},
	}
	for _, tc := range cases {
		if got := tc.status.IsNew(); got != tc.isNew {
			t.Errorf("%s: IsNew=%v want %v", tc.status, got, tc.isNew)
		}
		if got := tc.status.IsOpen(); got != tc.isOpen {
			t.Errorf("%s: IsOpen=%v want %v", tc.status, got, tc.isOpen)
		}
		if got := tc.status.IsCancel(); got != tc.cancel {
			t.Errorf("%s: IsCancel=%v want %v", tc.status, got, tc.cancel)
		}
		if got := tc.status.IsDead(); got != tc.dead {
			t.Errorf("%s: IsDead=%v want %v", tc.status, got, tc.dead)
		}
	}
}

func TestOrderIsOlderThan(t *testing.T) {
	o := &Order{Status: StatusOpen, FilledSize: 0.5}
	if !o.IsOlderThan(StatusPartiallyFilled, 0.5) {
		t.Error("higher status rank must make the cached order older")
	}
	if !o.IsOlderThan(StatusOpen, 0.6) {
		t.Error("higher filled size must make the cached order older")
	}
	if o.IsOlderThan(StatusOpen, 0.5) {
		t.Error("identical (status, filled) must not be older")
	}
	if o.IsOlderThan(StatusReceived, 0.4) {
		t.Error("strictly preceding update must not make the order older")
	}
}

func TestSymbolHashStable(t *testing.T) {
	s := InternSymbol("btcusdt")
	if s != Symbol("BTCUSDT") {
		t.Fatalf("intern canonicalisation: got %q", s)
	}
	h := s.Hash()
	if h != Symbol("BTCUSDT").Hash() {
		t.Fatal("hash must depend only on the symbol text")
	}
	back, ok := SymbolFromHash(h)
	if !ok || back != s {
		t.Fatalf("hash lookup: got %q ok=%v", back, ok)
	}
}
