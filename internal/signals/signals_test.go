package signals

import (
	"testing"
	"time"

	"github.com/straddle-io/straddle/internal/pricing"
	"github.com/straddle-io/straddle/internal/schema"
)

func row(askX, bidY, bidX, askY float64, at time.Time) pricing.SpreadRow {
	return pricing.SpreadRow{
		Asset: "BTC",
		ExX:   schema.ExchangeBinanceFutures,
		ExY:   schema.ExchangeBybit,
		BidX:  bidX,
		AskX:  askX,
		BidY:  bidY,
		AskY:  askY,
		Time:  at,
	}
}

func TestDifferenceConverterBasisPoints(t *testing.T) {
	c := NewDifferenceConverter(DefaultThresholds)
	// Buying X at 20000 and selling Y at 20040 returns 20bp.
	sig, ok := c.Convert(row(20000, 20040, 20000, 20050, time.Now()))
	if !ok {
		t.Fatal("valid row must convert")
	}
	if sig.BpBuyX < 19.99 || sig.BpBuyX > 20.01 {
		t.Fatalf("buy-x bp: %v", sig.BpBuyX)
	}
	if sig.BpBuyY >= 0 {
		t.Fatalf("buy-y must be negative here: %v", sig.BpBuyY)
	}
	if sig.Bp != sig.BpBuyX {
		t.Fatalf("best direction must win: %v vs %v", sig.Bp, sig.BpBuyX)
	}
	if sig.Level != LevelHigh {
		t.Fatalf("20bp grades high: %v", sig.Level)
	}
}

func TestDifferenceConverterRejectsZeroAsk(t *testing.T) {
	c := NewDifferenceConverter(DefaultThresholds)
	if _, ok := c.Convert(row(0, 20040, 20000, 20050, time.Now())); ok {
		t.Fatal("zero ask must not convert")
	}
}

func TestThresholdGrading(t *testing.T) {
	cases := []struct {
		bp   float64
		want Level
	}{
		{1, LevelLow},
		{5, LevelMedium},
		{15, LevelHigh},
		{30, LevelCritical},
		{100, LevelCritical},
	}
	for _, tc := range cases {
		if got := DefaultThresholds.Grade(tc.bp); got != tc.want {
			t.Fatalf("grade(%v) = %v, want %v", tc.bp, got, tc.want)
		}
	}
}

func TestChangeConverterDirection(t *testing.T) {
	c := NewChangeConverter(time.Minute)
	base := time.Now()

	if _, ok := c.Observe("BTC", 20000, base); ok {
		t.Fatal("single point must not report")
	}
	change, ok := c.Observe("BTC", 20100, base.Add(time.Second))
	if !ok {
		t.Fatal("two points must report")
	}
	if !change.IsRising {
		t.Fatal("high more recent than low must be rising")
	}
	if change.High != 20100 || change.Low != 20000 {
		t.Fatalf("range: %+v", change)
	}

	// Price falls below the old low: now falling.
	change, _ = c.Observe("BTC", 19900, base.Add(2*time.Second))
	if change.IsRising {
		t.Fatal("low more recent than high must be falling")
	}

	// Old points expire out of the window.
	change, ok = c.Observe("BTC", 19910, base.Add(2*time.Minute))
	if ok {
		t.Fatalf("expired window must start over: %+v", change)
	}
}

func TestCooldownFilterPerAsset(t *testing.T) {
	f := NewCooldownFilter(time.Minute)
	base := time.Now()
	sig := Signal{Asset: "BTC", Time: base}

	if !f.Allow(sig) {
		t.Fatal("first signal passes")
	}
	sig.Time = base.Add(30 * time.Second)
	if f.Allow(sig) {
		t.Fatal("signal inside cooldown must be dropped")
	}
	other := Signal{Asset: "ETH", Time: base.Add(30 * time.Second)}
	if !f.Allow(other) {
		t.Fatal("cooldown is per asset")
	}
	sig.Time = base.Add(61 * time.Second)
	if !f.Allow(sig) {
		t.Fatal("signal after cooldown passes")
	}
}

func TestLevelAndFlagFilters(t *testing.T) {
	chain := Chain{
		LevelFilter{Min: LevelHigh},
		FlagFilter{Source: StaticFlags{"BTC": true}},
	}
	if !chain.Allow(Signal{Asset: "BTC", Level: LevelCritical}) {
		t.Fatal("enabled critical signal passes")
	}
	if chain.Allow(Signal{Asset: "BTC", Level: LevelMedium}) {
		t.Fatal("below minimum level drops")
	}
	if chain.Allow(Signal{Asset: "ETH", Level: LevelCritical}) {
		t.Fatal("disabled asset drops")
	}
}

func TestScriptGate(t *testing.T) {
	gate, err := NewScriptGate(`bp > 10 && asset !== "DOGE"`)
	if err != nil {
		t.Fatal(err)
	}
	if !gate.Allow(Signal{Asset: "BTC", Bp: 15}) {
		t.Fatal("script true must pass")
	}
	if gate.Allow(Signal{Asset: "BTC", Bp: 5}) {
		t.Fatal("script false must drop")
	}
	if gate.Allow(Signal{Asset: "DOGE", Bp: 50}) {
		t.Fatal("asset binding must reach the script")
	}

	if _, err := NewScriptGate("this is not javascript ("); err == nil {
		t.Fatal("compile failure must be fatal")
	}

	// Runtime failure drops the signal instead of panicking.
	gate, err = NewScriptGate(`missingFn(bp)`)
	if err != nil {
		t.Fatal(err)
	}
	if gate.Allow(Signal{Asset: "BTC", Bp: 50}) {
		t.Fatal("runtime failure must drop the signal")
	}
}

func TestEventStatusNamesAndTerminal(t *testing.T) {
	if EventCaptured.String() != "captured" || EventFullyClosed.String() != "fully_closed" {
		t.Fatalf("names: %s %s", EventCaptured, EventFullyClosed)
	}
	if EventCaptured.Terminal() {
		t.Fatal("captured is live")
	}
	if !EventFullyClosed.Terminal() || !EventThrottled.Terminal() {
		t.Fatal("closed and throttled are terminal")
	}
}
