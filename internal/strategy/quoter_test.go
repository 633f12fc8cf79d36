package strategy

import (
	"testing"

	"github.com/straddle-io/straddle/internal/schema"
)

func quoterCfg() QuoterConfig {
	return QuoterConfig{
		Asset:       "BTC",
		OpenSpread:  0.0010, // 10bp
		CloseSpread: 0.0002, // 2bp
		XMaintain:   0.5,
		YMaintain:   0.5,
		MaxUnhedged: ptr(1),
	}
}

func flatInputs(bidX, askX, bidY, askY float64) QuoterInputs {
	return QuoterInputs{BidX: bidX, AskX: askX, BidY: bidY, AskY: askY}
}

func TestQuoterOpensLongXOnWideBuySpread(t *testing.T) {
	q := NewQuoter(quoterCfg())
	// bidY/askX - 1 = 20040/20000 - 1 = 20bp > 10bp open threshold.
	rec := q.Evaluate(flatInputs(20000, 20000, 20040, 20050))
	if rec.State != StateLongX {
		t.Fatalf("state: %v", rec.State)
	}
	if !rec.CancelLive {
		t.Fatal("idle to long_x is a transition")
	}
	if rec.TargetX == nil || *rec.TargetX != 0.5 {
		t.Fatalf("x target: %v", rec.TargetX)
	}
	if rec.TargetY == nil || *rec.TargetY != -0.5 {
		t.Fatalf("y target: %v", rec.TargetY)
	}
}

func TestQuoterOpensShortXOnWideSellSpread(t *testing.T) {
	q := NewQuoter(quoterCfg())
	// bidX/askY - 1 = 20040/20000 - 1 = 20bp.
	rec := q.Evaluate(flatInputs(20040, 20050, 19990, 20000))
	if rec.State != StateShortX {
		t.Fatalf("state: %v", rec.State)
	}
	if *rec.TargetX != -0.5 || *rec.TargetY != 0.5 {
		t.Fatalf("targets: %v %v", *rec.TargetX, *rec.TargetY)
	}
}

func TestQuoterClosePriorityBeatsOpen(t *testing.T) {
	q := NewQuoter(quoterCfg())
	// Long X and the sell spread exceeds the close threshold while the buy
	// spread still exceeds the open threshold: closing wins.
	in := flatInputs(20010, 20011, 20040, 20005)
	in.XPos, in.YPos = 0.5, -0.5
	rec := q.Evaluate(in)
	if rec.State != StateCloseLongX {
		t.Fatalf("state: %v", rec.State)
	}
	if rec.TargetX == nil || rec.TargetY == nil {
		t.Fatal("close state must carry targets")
	}
	if *rec.TargetX != 0 || *rec.TargetY != 0 {
		t.Fatalf("close targets must be flat: %v %v", *rec.TargetX, *rec.TargetY)
	}
}

func TestQuoterIdleWhenSpreadsTight(t *testing.T) {
	q := NewQuoter(quoterCfg())
	rec := q.Evaluate(flatInputs(20000, 20001, 20000, 20001))
	if rec.State != StateIdle {
		t.Fatalf("state: %v", rec.State)
	}
	if rec.TargetX != nil || rec.TargetY != nil {
		t.Fatal("idle recommends no targets")
	}
	if rec.CancelLive {
		t.Fatal("idle to idle is not a transition")
	}
}

func TestQuoterCancelOnlyOnTransition(t *testing.T) {
	q := NewQuoter(quoterCfg())
	wide := flatInputs(20000, 20000, 20040, 20050)
	first := q.Evaluate(wide)
	if !first.CancelLive {
		t.Fatal("transition must cancel")
	}
	second := q.Evaluate(wide)
	if second.CancelLive {
		t.Fatal("same state must not cancel again")
	}
}

func TestQuoterSideFilterClampsTargets(t *testing.T) {
	cfg := quoterCfg()
	cfg.SideFilter = schema.SideBuy
	q := NewQuoter(cfg)
	// Short stance wants a negative X target; the buy filter clamps to 0.
	rec := q.Evaluate(flatInputs(20040, 20050, 19990, 20000))
	if rec.State != StateShortX {
		t.Fatalf("state: %v", rec.State)
	}
	if *rec.TargetX != 0 {
		t.Fatalf("buy filter must clamp negative x target to 0: %v", *rec.TargetX)
	}
	if *rec.TargetY != 0.5 {
		t.Fatalf("positive y target unaffected: %v", *rec.TargetY)
	}
}

func TestQuoterHedgeCapBoundsTargets(t *testing.T) {
	cfg := quoterCfg()
	cfg.XMaintain = 5
	cfg.YMaintain = 5
	cfg.MaxUnhedged = ptr(0.25)
	q := NewQuoter(cfg)
	in := flatInputs(20000, 20000, 20040, 20050)
	in.XPos, in.YPos = 0, -1
	rec := q.Evaluate(in)
	if rec.State != StateLongX {
		t.Fatalf("state: %v", rec.State)
	}
	// X target 5 clamps into [-(-1)-0.25, -(-1)+0.25] = [0.75, 1.25].
	if *rec.TargetX != 1.25 {
		t.Fatalf("x target must clamp to counter+max: %v", *rec.TargetX)
	}
	// Y target -5 clamps into [-0-0.25, 0.25] = [-0.25, 0.25].
	if *rec.TargetY != -0.25 {
		t.Fatalf("y target must clamp to counter-max: %v", *rec.TargetY)
	}
}

func TestQuoterUncappedOpensFullTargets(t *testing.T) {
	cfg := quoterCfg()
	cfg.XMaintain = 0.1
	cfg.YMaintain = 0.1
	cfg.MaxUnhedged = nil
	q := NewQuoter(cfg)
	// Flat account, wide buy spread: without a cap the full maintain sizes
	// go out unclamped.
	rec := q.Evaluate(flatInputs(20000, 20000, 20040, 20050))
	if rec.State != StateLongX {
		t.Fatalf("state: %v", rec.State)
	}
	if rec.TargetX == nil || *rec.TargetX != 0.1 {
		t.Fatalf("x target: %v", rec.TargetX)
	}
	if rec.TargetY == nil || *rec.TargetY != -0.1 {
		t.Fatalf("y target: %v", rec.TargetY)
	}
}

func TestQuoterColdStartReadsMissingPositionsAsFlat(t *testing.T) {
	q := NewQuoter(quoterCfg())
	// No position readings yet: both legs count as 0 and the wide buy spread
	// still produces opening targets.
	rec := q.Evaluate(QuoterInputs{BidX: 20000, AskX: 20000, BidY: 20040, AskY: 20050})
	if rec.State != StateLongX {
		t.Fatalf("state: %v", rec.State)
	}
	if rec.TargetX == nil || *rec.TargetX != 0.5 || rec.TargetY == nil || *rec.TargetY != -0.5 {
		t.Fatalf("targets: %v %v", rec.TargetX, rec.TargetY)
	}
}

func TestQuoterIgnoresDegenerateBooks(t *testing.T) {
	q := NewQuoter(quoterCfg())
	rec := q.Evaluate(QuoterInputs{BidX: 0, AskX: 20000, BidY: 20040, AskY: 20050})
	if rec.State != StateIdle || rec.CancelLive {
		t.Fatalf("zero side must be a no-op: %+v", rec)
	}
}
