// Package strategy turns spread observations into position targets and
// manages the orders that move live positions toward them.
package strategy

import (
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
)

// QuoteState is the quoter's current stance on the X leg.
type QuoteState uint8

const (
	StateIdle QuoteState = iota
	StateLongX
	StateShortX
	StateCloseLongX
	StateCloseShortX
)

var quoteStateNames = [...]string{"idle", "long_x", "short_x", "close_long_x", "close_short_x"}

func (s QuoteState) String() string {
	if int(s) < len(quoteStateNames) {
		return quoteStateNames[s]
	}
	return "idle"
}

// QuoterConfig tunes one pair's quoter.
type QuoterConfig struct {
	Asset schema.Asset
	// OpenSpread and CloseSpread are fractional spread thresholds: a spread
	// above OpenSpread opens exposure, above CloseSpread closes it.
	OpenSpread  float64
	CloseSpread float64
	// XMaintain and YMaintain are the absolute position sizes held while a
	// stance is on.
	XMaintain float64
	YMaintain float64
	// MaxUnhedged bounds how far each target may drift from the exact hedge
	// of the other leg's position. Nil disables the cap.
	MaxUnhedged *float64
	// SideFilter restricts the X leg to one direction. SideUnknown allows
	// both.
	SideFilter schema.Side
}

// QuoterInputs is one evaluation snapshot: both legs' top of book and the
// current signed positions. A leg without a position record reads as 0.
type QuoterInputs struct {
	BidX, AskX float64
	BidY, AskY float64
	XPos, YPos float64
}

// Recommendation is the quoter's output. Nil targets mean no opinion: leave
// positions alone and keep no orders working. CancelLive is set on every
// state transition, including transitions that recommend the same position.
type Recommendation struct {
	State      QuoteState
	TargetX    *float64
	TargetY    *float64
	CancelLive bool
}

// Quoter is the per-pair spread state machine. Not safe for concurrent use;
// the engine owns one per pair on a single goroutine.
type Quoter struct {
	cfg   QuoterConfig
	state QuoteState
}

// NewQuoter builds a quoter starting idle.
func NewQuoter(cfg QuoterConfig) *Quoter {
	return &Quoter{cfg: cfg, state: StateIdle}
}

// State returns the current stance.
func (q *Quoter) State() QuoteState { return q.state }

// Evaluate folds one snapshot and returns the stance and targets.
func (q *Quoter) Evaluate(in QuoterInputs) Recommendation {
	if in.AskX <= 0 || in.AskY <= 0 || in.BidX <= 0 || in.BidY <= 0 {
		return Recommendation{State: q.state}
	}
	spreadBuyX := in.BidY/in.AskX - 1
	spreadSellX := in.BidX/in.AskY - 1

	long := in.XPos > 0
	short := in.XPos < 0

	var next QuoteState
	switch {
	case long && spreadSellX > q.cfg.CloseSpread:
		next = StateCloseLongX
	case short && spreadBuyX > q.cfg.CloseSpread:
		next = StateCloseShortX
	case spreadBuyX > q.cfg.OpenSpread:
		next = StateLongX
	case spreadSellX > q.cfg.OpenSpread:
		next = StateShortX
	default:
		next = StateIdle
	}

	changed := next != q.state
	if changed {
		observability.Log().Info("quoter state change",
			observability.F("asset", string(q.cfg.Asset)),
			observability.F("from", q.state.String()),
			observability.F("to", next.String()),
			observability.F("spread_buy_x", spreadBuyX),
			observability.F("spread_sell_x", spreadSellX))
	}
	q.state = next

	rec := Recommendation{State: next, CancelLive: changed}
	rec.TargetX, rec.TargetY = q.targets(next)
	q.applySideFilter(&rec)
	q.applyHedgeCap(&rec, in)
	return rec
}

func (q *Quoter) targets(state QuoteState) (*float64, *float64) {
	switch state {
	case StateLongX:
		return ptr(q.cfg.XMaintain), ptr(-q.cfg.YMaintain)
	case StateShortX:
		return ptr(-q.cfg.XMaintain), ptr(q.cfg.YMaintain)
	case StateCloseLongX, StateCloseShortX:
		return ptr(0), ptr(0)
	default:
		return nil, nil
	}
}

// applySideFilter clamps targets to the allowed direction.
func (q *Quoter) applySideFilter(rec *Recommendation) {
	switch q.cfg.SideFilter {
	case schema.SideBuy:
		clampMin(rec.TargetX, 0)
		clampMin(rec.TargetY, 0)
	case schema.SideSell:
		clampMax(rec.TargetX, 0)
		clampMax(rec.TargetY, 0)
	}
}

// applyHedgeCap bounds each target to stay within MaxUnhedged of the exact
// hedge of the other leg's current position. An unset cap leaves the targets
// untouched; a target without a counterpart withdraws both.
func (q *Quoter) applyHedgeCap(rec *Recommendation, in QuoterInputs) {
	if rec.TargetX == nil || rec.TargetY == nil {
		rec.TargetX, rec.TargetY = nil, nil
		return
	}
	if q.cfg.MaxUnhedged == nil {
		return
	}
	rec.TargetX = ptr(hedged(*rec.TargetX, in.YPos, *q.cfg.MaxUnhedged))
	rec.TargetY = ptr(hedged(*rec.TargetY, in.XPos, *q.cfg.MaxUnhedged))
}

// hedged clamps pos into [counter-max, counter+max] around the exact hedge
// of the other leg.
func hedged(pos, other, max float64) float64 {
	counter := -other
	if pos > counter+max {
		return counter + max
	}
	if pos < counter-max {
		return counter - max
	}
	return pos
}

func ptr(v float64) *float64 { return &v }

func clampMin(v *float64, min float64) {
	if v != nil && *v < min {
		*v = min
	}
}

func clampMax(v *float64, max float64) {
	if v != nil && *v > max {
		*v = max
	}
}
