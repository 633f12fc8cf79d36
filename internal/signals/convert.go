package signals

import (
	"time"

	"github.com/straddle-io/straddle/internal/pricing"
	"github.com/straddle-io/straddle/internal/schema"
)

// Signal is one graded cross-venue price difference. BpBuyX is the return of
// buying on venue X and selling on venue Y; BpBuyY the reverse. Bp is the
// better of the two and Level grades it.
type Signal struct {
	Asset  schema.Asset
	ExX    schema.Exchange
	ExY    schema.Exchange
	BpBuyX float64
	BpBuyY float64
	Bp     float64
	Level  Level
	Time   time.Time
}

// DifferenceConverter grades spread rows into signals.
type DifferenceConverter struct {
	thresholds Thresholds
}

// NewDifferenceConverter builds a converter with the given grading.
func NewDifferenceConverter(t Thresholds) *DifferenceConverter {
	return &DifferenceConverter{thresholds: t}
}

// Convert computes both directions in basis points and grades the better one.
// Rows with a non-positive ask on either leg produce no signal.
func (c *DifferenceConverter) Convert(row pricing.SpreadRow) (Signal, bool) {
	if row.AskX <= 0 || row.AskY <= 0 {
		return Signal{}, false
	}
	buyX := (row.BidY - row.AskX) / row.AskX * 10000
	buyY := (row.BidX - row.AskY) / row.AskY * 10000
	best := buyX
	if buyY > best {
		best = buyY
	}
	return Signal{
		Asset:  row.Asset,
		ExX:    row.ExX,
		ExY:    row.ExY,
		BpBuyX: buyX,
		BpBuyY: buyY,
		Bp:     best,
		Level:  c.thresholds.Grade(best),
		Time:   row.Time,
	}, true
}

// Change is one rolling high-low move observation for an asset.
type Change struct {
	Asset    schema.Asset
	High     float64
	Low      float64
	IsRising bool
	MoveBp   float64
	Time     time.Time
}

type pricePoint struct {
	at    time.Time
	price float64
}

// ChangeConverter tracks a rolling window of prices per asset and reports the
// high-low range. The move is rising when the high is more recent than the
// low.
type ChangeConverter struct {
	window time.Duration
	points map[schema.Asset][]pricePoint
}

// NewChangeConverter builds a converter with the given lookback.
func NewChangeConverter(window time.Duration) *ChangeConverter {
	if window <= 0 {
		window = time.Minute
	}
	return &ChangeConverter{window: window, points: make(map[schema.Asset][]pricePoint)}
}

// Observe folds one price into the window and returns the current change.
// The second return is false until the window holds at least two points.
func (c *ChangeConverter) Observe(asset schema.Asset, price float64, at time.Time) (Change, bool) {
	if price <= 0 {
		return Change{}, false
	}
	cutoff := at.Add(-c.window)
	pts := append(c.points[asset], pricePoint{at: at, price: price})
	kept := pts[:0]
	for _, p := range pts {
		if p.at.After(cutoff) {
			kept = append(kept, p)
		}
	}
	c.points[asset] = kept
	if len(kept) < 2 {
		return Change{}, false
	}

	high, low := kept[0], kept[0]
	for _, p := range kept[1:] {
		if p.price >= high.price {
			high = p
		}
		if p.price <= low.price {
			low = p
		}
	}
	moveBp := 0.0
	if low.price > 0 {
		moveBp = (high.price - low.price) / low.price * 10000
	}
	return Change{
		Asset:    asset,
		High:     high.price,
		Low:      low.price,
		IsRising: high.at.After(low.at),
		MoveBp:   moveBp,
		Time:     at,
	}, true
}
