package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/straddle-io/straddle/internal/schema"
)

const (
	// DefaultMeanWindow is the lookback over which per-asset spread means
	// are computed.
	DefaultMeanWindow = 5 * time.Minute
	// DefaultRecompute is how often the means are refreshed.
	DefaultRecompute = 10 * time.Second
)

type spreadSample struct {
	at time.Time
	bp float64
}

// Accumulator keeps a rolling window of per-asset spread observations and a
// periodically recomputed mean. Observations are the buy-X spread in basis
// points.
type Accumulator struct {
	mu      sync.RWMutex
	window  time.Duration
	samples map[schema.Asset][]spreadSample
	means   map[schema.Asset]float64
}

// NewAccumulator builds an accumulator with the given lookback window.
func NewAccumulator(window time.Duration) *Accumulator {
	if window <= 0 {
		window = DefaultMeanWindow
	}
	return &Accumulator{
		window:  window,
		samples: make(map[schema.Asset][]spreadSample),
		means:   make(map[schema.Asset]float64),
	}
}

// Observe records the buy-X spread for a row in basis points.
func (a *Accumulator) Observe(row SpreadRow) {
	if row.AskX <= 0 {
		return
	}
	bp := (row.BidY - row.AskX) / row.AskX * 10000
	a.mu.Lock()
	a.samples[row.Asset] = append(a.samples[row.Asset], spreadSample{at: row.Time, bp: bp})
	a.mu.Unlock()
}

// Mean returns the last computed mean for the asset.
func (a *Accumulator) Mean(asset schema.Asset) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	mean, ok := a.means[asset]
	return mean, ok
}

// Recompute trims expired samples and refreshes every asset's mean as of now.
func (a *Accumulator) Recompute(now time.Time) {
	cutoff := now.Add(-a.window)
	a.mu.Lock()
	defer a.mu.Unlock()
	for asset, samples := range a.samples {
		kept := samples[:0]
		for _, s := range samples {
			if s.at.After(cutoff) {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(a.samples, asset)
			delete(a.means, asset)
			continue
		}
		a.samples[asset] = kept
		sum := 0.0
		for _, s := range kept {
			sum += s.bp
		}
		a.means[asset] = sum / float64(len(kept))
	}
}

// Run recomputes means on a fixed cadence until the context ends.
func (a *Accumulator) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = DefaultRecompute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.Recompute(now)
		}
	}
}
