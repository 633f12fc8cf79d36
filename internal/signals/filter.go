package signals

import (
	"sync"
	"time"

	"github.com/straddle-io/straddle/internal/schema"
)

// Filter decides whether a signal proceeds to the strategy layer.
type Filter interface {
	Allow(sig Signal) bool
}

// Chain applies filters in order; the first refusal wins.
type Chain []Filter

func (c Chain) Allow(sig Signal) bool {
	for _, f := range c {
		if !f.Allow(sig) {
			return false
		}
	}
	return true
}

// CooldownFilter passes at most one signal per asset per period.
type CooldownFilter struct {
	mu     sync.Mutex
	period time.Duration
	last   map[schema.Asset]time.Time
}

// NewCooldownFilter builds a cooldown filter.
func NewCooldownFilter(period time.Duration) *CooldownFilter {
	return &CooldownFilter{period: period, last: make(map[schema.Asset]time.Time)}
}

func (f *CooldownFilter) Allow(sig Signal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	last, seen := f.last[sig.Asset]
	if seen && sig.Time.Sub(last) < f.period {
		return false
	}
	f.last[sig.Asset] = sig.Time
	return true
}

// LevelFilter drops signals below a minimum level.
type LevelFilter struct {
	Min Level
}

func (f LevelFilter) Allow(sig Signal) bool { return sig.Level >= f.Min }

// FlagSource reports whether trading is enabled for an asset. Sources are
// pluggable so flags can come from config, a table, or an admin surface.
type FlagSource interface {
	Enabled(asset schema.Asset) bool
}

// FlagSourceFunc adapts a function to a FlagSource.
type FlagSourceFunc func(asset schema.Asset) bool

func (f FlagSourceFunc) Enabled(asset schema.Asset) bool { return f(asset) }

// StaticFlags is a fixed allow-set of assets.
type StaticFlags map[schema.Asset]bool

func (s StaticFlags) Enabled(asset schema.Asset) bool { return s[asset] }

// FlagFilter drops signals for assets the source has disabled.
type FlagFilter struct {
	Source FlagSource
}

func (f FlagFilter) Allow(sig Signal) bool {
	return f.Source != nil && f.Source.Enabled(sig.Asset)
}
