// Package signals derives cross-venue opportunity signals from spread rows
// and filters them before they reach the strategy layer.
package signals

// Level grades how large an opportunity is.
type Level uint8

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = [...]string{"low", "medium", "high", "critical"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "low"
}

// ParseLevel maps a name back to a level, defaulting to low.
func ParseLevel(s string) Level {
	for i, name := range levelNames {
		if name == s {
			return Level(i)
		}
	}
	return LevelLow
}

// Thresholds maps basis-point magnitudes to levels.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// DefaultThresholds grades signals at 5, 15 and 30 basis points.
var DefaultThresholds = Thresholds{Medium: 5, High: 15, Critical: 30}

// Grade returns the level for a basis-point magnitude.
func (t Thresholds) Grade(bp float64) Level {
	switch {
	case t.Critical > 0 && bp >= t.Critical:
		return LevelCritical
	case t.High > 0 && bp >= t.High:
		return LevelHigh
	case t.Medium > 0 && bp >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// EventStatus tracks the lifecycle of a captured opportunity event.
type EventStatus uint8

const (
	EventUnused EventStatus = iota
	EventTooSmallOpportunitySize
	EventInsufficientFund
	EventBelowTriggerThreshold
	EventCaptured
	EventMissedOpportunity
	EventPartialHit
	EventFullyHit
	EventClosing
	EventPartialClosed
	EventFullyClosed
	EventThrottled
	EventNotReady
	EventZeroPriceOrSize
	EventErrored
)

var eventStatusNames = [...]string{
	"unused", "too_small_opportunity_size", "insufficient_fund",
	"below_trigger_threshold", "captured", "missed_opportunity",
	"partial_hit", "fully_hit", "closing", "partial_closed", "fully_closed",
	"throttled", "not_ready", "zero_price_or_size", "errored",
}

func (s EventStatus) String() string {
	if int(s) < len(eventStatusNames) {
		return eventStatusNames[s]
	}
	return "unused"
}

// Terminal reports whether the event can no longer change state.
func (s EventStatus) Terminal() bool {
	switch s {
	case EventFullyClosed, EventMissedOpportunity, EventErrored,
		EventTooSmallOpportunitySize, EventInsufficientFund,
		EventBelowTriggerThreshold, EventThrottled, EventNotReady,
		EventZeroPriceOrSize:
		return true
	default:
		return false
	}
}
