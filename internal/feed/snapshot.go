package feed

import (
	"context"
	"time"

	"github.com/straddle-io/straddle/internal/observability"
)

// SnapshotPublisher periodically captures a snapshot and broadcasts it to
// external subscribers.
type SnapshotPublisher[T any] struct {
	interval time.Duration
	capture  func() T
	out      *Broadcaster[T]
}

// NewSnapshotPublisher wires a capture func to a broadcaster.
func NewSnapshotPublisher[T any](interval time.Duration, capture func() T, out *Broadcaster[T]) *SnapshotPublisher[T] {
	if interval <= 0 {
		interval = time.Second
	}
	return &SnapshotPublisher[T]{interval: interval, capture: capture, out: out}
}

// Run publishes snapshots until the context is cancelled.
func (p *SnapshotPublisher[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := p.out.Publish(p.capture())
			if report.DroppedFull > 0 {
				observability.Log().Debug("snapshot dropped for slow subscribers",
					observability.F("dropped", report.DroppedFull))
			}
		}
	}
}
