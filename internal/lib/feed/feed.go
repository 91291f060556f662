// Package feed abstracts the position sources the guidance session can run
// on: real tracked positions, a scripted travel simulation, and a random-walk
// demo mode. All sources emit the same sample shape to the same consumer.
package feed

import (
	"context"
	"time"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// Feed is a position source. Delivery is best-effort with no back-pressure;
// consumers must tolerate irregular intervals.
type Feed interface {
	// Start begins producing samples. The feed stops when ctx is canceled
	// or Stop is called.
	Start(ctx context.Context) error

	// Samples is the output channel. Closed when the feed stops.
	Samples() <-chan geo.PositionSample

	// Stop tears the feed down. Idempotent.
	Stop()
}

// Pauser gates sample production. The travel simulator holds while the
// overlay arbiter reports an active advisory.
type Pauser interface {
	Active() bool
}

const (
	// DefaultTravelTick is the simulated-route advance interval.
	DefaultTravelTick = 1200 * time.Millisecond

	// DefaultWalkTick is the random-walk perturbation interval.
	DefaultWalkTick = 2000 * time.Millisecond

	sampleBuffer = 16
)

// emit delivers a sample without blocking; a slow consumer loses samples
// rather than stalling the tick loop.
func emit(out chan geo.PositionSample, s geo.PositionSample) {
	select {
	case out <- s:
	default:
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
