package feed

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// RandomWalk is the no-route demo feed: each tick perturbs the last known
// position by a small random delta. Advisory firing for this feed is handled
// by the trigger engine's countdown mode, not by geofence containment.
type RandomWalk struct {
	tick       time.Duration
	stepMeters float64
	rng        *rand.Rand
	log        *zap.Logger

	out      chan geo.PositionSample
	stopCh   chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	position geo.Point
	started  bool
}

// NewRandomWalk starts walking from origin. Seed fixes the trajectory for
// reproducible demos; pass 0 for a time-based seed.
func NewRandomWalk(origin geo.Point, tick time.Duration, stepMeters float64, seed int64, log *zap.Logger) *RandomWalk {
	if tick <= 0 {
		tick = DefaultWalkTick
	}
	if stepMeters <= 0 {
		stepMeters = 30
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RandomWalk{
		tick:       tick,
		stepMeters: stepMeters,
		rng:        rand.New(rand.NewSource(seed)),
		log:        log,
		out:        make(chan geo.PositionSample, sampleBuffer),
		stopCh:     make(chan struct{}),
		position:   origin,
	}
}

func (w *RandomWalk) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("random walk already started")
	}
	if !geo.Valid(w.position) {
		w.mu.Unlock()
		return errors.New("random walk needs a valid origin")
	}
	w.started = true
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

func (w *RandomWalk) Samples() <-chan geo.PositionSample {
	return w.out
}

func (w *RandomWalk) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Position returns the walker's current location.
func (w *RandomWalk) Position() geo.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

func (w *RandomWalk) run(ctx context.Context) {
	defer close(w.out)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			emit(w.out, w.step())
		}
	}
}

func (w *RandomWalk) step() geo.PositionSample {
	w.mu.Lock()
	defer w.mu.Unlock()

	north := (w.rng.Float64()*2 - 1) * w.stepMeters
	east := (w.rng.Float64()*2 - 1) * w.stepMeters
	w.position = geo.Offset(w.position, north, east)

	return geo.PositionSample{
		Point:     w.position,
		Accuracy:  15,
		Timestamp: nowMillis(),
	}
}
