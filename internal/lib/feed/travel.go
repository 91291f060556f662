package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// TravelSimulator replays a decoded route, advancing one point per tick. It
// pauses while the pauser reports an active overlay so the rider is never
// mid-zone when the advisory clears, and invokes onArrival exactly once when
// the final index is reached.
type TravelSimulator struct {
	route     []geo.Point
	tick      time.Duration
	pauser    Pauser
	onArrival func()
	log       *zap.Logger

	out      chan geo.PositionSample
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	index   int
	started bool
	arrived bool
}

// NewTravelSimulator builds a simulator over route. pauser and onArrival may
// be nil.
func NewTravelSimulator(route []geo.Point, tick time.Duration, pauser Pauser, onArrival func(), log *zap.Logger) *TravelSimulator {
	if tick <= 0 {
		tick = DefaultTravelTick
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TravelSimulator{
		route:     route,
		tick:      tick,
		pauser:    pauser,
		onArrival: onArrival,
		log:       log,
		out:       make(chan geo.PositionSample, sampleBuffer),
		stopCh:    make(chan struct{}),
	}
}

func (s *TravelSimulator) Start(ctx context.Context) error {
	if len(s.route) == 0 {
		return errors.New("travel simulator needs a non-empty route")
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("travel simulator already started")
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

func (s *TravelSimulator) Samples() <-chan geo.PositionSample {
	return s.out
}

func (s *TravelSimulator) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Index returns the current route index, for the monitor API.
func (s *TravelSimulator) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *TravelSimulator) run(ctx context.Context) {
	defer close(s.out)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// Emit the departure point immediately; ticks advance from there.
	emit(s.out, s.sampleFor(0))

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.pauser != nil && s.pauser.Active() {
				continue
			}
			if s.advance() {
				return
			}
		}
	}
}

// advance moves one route index and emits it. Returns true once the route is
// exhausted and the arrival callback has run.
func (s *TravelSimulator) advance() bool {
	s.mu.Lock()
	if s.index < len(s.route)-1 {
		s.index++
	}
	i := s.index
	last := i == len(s.route)-1
	firstArrival := last && !s.arrived
	if firstArrival {
		s.arrived = true
	}
	s.mu.Unlock()

	emit(s.out, s.sampleFor(i))

	if firstArrival {
		s.log.Info("travel simulation reached destination", zap.Int("points", len(s.route)))
		if s.onArrival != nil {
			s.onArrival()
		}
	}
	return last
}

// sampleFor synthesizes a full sample for route index i, deriving speed and
// heading from the segment being traversed.
func (s *TravelSimulator) sampleFor(i int) geo.PositionSample {
	sample := geo.PositionSample{
		Point:     s.route[i],
		Accuracy:  5,
		Timestamp: nowMillis(),
	}
	if i > 0 {
		speed := geo.Haversine(s.route[i-1], s.route[i]) / s.tick.Seconds()
		heading := geo.Bearing(s.route[i-1], s.route[i])
		sample.Speed = &speed
		sample.Heading = &heading
	}
	return sample
}
