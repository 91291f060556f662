package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// Tracker passes platform location updates through unchanged, dropping
// samples with out-of-range coordinates. The platform bridge writes to the
// source channel; everything downstream sees the common Feed shape.
type Tracker struct {
	source <-chan geo.PositionSample
	log    *zap.Logger

	out      chan geo.PositionSample
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	started bool
}

// NewTracker wraps an external sample channel.
func NewTracker(source <-chan geo.PositionSample, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		source: source,
		log:    log,
		out:    make(chan geo.PositionSample, sampleBuffer),
		stopCh: make(chan struct{}),
	}
}

func (t *Tracker) Start(ctx context.Context) error {
	if t.source == nil {
		return errors.New("tracker needs a source channel")
	}
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("tracker already started")
	}
	t.started = true
	t.mu.Unlock()

	go t.run(ctx)
	return nil
}

func (t *Tracker) Samples() <-chan geo.PositionSample {
	return t.out
}

func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case sample, ok := <-t.source:
			if !ok {
				return
			}
			if !geo.Valid(sample.Point) {
				t.log.Debug("dropping sample with invalid coordinates",
					zap.Float64("lat", sample.Latitude),
					zap.Float64("lng", sample.Longitude))
				continue
			}
			emit(t.out, sample)
		}
	}
}
