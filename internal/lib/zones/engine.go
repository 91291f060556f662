package zones

import (
	"sync"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// TriggerMode selects how the engine decides a zone has been hit.
type TriggerMode int

const (
	// TriggerGeofence fires the first unfired zone containing the sample.
	TriggerGeofence TriggerMode = iota

	// TriggerCountdown fires the next unfired zone every N samples,
	// ignoring position. Used by the random-walk demo feed, which has no
	// meaningful trajectory to geofence against.
	TriggerCountdown
)

// Engine evaluates position samples against a zone set. Each zone fires at
// most once per route lifetime; Reset swaps in a new zone set and clears the
// triggered set. Safe for concurrent use.
type Engine struct {
	mu             sync.Mutex
	zones          []RouteZone
	triggered      map[string]bool
	mode           TriggerMode
	countdownEvery int
	sampleCount    int
}

// NewEngine returns a geofence-mode engine over the given zones.
func NewEngine(z []RouteZone) *Engine {
	return &Engine{
		zones:     z,
		triggered: make(map[string]bool),
		mode:      TriggerGeofence,
	}
}

// NewCountdownEngine returns an engine that fires the next unfired zone on
// every Nth sample.
func NewCountdownEngine(z []RouteZone, every int) *Engine {
	if every < 1 {
		every = 1
	}
	return &Engine{
		zones:          z,
		triggered:      make(map[string]bool),
		mode:           TriggerCountdown,
		countdownEvery: every,
	}
}

// Evaluate tests one sample. At most one zone fires per sample; zones are
// scanned in stored order so overlapping zones resolve to the earliest.
//
// The caller must not invoke Evaluate while an overlay is being presented;
// the session controller skips the call entirely in that state.
func (e *Engine) Evaluate(sample geo.PositionSample) (Firing, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == TriggerCountdown {
		e.sampleCount++
		if e.sampleCount%e.countdownEvery != 0 {
			return Firing{}, false
		}
		return e.fireFirstUnfired(sample, false)
	}

	return e.fireFirstUnfired(sample, true)
}

func (e *Engine) fireFirstUnfired(sample geo.PositionSample, requireContainment bool) (Firing, bool) {
	for _, z := range e.zones {
		if e.triggered[z.ID] {
			continue
		}
		if requireContainment && !z.Contains(sample.Point) {
			continue
		}
		e.triggered[z.ID] = true
		return Firing{Zone: z, Sample: sample}, true
	}
	return Firing{}, false
}

// Reset replaces the zone set and clears all fired state. Called whenever the
// route, destination, or vehicle mode changes.
func (e *Engine) Reset(z []RouteZone) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zones = z
	e.triggered = make(map[string]bool)
	e.sampleCount = 0
}

// Zones returns the current zone set.
func (e *Engine) Zones() []RouteZone {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RouteZone, len(e.zones))
	copy(out, e.zones)
	return out
}

// TriggeredIDs returns the ids of zones that have fired, in stored order.
func (e *Engine) TriggeredIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, z := range e.zones {
		if e.triggered[z.ID] {
			out = append(out, z.ID)
		}
	}
	return out
}

// Remaining returns how many zones have not fired yet.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, z := range e.zones {
		if !e.triggered[z.ID] {
			count++
		}
	}
	return count
}
