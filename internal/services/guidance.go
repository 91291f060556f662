// Package services wires the guidance session together: route and zone
// lifecycle, the position sample loop, and the presentation side effects.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/cache"
	"github.com/kawanjalan/guidance/internal/clients/directions"
	"github.com/kawanjalan/guidance/internal/clients/hazards"
	"github.com/kawanjalan/guidance/internal/clients/places"
	"github.com/kawanjalan/guidance/internal/config"
	"github.com/kawanjalan/guidance/internal/lib/catalog"
	"github.com/kawanjalan/guidance/internal/lib/feed"
	"github.com/kawanjalan/guidance/internal/lib/geo"
	"github.com/kawanjalan/guidance/internal/lib/overlay"
	"github.com/kawanjalan/guidance/internal/lib/zones"
)

// RouteSource computes a route between two points.
type RouteSource interface {
	ComputeRoute(ctx context.Context, origin, destination geo.Point, mode catalog.VehicleMode) (*directions.Route, error)
}

// PlaceSource resolves destination queries.
type PlaceSource interface {
	Autocomplete(ctx context.Context, query string, near *geo.Point) ([]places.Suggestion, error)
	Details(ctx context.Context, placeID string) (*places.Detail, error)
}

// HazardSource lists reported hazards near a route.
type HazardSource interface {
	FetchNearRoute(ctx context.Context, route []geo.Point, radiusMeters float64) ([]hazards.Hazard, error)
}

// FeedKind names the active position source, for the monitor API.
type FeedKind string

const (
	FeedNone       FeedKind = "waiting_for_signal"
	FeedTracking   FeedKind = "tracking"
	FeedTravelSim  FeedKind = "travel_simulation"
	FeedRandomWalk FeedKind = "random_walk"
)

// SessionStatus is a snapshot of the guidance session.
type SessionStatus struct {
	Mode         catalog.VehicleMode `json:"mode"`
	Origin       geo.Point           `json:"origin"`
	Destination  *geo.Point          `json:"destination,omitempty"`
	RoutePoints  int                 `json:"route_points"`
	ZoneCount    int                 `json:"zone_count"`
	TriggeredIDs []string            `json:"triggered_ids,omitempty"`
	Overlay      overlay.State       `json:"overlay"`
	Silent       bool                `json:"silent"`
	Feed         FeedKind            `json:"feed"`
	Arrived      bool                `json:"arrived"`
	CacheEntries int                 `json:"cache_entries"`
	LastSampleAt *time.Time          `json:"last_sample_at,omitempty"`
}

// GuidanceService owns one guidance session: the route, its zones, the
// triggered set, and the active feed. All entry points are safe for
// concurrent use; the arbiter owns the presentation slot.
type GuidanceService struct {
	cfg       *config.Config
	routes    RouteSource
	placeSrc  PlaceSource
	hazardSrc HazardSource
	cache     *cache.Cache
	catalog   *catalog.Catalog
	arbiter   *overlay.Arbiter
	log       *zap.Logger

	// external real-telemetry source; nil means simulated feeds only
	positionSource <-chan geo.PositionSample

	mu           sync.Mutex
	mode         catalog.VehicleMode
	origin       geo.Point
	destination  *geo.Point
	route        []geo.Point
	engine       *zones.Engine
	activeFeed   feed.Feed
	feedKind     FeedKind
	cancelFeed   context.CancelFunc
	arrived      bool
	lastSampleAt time.Time
	closed       bool
}

// Option customizes the service.
type Option func(*GuidanceService)

// WithPositionSource attaches a real telemetry channel; when set, it takes
// precedence over the simulated feeds.
func WithPositionSource(ch <-chan geo.PositionSample) Option {
	return func(s *GuidanceService) { s.positionSource = ch }
}

// WithPlaceSource attaches a places backend for destination resolution.
func WithPlaceSource(p PlaceSource) Option {
	return func(s *GuidanceService) { s.placeSrc = p }
}

// WithHazardSource attaches a hazard feed; nearby hazards become extra zones.
func WithHazardSource(h HazardSource) Option {
	return func(s *GuidanceService) { s.hazardSrc = h }
}

// NewGuidanceService builds a session at origin in the given mode. No feed
// runs until a destination is set.
func NewGuidanceService(cfg *config.Config, routes RouteSource, store *cache.Cache, arbiter *overlay.Arbiter, origin geo.Point, mode catalog.VehicleMode, log *zap.Logger, opts ...Option) *GuidanceService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &GuidanceService{
		cfg:      cfg,
		routes:   routes,
		cache:    store,
		catalog:  cfg.AdvisoryCatalog(),
		arbiter:  arbiter,
		log:      log,
		mode:     mode,
		origin:   origin,
		engine:   zones.NewEngine(nil),
		feedKind: FeedNone,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDestination sets or replaces the destination and rebuilds the session.
// A directions failure degrades to an empty zone set; it is not an error.
func (s *GuidanceService) SetDestination(ctx context.Context, dest geo.Point) error {
	if !geo.Valid(dest) {
		return fmt.Errorf("invalid destination coordinates")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.destination = &dest
	s.rebuildLocked(ctx)
	return nil
}

// SetMode switches the vehicle mode and rebuilds the session.
func (s *GuidanceService) SetMode(ctx context.Context, mode catalog.VehicleMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	if mode == s.mode {
		return nil
	}
	s.mode = mode
	s.rebuildLocked(ctx)
	return nil
}

// SetOrigin moves the session origin and rebuilds when a destination is set.
func (s *GuidanceService) SetOrigin(ctx context.Context, origin geo.Point) error {
	if !geo.Valid(origin) {
		return fmt.Errorf("invalid origin coordinates")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	s.origin = origin
	if s.destination != nil {
		s.rebuildLocked(ctx)
	}
	return nil
}

// SearchDestination resolves a free-text query to suggestions. Failures are
// reported to the caller and never touch session state.
func (s *GuidanceService) SearchDestination(ctx context.Context, query string) ([]places.Suggestion, error) {
	if s.placeSrc == nil {
		return nil, fmt.Errorf("places backend not configured")
	}
	s.mu.Lock()
	near := s.origin
	s.mu.Unlock()

	key := "places:ac:" + query
	var cached []places.Suggestion
	if found, _ := s.cache.Get(key, &cached); found {
		return cached, nil
	}

	suggestions, err := s.placeSrc.Autocomplete(ctx, query, &near)
	if err != nil {
		return nil, fmt.Errorf("destination search failed: %w", err)
	}
	if err := s.cache.Set(key, suggestions, s.cfg.Places.CacheTTL); err != nil {
		s.log.Warn("caching suggestions failed", zap.Error(err))
	}
	return suggestions, nil
}

// SetDestinationPlace resolves a place id and sets it as the destination.
func (s *GuidanceService) SetDestinationPlace(ctx context.Context, placeID string) error {
	if s.placeSrc == nil {
		return fmt.Errorf("places backend not configured")
	}
	detail, err := s.placeSrc.Details(ctx, placeID)
	if err != nil {
		return fmt.Errorf("resolve place %s: %w", placeID, err)
	}
	return s.SetDestination(ctx, detail.Location)
}

// SetSilent toggles silent mode on the arbiter.
func (s *GuidanceService) SetSilent(silent bool) {
	s.arbiter.SetSilent(silent)
}

// Dismiss closes the active overlay, if any.
func (s *GuidanceService) Dismiss() {
	s.arbiter.Dismiss()
}

// Zones returns the current zone set.
func (s *GuidanceService) Zones() []zones.RouteZone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Zones()
}

// Status returns a session snapshot.
func (s *GuidanceService) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SessionStatus{
		Mode:         s.mode,
		Origin:       s.origin,
		Destination:  s.destination,
		RoutePoints:  len(s.route),
		ZoneCount:    len(s.engine.Zones()),
		TriggeredIDs: s.engine.TriggeredIDs(),
		Overlay:      s.arbiter.State(),
		Silent:       s.arbiter.Silent(),
		Feed:         s.feedKind,
		Arrived:      s.arrived,
		CacheEntries: s.cache.Len(),
	}
	if !s.lastSampleAt.IsZero() {
		t := s.lastSampleAt
		status.LastSampleAt = &t
	}
	return status
}

// Close tears the session down: feed stopped, timers cleared, speech cut.
func (s *GuidanceService) Close() {
	s.mu.Lock()
	s.closed = true
	s.teardownFeedLocked()
	s.mu.Unlock()
	s.arbiter.Close()
}

// rebuildLocked recomputes route and zones and restarts the feed. Caller
// holds the mutex.
func (s *GuidanceService) rebuildLocked(ctx context.Context) {
	s.teardownFeedLocked()
	s.arbiter.Dismiss()
	s.arrived = false

	if s.destination == nil {
		s.route = nil
		s.engine = zones.NewEngine(nil)
		s.feedKind = FeedNone
		return
	}

	s.route = s.fetchRoute(ctx)
	zoneSet := zones.Place(s.route, s.origin, *s.destination, s.mode, s.catalog)
	zoneSet = append(zoneSet, s.fetchHazardZones(ctx)...)
	s.engine = zones.NewEngine(zoneSet)

	s.log.Info("session rebuilt",
		zap.String("mode", string(s.mode)),
		zap.Int("route_points", len(s.route)),
		zap.Int("zones", len(zoneSet)))

	s.startFeedLocked()
}

// fetchRoute returns the decoded route for the current endpoints, serving
// from cache when fresh and falling back to stale data when the backend is
// down. Any failure degrades to an empty route.
func (s *GuidanceService) fetchRoute(ctx context.Context) []geo.Point {
	if s.routes == nil || s.destination == nil {
		return nil
	}
	dest := *s.destination
	key := fmt.Sprintf("route:%.5f,%.5f:%.5f,%.5f:%s",
		s.origin.Latitude, s.origin.Longitude, dest.Latitude, dest.Longitude, s.mode)

	var cached directions.Route
	if found, _ := s.cache.Get(key, &cached); found {
		if points, err := geo.DecodePolyline(cached.EncodedPolyline); err == nil {
			return points
		}
		// A cached entry that no longer decodes is useless; drop it so
		// the stale path cannot resurrect it either.
		s.cache.Delete(key)
	}

	computed, err := s.routes.ComputeRoute(ctx, s.origin, dest, s.mode)
	if err != nil {
		s.log.Warn("directions unavailable, trying stale cache", zap.Error(err))
		if found, _ := s.cache.GetStale(key, &cached); found {
			if points, decodeErr := geo.DecodePolyline(cached.EncodedPolyline); decodeErr == nil {
				if age, ok := s.cache.Age(key); ok {
					s.log.Info("serving stale route", zap.Duration("age", age))
				}
				return points
			}
		}
		return nil
	}

	points, err := geo.DecodePolyline(computed.EncodedPolyline)
	if err != nil {
		// A malformed polyline degrades exactly like an unavailable route.
		s.log.Warn("directions returned malformed polyline", zap.Error(err))
		return nil
	}

	if err := s.cache.Set(key, computed, s.cfg.Directions.CacheTTL); err != nil {
		s.log.Warn("caching route failed", zap.Error(err))
	}
	return points
}

// fetchHazardZones converts hazards near the route into extra zones. Feed
// failures degrade to none.
func (s *GuidanceService) fetchHazardZones(ctx context.Context) []zones.RouteZone {
	if s.hazardSrc == nil || len(s.route) == 0 {
		return nil
	}
	found, err := s.hazardSrc.FetchNearRoute(ctx, s.route, s.cfg.Hazards.RadiusMeters)
	if err != nil {
		s.log.Warn("hazard feed unavailable", zap.Error(err))
		return nil
	}

	var result []zones.RouteZone
	for _, h := range found {
		template := catalog.Template{
			ID:       "hazard",
			Category: "hazard",
			Message:  hazardMessage(h),
		}
		result = append(result, zones.FromHazards([]geo.Point{h.Location}, template)...)
	}
	return result
}

func hazardMessage(h hazards.Hazard) string {
	if h.Description != "" {
		return fmt.Sprintf("Hati-hati, ada laporan: %s", h.Description)
	}
	return fmt.Sprintf("Hati-hati, ada laporan %s di dekat rutemu", h.Name)
}

// startFeedLocked launches the appropriate feed for the current session
// state. Caller holds the mutex.
func (s *GuidanceService) startFeedLocked() {
	ctx, cancel := context.WithCancel(context.Background())

	var (
		f      feed.Feed
		kind   FeedKind
		engine = s.engine
	)

	switch {
	case s.positionSource != nil:
		f = feed.NewTracker(s.positionSource, s.log)
		kind = FeedTracking

	case s.cfg.SimulatedMode(s.mode) && len(s.route) > 0:
		f = feed.NewTravelSimulator(s.route, s.cfg.Simulation.TravelTick, s.arbiter, s.handleArrival, s.log)
		kind = FeedTravelSim

	case s.cfg.SimulatedMode(s.mode):
		// No route: the demo random walk fires the mode's catalog on a
		// step count instead of geofence containment.
		f = feed.NewRandomWalk(s.origin, s.cfg.Simulation.WalkTick, s.cfg.Simulation.WalkStepMeters, 0, s.log)
		demo := zones.Synthetic(s.origin, s.catalog.ForMode(s.mode))
		engine = zones.NewCountdownEngine(demo, s.cfg.Simulation.WalkFireEvery)
		s.engine = engine
		kind = FeedRandomWalk

	default:
		cancel()
		s.feedKind = FeedNone
		return
	}

	if err := f.Start(ctx); err != nil {
		s.log.Warn("feed start failed", zap.Error(err))
		cancel()
		s.feedKind = FeedNone
		return
	}

	s.activeFeed = f
	s.cancelFeed = cancel
	s.feedKind = kind

	go s.consume(f, engine)
}

// consume drives the sample loop for one feed generation. It exits when the
// feed's channel closes, so a torn-down feed can never touch a newer engine.
func (s *GuidanceService) consume(f feed.Feed, engine *zones.Engine) {
	for sample := range f.Samples() {
		s.mu.Lock()
		s.lastSampleAt = time.Now()
		s.mu.Unlock()

		// One advisory at a time: no zone test while an overlay is up.
		if s.arbiter.Active() {
			continue
		}

		if firing, ok := engine.Evaluate(sample); ok {
			s.present(firing)
		}
	}
}

// present pushes a fired zone to the arbiter and requests the side-channel
// notification through it.
func (s *GuidanceService) present(firing zones.Firing) {
	position := firing.Sample.Point
	s.arbiter.Trigger(overlay.Request{
		Title:    advisoryTitle(firing.Zone.Template.Category),
		Text:     firing.Zone.Template.Message,
		Category: firing.Zone.Template.Category,
		CTALabel: firing.Zone.Template.CTALabel,
		Source:   firing.Zone.ID,
		Position: &position,
	})
}

// handleArrival runs once when the travel simulator reaches the final route
// index. Guarded by its own flag, independent of the triggered set.
func (s *GuidanceService) handleArrival() {
	s.mu.Lock()
	if s.arrived {
		s.mu.Unlock()
		return
	}
	s.arrived = true
	dest := s.destination
	s.mu.Unlock()

	template := catalog.Arrival()
	req := overlay.Request{
		Title:    advisoryTitle(template.Category),
		Text:     template.Message,
		Category: template.Category,
		Source:   "arrival",
	}
	if dest != nil {
		req.Position = dest
	}
	s.arbiter.Trigger(req)
}

func (s *GuidanceService) teardownFeedLocked() {
	if s.cancelFeed != nil {
		s.cancelFeed()
		s.cancelFeed = nil
	}
	if s.activeFeed != nil {
		s.activeFeed.Stop()
		s.activeFeed = nil
	}
	s.feedKind = FeedNone
}

func advisoryTitle(category string) string {
	switch category {
	case "arrival":
		return "Sampai Tujuan"
	case "hazard":
		return "Peringatan"
	default:
		return "Kawan Jalan"
	}
}
