// Package overlay owns the single-slot advisory presentation: the visual
// overlay with its typed-text animation, the spoken advisory, and the
// auto-dismiss timer. At most one advisory is ever active.
package overlay

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kawanjalan/guidance/internal/lib/geo"
)

// SpeechOptions configures a single utterance.
type SpeechOptions struct {
	Language string
	Rate     float64
	Pitch    float64
}

// Speaker bridges to a text-to-speech service. Fire-and-forget; the arbiter
// never blocks on completion.
type Speaker interface {
	Speak(text string, opts SpeechOptions)
	Stop()
}

// Notifier bridges to a system-notification scheduler. Best-effort; failures
// are logged and dropped.
type Notifier interface {
	Schedule(title, body string, data map[string]string) error
}

// Request asks the arbiter to present one advisory.
type Request struct {
	Title    string
	Text     string
	Category string
	CTALabel string
	Source   string // zone id, "arrival", or a feed tag
	Position *geo.Point
}

// State is a snapshot of the presentation slot.
type State struct {
	Active    bool      `json:"active"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text,omitempty"`
	TypedText string    `json:"typed_text,omitempty"`
	Category  string    `json:"category,omitempty"`
	CTALabel  string    `json:"cta_label,omitempty"`
	Source    string    `json:"source,omitempty"`
	FiredAt   time.Time `json:"fired_at,omitempty"`
	Spoken    bool      `json:"spoken"`
}

// Config holds the arbiter's timing windows. Tests inject short values.
type Config struct {
	DedupWindow      time.Duration // identical-text trigger suppression
	SpeakDedupWindow time.Duration // minimum gap between any two utterances
	DismissAfter     time.Duration // overlay lifetime
	TypeInterval     time.Duration // typed-text reveal cadence
	Speech           SpeechOptions
}

// DefaultConfig returns the production timing windows.
func DefaultConfig() Config {
	return Config{
		DedupWindow:      4 * time.Second,
		SpeakDedupWindow: 2 * time.Second,
		DismissAfter:     15 * time.Second,
		TypeInterval:     50 * time.Millisecond,
		Speech:           SpeechOptions{Language: "id-ID", Rate: 1.0, Pitch: 1.0},
	}
}

// Arbiter serializes advisory presentation. All mutation goes through
// Trigger, Dismiss, and SetSilent; timer callbacks are generation-guarded so
// nothing fires into a torn-down overlay.
type Arbiter struct {
	cfg      Config
	speaker  Speaker
	notifier Notifier
	log      *zap.Logger

	mu    sync.Mutex
	state State
	gen   uint64 // bumped on every trigger/dismiss; stale callbacks bail

	silent       bool
	speechLocked bool

	lastText      string // normalized text of the last accepted trigger
	lastTriggerAt time.Time
	lastSpokenAt  time.Time

	dismissTimer *time.Timer
	typeTimer    *time.Timer
	typedRunes   []rune
	typedCount   int

	now func() time.Time
}

// New creates an arbiter. speaker and notifier may be nil, which disables the
// respective side channel.
func New(cfg Config, speaker Speaker, notifier Notifier, log *zap.Logger) *Arbiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Arbiter{
		cfg:      cfg,
		speaker:  speaker,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Trigger presents an advisory. Returns false when the request is suppressed
// by the dedup guard: identical normalized text within the dedup window.
func (a *Arbiter) Trigger(req Request) bool {
	a.mu.Lock()

	norm := Normalize(req.Text)
	nowTime := a.now()
	if norm != "" && norm == a.lastText && nowTime.Sub(a.lastTriggerAt) < a.cfg.DedupWindow {
		a.mu.Unlock()
		a.log.Debug("overlay trigger suppressed as duplicate",
			zap.String("source", req.Source))
		return false
	}

	a.gen++
	gen := a.gen
	a.stopTimersLocked()

	a.state = State{
		Active:   true,
		Title:    req.Title,
		Text:     req.Text,
		Category: req.Category,
		CTALabel: req.CTALabel,
		Source:   req.Source,
		FiredAt:  nowTime,
	}
	a.lastText = norm
	a.lastTriggerAt = nowTime

	a.typedRunes = []rune(req.Text)
	a.typedCount = 0
	if len(a.typedRunes) > 0 && a.cfg.TypeInterval > 0 {
		a.typeTimer = time.AfterFunc(a.cfg.TypeInterval, func() { a.typeStep(gen) })
	} else {
		a.state.TypedText = req.Text
	}

	if a.cfg.DismissAfter > 0 {
		a.dismissTimer = time.AfterFunc(a.cfg.DismissAfter, func() { a.dismissGen(gen) })
	}

	a.maybeSpeakLocked(norm, nowTime)
	a.mu.Unlock()

	a.dispatchNotification(req, norm)

	a.log.Info("advisory presented",
		zap.String("source", req.Source),
		zap.String("category", req.Category))
	return true
}

// maybeSpeakLocked speaks the advisory unless silent mode, the speech lock,
// or the utterance dedup window forbids it. Caller holds the mutex.
func (a *Arbiter) maybeSpeakLocked(norm string, nowTime time.Time) {
	if a.speaker == nil || a.silent || a.state.Spoken || a.speechLocked {
		return
	}
	if !a.lastSpokenAt.IsZero() && nowTime.Sub(a.lastSpokenAt) < a.cfg.SpeakDedupWindow {
		return
	}
	a.speechLocked = true
	a.state.Spoken = true
	a.lastSpokenAt = nowTime
	a.speaker.Speak(norm, a.cfg.Speech)
}

// dispatchNotification requests a best-effort system notification mirroring
// the overlay. Runs outside the mutex; failures never propagate.
func (a *Arbiter) dispatchNotification(req Request, body string) {
	if a.notifier == nil {
		return
	}
	data := map[string]string{
		"category": req.Category,
		"source":   req.Source,
	}
	if req.Position != nil {
		data["lat"] = formatCoord(req.Position.Latitude)
		data["lng"] = formatCoord(req.Position.Longitude)
	}
	if err := a.notifier.Schedule(req.Title, body, data); err != nil {
		a.log.Warn("notification dispatch failed", zap.Error(err))
	}
}

// typeStep reveals one more character, then re-arms itself until the full
// text is shown.
func (a *Arbiter) typeStep(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || !a.state.Active {
		return
	}
	if a.typedCount < len(a.typedRunes) {
		a.typedCount++
		a.state.TypedText = string(a.typedRunes[:a.typedCount])
	}
	if a.typedCount < len(a.typedRunes) {
		a.typeTimer = time.AfterFunc(a.cfg.TypeInterval, func() { a.typeStep(gen) })
	}
}

// Dismiss clears the overlay, stops speech and all timers, and frees the
// trigger engine to resume scanning.
func (a *Arbiter) Dismiss() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dismissLocked()
}

func (a *Arbiter) dismissGen(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		return
	}
	a.dismissLocked()
}

func (a *Arbiter) dismissLocked() {
	if !a.state.Active {
		return
	}
	a.gen++
	a.stopTimersLocked()
	if a.speechLocked {
		if a.speaker != nil {
			a.speaker.Stop()
		}
		a.speechLocked = false
	}
	a.state = State{}
}

// SetSilent toggles silent mode. Enabling it stops in-flight speech
// immediately but leaves the overlay and its dismiss timer untouched.
func (a *Arbiter) SetSilent(silent bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.silent = silent
	if silent && a.speechLocked {
		if a.speaker != nil {
			a.speaker.Stop()
		}
		a.speechLocked = false
	}
}

// Silent reports the current silent-mode flag.
func (a *Arbiter) Silent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.silent
}

// Active reports whether an advisory is on screen. The trigger engine and
// the travel simulator both pause on this.
func (a *Arbiter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Active
}

// State returns a snapshot of the presentation slot.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Close tears the arbiter down when the guidance session ends: the overlay is
// cleared and speech stopped rather than left to finish.
func (a *Arbiter) Close() {
	a.Dismiss()
}

func (a *Arbiter) stopTimersLocked() {
	if a.dismissTimer != nil {
		a.dismissTimer.Stop()
		a.dismissTimer = nil
	}
	if a.typeTimer != nil {
		a.typeTimer.Stop()
		a.typeTimer = nil
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
