// Package engine implements the proximity-triggered narration engine: it
// decides, on each location update, whether narration should begin, for
// which POI, and with which content variant.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tourgo/pkg/catalog"
	"tourgo/pkg/config"
	"tourgo/pkg/geo"
	"tourgo/pkg/logging"
	"tourgo/pkg/model"
	"tourgo/pkg/store"
	"tourgo/pkg/visitor"
)

// ErrInvalidTriggerReason indicates an unknown reason on a manual trigger.
var ErrInvalidTriggerReason = errors.New("invalid trigger reason")

// Engine orchestrates trigger evaluation over the POI catalog and the
// visitor registry.
//
// Re-fire policy: triggering is edge-triggered with a per-POI repeat
// cooldown. Once a POI fires it stays suppressed while the visitor remains
// inside the trigger radius; leaving the radius re-arms it. Independently,
// the same POI will not fire again for the same visitor within the
// configured repeat cooldown, even after re-entry.
type Engine struct {
	catalog  *catalog.Manager
	visitors *visitor.Registry
	visits   store.VisitStore // optional visit-log persistence
	venue    *geo.Venue       // optional venue boundary
	logger   *slog.Logger

	maxTriggerDistance float64
	repeatCooldown     time.Duration
	defaultLanguage    model.Language

	now func() time.Time

	mu    sync.Mutex
	state map[string]*triggerState
}

// triggerState is the per-visitor re-fire suppression state. It is only
// mutated inside Registry.With callbacks, which serialize per visitor.
type triggerState struct {
	inRangePOI string               // POI currently suppressing re-fires, "" when re-armed
	lastFired  map[string]time.Time // per-POI last successful fire
}

// New creates the narration engine. visits and venue may be nil.
func New(cfg *config.EngineConfig, cat *catalog.Manager, reg *visitor.Registry, visits store.VisitStore, venue *geo.Venue) *Engine {
	return &Engine{
		catalog:            cat,
		visitors:           reg,
		visits:             visits,
		venue:              venue,
		logger:             slog.With("component", "engine"),
		maxTriggerDistance: float64(cfg.MaxTriggerDistance),
		repeatCooldown:     time.Duration(cfg.RepeatCooldown),
		defaultLanguage:    model.Language(cfg.DefaultLanguage),
		now:                time.Now,
		state:              make(map[string]*triggerState),
	}
}

// RegisterVisitor creates a visitor for the device. An empty language
// defaults to the engine's fallback language.
func (e *Engine) RegisterVisitor(deviceID string, lang model.Language) *model.Visitor {
	if lang == "" {
		lang = e.defaultLanguage
	}
	return e.visitors.Register(deviceID, lang)
}

// Visitor returns a copy of the visitor's state.
func (e *Engine) Visitor(id string) (*model.Visitor, error) {
	return e.visitors.Snapshot(id)
}

// UpdateVisitorLocation overwrites the visitor's current location and
// last-activity timestamp. No trigger decision is made here.
func (e *Engine) UpdateVisitorLocation(ctx context.Context, visitorID string, loc geo.Point) error {
	if err := geo.Validate(loc); err != nil {
		return fmt.Errorf("location update for %s: %w", visitorID, err)
	}

	return e.visitors.With(visitorID, func(v *model.Visitor) error {
		v.Lat, v.Lon, v.Alt = loc.Lat, loc.Lon, loc.Alt
		return nil
	})
}

// SetPreferredLanguage overwrites the visitor's preferred language. It
// affects future content resolution only.
func (e *Engine) SetPreferredLanguage(ctx context.Context, visitorID string, lang model.Language) error {
	return e.visitors.With(visitorID, func(v *model.Visitor) error {
		v.Language = lang
		return nil
	})
}

// TriggerNarration moves the visitor to loc and evaluates the proximity
// trigger against the catalog. The visitor's state, the trigger state and
// the visit log are all updated under the visitor's own lock.
func (e *Engine) TriggerNarration(ctx context.Context, visitorID string, loc geo.Point) (*model.NarrationResult, error) {
	if err := geo.Validate(loc); err != nil {
		return nil, fmt.Errorf("trigger for %s: %w", visitorID, err)
	}

	var result *model.NarrationResult
	err := e.visitors.With(visitorID, func(v *model.Visitor) error {
		v.Lat, v.Lon, v.Alt = loc.Lat, loc.Lon, loc.Alt
		result = e.evaluate(ctx, v, e.stateFor(visitorID), loc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) evaluate(ctx context.Context, v *model.Visitor, st *triggerState, loc geo.Point) *model.NarrationResult {
	if e.venue != nil && !e.venue.Contains(loc) {
		st.inRangePOI = ""
		return &model.NarrationResult{
			ShouldPlay: false,
			Message:    "visitor is outside the venue grounds",
		}
	}

	nearest, dist, ok := e.catalog.NearestWithin(loc, e.maxTriggerDistance)
	if !ok {
		// Left every trigger radius: re-arm.
		st.inRangePOI = ""
		return &model.NarrationResult{
			ShouldPlay: false,
			Message:    fmt.Sprintf("no POI within %.0fm", e.maxTriggerDistance),
		}
	}

	if st.inRangePOI == nearest.ID {
		return &model.NarrationResult{
			ShouldPlay: false,
			POI:        nearest,
			Message:    fmt.Sprintf("still in range of %s, narration already surfaced", nearest.DisplayName()),
			DistanceM:  dist,
		}
	}

	now := e.now()
	if last, fired := st.lastFired[nearest.ID]; fired && now.Sub(last) < e.repeatCooldown {
		st.inRangePOI = nearest.ID
		return &model.NarrationResult{
			ShouldPlay: false,
			POI:        nearest,
			Message:    fmt.Sprintf("%s was narrated recently, repeat cooldown active", nearest.DisplayName()),
			DistanceM:  dist,
		}
	}

	st.inRangePOI = nearest.ID
	st.lastFired[nearest.ID] = now

	return e.fire(ctx, v, nearest, model.TriggerProximityDetected, dist)
}

// fire resolves content, appends the visit entry and builds the result.
// Callers hold the visitor's lock.
func (e *Engine) fire(ctx context.Context, v *model.Visitor, poi *model.POI, reason model.TriggerReason, dist float64) *model.NarrationResult {
	content, resolved := poi.ResolveContent(v.Language, model.ContentTypeAudio, e.defaultLanguage)

	now := e.now()
	entry := model.VisitLogEntry{
		POIID:         poi.ID,
		VisitedAt:     now,
		DurationSec:   0,
		ContentPlayed: resolved,
	}
	v.Visits = append(v.Visits, entry)

	if e.visits != nil {
		if err := e.visits.AppendVisit(ctx, v.ID, &entry); err != nil {
			e.logger.Warn("Failed to persist visit", "visitor", v.ID, "poi", poi.ID, "error", err)
		}
	}
	logging.LogVisit(v.ID, poi.DisplayName(), string(reason), now)

	msg := fmt.Sprintf("now approaching %s", poi.DisplayName())
	if !resolved {
		msg = fmt.Sprintf("no %s content available for %s", v.Language, poi.DisplayName())
	}

	e.logger.Info("Narration triggered",
		"visitor", v.ID, "poi", poi.ID, "reason", reason,
		"should_play", resolved, "distance_m", dist)

	return &model.NarrationResult{
		ShouldPlay: resolved,
		POI:        poi,
		Content:    content,
		Message:    msg,
		Reason:     reason,
		DistanceM:  dist,
	}
}

// TriggerManual surfaces narration for a specific POI, bypassing the
// proximity gate. Reason must be ManualRequest, ScheduledEvent or
// FirstVisit; an empty reason picks FirstVisit for a visitor with no visit
// history and ManualRequest otherwise. FirstVisit only fires on an empty
// history.
func (e *Engine) TriggerManual(ctx context.Context, visitorID, poiID string, reason model.TriggerReason) (*model.NarrationResult, error) {
	switch reason {
	case "", model.TriggerManualRequest, model.TriggerScheduledEvent, model.TriggerFirstVisit:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTriggerReason, reason)
	}

	poi, err := e.catalog.GetPOI(poiID)
	if err != nil {
		return nil, err
	}

	var result *model.NarrationResult
	err = e.visitors.With(visitorID, func(v *model.Visitor) error {
		r := reason
		if r == "" {
			if len(v.Visits) == 0 {
				r = model.TriggerFirstVisit
			} else {
				r = model.TriggerManualRequest
			}
		}
		if r == model.TriggerFirstVisit && len(v.Visits) > 0 {
			result = &model.NarrationResult{
				ShouldPlay: false,
				POI:        poi,
				Message:    "first-visit narration already consumed",
			}
			return nil
		}
		if !poi.Active {
			result = &model.NarrationResult{
				ShouldPlay: false,
				POI:        poi,
				Message:    fmt.Sprintf("%s is not currently available", poi.DisplayName()),
			}
			return nil
		}

		here := geo.Point{Lat: v.Lat, Lon: v.Lon}
		there := geo.Point{Lat: poi.Lat, Lon: poi.Lon}
		dist := geo.Distance(here, there)
		result = e.fire(ctx, v, poi, r, dist)

		// The visitor is not standing at the POI: point them at it.
		if dist > e.maxTriggerDistance {
			result.Message = fmt.Sprintf("%s is %.0fm to the %s",
				poi.DisplayName(), dist, geo.CardinalName(geo.Bearing(here, there)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EvictIdle removes visitors idle past the registry TTL together with
// their trigger state, and returns how many were evicted.
func (e *Engine) EvictIdle() int {
	evicted := e.visitors.Cleanup()
	if len(evicted) == 0 {
		return 0
	}

	e.mu.Lock()
	for _, id := range evicted {
		delete(e.state, id)
	}
	e.mu.Unlock()
	return len(evicted)
}

// stateFor returns the trigger state for a visitor, creating it if needed.
func (e *Engine) stateFor(visitorID string) *triggerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.state[visitorID]
	if !ok {
		st = &triggerState{lastFired: make(map[string]time.Time)}
		e.state[visitorID] = st
	}
	return st
}
