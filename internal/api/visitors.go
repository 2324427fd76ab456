package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tourgo/pkg/catalog"
	"tourgo/pkg/engine"
	"tourgo/pkg/geo"
	"tourgo/pkg/model"
	"tourgo/pkg/store"
	"tourgo/pkg/visitor"
)

// VisitorHandler exposes visitor registration, location updates and
// narration triggering.
type VisitorHandler struct {
	engine *engine.Engine
	visits store.VisitStore
}

// NewVisitorHandler creates a new visitor handler. visits may be nil when
// no persistent visit log is available.
func NewVisitorHandler(e *engine.Engine, visits store.VisitStore) *VisitorHandler {
	return &VisitorHandler{engine: e, visits: visits}
}

type registerRequest struct {
	DeviceID string `json:"device_id"`
	Language string `json:"language"`
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

type languageRequest struct {
	Language string `json:"language"`
}

type narrateRequest struct {
	POIID  string `json:"poi_id"`
	Reason string `json:"reason"`
}

// HandleRegister handles POST /api/visitors.
func (h *VisitorHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	v := h.engine.RegisterVisitor(req.DeviceID, model.Language(req.Language))
	slog.Info("Visitor registered", "visitor", v.ID, "device", req.DeviceID, "language", v.Language)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode visitor", "error", err)
	}
}

// HandleGet handles GET /api/visitors/{id}.
func (h *VisitorHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.Visitor(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode visitor", "error", err)
	}
}

// HandleLocation handles POST /api/visitors/{id}/location.
// It only moves the visitor; no trigger decision is made.
func (h *VisitorHandler) HandleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	loc := geo.Point{Lat: req.Lat, Lon: req.Lon, Alt: req.Alt}
	if err := h.engine.UpdateVisitorLocation(r.Context(), r.PathValue("id"), loc); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleLanguage handles POST /api/visitors/{id}/language.
func (h *VisitorHandler) HandleLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Language) != 2 {
		http.Error(w, "language must be a two-letter code", http.StatusBadRequest)
		return
	}

	if err := h.engine.SetPreferredLanguage(r.Context(), r.PathValue("id"), model.Language(req.Language)); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleTrigger handles POST /api/visitors/{id}/trigger.
func (h *VisitorHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	loc := geo.Point{Lat: req.Lat, Lon: req.Lon, Alt: req.Alt}
	res, err := h.engine.TriggerNarration(r.Context(), r.PathValue("id"), loc)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to encode narration result", "error", err)
	}
}

// HandleNarrate handles POST /api/visitors/{id}/narrate.
// It surfaces narration for a named POI, bypassing the proximity gate.
func (h *VisitorHandler) HandleNarrate(w http.ResponseWriter, r *http.Request) {
	var req narrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.POIID == "" {
		http.Error(w, "poi_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.engine.TriggerManual(r.Context(), r.PathValue("id"), req.POIID, model.TriggerReason(req.Reason))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to encode narration result", "error", err)
	}
}

// HandleHistory handles GET /api/visitors/{id}/history.
func (h *VisitorHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	v, err := h.engine.Visitor(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	visits := v.Visits
	if len(visits) == 0 && h.visits != nil {
		// Nothing in memory yet for this visitor. A restart loses the
		// in-memory log, so fall back to the persisted one.
		stored, err := h.visits.GetVisits(r.Context(), v.ID)
		if err != nil {
			slog.Warn("Failed to load persisted visit history", "visitor", v.ID, "error", err)
		} else {
			visits = stored
		}
	}
	if visits == nil {
		visits = []model.VisitLogEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(visits); err != nil {
		slog.Error("Failed to encode visit history", "error", err)
	}
}

// writeEngineError maps engine errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, visitor.ErrVisitorNotFound):
		http.Error(w, "visitor not found", http.StatusNotFound)
	case errors.Is(err, catalog.ErrPOINotFound):
		http.Error(w, "POI not found", http.StatusNotFound)
	case errors.Is(err, geo.ErrInvalidCoordinate):
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
	case errors.Is(err, engine.ErrInvalidTriggerReason):
		http.Error(w, "invalid trigger reason", http.StatusBadRequest)
	default:
		slog.Error("Request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
