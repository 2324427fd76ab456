package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"tourgo/pkg/catalog"
	"tourgo/pkg/model"
)

// POIHandler exposes the POI catalog.
type POIHandler struct {
	catalog *catalog.Manager
}

// NewPOIHandler creates a new POI handler.
func NewPOIHandler(cat *catalog.Manager) *POIHandler {
	return &POIHandler{catalog: cat}
}

// HandleList handles GET /api/pois. Pass ?all=1 to include inactive POIs.
func (h *POIHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var pois []*model.POI
	if r.URL.Query().Get("all") != "" {
		pois = h.catalog.AllPOIs()
	} else {
		pois = h.catalog.ActivePOIs()
	}
	if pois == nil {
		pois = []*model.POI{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pois); err != nil {
		slog.Error("Failed to encode POI list", "error", err)
	}
}

// HandleGet handles GET /api/pois/{id}.
func (h *POIHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetPOI(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("Failed to encode POI", "error", err)
	}
}
