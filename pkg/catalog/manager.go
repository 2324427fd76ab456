// Package catalog holds the read-mostly POI catalog and answers
// nearest-POI queries for the narration engine.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tourgo/pkg/geo"
	"tourgo/pkg/model"
	"tourgo/pkg/store"
)

// ErrPOINotFound indicates the requested POI was not found in the catalog.
var ErrPOINotFound = errors.New("poi not found")

// Manager owns the in-memory POI catalog. The catalog is read-mostly: the
// engine only reads it during evaluation, updates arrive from catalog
// management out-of-band.
type Manager struct {
	store  store.POIStore
	logger *slog.Logger

	mu   sync.RWMutex
	pois []*model.POI // insertion order, drives deterministic tie-breaks
	byID map[string]*model.POI

	index *cellIndex
}

// NewManager creates a new catalog Manager. The store may be nil for a
// purely in-memory catalog (tests, seed-file-only deployments).
func NewManager(st store.POIStore) *Manager {
	return &Manager{
		store:  st,
		logger: slog.With("component", "catalog"),
		byID:   make(map[string]*model.POI),
		index:  newCellIndex(),
	}
}

// Hydrate loads all POIs from the store into the in-memory catalog.
func (m *Manager) Hydrate(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	pois, err := m.store.ListPOIs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list POIs: %w", err)
	}

	for _, p := range pois {
		m.Track(p)
	}
	m.logger.Info("Hydrated catalog", "pois", len(pois))
	return nil
}

// Upsert saves a POI to the store and tracks it in the catalog.
func (m *Manager) Upsert(ctx context.Context, p *model.POI) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	if m.store != nil {
		if err := m.store.SavePOI(ctx, p); err != nil {
			return fmt.Errorf("failed to save POI %s: %w", p.ID, err)
		}
	}
	m.Track(p)
	return nil
}

// Track adds or updates a POI in the catalog without touching the store.
// An update keeps the POI's original position in iteration order.
func (m *Manager) Track(p *model.POI) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byID[p.ID]; ok {
		m.index.remove(existing)
		for i, e := range m.pois {
			if e.ID == p.ID {
				m.pois[i] = p
				break
			}
		}
	} else {
		m.pois = append(m.pois, p)
	}
	m.byID[p.ID] = p
	m.index.add(p)

	m.logger.Debug("Tracked POI", "id", p.ID, "name", p.DisplayName(), "active", p.Active)
}

// GetPOI returns a POI by ID.
func (m *Manager) GetPOI(id string) (*model.POI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return nil, ErrPOINotFound
	}
	return p, nil
}

// ActivePOIs returns the active POIs in catalog order.
func (m *Manager) ActivePOIs() []*model.POI {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*model.POI, 0, len(m.pois))
	for _, p := range m.pois {
		if p.Active {
			list = append(list, p)
		}
	}
	return list
}

// AllPOIs returns every POI in catalog order, inactive ones included.
func (m *Manager) AllPOIs() []*model.POI {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*model.POI, len(m.pois))
	copy(list, m.pois)
	return list
}

// Count returns the number of cataloged POIs.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pois)
}

// NearestWithin returns the active POI closest to p with distance <= maxDist
// meters. Among equal minimum distances the POI earliest in catalog order
// wins. The spatial index narrows the candidate set when it can; the
// contract is identical either way.
func (m *Manager) NearestWithin(p geo.Point, maxDist float64) (*model.POI, float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates, ok := m.index.candidates(p, maxDist)
	if !ok {
		return m.scanLocked(m.pois, p, maxDist)
	}

	// Evaluate index hits in catalog order to keep tie-breaks stable.
	filtered := make([]*model.POI, 0, len(candidates))
	for _, poi := range m.pois {
		if _, hit := candidates[poi.ID]; hit {
			filtered = append(filtered, poi)
		}
	}
	return m.scanLocked(filtered, p, maxDist)
}

func (m *Manager) scanLocked(pois []*model.POI, p geo.Point, maxDist float64) (*model.POI, float64, bool) {
	var best *model.POI
	bestDist := 0.0

	for _, poi := range pois {
		if !poi.Active {
			continue
		}
		d := geo.Distance(p, geo.Point{Lat: poi.Lat, Lon: poi.Lon})
		if d > maxDist {
			continue
		}
		if best == nil || d < bestDist {
			best = poi
			bestDist = d
		}
	}

	if best == nil {
		return nil, 0, false
	}
	return best, bestDist, true
}
