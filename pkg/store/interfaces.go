package store

import (
	"context"

	"tourgo/pkg/model"
)

// POIStore handles point-of-interest persistence. POIs are saved and loaded
// with their owned content entries.
type POIStore interface {
	GetPOI(ctx context.Context, id string) (*model.POI, error)
	ListPOIs(ctx context.Context) ([]*model.POI, error)
	SavePOI(ctx context.Context, poi *model.POI) error
}

// VisitStore handles the append-only visit log.
type VisitStore interface {
	AppendVisit(ctx context.Context, visitorID string, entry *model.VisitLogEntry) error
	GetVisits(ctx context.Context, visitorID string) ([]model.VisitLogEntry, error)
}

// Store composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	POIStore
	VisitStore

	// Close closes the store connection.
	Close() error
}
