package model

import (
	"time"
)

// POIType categorizes a point of interest.
type POIType string

// POI types.
const (
	POITypeRestaurant POIType = "restaurant"
	POITypeFoodStall  POIType = "food_stall"
	POITypeLandmark   POIType = "landmark"
	POITypeEntrance   POIType = "entrance"
	POITypeRestArea   POIType = "rest_area"
	POITypeCultural   POIType = "cultural"
	POITypeHistorical POIType = "historical"
)

// TriggerReason describes why a narration was surfaced.
type TriggerReason string

// Trigger reasons.
const (
	TriggerProximityDetected TriggerReason = "proximity_detected"
	TriggerManualRequest     TriggerReason = "manual_request"
	TriggerScheduledEvent    TriggerReason = "scheduled_event"
	TriggerFirstVisit        TriggerReason = "first_visit"
)

// POI represents a point of interest on the venue grounds.
type POI struct {
	ID   string  `json:"id"`   // Primary Key
	Code string  `json:"code"` // Human-readable catalog key, e.g. "temple-gate"
	Type POIType `json:"type"`
	Name string  `json:"name"`

	// Coordinates
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`

	// Owned content. Content has no lifecycle outside its POI.
	Contents []Content `json:"contents"`

	Tags   []string `json:"tags"`
	Active bool     `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the best available label for the POI.
func (p *POI) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Code != "" {
		return p.Code
	}
	return p.ID
}

// Visitor represents a device carried through the venue.
type Visitor struct {
	ID       string   `json:"id"` // Primary Key
	DeviceID string   `json:"device_id"`
	Language Language `json:"language"`

	// Current position, last-write-wins.
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`

	// Append-only, insertion-order-significant.
	Visits []VisitLogEntry `json:"visits"`

	LastSeen time.Time `json:"last_seen"`
}

// VisitLogEntry records one triggered encounter with a POI.
// Entries are immutable once appended.
type VisitLogEntry struct {
	POIID         string    `json:"poi_id"`
	VisitedAt     time.Time `json:"visited_at"`
	DurationSec   int       `json:"duration_sec"`
	ContentPlayed bool      `json:"content_played"`
}

// NarrationResult is the transient outcome of a trigger evaluation.
// It is returned to the transport layer and never persisted.
type NarrationResult struct {
	ShouldPlay bool          `json:"should_play"`
	POI        *POI          `json:"poi,omitempty"`
	Content    *Content      `json:"content,omitempty"`
	Message    string        `json:"message"`
	Reason     TriggerReason `json:"reason,omitempty"`
	DistanceM  float64       `json:"distance_m,omitempty"`
}
