package geo

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Venue represents the physical grounds of a deployment, loaded from a
// GeoJSON polygon. Visitors outside the venue never trigger narration.
type Venue struct {
	name     string
	features *geojson.FeatureCollection
}

// LoadVenue loads the venue boundary from a GeoJSON file.
func LoadVenue(path string) (*Venue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read venue GeoJSON: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse venue GeoJSON: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("venue GeoJSON contains no features")
	}

	name := ""
	if n, ok := fc.Features[0].Properties["name"].(string); ok {
		name = n
	}

	slog.Info("Venue: Loaded boundary", "name", name, "features", len(fc.Features))

	return &Venue{name: name, features: fc}, nil
}

// Name returns the venue name from the boundary file, if any.
func (v *Venue) Name() string {
	return v.name
}

// Contains reports whether the point lies inside any venue polygon.
func (v *Venue) Contains(p Point) bool {
	pt := orb.Point{p.Lon, p.Lat} // orb uses [lon, lat] order
	for _, feature := range v.features.Features {
		if geometryContains(feature.Geometry, pt) {
			return true
		}
	}
	return false
}

func geometryContains(geom orb.Geometry, pt orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		for _, poly := range g {
			if planar.PolygonContains(poly, pt) {
				return true
			}
		}
	}
	return false
}
