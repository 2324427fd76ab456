package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourgo/pkg/geo"
	"tourgo/pkg/model"
)

// poiAt builds an active POI at the given offset (in meters, roughly) north
// of the reference point.
func poiAt(id string, origin geo.Point, northM float64) *model.POI {
	p := geo.DestinationPoint(origin, northM, 0)
	return &model.POI{ID: id, Name: id, Lat: p.Lat, Lon: p.Lon, Active: true}
}

var origin = geo.Point{Lat: 21.0285, Lon: 105.8542}

func TestNearestWithinPicksClosest(t *testing.T) {
	m := NewManager(nil)
	m.Track(poiAt("far", origin, 8))
	m.Track(poiAt("near", origin, 5))
	m.Track(poiAt("out", origin, 50))

	p, dist, ok := m.NearestWithin(origin, 10)
	require.True(t, ok)
	assert.Equal(t, "near", p.ID)
	assert.InDelta(t, 5, dist, 0.5)
}

func TestNearestWithinSkipsInactive(t *testing.T) {
	m := NewManager(nil)
	closest := poiAt("closest", origin, 2)
	closest.Active = false
	m.Track(closest)
	m.Track(poiAt("active", origin, 8))

	p, _, ok := m.NearestWithin(origin, 10)
	require.True(t, ok)
	assert.Equal(t, "active", p.ID)

	// All inactive: no match regardless of distance.
	m2 := NewManager(nil)
	m2.Track(closest)
	_, _, ok = m2.NearestWithin(origin, 10)
	assert.False(t, ok)
}

func TestNearestWithinRespectsMaxDistance(t *testing.T) {
	m := NewManager(nil)
	m.Track(poiAt("a", origin, 12))

	_, _, ok := m.NearestWithin(origin, 10)
	assert.False(t, ok)

	p, _, ok := m.NearestWithin(origin, 15)
	require.True(t, ok)
	assert.Equal(t, "a", p.ID)
}

func TestNearestWithinTieBreakIsCatalogOrder(t *testing.T) {
	m := NewManager(nil)
	// Same coordinates: identical distance, first tracked wins.
	first := poiAt("first", origin, 5)
	second := &model.POI{ID: "second", Lat: first.Lat, Lon: first.Lon, Active: true}
	m.Track(first)
	m.Track(second)

	p, _, ok := m.NearestWithin(origin, 10)
	require.True(t, ok)
	assert.Equal(t, "first", p.ID)
}

func TestNearestWithinEmptyCatalog(t *testing.T) {
	m := NewManager(nil)
	_, _, ok := m.NearestWithin(origin, 10)
	assert.False(t, ok)
}

func TestIndexAndScanAgree(t *testing.T) {
	m := NewManager(nil)
	for i, northM := range []float64{3, 7, 9.5, 25, 80, 300} {
		m.Track(poiAt(string(rune('a'+i)), origin, northM))
	}

	for _, maxDist := range []float64{5, 10, 30, 100, 500} {
		m.mu.RLock()
		scanPOI, scanDist, scanOK := m.scanLocked(m.pois, origin, maxDist)
		m.mu.RUnlock()

		idxPOI, idxDist, idxOK := m.NearestWithin(origin, maxDist)

		assert.Equal(t, scanOK, idxOK, "maxDist=%v", maxDist)
		if scanOK {
			assert.Equal(t, scanPOI.ID, idxPOI.ID, "maxDist=%v", maxDist)
			assert.InDelta(t, scanDist, idxDist, 1e-9)
		}
	}
}

func TestTrackReplacesInPlace(t *testing.T) {
	m := NewManager(nil)
	m.Track(poiAt("a", origin, 5))
	m.Track(poiAt("b", origin, 8))

	// Move "a" out of range; "b" becomes nearest.
	m.Track(poiAt("a", origin, 500))
	assert.Equal(t, 2, m.Count())

	p, _, ok := m.NearestWithin(origin, 10)
	require.True(t, ok)
	assert.Equal(t, "b", p.ID)
}

func TestGetPOI(t *testing.T) {
	m := NewManager(nil)
	m.Track(poiAt("a", origin, 5))

	p, err := m.GetPOI("a")
	require.NoError(t, err)
	assert.Equal(t, "a", p.ID)

	_, err = m.GetPOI("missing")
	assert.ErrorIs(t, err, ErrPOINotFound)
}

func TestActivePOIsOrder(t *testing.T) {
	m := NewManager(nil)
	m.Track(poiAt("a", origin, 5))
	inactive := poiAt("b", origin, 6)
	inactive.Active = false
	m.Track(inactive)
	m.Track(poiAt("c", origin, 7))

	active := m.ActivePOIs()
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "c", active[1].ID)
	assert.Len(t, m.AllPOIs(), 3)
}
