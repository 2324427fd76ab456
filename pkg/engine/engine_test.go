package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourgo/pkg/catalog"
	"tourgo/pkg/config"
	"tourgo/pkg/geo"
	"tourgo/pkg/model"
	"tourgo/pkg/visitor"
)

var gate = geo.Point{Lat: 21.0285, Lon: 105.8542}

type fixture struct {
	engine   *Engine
	catalog  *catalog.Manager
	registry *visitor.Registry
	clock    *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := catalog.NewManager(nil)
	reg := visitor.NewRegistry(0)
	cfg := &config.EngineConfig{
		MaxTriggerDistance: config.Distance(10),
		RepeatCooldown:     config.Duration(30 * time.Minute),
		DefaultLanguage:    "vi",
	}
	e := New(cfg, cat, reg, nil, nil)

	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	e.now = clock.now

	return &fixture{engine: e, catalog: cat, registry: reg, clock: clock}
}

func (f *fixture) addPOI(id string, at geo.Point, langs ...model.Language) *model.POI {
	if len(langs) == 0 {
		langs = []model.Language{model.LanguageVietnamese}
	}
	p := &model.POI{ID: id, Code: id, Name: id, Lat: at.Lat, Lon: at.Lon, Active: true}
	for _, lang := range langs {
		p.Contents = append(p.Contents, model.Content{
			ID: id + "-" + string(lang), Language: lang, Type: model.ContentTypeAudio, Active: true,
		})
	}
	f.catalog.Track(p)
	return p
}

func TestTriggerUnknownVisitor(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)

	_, err := f.engine.TriggerNarration(context.Background(), "ghost", gate)
	assert.ErrorIs(t, err, visitor.ErrVisitorNotFound)

	err = f.engine.UpdateVisitorLocation(context.Background(), "ghost", gate)
	assert.ErrorIs(t, err, visitor.ErrVisitorNotFound)

	err = f.engine.SetPreferredLanguage(context.Background(), "ghost", model.LanguageEnglish)
	assert.ErrorIs(t, err, visitor.ErrVisitorNotFound)

	assert.Empty(t, f.engine.state, "failed calls leave no trigger state behind")
	assert.Equal(t, 0, f.registry.Len())
}

func TestTriggerInvalidCoordinate(t *testing.T) {
	f := newFixture(t)
	v := f.engine.RegisterVisitor("device-1", "")

	_, err := f.engine.TriggerNarration(context.Background(), v.ID, geo.Point{Lat: 123, Lon: 0})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	err = f.engine.UpdateVisitorLocation(context.Background(), v.ID, geo.Point{Lat: 0, Lon: 999})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	// Nothing was mutated.
	snap, err := f.engine.Visitor(v.ID)
	require.NoError(t, err)
	assert.Zero(t, snap.Lat)
	assert.Empty(t, snap.Visits)
}

func TestRegisterDefaultsLanguage(t *testing.T) {
	f := newFixture(t)
	v := f.engine.RegisterVisitor("device-1", "")
	assert.Equal(t, model.LanguageVietnamese, v.Language)

	v2 := f.engine.RegisterVisitor("device-2", model.LanguageJapanese)
	assert.Equal(t, model.LanguageJapanese, v2.Language)
}

func TestUpdateLocationMakesNoTriggerDecision(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	require.NoError(t, f.engine.UpdateVisitorLocation(context.Background(), v.ID, gate))

	snap, err := f.engine.Visitor(v.ID)
	require.NoError(t, err)
	assert.Equal(t, gate.Lat, snap.Lat)
	assert.Empty(t, snap.Visits, "location update alone never logs a visit")
}

func TestTriggerHappyPath(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate, model.LanguageVietnamese, model.LanguageEnglish)
	v := f.engine.RegisterVisitor("device-1", model.LanguageEnglish)

	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)

	assert.True(t, res.ShouldPlay)
	assert.Equal(t, "gate", res.POI.ID)
	assert.Equal(t, model.TriggerProximityDetected, res.Reason)
	require.NotNil(t, res.Content)
	assert.Equal(t, model.LanguageEnglish, res.Content.Language)

	snap, err := f.engine.Visitor(v.ID)
	require.NoError(t, err)
	require.Len(t, snap.Visits, 1)
	assert.Equal(t, "gate", snap.Visits[0].POIID)
	assert.True(t, snap.Visits[0].ContentPlayed)
}

func TestTriggerNoPOINearby(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	farAway := geo.DestinationPoint(gate, 500, 90)
	res, err := f.engine.TriggerNarration(context.Background(), v.ID, farAway)
	require.NoError(t, err)

	assert.False(t, res.ShouldPlay)
	assert.Nil(t, res.POI)
	assert.Contains(t, res.Message, "no POI")

	snap, _ := f.engine.Visitor(v.ID)
	assert.Empty(t, snap.Visits)
	assert.Equal(t, farAway.Lat, snap.Lat, "trigger call still moves the visitor")
}

func TestTriggerSuppressedWhileInRange(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)

	// Immediate second call at the same in-range spot: suppressed.
	res, err = f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	assert.False(t, res.ShouldPlay)

	// Wandering a few meters but staying in range stays suppressed.
	nearby := geo.DestinationPoint(gate, 4, 180)
	res, err = f.engine.TriggerNarration(context.Background(), v.ID, nearby)
	require.NoError(t, err)
	assert.False(t, res.ShouldPlay)

	snap, _ := f.engine.Visitor(v.ID)
	assert.Len(t, snap.Visits, 1, "suppressed evaluations log nothing")
}

func TestTriggerRearmsAfterLeavingAndCooldown(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)

	// Leave the radius: re-arms the edge trigger.
	outside := geo.DestinationPoint(gate, 100, 90)
	res, err = f.engine.TriggerNarration(context.Background(), v.ID, outside)
	require.NoError(t, err)
	assert.False(t, res.ShouldPlay)

	// Back in range immediately: edge re-armed but repeat cooldown holds.
	res, err = f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	assert.False(t, res.ShouldPlay)
	assert.Contains(t, res.Message, "cooldown")

	// Leave again, wait out the cooldown, return: fires again.
	_, err = f.engine.TriggerNarration(context.Background(), v.ID, outside)
	require.NoError(t, err)
	f.clock.advance(31 * time.Minute)

	res, err = f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)

	snap, _ := f.engine.Visitor(v.ID)
	assert.Len(t, snap.Visits, 2)
}

func TestTriggerSwitchingPOIFiresImmediately(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	stall := geo.DestinationPoint(gate, 40, 0)
	f.addPOI("stall", stall)
	v := f.engine.RegisterVisitor("device-1", "")

	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)
	assert.Equal(t, "gate", res.POI.ID)

	// Walk straight to the next POI: no cooldown between distinct POIs.
	res, err = f.engine.TriggerNarration(context.Background(), v.ID, stall)
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)
	assert.Equal(t, "stall", res.POI.ID)

	snap, _ := f.engine.Visitor(v.ID)
	require.Len(t, snap.Visits, 2)
	assert.Equal(t, "gate", snap.Visits[0].POIID)
	assert.Equal(t, "stall", snap.Visits[1].POIID)
}

func TestTriggerFallbackContent(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate, model.LanguageVietnamese)
	v := f.engine.RegisterVisitor("device-1", model.LanguageKorean)

	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)

	assert.True(t, res.ShouldPlay)
	require.NotNil(t, res.Content)
	assert.Equal(t, model.LanguageVietnamese, res.Content.Language, "fell back to default language")
}

func TestTriggerNoContentStillLogsVisit(t *testing.T) {
	f := newFixture(t)
	p := &model.POI{ID: "gate", Name: "Gate", Lat: gate.Lat, Lon: gate.Lon, Active: true}
	f.catalog.Track(p)
	v := f.engine.RegisterVisitor("device-1", "")

	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)

	assert.False(t, res.ShouldPlay, "no content resolved")
	assert.Nil(t, res.Content)
	assert.Equal(t, "gate", res.POI.ID)

	snap, _ := f.engine.Visitor(v.ID)
	require.Len(t, snap.Visits, 1)
	assert.False(t, snap.Visits[0].ContentPlayed)
}

func TestSetPreferredLanguageAffectsFutureTriggers(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate, model.LanguageVietnamese, model.LanguageFrench)
	v := f.engine.RegisterVisitor("device-1", model.LanguageVietnamese)

	require.NoError(t, f.engine.SetPreferredLanguage(context.Background(), v.ID, model.LanguageFrench))

	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	require.NotNil(t, res.Content)
	assert.Equal(t, model.LanguageFrench, res.Content.Language)
}

func TestTriggerManual(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	// Far from the POI: manual bypasses the proximity gate.
	require.NoError(t, f.engine.UpdateVisitorLocation(context.Background(), v.ID, geo.DestinationPoint(gate, 900, 45)))

	res, err := f.engine.TriggerManual(context.Background(), v.ID, "gate", model.TriggerManualRequest)
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)
	assert.Equal(t, model.TriggerManualRequest, res.Reason)
	assert.Greater(t, res.DistanceM, 100.0)

	// Visitor is northeast of the POI, so the POI lies to the southwest.
	assert.Contains(t, res.Message, "southwest")

	snap, _ := f.engine.Visitor(v.ID)
	assert.Len(t, snap.Visits, 1)
}

func TestTriggerManualInvalidReason(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	_, err := f.engine.TriggerManual(context.Background(), v.ID, "gate", "proximity_detected")
	assert.ErrorIs(t, err, ErrInvalidTriggerReason)

	_, err = f.engine.TriggerManual(context.Background(), v.ID, "gate", "garbage")
	assert.ErrorIs(t, err, ErrInvalidTriggerReason)

	snap, _ := f.engine.Visitor(v.ID)
	assert.Empty(t, snap.Visits)
}

func TestTriggerManualUnknownPOI(t *testing.T) {
	f := newFixture(t)
	v := f.engine.RegisterVisitor("device-1", "")

	_, err := f.engine.TriggerManual(context.Background(), v.ID, "missing", model.TriggerManualRequest)
	assert.ErrorIs(t, err, catalog.ErrPOINotFound)
}

func TestTriggerManualInactivePOI(t *testing.T) {
	f := newFixture(t)
	p := f.addPOI("gate", gate)
	p.Active = false
	v := f.engine.RegisterVisitor("device-1", "")

	res, err := f.engine.TriggerManual(context.Background(), v.ID, "gate", model.TriggerManualRequest)
	require.NoError(t, err)
	assert.False(t, res.ShouldPlay)

	snap, _ := f.engine.Visitor(v.ID)
	assert.Empty(t, snap.Visits)
}

func TestTriggerFirstVisit(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	// Empty reason on a fresh visitor upgrades to FirstVisit.
	res, err := f.engine.TriggerManual(context.Background(), v.ID, "gate", "")
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)
	assert.Equal(t, model.TriggerFirstVisit, res.Reason)

	// FirstVisit cannot fire twice.
	res, err = f.engine.TriggerManual(context.Background(), v.ID, "gate", model.TriggerFirstVisit)
	require.NoError(t, err)
	assert.False(t, res.ShouldPlay)

	// But an explicit manual request still goes through.
	res, err = f.engine.TriggerManual(context.Background(), v.ID, "gate", "")
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)
	assert.Equal(t, model.TriggerManualRequest, res.Reason)
}

type recordingVisits struct {
	visitorIDs []string
	entries    []model.VisitLogEntry
}

func (r *recordingVisits) AppendVisit(ctx context.Context, visitorID string, entry *model.VisitLogEntry) error {
	r.visitorIDs = append(r.visitorIDs, visitorID)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *recordingVisits) GetVisits(ctx context.Context, visitorID string) ([]model.VisitLogEntry, error) {
	return nil, nil
}

func TestTriggerPersistsVisit(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)

	rec := &recordingVisits{}
	f.engine.visits = rec
	v := f.engine.RegisterVisitor("device-1", "")

	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	require.True(t, res.ShouldPlay)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, v.ID, rec.visitorIDs[0])
	assert.Equal(t, "gate", rec.entries[0].POIID)
	assert.True(t, rec.entries[0].ContentPlayed)
}

func TestTriggerOutsideVenue(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	venueJSON := `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"properties": {"name": "Old Quarter Heritage Walk"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[
					[105.84, 21.02], [105.86, 21.02],
					[105.86, 21.04], [105.84, 21.04],
					[105.84, 21.02]
				]]
			}
		}]
	}`
	path := filepath.Join(t.TempDir(), "venue.geojson")
	require.NoError(t, os.WriteFile(path, []byte(venueJSON), 0o644))
	venue, err := geo.LoadVenue(path)
	require.NoError(t, err)
	f.engine.venue = venue

	// Inside the venue and in range: fires.
	res, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	assert.True(t, res.ShouldPlay)

	// Outside the venue grounds: short-circuits, even next to a POI.
	outside := geo.Point{Lat: 21.05, Lon: 105.85}
	f.addPOI("offsite", outside)

	res, err = f.engine.TriggerNarration(context.Background(), v.ID, outside)
	require.NoError(t, err)
	assert.False(t, res.ShouldPlay)
	assert.Nil(t, res.POI)
	assert.Contains(t, res.Message, "venue")

	snap, _ := f.engine.Visitor(v.ID)
	assert.Len(t, snap.Visits, 1)
}

func TestEvictIdlePrunesTriggerState(t *testing.T) {
	cat := catalog.NewManager(nil)
	reg := visitor.NewRegistry(time.Millisecond)
	cfg := &config.EngineConfig{
		MaxTriggerDistance: config.Distance(10),
		RepeatCooldown:     config.Duration(30 * time.Minute),
		DefaultLanguage:    "vi",
	}
	e := New(cfg, cat, reg, nil, nil)

	cat.Track(&model.POI{
		ID: "gate", Name: "gate", Lat: gate.Lat, Lon: gate.Lon, Active: true,
		Contents: []model.Content{
			{ID: "gate-vi", Language: model.LanguageVietnamese, Type: model.ContentTypeAudio, Active: true},
		},
	})
	v := e.RegisterVisitor("device-1", "")

	res, err := e.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)
	require.True(t, res.ShouldPlay)
	require.Len(t, e.state, 1)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, e.EvictIdle())

	_, err = e.Visitor(v.ID)
	assert.ErrorIs(t, err, visitor.ErrVisitorNotFound)
	assert.Empty(t, e.state, "trigger state must be pruned with the visitor")
}

func TestEvictIdleDisabled(t *testing.T) {
	f := newFixture(t)
	f.addPOI("gate", gate)
	v := f.engine.RegisterVisitor("device-1", "")

	_, err := f.engine.TriggerNarration(context.Background(), v.ID, gate)
	require.NoError(t, err)

	assert.Equal(t, 0, f.engine.EvictIdle())
	assert.Equal(t, 1, f.registry.Len())
	assert.Len(t, f.engine.state, 1)
}

func TestVisitLogOrder(t *testing.T) {
	f := newFixture(t)
	f.addPOI("a", gate)
	b := geo.DestinationPoint(gate, 50, 0)
	f.addPOI("b", b)
	v := f.engine.RegisterVisitor("device-1", "")

	for _, loc := range []geo.Point{gate, b, gate} {
		f.clock.advance(31 * time.Minute)
		_, err := f.engine.TriggerNarration(context.Background(), v.ID, loc)
		require.NoError(t, err)
	}

	snap, _ := f.engine.Visitor(v.ID)
	require.Len(t, snap.Visits, 3)
	assert.Equal(t, []string{"a", "b", "a"},
		[]string{snap.Visits[0].POIID, snap.Visits[1].POIID, snap.Visits[2].POIID})
}
