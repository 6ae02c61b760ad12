package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFloorActiveTreatsAbsentStatusAsActive(t *testing.T) {
	assert.True(t, (&Floor{}).Active())
	assert.True(t, (&Floor{Status: FloorActive}).Active())
	assert.False(t, (&Floor{Status: FloorDisabled}).Active())
	assert.False(t, (&Floor{Status: FloorMaintenance}).Active())
}

func TestEdgeByIDFindsOrReturnsNil(t *testing.T) {
	f := &Floor{Edges: []Edge{{ID: "ab"}, {ID: "bc"}}}
	got := f.EdgeByID("bc")
	require := assert.New(t)
	require.NotNil(got)
	require.Equal("bc", got.ID)
	require.Nil(f.EdgeByID("missing"))
}

func TestEdgeByIDReturnsAPointerForInPlaceMutation(t *testing.T) {
	f := &Floor{Edges: []Edge{{ID: "ab", Current: EdgeCurrent{People: 1}}}}
	edge := f.EdgeByID("ab")
	edge.Current.People = 5
	assert.Equal(t, 5.0, f.Edges[0].Current.People)
}

func TestResetHazardsZeroesEveryEdgeCurrent(t *testing.T) {
	f := &Floor{Edges: []Edge{
		{ID: "ab", Current: EdgeCurrent{People: 3, Fire: 0.5, Smoke: 0.2}},
		{ID: "bc", Current: EdgeCurrent{People: 1}},
	}}
	f.ResetHazards()
	for _, e := range f.Edges {
		assert.Equal(t, EdgeCurrent{}, e.Current)
	}
}

func TestActiveCamerasIncludesLegacyAbsentStatus(t *testing.T) {
	f := &Floor{Cameras: []Camera{
		{ID: "c1", Status: CameraActive},
		{ID: "c2", Status: CameraDisabled},
		{ID: "c3"}, // legacy: absent status
		{ID: "c4", Status: CameraError},
	}}
	active := f.ActiveCameras()
	ids := make([]string, 0, len(active))
	for _, c := range active {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"c1", "c3"}, ids)
}

func TestActiveScreenNodesOnlyIncludesActiveScreens(t *testing.T) {
	f := &Floor{Screens: []Screen{
		{ID: "s1", NodeID: "A", Status: ScreenActive},
		{ID: "s2", NodeID: "B", Status: ScreenDisabled},
		{ID: "s3", NodeID: "C", Status: ScreenMaintenance},
	}}
	assert.Equal(t, []string{"A"}, f.ActiveScreenNodes())
}

func TestMapScaleCompleteRequiresAllFourDimensions(t *testing.T) {
	assert.False(t, (*MapScale)(nil).Complete())
	assert.False(t, (&MapScale{WidthPixels: 100}).Complete())
	assert.True(t, (&MapScale{WidthPixels: 100, HeightPixels: 50, WidthMeters: 10, HeightMeters: 5}).Complete())
}

func TestDefaultSettingsMatchesSpecDefaults(t *testing.T) {
	s := DefaultSettings()
	assert.False(t, s.CloudSync.Enabled)
	assert.Equal(t, 24, s.CloudSync.IntervalHours)
	assert.True(t, s.CloudProcessing.Enabled)
}

func TestWorseHazardOrdersByRank(t *testing.T) {
	assert.Equal(t, HazardCritical, WorseHazard(HazardSafe, HazardCritical))
	assert.Equal(t, HazardCritical, WorseHazard(HazardCritical, HazardSafe))
	assert.Equal(t, HazardModerate, WorseHazard(HazardSafe, HazardModerate))
}

func TestWorseHazardTreatsEmptyAsIdentity(t *testing.T) {
	assert.Equal(t, HazardModerate, WorseHazard("", HazardModerate))
	assert.Equal(t, HazardModerate, WorseHazard(HazardModerate, ""))
	assert.Equal(t, HazardLevel(""), WorseHazard("", ""))
}

func TestNewEnvelopeProjectsRouteDocumentFields(t *testing.T) {
	computedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	doc := &RouteDocument{
		Routes:             []Route{{StartNode: "A"}, {StartNode: "B"}},
		Emergency:          true,
		OverallHazardLevel: HazardCritical,
		ComputedAt:         computedAt,
	}
	env := NewEnvelope("floor1", "Lobby", doc)

	assert.Equal(t, "floor1", env.FloorID)
	assert.Equal(t, "Lobby", env.FloorName)
	assert.True(t, env.Emergency)
	assert.Equal(t, HazardCritical, env.OverallHazardLevel)
	assert.Equal(t, computedAt, env.Timestamp)
	assert.Equal(t, 2, env.TotalRoutes)
}
