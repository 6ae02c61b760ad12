package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/engine/models"
)

type fakeFloorLookup struct {
	floors map[string]*models.Floor
}

func (f *fakeFloorLookup) GetFloor(ctx context.Context, floorID string) (*models.Floor, error) {
	floor, ok := f.floors[floorID]
	if !ok {
		return nil, assert.AnError
	}
	return floor, nil
}

func TestJoinUnknownFloorIsRejected(t *testing.T) {
	p := NewPresence(&fakeFloorLookup{floors: map[string]*models.Floor{}})
	_, err := p.Join(context.Background(), "handle1", "missing")
	assert.Error(t, err)
	assert.Equal(t, 0, p.Size())
}

func TestJoinKnownFloorRegistersSubscriber(t *testing.T) {
	lookup := &fakeFloorLookup{floors: map[string]*models.Floor{
		"floor1": {ID: "floor1", Name: "Lobby", ExitPoints: []string{"E"},
			Screens: []models.Screen{{ID: "s1", NodeID: "A", Status: models.ScreenActive}}},
	}}
	p := NewPresence(lookup)
	conf, err := p.Join(context.Background(), "handle1", "floor1")
	require.NoError(t, err)
	assert.Equal(t, "floor1", conf.FloorID)
	assert.Equal(t, "Lobby", conf.FloorName)
	assert.Equal(t, []string{"A"}, conf.StartPoints)
	assert.Equal(t, 1, p.Size())
	assert.True(t, p.HasSubscriber("floor1"))
}

func TestLeaveRemovesSubscriber(t *testing.T) {
	lookup := &fakeFloorLookup{floors: map[string]*models.Floor{"floor1": {ID: "floor1"}}}
	p := NewPresence(lookup)
	_, err := p.Join(context.Background(), "handle1", "floor1")
	require.NoError(t, err)

	p.Leave("handle1")
	assert.Equal(t, 0, p.Size())
	assert.False(t, p.HasSubscriber("floor1"))
}

func TestFloorIDsDeduplicates(t *testing.T) {
	lookup := &fakeFloorLookup{floors: map[string]*models.Floor{"floor1": {ID: "floor1"}}}
	p := NewPresence(lookup)
	_, _ = p.Join(context.Background(), "handle1", "floor1")
	_, _ = p.Join(context.Background(), "handle2", "floor1")

	ids := p.FloorIDs()
	assert.Len(t, ids, 1)
	_, ok := ids["floor1"]
	assert.True(t, ok)
}
