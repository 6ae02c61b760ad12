package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	t.Run("scaled when the map scale is complete", func(t *testing.T) {
		scale := &Scale{WidthPixels: 1000, HeightPixels: 1000, WidthMeters: 100, HeightMeters: 100}
		// pixel distance 100 at a 10px/m scale -> 10 meters.
		got := DistanceMeters(0, 0, 100, 0, scale)
		assert.InDelta(t, 10.0, got, 0.0001)
	})

	t.Run("falls back to raw pixel distance when scale is absent", func(t *testing.T) {
		got := DistanceMeters(0, 0, 30, 40, nil)
		assert.InDelta(t, 50.0, got, 0.0001)
	})

	t.Run("falls back to raw pixel distance when scale is incomplete", func(t *testing.T) {
		scale := &Scale{WidthPixels: 1000, HeightMeters: 100}
		got := DistanceMeters(0, 0, 3, 4, scale)
		assert.InDelta(t, 5.0, got, 0.0001)
	})
}

func TestScaleComplete(t *testing.T) {
	assert.False(t, (*Scale)(nil).Complete())
	assert.False(t, (&Scale{WidthPixels: 1}).Complete())
	assert.True(t, (&Scale{WidthPixels: 1, HeightPixels: 1, WidthMeters: 1, HeightMeters: 1}).Complete())
}
