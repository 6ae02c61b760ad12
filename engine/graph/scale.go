// Package graph implements the hazard-weighted shortest-path engine: the
// pixel-to-metric distance scaler (spec §4.1), the hazard weight function
// (§4.2), and the Dijkstra engine with early termination (§4.3). Every
// function here is pure given its inputs, grounded in the teacher's
// business-policy style (engine/business/processor): stateless evaluators
// over a policy/context struct, no hidden state.
package graph

import "math"

// Scale mirrors models.MapScale without importing engine/models, keeping
// this package a leaf with no dependency on the entity model.
type Scale struct {
	WidthPixels  float64
	HeightPixels float64
	WidthMeters  float64
	HeightMeters float64
}

// Complete reports whether s carries enough information to convert pixel
// distances into meters.
func (s *Scale) Complete() bool {
	return s != nil && s.WidthPixels > 0 && s.HeightPixels > 0 &&
		s.WidthMeters > 0 && s.HeightMeters > 0
}

// DistanceMeters converts the Euclidean pixel distance between two points
// into meters using the floor's scale descriptor. If the scale is absent
// or incomplete, the raw pixel distance is returned unscaled (spec §4.1).
func DistanceMeters(x1, y1, x2, y2 float64, scale *Scale) float64 {
	pixelDistance := math.Hypot(x2-x1, y2-y1)
	if !scale.Complete() {
		return pixelDistance
	}
	averageScale := ((scale.WidthPixels / scale.WidthMeters) + (scale.HeightPixels / scale.HeightMeters)) / 2
	if averageScale <= 0 {
		return pixelDistance
	}
	return pixelDistance / averageScale
}
