// Package geometry holds the pure point/segment math behind the eraser
// hit-test. No state, no dependencies on the rest of the engine.
package geometry

import (
	"math"

	"sketchboard/internal/model"
)

// Dist returns the Euclidean distance between two points
func Dist(p, q model.Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// DistToSegment returns the minimum distance from p to the segment a-b.
// The projection of p onto the infinite line through a and b is clamped to
// the segment before measuring, so endpoints are handled correctly. A
// degenerate segment (a == b) falls back to point distance.
func DistToSegment(p, a, b model.Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return Dist(p, a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	closest := model.Point{X: a.X + t*dx, Y: a.Y + t*dy}
	return Dist(p, closest)
}

// StrokeWithin reports whether any segment of pts lies within radius of
// center. The boundary is closed: a segment exactly radius away qualifies.
// A single-point stroke is tested as a point.
func StrokeWithin(center model.Point, pts []model.Point, radius float64) bool {
	switch len(pts) {
	case 0:
		return false
	case 1:
		return Dist(center, pts[0]) <= radius
	}
	for i := 1; i < len(pts); i++ {
		if DistToSegment(center, pts[i-1], pts[i]) <= radius {
			return true
		}
	}
	return false
}
