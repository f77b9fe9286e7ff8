package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// PointPolygonDistance returns the minimum planar distance from c to the
// boundary of zone, which must be a Polygon or MultiPolygon. A point inside
// or on the polygon is at distance 0: zones containing a supply point are
// always local to it, however small the catchment threshold. Unsupported
// geometry kinds return +Inf; the store never admits them.
func PointPolygonDistance(c geom.Coord, zone geom.T) float64 {
	switch g := zone.(type) {
	case *geom.Polygon:
		return pointToPolygon(c, g)
	case *geom.MultiPolygon:
		min := math.Inf(1)
		for i := 0; i < g.NumPolygons(); i++ {
			if d := pointToPolygon(c, g.Polygon(i)); d < min {
				min = d
			}
		}
		return min
	default:
		return math.Inf(1)
	}
}

func pointToPolygon(c geom.Coord, poly *geom.Polygon) float64 {
	n := poly.NumLinearRings()
	if n == 0 {
		return math.Inf(1)
	}

	layout := poly.Layout()
	if xy.IsPointInRing(layout, c, poly.LinearRing(0).FlatCoords()) {
		inHole := false
		for i := 1; i < n; i++ {
			if xy.IsPointInRing(layout, c, poly.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return 0
		}
	}

	// Outside the shell, or inside a hole: distance to the nearest ring edge.
	min := math.Inf(1)
	for i := 0; i < n; i++ {
		if d := pointToRing(c, poly.LinearRing(i)); d < min {
			min = d
		}
	}
	return min
}

func pointToRing(c geom.Coord, ring *geom.LinearRing) float64 {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	min := math.Inf(1)
	for i := 0; i+stride < len(flat); i += stride {
		a := geom.Coord{flat[i], flat[i+1]}
		b := geom.Coord{flat[i+stride], flat[i+stride+1]}
		if d := xy.DistanceFromPointToLine(c, a, b); d < min {
			min = d
		}
	}
	return min
}
