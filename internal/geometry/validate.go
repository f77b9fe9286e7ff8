package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// validatePolygonal checks that g is a well-formed Polygon or MultiPolygon:
// finite coordinates, closed rings with at least three distinct vertices, and
// no self-intersecting rings.
func validatePolygonal(g geom.T) error {
	switch t := g.(type) {
	case *geom.Polygon:
		return validatePolygon(t)
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return eris.Wrap(ErrBadGeometry, "empty multipolygon")
		}
		for i := 0; i < t.NumPolygons(); i++ {
			if err := validatePolygon(t.Polygon(i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return eris.Wrapf(ErrBadGeometry, "unsupported demand geometry %T", g)
	}
}

func validatePolygon(p *geom.Polygon) error {
	if p.NumLinearRings() == 0 {
		return eris.Wrap(ErrBadGeometry, "polygon with no rings")
	}
	for i := 0; i < p.NumLinearRings(); i++ {
		if err := validateRing(p.LinearRing(i)); err != nil {
			return err
		}
	}
	return nil
}

func validateRing(ring *geom.LinearRing) error {
	flat := ring.FlatCoords()
	stride := ring.Stride()
	n := len(flat) / stride
	if n < 4 {
		return eris.Wrapf(ErrBadGeometry, "ring has %d vertices, need at least 4", n)
	}
	for _, v := range flat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrap(ErrBadGeometry, "non-finite ring coordinate")
		}
	}
	if flat[0] != flat[(n-1)*stride] || flat[1] != flat[(n-1)*stride+1] {
		return eris.Wrap(ErrBadGeometry, "ring is not closed")
	}
	if ringSelfIntersects(flat, stride, n) {
		return eris.Wrap(ErrBadGeometry, "self-intersecting ring")
	}
	return nil
}

// ringSelfIntersects tests every non-adjacent edge pair for a proper crossing.
// Quadratic, but ward boundaries run to a few hundred vertices at most.
func ringSelfIntersects(flat []float64, stride, n int) bool {
	edge := func(i int) (x1, y1, x2, y2 float64) {
		return flat[i*stride], flat[i*stride+1], flat[(i+1)*stride], flat[(i+1)*stride+1]
	}
	edges := n - 1
	for i := 0; i < edges; i++ {
		for j := i + 2; j < edges; j++ {
			if i == 0 && j == edges-1 {
				continue // first and last edge share the closing vertex
			}
			ax1, ay1, ax2, ay2 := edge(i)
			bx1, by1, bx2, by2 := edge(j)
			if segmentsCross(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper crossing between segments ab and cd.
// Touching at a shared endpoint does not count.
func segmentsCross(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	d1 := orient(cx, cy, dx, dy, ax, ay)
	d2 := orient(cx, cy, dx, dy, bx, by)
	d3 := orient(ax, ay, bx, by, cx, cy)
	d4 := orient(ax, ay, bx, by, dx, dy)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func orient(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// validatePoint checks that p has finite two-dimensional coordinates.
func validatePoint(p *geom.Point) error {
	c := p.Coords()
	if len(c) < 2 {
		return eris.Wrap(ErrBadGeometry, "point without XY coordinates")
	}
	for _, v := range c[:2] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrap(ErrBadGeometry, "non-finite point coordinate")
		}
	}
	return nil
}
