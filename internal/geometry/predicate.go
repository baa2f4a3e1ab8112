package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// IntersectsRect reports whether g and the closed rectangle r share at least one
// point (touching borders count, matching the "intersects" predicate of
// GEOS-based tooling).
func IntersectsRect(g geom.T, r Rect) bool {
	if IsEmpty(g) || !RectOf(g).Overlaps(r) {
		return false
	}
	switch t := g.(type) {
	case *geom.Point:
		return r.ContainsClosed(t.Coords())
	case *geom.MultiPoint:
		for i := 0; i < t.NumPoints(); i++ {
			if r.ContainsClosed(t.Point(i).Coords()) {
				return true
			}
		}
		return false
	case *geom.LineString:
		return lineIntersectsRect(t.FlatCoords(), t.Stride(), r)
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			if lineIntersectsRect(ls.FlatCoords(), ls.Stride(), r) {
				return true
			}
		}
		return false
	case *geom.Polygon:
		return polygonIntersectsRect(t, r)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonIntersectsRect(t.Polygon(i), r) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// PolygonContainsPoint reports whether c lies inside p or on its border.
// Holes are excluded; a point on a hole's border is on p's border.
func PolygonContainsPoint(p *geom.Polygon, c geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	layout := p.Layout()
	if xy.LocatePointInRing(layout, c, p.LinearRing(0).FlatCoords()) == location.Exterior {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.LocatePointInRing(layout, c, p.LinearRing(i).FlatCoords()) == location.Interior {
			return false
		}
	}
	return true
}

func polygonIntersectsRect(p *geom.Polygon, r Rect) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	stride := p.Stride()
	// A polygon vertex inside the rectangle, or any ring edge crossing it.
	for i := 0; i < p.NumLinearRings(); i++ {
		if lineIntersectsRect(p.LinearRing(i).FlatCoords(), stride, r) {
			return true
		}
	}
	// Otherwise the rectangle is either fully inside the polygon or disjoint.
	return PolygonContainsPoint(p, r.Center())
}

func lineIntersectsRect(flat []float64, stride int, r Rect) bool {
	n := len(flat) / stride
	if n == 0 {
		return false
	}
	if n == 1 {
		return r.ContainsClosed(geom.Coord{flat[0], flat[1]})
	}
	for i := 0; i+1 < n; i++ {
		a := geom.Coord{flat[i*stride], flat[i*stride+1]}
		b := geom.Coord{flat[(i+1)*stride], flat[(i+1)*stride+1]}
		if SegmentIntersectsRect(a, b, r) {
			return true
		}
	}
	return false
}

// SegmentIntersectsRect reports whether the segment [a, b] touches the closed
// rectangle r (Liang-Barsky parametric clipping).
func SegmentIntersectsRect(a, b geom.Coord, r Rect) bool {
	if r.ContainsClosed(a) || r.ContainsClosed(b) {
		return true
	}
	dx, dy := b[0]-a[0], b[1]-a[1]
	t0, t1 := 0.0, 1.0
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{a[0] - r.MinX, r.MaxX - a[0], a[1] - r.MinY, r.MaxY - a[1]}
	for i := 0; i < 4; i++ {
		if p[i] == 0 {
			if q[i] < 0 {
				return false
			}
			continue
		}
		t := q[i] / p[i]
		if p[i] < 0 {
			if t > t1 {
				return false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false
			}
			if t < t1 {
				t1 = t
			}
		}
	}
	return t0 <= t1
}

// DistanceToGeometry is the minimum Euclidean distance from c to g.
// Points inside a polygon are at distance zero.
func DistanceToGeometry(c geom.Coord, g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Point:
		return Distance(c, t.Coords())
	case *geom.MultiPoint:
		d := math.Inf(1)
		for i := 0; i < t.NumPoints(); i++ {
			d = math.Min(d, Distance(c, t.Point(i).Coords()))
		}
		return d
	case *geom.LineString:
		return distanceToLine(c, t.Layout(), t.FlatCoords())
	case *geom.MultiLineString:
		d := math.Inf(1)
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			d = math.Min(d, distanceToLine(c, ls.Layout(), ls.FlatCoords()))
		}
		return d
	case *geom.Polygon:
		return distanceToPolygon(c, t)
	case *geom.MultiPolygon:
		d := math.Inf(1)
		for i := 0; i < t.NumPolygons(); i++ {
			d = math.Min(d, distanceToPolygon(c, t.Polygon(i)))
		}
		return d
	default:
		return math.Inf(1)
	}
}

func distanceToLine(c geom.Coord, layout geom.Layout, flat []float64) float64 {
	if len(flat) < layout.Stride() {
		return math.Inf(1)
	}
	return xy.DistanceFromPointToLineString(layout, c, flat)
}

func distanceToPolygon(c geom.Coord, p *geom.Polygon) float64 {
	if PolygonContainsPoint(p, c) {
		return 0
	}
	d := math.Inf(1)
	for i := 0; i < p.NumLinearRings(); i++ {
		d = math.Min(d, distanceToLine(c, p.Layout(), p.LinearRing(i).FlatCoords()))
	}
	return d
}
