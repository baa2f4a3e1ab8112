package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Area returns the planar area of polygonal geometries and zero otherwise.
// Ring orientation does not matter: shells count positive, holes negative.
func Area(g geom.T) float64 {
	var area float64
	for _, p := range polygons(g) {
		area += planar.Area(toOrbPolygon(p))
	}
	return area
}

// Perimeter returns the total ring length of polygonal geometries.
func Perimeter(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		return t.Length()
	case *geom.MultiPolygon:
		return t.Length()
	default:
		return 0
	}
}

// Length returns the length of lineal geometries.
func Length(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.LineString:
		return t.Length()
	case *geom.MultiLineString:
		return t.Length()
	default:
		return 0
	}
}

// Centroid returns the representative point used for half-open cell
// assignment: the point itself, or the area/length centroid.
func Centroid(g geom.T) (geom.Coord, error) {
	if p, ok := g.(*geom.Point); ok {
		return p.Coords(), nil
	}
	c, err := xy.Centroid(g)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: centroid")
	}
	return c, nil
}

// ClippedArea returns the area of the part of g lying inside r.
func ClippedArea(g geom.T, r Rect) float64 {
	if !RectOf(g).Overlaps(r) {
		return 0
	}
	b := toBound(r)
	var area float64
	for _, p := range polygons(g) {
		rb := RectOf(p)
		op := toOrbPolygon(p)
		if rb.MinX >= r.MinX && rb.MaxX <= r.MaxX && rb.MinY >= r.MinY && rb.MaxY <= r.MaxY {
			area += planar.Area(op)
			continue
		}
		area += planar.Area(clip.Polygon(b, op))
	}
	return area
}

// ClippedLength returns the length of the part of a lineal geometry inside r.
func ClippedLength(g geom.T, r Rect) float64 {
	if !RectOf(g).Overlaps(r) {
		return 0
	}
	var mls orb.MultiLineString
	switch t := g.(type) {
	case *geom.LineString:
		mls = orb.MultiLineString{toOrbLine(t.FlatCoords(), t.Stride())}
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			ls := t.LineString(i)
			mls = append(mls, toOrbLine(ls.FlatCoords(), ls.Stride()))
		}
	default:
		return 0
	}
	return planar.Length(clip.MultiLineString(toBound(r), mls))
}

func polygons(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		out := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			out = append(out, t.Polygon(i))
		}
		return out
	default:
		return nil
	}
}

func toBound(r Rect) orb.Bound {
	return orb.Bound{Min: orb.Point{r.MinX, r.MinY}, Max: orb.Point{r.MaxX, r.MaxY}}
}

func toOrbLine(flat []float64, stride int) orb.LineString {
	ls := make(orb.LineString, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		ls = append(ls, orb.Point{flat[i], flat[i+1]})
	}
	return ls
}

func toOrbPolygon(p *geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		out = append(out, orb.Ring(toOrbLine(p.LinearRing(i).FlatCoords(), p.Stride())))
	}
	return out
}
