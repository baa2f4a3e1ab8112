package geometry

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy/lineintersector"
)

// ValidateBoundary checks that g is a usable territory boundary: a non-empty
// Polygon or MultiPolygon in a metric CRS whose rings are closed, have at least
// four coordinates, a non-zero area and no self-intersection. Rings may have
// either orientation.
func ValidateBoundary(g geom.T) error {
	if g == nil {
		return Invalidf("boundary is nil")
	}
	if IsEmpty(g) {
		return Invalidf("boundary is empty")
	}
	if !IsMetricSRID(g.SRID()) {
		return Invalidf("boundary SRID %d is not a projected metric CRS", g.SRID())
	}
	polys := polygons(g)
	if polys == nil {
		return Invalidf("boundary must be a Polygon or MultiPolygon, got %T", g)
	}
	for pi, p := range polys {
		if p.NumLinearRings() == 0 {
			return Invalidf("polygon %d has no rings", pi)
		}
		for ri := 0; ri < p.NumLinearRings(); ri++ {
			if err := validateRing(p.LinearRing(ri).FlatCoords(), p.Stride()); err != nil {
				err.Reason = fmt.Sprintf("polygon %d ring %d: %s", pi, ri, err.Reason)
				return err
			}
		}
		if Area(p) <= 0 {
			return Invalidf("polygon %d has zero area", pi)
		}
	}
	return nil
}

func validateRing(flat []float64, stride int) *InvalidGeometryError {
	n := len(flat) / stride
	if n < 4 {
		return Invalidf("ring has %d coordinates, need at least 4", n)
	}
	for _, v := range flat {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Invalidf("ring has a non-finite coordinate")
		}
	}
	last := (n - 1) * stride
	if flat[0] != flat[last] || flat[1] != flat[last+1] {
		return Invalidf("ring is not closed")
	}
	if i, j, ok := selfIntersection(ringVertices(flat, stride)); ok {
		return Invalidf("ring self-intersects between edges %d and %d", i, j)
	}
	return nil
}

// ringVertices returns the XY vertices of a closed ring with repeated
// consecutive vertices removed.
func ringVertices(flat []float64, stride int) []geom.Coord {
	out := make([]geom.Coord, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		c := geom.Coord{flat[i], flat[i+1]}
		if k := len(out); k > 0 && out[k-1][0] == c[0] && out[k-1][1] == c[1] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// edgePad makes edges that share an endpoint overlap in the R-tree.
const edgePad = 1e-6

type ringEdge struct {
	i    int
	a, b geom.Coord
	rect rtreego.Rect
}

func (e *ringEdge) Bounds() rtreego.Rect { return e.rect }

// selfIntersection reports the first pair of non-adjacent edges of the closed
// vertex list v that touch. Candidate pairs come from an R-tree over the edge
// bounding boxes.
func selfIntersection(v []geom.Coord) (int, int, bool) {
	edges := len(v) - 1
	if edges < 3 {
		return 0, 0, false
	}
	objs := make([]rtreego.Spatial, edges)
	all := make([]*ringEdge, edges)
	for i := 0; i < edges; i++ {
		a, b := v[i], v[i+1]
		r := Rect{
			MinX: math.Min(a[0], b[0]), MinY: math.Min(a[1], b[1]),
			MaxX: math.Max(a[0], b[0]), MaxY: math.Max(a[1], b[1]),
		}.Expand(edgePad)
		rect, _ := rtreego.NewRectFromPoints(rtreego.Point{r.MinX, r.MinY}, rtreego.Point{r.MaxX, r.MaxY})
		e := &ringEdge{i: i, a: a, b: b, rect: rect}
		objs[i], all[i] = e, e
	}
	tree := rtreego.NewTree(2, 25, 50, objs...)

	for _, e := range all {
		for _, s := range tree.SearchIntersect(e.rect) {
			o := s.(*ringEdge)
			if o.i <= e.i+1 || (e.i == 0 && o.i == edges-1) {
				continue
			}
			res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{}, e.a, e.b, o.a, o.b)
			if res.HasIntersection() {
				return e.i, o.i, true
			}
		}
	}
	return 0, 0, false
}
