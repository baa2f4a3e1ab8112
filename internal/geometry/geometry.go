// Package geometry holds the planar predicates and measures shared by the grid,
// the spatial index and the feature computers. All coordinates are expected in a
// projected metric CRS.
package geometry

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

// geographicSRIDs are rejected: the grid and every measure assume meters.
var geographicSRIDs = map[int]bool{
	4326: true, // WGS 84
	4258: true, // ETRS89
	4171: true, // RGF93 geographic
	4269: true, // NAD83
	4230: true, // ED50
}

// InvalidGeometryError reports a malformed, empty or unprojected geometry.
type InvalidGeometryError struct {
	Reason string
	Err    error
}

func (e *InvalidGeometryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid geometry: %s: %v", e.Reason, e.Err)
	}
	return "invalid geometry: " + e.Reason
}

func (e *InvalidGeometryError) Unwrap() error {
	return e.Err
}

// Invalidf builds an InvalidGeometryError with a formatted reason.
func Invalidf(format string, args ...any) *InvalidGeometryError {
	return &InvalidGeometryError{Reason: fmt.Sprintf(format, args...)}
}

// IsMetricSRID reports whether srid names a projected CRS usable for metric
// computations. SRID 0 (unknown) is not accepted.
func IsMetricSRID(srid int) bool {
	return srid > 0 && !geographicSRIDs[srid]
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// RectOf returns the bounding rectangle of g.
func RectOf(g geom.T) Rect {
	b := g.Bounds()
	return Rect{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}
}

// Width of the rectangle.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height of the rectangle.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Area of the rectangle.
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// Empty reports whether the rectangle has no extent in either direction.
func (r Rect) Empty() bool { return r.MaxX < r.MinX || r.MaxY < r.MinY }

// Center returns the rectangle centroid.
func (r Rect) Center() geom.Coord {
	return geom.Coord{(r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2}
}

// Overlaps reports whether the closed rectangles share at least one point.
func (r Rect) Overlaps(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

// Expand grows the rectangle by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{MinX: r.MinX - d, MinY: r.MinY - d, MaxX: r.MaxX + d, MaxY: r.MaxY + d}
}

// ContainsClosed reports whether c lies inside or on the border of r.
func (r Rect) ContainsClosed(c geom.Coord) bool {
	return c[0] >= r.MinX && c[0] <= r.MaxX && c[1] >= r.MinY && c[1] <= r.MaxY
}

// ContainsHalfOpen reports whether c lies in [MinX, MaxX) × [MinY, MaxY).
// Adjacent grid cells partition the plane under this rule, so a point is
// assigned to exactly one cell.
func (r Rect) ContainsHalfOpen(c geom.Coord) bool {
	return c[0] >= r.MinX && c[0] < r.MaxX && c[1] >= r.MinY && c[1] < r.MaxY
}

// Polygon returns the rectangle as a closed counter-clockwise polygon.
func (r Rect) Polygon(srid int) *geom.Polygon {
	p := geom.NewPolygonFlat(geom.XY, []float64{
		r.MinX, r.MinY,
		r.MaxX, r.MinY,
		r.MaxX, r.MaxY,
		r.MinX, r.MaxY,
		r.MinX, r.MinY,
	}, []int{10})
	if srid != 0 {
		p.SetSRID(srid)
	}
	return p
}

// Distance is the Euclidean distance between two coordinates.
func Distance(a, b geom.Coord) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

// IsEmpty reports whether g is nil or has no coordinates.
func IsEmpty(g geom.T) bool {
	if g == nil {
		return true
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		return gc.NumGeoms() == 0
	}
	return len(g.FlatCoords()) == 0
}
