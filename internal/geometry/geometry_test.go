package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func square(minX, minY, size float64) *geom.Polygon {
	return Rect{MinX: minX, MinY: minY, MaxX: minX + size, MaxY: minY + size}.Polygon(2154)
}

func TestIsMetricSRID(t *testing.T) {
	assert.True(t, IsMetricSRID(2154))
	assert.True(t, IsMetricSRID(3035))
	assert.False(t, IsMetricSRID(4326))
	assert.False(t, IsMetricSRID(0))
}

func TestRect_ContainsHalfOpen(t *testing.T) {
	r := Rect{MinX: 0, MinY: 0, MaxX: 200, MaxY: 200}
	assert.True(t, r.ContainsHalfOpen(geom.Coord{0, 0}))
	assert.True(t, r.ContainsHalfOpen(geom.Coord{199.9, 10}))
	assert.False(t, r.ContainsHalfOpen(geom.Coord{200, 10}))
	assert.False(t, r.ContainsHalfOpen(geom.Coord{10, 200}))

	// A point on a shared edge belongs to exactly one of two neighbours.
	right := Rect{MinX: 200, MinY: 0, MaxX: 400, MaxY: 200}
	p := geom.Coord{200, 50}
	assert.NotEqual(t, r.ContainsHalfOpen(p), right.ContainsHalfOpen(p))
}

func TestIntersectsRect(t *testing.T) {
	cell := Rect{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}

	tests := []struct {
		name string
		g    geom.T
		want bool
	}{
		{"point inside", geom.NewPointFlat(geom.XY, []float64{50, 50}), true},
		{"point on border", geom.NewPointFlat(geom.XY, []float64{100, 50}), true},
		{"point outside", geom.NewPointFlat(geom.XY, []float64{150, 50}), false},
		{"line crossing", geom.NewLineStringFlat(geom.XY, []float64{-50, 50, 150, 50}), true},
		{"line passing by", geom.NewLineStringFlat(geom.XY, []float64{-50, 150, 150, 150}), false},
		{"diagonal missing corner", geom.NewLineStringFlat(geom.XY, []float64{90, 120, 120, 90}), false},
		{"polygon inside", square(10, 10, 10), true},
		{"polygon covering", square(-100, -100, 400), true},
		{"polygon touching edge", square(100, 0, 50), true},
		{"polygon disjoint", square(200, 200, 50), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IntersectsRect(tt.g, cell))
		})
	}
}

func TestPolygonContainsPoint_Hole(t *testing.T) {
	p := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}},
		{{40, 40}, {60, 40}, {60, 60}, {40, 60}, {40, 40}},
	})
	assert.True(t, PolygonContainsPoint(p, geom.Coord{10, 10}))
	assert.False(t, PolygonContainsPoint(p, geom.Coord{50, 50}))
	assert.True(t, PolygonContainsPoint(p, geom.Coord{0, 50}))
}

func TestClippedArea(t *testing.T) {
	cell := Rect{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}

	assert.InDelta(t, 100.0, ClippedArea(square(10, 10, 10), cell), 1e-9)
	// Half of a 20x20 square straddling the right edge.
	assert.InDelta(t, 200.0, ClippedArea(square(90, 40, 20), cell), 1e-9)
	assert.InDelta(t, 10000.0, ClippedArea(square(-50, -50, 300), cell), 1e-9)
	assert.Zero(t, ClippedArea(square(300, 300, 10), cell))
}

func TestClippedLength(t *testing.T) {
	cell := Rect{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
	line := geom.NewLineStringFlat(geom.XY, []float64{-50, 50, 150, 50})
	assert.InDelta(t, 100.0, ClippedLength(line, cell), 1e-9)
}

func TestMeasures(t *testing.T) {
	sq := square(0, 0, 10)
	assert.InDelta(t, 100.0, Area(sq), 1e-9)
	assert.InDelta(t, 40.0, Perimeter(sq), 1e-9)

	c, err := Centroid(sq)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, c[0], 1e-9)
	assert.InDelta(t, 5.0, c[1], 1e-9)
}

func TestDistanceToGeometry(t *testing.T) {
	sq := square(0, 0, 10)
	assert.Zero(t, DistanceToGeometry(geom.Coord{5, 5}, sq))
	assert.InDelta(t, 5.0, DistanceToGeometry(geom.Coord{15, 5}, sq), 1e-9)
	assert.InDelta(t, math.Sqrt2, DistanceToGeometry(geom.Coord{11, 11}, sq), 1e-9)
}

func TestValidateBoundary(t *testing.T) {
	require.NoError(t, ValidateBoundary(square(0, 0, 600)))

	var ige *InvalidGeometryError

	err := ValidateBoundary(geom.NewPolygon(geom.XY).SetSRID(2154))
	require.Error(t, err)
	assert.True(t, errors.As(err, &ige))

	geographic := Rect{MinX: 7, MinY: 48, MaxX: 8, MaxY: 49}.Polygon(4326)
	err = ValidateBoundary(geographic)
	require.True(t, errors.As(err, &ige))
	assert.Contains(t, ige.Reason, "4326")

	bowtie := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {100, 100}, {100, 0}, {0, 100}, {0, 0}},
	}).SetSRID(2154)
	err = ValidateBoundary(bowtie)
	require.True(t, errors.As(err, &ige))
	assert.Contains(t, ige.Reason, "self-intersects")

	err = ValidateBoundary(geom.NewPointFlat(geom.XY, []float64{1, 2}).SetSRID(2154))
	require.True(t, errors.As(err, &ige))
}

// clockwiseSquare has the ring orientation of shapefile and BD TOPO shells.
func clockwiseSquare(minX, minY, size float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {minX, minY + size}, {minX + size, minY + size}, {minX + size, minY}, {minX, minY},
	}}).SetSRID(2154)
}

func TestArea_Orientation(t *testing.T) {
	assert.InDelta(t, 100.0, Area(clockwiseSquare(0, 0, 10)), 1e-9)
	assert.InDelta(t, 40.0, Perimeter(clockwiseSquare(0, 0, 10)), 1e-9)

	// Clockwise shell with a counter-clockwise hole, as written by shapefiles.
	withHole := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {0, 100}, {100, 100}, {100, 0}, {0, 0}},
		{{40, 40}, {60, 40}, {60, 60}, {40, 60}, {40, 40}},
	})
	assert.InDelta(t, 9600.0, Area(withHole), 1e-9)

	mixed := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mixed.Push(square(0, 0, 10)))
	require.NoError(t, mixed.Push(clockwiseSquare(20, 0, 10)))
	assert.InDelta(t, 200.0, Area(mixed), 1e-9)
}

func TestClippedArea_Clockwise(t *testing.T) {
	cell := Rect{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
	assert.InDelta(t, 100.0, ClippedArea(clockwiseSquare(10, 10, 10), cell), 1e-9)
	assert.InDelta(t, 200.0, ClippedArea(clockwiseSquare(90, 40, 20), cell), 1e-9)
}

func TestPolygonContainsPoint_Clockwise(t *testing.T) {
	p := clockwiseSquare(0, 0, 100)
	assert.True(t, PolygonContainsPoint(p, geom.Coord{50, 50}))
	assert.True(t, PolygonContainsPoint(p, geom.Coord{100, 50}))
	assert.False(t, PolygonContainsPoint(p, geom.Coord{150, 50}))
	assert.Zero(t, DistanceToGeometry(geom.Coord{5, 5}, p))
	assert.InDelta(t, 5.0, DistanceToGeometry(geom.Coord{105, 5}, p), 1e-9)
}

func TestDistanceToGeometry_Lines(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 10, 0, 10, 10})
	assert.InDelta(t, 3.0, DistanceToGeometry(geom.Coord{5, 3}, line), 1e-9)
	assert.InDelta(t, 5.0, DistanceToGeometry(geom.Coord{15, 15}, line), 1e-9)

	pt := geom.NewLineStringFlat(geom.XY, []float64{1, 1})
	assert.InDelta(t, 1.0, DistanceToGeometry(geom.Coord{1, 2}, pt), 1e-9)
}

func TestValidateBoundary_Clockwise(t *testing.T) {
	assert.NoError(t, ValidateBoundary(clockwiseSquare(0, 0, 600)))
}

func TestValidateBoundary_RepeatedVertex(t *testing.T) {
	p := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {600, 0}, {600, 0}, {600, 600}, {0, 600}, {0, 0}},
	}).SetSRID(2154)
	assert.NoError(t, ValidateBoundary(p))
}

func TestValidateBoundary_SelfTouch(t *testing.T) {
	// The ring passes twice through (50, 50).
	p := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {100, 0}, {50, 50}, {100, 100}, {0, 100}, {50, 50}, {0, 0}},
	}).SetSRID(2154)

	var ige *InvalidGeometryError
	err := ValidateBoundary(p)
	require.True(t, errors.As(err, &ige))
	assert.Contains(t, ige.Reason, "self-intersects")
}

func circleRing(n int, radius float64) []geom.Coord {
	ring := make([]geom.Coord, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, geom.Coord{1e6 + radius*math.Cos(a), 6.8e6 + radius*math.Sin(a)})
	}
	return append(ring, ring[0])
}

func TestValidateBoundary_LargeRing(t *testing.T) {
	ring := circleRing(100000, 50000)
	p := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring}).SetSRID(2154)
	require.NoError(t, ValidateBoundary(p))

	// Swap two distant vertices so that their edges cross the ring.
	ring[10], ring[50000] = ring[50000], ring[10]
	p = geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring}).SetSRID(2154)

	var ige *InvalidGeometryError
	err := ValidateBoundary(p)
	require.True(t, errors.As(err, &ige))
	assert.Contains(t, ige.Reason, "self-intersects")
}
