package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/popgrid/internal/geometry"
)

func rectBoundary(minX, minY, maxX, maxY float64) *geom.Polygon {
	return geometry.Rect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}.Polygon(2154)
}

func TestBuild_ThreeByThree(t *testing.T) {
	g, err := Build(rectBoundary(1000, 2000, 1600, 2600), 200, Options{})
	require.NoError(t, err)

	// The cells just outside the box touch it only along their borders, but
	// the bounding box tiling never creates them.
	assert.Equal(t, 3, g.Rows)
	assert.Equal(t, 3, g.Cols)
	require.Equal(t, 9, g.Len())

	first := g.Cells[0]
	assert.Equal(t, "CRS2154RES200mN2000E1000", first.ID)
	assert.Equal(t, geometry.Rect{MinX: 1000, MinY: 2000, MaxX: 1200, MaxY: 2200}, first.Bounds)
	assert.Equal(t, geom.Coord{1100, 2100}, first.Centroid())

	// Row-major from the south-west corner.
	assert.Equal(t, 0, g.Cells[2].Row)
	assert.Equal(t, 2, g.Cells[2].Col)
	assert.Equal(t, 1, g.Cells[3].Row)
	assert.Equal(t, "CRS2154RES200mN2400E1400", g.Cells[8].ID)
}

func TestBuild_Deterministic(t *testing.T) {
	boundary := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {1730, 120}, {2310, 1980}, {640, 2450}, {-120, 1100}, {0, 0}},
	}).SetSRID(2154)

	a, err := Build(boundary, 250, Options{})
	require.NoError(t, err)
	b, err := Build(boundary, 250, Options{})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	ids := make(map[string]bool, a.Len())
	for _, c := range a.Cells {
		assert.False(t, ids[c.ID], "duplicate id %s", c.ID)
		ids[c.ID] = true
	}
}

func TestBuild_ClockwiseBoundary(t *testing.T) {
	ring := []geom.Coord{{0, 0}, {1730, 120}, {2310, 1980}, {640, 2450}, {-120, 1100}, {0, 0}}
	reversed := make([]geom.Coord, len(ring))
	for i, c := range ring {
		reversed[len(ring)-1-i] = c
	}
	ccw := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring}).SetSRID(2154)
	cw := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{reversed}).SetSRID(2154)

	a, err := Build(ccw, 250, Options{})
	require.NoError(t, err)
	b, err := Build(cw, 250, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Cells, b.Cells)

	square := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {0, 600}, {600, 600}, {600, 0}, {0, 0}},
	}).SetSRID(2154)
	g, err := Build(square, 200, Options{})
	require.NoError(t, err)
	assert.Equal(t, 9, g.Len())
}

func TestBuild_MatchesExactPredicate(t *testing.T) {
	boundary := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {2000, 0}, {2000, 2000}, {0, 2000}, {0, 0}},
		{{600, 600}, {1400, 600}, {1400, 1400}, {600, 1400}, {600, 600}},
	}).SetSRID(2154)

	g, err := Build(boundary, 100, Options{})
	require.NoError(t, err)

	kept := make(map[string]bool, g.Len())
	for _, c := range g.Cells {
		kept[c.ID] = true
	}
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			x, y := float64(col*100), float64(row*100)
			r := geometry.Rect{MinX: x, MinY: y, MaxX: x + 100, MaxY: y + 100}
			assert.Equal(t, geometry.IntersectsRect(boundary, r), kept[CellID(2154, 100, x, y)],
				"cell %d,%d", row, col)
		}
	}
	// The hole interior is excluded, its ring is kept.
	assert.False(t, kept[CellID(2154, 100, 900, 900)])
	assert.True(t, kept[CellID(2154, 100, 500, 900)])
	assert.True(t, kept[CellID(2154, 100, 600, 900)])
}

func TestBuild_Triangle(t *testing.T) {
	tri := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {1000, 0}, {0, 1000}, {0, 0}},
	}).SetSRID(2154)

	g, err := Build(tri, 200, Options{})
	require.NoError(t, err)
	// 15 cells overlap the triangle and 4 more touch the hypotenuse at a corner.
	require.Equal(t, 19, g.Len())
	ids := make(map[string]bool)
	for _, c := range g.Cells {
		ids[c.ID] = true
		assert.True(t, geometry.IntersectsRect(tri, c.Bounds))
	}
	assert.True(t, ids[CellID(2154, 200, 0, 800)])
	assert.False(t, ids[CellID(2154, 200, 800, 800)])
}

func TestBuild_Snap(t *testing.T) {
	g, err := Build(rectBoundary(1050, 2030, 1500, 2500), 200, Options{Snap: true})
	require.NoError(t, err)
	assert.Equal(t, geom.Coord{1000, 2000}, g.Origin)
	assert.Equal(t, "CRS2154RES200mN2000E1000", g.Cells[0].ID)
	assert.Equal(t, 3, g.Cols)
}

func TestBuild_Buffer(t *testing.T) {
	plain, err := Build(rectBoundary(0, 0, 400, 400), 200, Options{})
	require.NoError(t, err)
	buffered, err := Build(rectBoundary(0, 0, 400, 400), 200, Options{Buffer: 400})
	require.NoError(t, err)

	assert.Equal(t, 4, plain.Len())
	assert.Equal(t, 36, buffered.Len())
	assert.Equal(t, geom.Coord{-400, -400}, buffered.Origin)
}

func TestBuild_Invalid(t *testing.T) {
	var ige *geometry.InvalidGeometryError

	_, err := Build(rectBoundary(0, 0, 1000, 1000), 50, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolution")

	_, err = Build(rectBoundary(0, 0, 1000, 1000), 1001, Options{})
	require.Error(t, err)

	_, err = Build(geom.NewPolygon(geom.XY).SetSRID(2154), 200, Options{})
	require.True(t, errors.As(err, &ige))

	geographic := geometry.Rect{MinX: 2, MinY: 48, MaxX: 3, MaxY: 49}.Polygon(4326)
	_, err = Build(geographic, 200, Options{})
	require.True(t, errors.As(err, &ige))

	_, err = Build(rectBoundary(0, 0, 1000, 1000), 200, Options{Buffer: -1})
	require.Error(t, err)
}

func TestWriteGeoJSON(t *testing.T) {
	g, err := Build(rectBoundary(0, 0, 400, 200), 200, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, g))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
			Geometry   struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)
	assert.Equal(t, "CRS2154RES200mN0E0", doc.Features[0].Properties["idINSPIRE"])
	assert.Equal(t, "Polygon", doc.Features[0].Geometry.Type)
}
