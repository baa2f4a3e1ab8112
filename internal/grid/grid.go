// Package grid builds the regular square tessellation that every feature is
// aggregated onto.
package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/popgrid/internal/geometry"
)

// Resolution bounds, in meters.
const (
	MinResolution = 100
	MaxResolution = 1000
)

// eps absorbs floating-point noise when counting cells over the bounding box.
const eps = 1e-9

// Options tune grid construction.
type Options struct {
	// Snap aligns the origin down to a multiple of the resolution so grids of
	// neighbouring territories share cell edges.
	Snap bool
	// Buffer keeps cells whose square lies within this many meters of the
	// boundary (Chebyshev distance). Used to pad survey sectors in model mode.
	Buffer float64
}

// Cell is one square tile of the grid.
type Cell struct {
	ID     string
	Row    int
	Col    int
	Bounds geometry.Rect
	SRID   int
}

// Polygon returns the cell square.
func (c Cell) Polygon() *geom.Polygon {
	return c.Bounds.Polygon(c.SRID)
}

// Centroid returns the cell center.
func (c Cell) Centroid() geom.Coord {
	return c.Bounds.Center()
}

// Grid is an ordered set of cells of one resolution.
type Grid struct {
	SRID       int
	Resolution int
	Origin     geom.Coord
	Rows       int
	Cols       int
	// Cells are in canonical order: row-major from the south-west corner.
	Cells []Cell
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Cells)
}

// CellID formats the INSPIRE-style identifier of the cell whose lower-left
// corner is (x, y).
func CellID(srid, resolution int, x, y float64) string {
	return fmt.Sprintf("CRS%dRES%dmN%dE%d", srid, resolution, int64(math.Floor(y)), int64(math.Floor(x)))
}

// Build tiles the bounding box of boundary with square cells of the given
// resolution and keeps the cells whose closed square intersects the closed
// boundary. The same boundary and resolution always yield the same grid.
func Build(boundary geom.T, resolution int, opts Options) (*Grid, error) {
	if resolution < MinResolution || resolution > MaxResolution {
		return nil, eris.Errorf("grid: resolution %d outside [%d, %d]", resolution, MinResolution, MaxResolution)
	}
	if opts.Buffer < 0 || math.IsNaN(opts.Buffer) {
		return nil, eris.Errorf("grid: negative buffer %v", opts.Buffer)
	}
	if err := geometry.ValidateBoundary(boundary); err != nil {
		return nil, eris.Wrap(err, "grid: boundary")
	}

	r := float64(resolution)
	box := geometry.RectOf(boundary).Expand(opts.Buffer)
	origin := geom.Coord{box.MinX, box.MinY}
	if opts.Snap {
		origin = geom.Coord{math.Floor(box.MinX/r) * r, math.Floor(box.MinY/r) * r}
	}
	cols := steps(box.MaxX-origin[0], r)
	rows := steps(box.MaxY-origin[1], r)

	g := &Grid{
		SRID:       boundary.SRID(),
		Resolution: resolution,
		Origin:     origin,
		Rows:       rows,
		Cols:       cols,
	}

	edges := boundaryEdges(boundary)
	keep := make([]bool, cols)
	for row := 0; row < rows; row++ {
		y0 := origin[1] + float64(row)*r
		markRow(keep, edges, origin[0], y0, r, opts.Buffer)
		for col := 0; col < cols; col++ {
			if !keep[col] {
				continue
			}
			x0 := origin[0] + float64(col)*r
			g.Cells = append(g.Cells, Cell{
				ID:     CellID(g.SRID, resolution, x0, y0),
				Row:    row,
				Col:    col,
				Bounds: geometry.Rect{MinX: x0, MinY: y0, MaxX: x0 + r, MaxY: y0 + r},
				SRID:   g.SRID,
			})
		}
	}

	if len(g.Cells) == 0 {
		return nil, geometry.Invalidf("boundary covers no cell at %d m", resolution)
	}
	return g, nil
}

// steps is the numpy arange count of cells needed to cover span.
func steps(span, r float64) int {
	n := int(math.Ceil(span/r - eps))
	if n < 1 {
		n = 1
	}
	return n
}

type edge struct {
	a, b geom.Coord
}

func boundaryEdges(g geom.T) []edge {
	var polys []*geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		polys = append(polys, t)
	case *geom.MultiPolygon:
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
	}

	var edges []edge
	for _, p := range polys {
		stride := p.Stride()
		for i := 0; i < p.NumLinearRings(); i++ {
			flat := p.LinearRing(i).FlatCoords()
			n := len(flat) / stride
			for j := 0; j+1 < n; j++ {
				edges = append(edges, edge{
					a: geom.Coord{flat[j*stride], flat[j*stride+1]},
					b: geom.Coord{flat[(j+1)*stride], flat[(j+1)*stride+1]},
				})
			}
		}
	}
	return edges
}

// markRow sets keep[col] for every cell of the row starting at y0 whose square,
// grown by buffer, intersects the boundary. A cell no edge touches is either
// fully inside or fully outside, which the crossing parity at its center row
// decides.
func markRow(keep []bool, edges []edge, x0, y0, r, buffer float64) {
	for i := range keep {
		keep[i] = false
	}
	cols := len(keep)
	lo, hi := y0-buffer, y0+r+buffer

	var crossings []float64
	cy := y0 + r/2
	for _, e := range edges {
		ey0, ey1 := math.Min(e.a[1], e.b[1]), math.Max(e.a[1], e.b[1])
		if (e.a[1] > cy) != (e.b[1] > cy) {
			crossings = append(crossings, e.a[0]+(cy-e.a[1])*(e.b[0]-e.a[0])/(e.b[1]-e.a[1]))
		}
		if ey1 < lo || ey0 > hi {
			continue
		}
		ex0, ex1 := math.Min(e.a[0], e.b[0]), math.Max(e.a[0], e.b[0])
		first := int(math.Ceil((ex0-buffer-x0)/r)) - 1
		last := int(math.Floor((ex1 + buffer - x0) / r))
		if first < 0 {
			first = 0
		}
		if last > cols-1 {
			last = cols - 1
		}
		for col := first; col <= last; col++ {
			if keep[col] {
				continue
			}
			cx := x0 + float64(col)*r
			cell := geometry.Rect{MinX: cx, MinY: y0, MaxX: cx + r, MaxY: y0 + r}.Expand(buffer)
			if geometry.SegmentIntersectsRect(e.a, e.b, cell) {
				keep[col] = true
			}
		}
	}

	sort.Float64s(crossings)
	k := 0
	for col := 0; col < cols; col++ {
		cx := x0 + (float64(col)+0.5)*r
		for k < len(crossings) && crossings[k] < cx {
			k++
		}
		if k%2 == 1 {
			keep[col] = true
		}
	}
}
