package features

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/popgrid/internal/geometry"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/spatial"
)

// Census bands summed by the population share computers.
var (
	ActiveBands = []string{"ind_18_24", "ind_25_39", "ind_40_54", "ind_55_64"}
	YoungBands  = []string{"ind_0_3", "ind_4_5", "ind_6_10", "ind_11_17", "ind_18_24"}
)

// censusShare is the share of the census population falling in bands.
// Census polygons contribute in proportion of their area inside the cell;
// census points contribute fully to the cell containing them.
type censusShare struct {
	name  string
	bands []string
}

func (c censusShare) Name() string { return c.name }

func (c censusShare) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	idx := set.Get(layer.KindCensus)
	var part, total float64
	for _, f := range idx.Intersecting(cell.Bounds) {
		w := overlapWeight(f.Geom, cell.Bounds, idx.Representative(f))
		if w == 0 {
			continue
		}
		ind, _, err := number(layer.KindCensus, f, "ind")
		if err != nil {
			return NoData, err
		}
		total += w * ind
		for _, b := range c.bands {
			v, _, err := number(layer.KindCensus, f, b)
			if err != nil {
				return NoData, err
			}
			part += w * v
		}
	}
	return Ratio(part, total), nil
}

func overlapWeight(g geom.T, cell geometry.Rect, rep geom.Coord) float64 {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		area := geometry.Area(g)
		if area <= 0 {
			return 0
		}
		return geometry.ClippedArea(g, cell) / area
	default:
		if cell.ContainsHalfOpen(rep) {
			return 1
		}
		return 0
	}
}
