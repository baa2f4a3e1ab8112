package features

import (
	"github.com/sells-group/popgrid/internal/geometry"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/spatial"
)

// meanStreetWidth is the mean width of the street segments meeting the cell.
type meanStreetWidth struct{}

func (meanStreetWidth) Name() string { return LargeurMoyenneRue }

func (meanStreetWidth) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	var sum float64
	var n int
	for _, f := range set.Get(layer.KindStreets).Intersecting(cell.Bounds) {
		w, ok, err := number(layer.KindStreets, f, "width")
		if err != nil {
			return NoData, err
		}
		if !ok {
			continue
		}
		sum += w
		n++
	}
	return Ratio(sum, float64(n)), nil
}

// roadDensity is the street length inside the cell in km per km².
type roadDensity struct{}

func (roadDensity) Name() string { return DensiteVoirie }

func (roadDensity) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	var meters float64
	for _, f := range set.Get(layer.KindStreets).Intersecting(cell.Bounds) {
		meters += geometry.ClippedLength(f.Geom, cell.Bounds)
	}
	return Ratio(meters/1000, cell.Bounds.Area()/1e6), nil
}
