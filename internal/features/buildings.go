package features

import (
	"math"

	"github.com/twpayne/go-geom"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/popgrid/internal/geometry"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/spatial"
)

// building is a footprint intersecting a cell with its full area and height.
type building struct {
	feature   *layer.Feature
	area      float64
	height    float64
	hasHeight bool
}

// buildingsIn returns the buildings intersecting the cell, in layer order.
func buildingsIn(cell grid.Cell, set *spatial.Set) ([]building, error) {
	fs := set.Get(layer.KindBuildings).Intersecting(cell.Bounds)
	out := make([]building, 0, len(fs))
	for _, f := range fs {
		h, ok, err := number(layer.KindBuildings, f, "height")
		if err != nil {
			return nil, err
		}
		out = append(out, building{feature: f, area: geometry.Area(f.Geom), height: h, hasHeight: ok})
	}
	return out, nil
}

// shapeIndex is the mean compactness P²/(4πA) of the buildings; a disc scores 1.
type shapeIndex struct{}

func (shapeIndex) Name() string { return ShapeIndexMoyen }

func (shapeIndex) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	bs, err := buildingsIn(cell, set)
	if err != nil {
		return NoData, err
	}
	var sum float64
	var n int
	for _, b := range bs {
		if b.area <= 0 {
			continue
		}
		p := geometry.Perimeter(b.feature.Geom)
		sum += p * p / (4 * math.Pi * b.area)
		n++
	}
	return Ratio(sum, float64(n)), nil
}

// weightedHeight is the footprint-weighted mean height Σ(H·A)/ΣA.
type weightedHeight struct{}

func (weightedHeight) Name() string { return HauteurPondereeSurface }

func (weightedHeight) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	bs, err := buildingsIn(cell, set)
	if err != nil {
		return NoData, err
	}
	var ha, a float64
	for _, b := range bs {
		if !b.hasHeight {
			continue
		}
		ha += b.height * b.area
		a += b.area
	}
	return Ratio(ha, a), nil
}

// heightStdDev is the population standard deviation of building heights.
type heightStdDev struct{}

func (heightStdDev) Name() string { return EcartTypeHauteur }

func (heightStdDev) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	bs, err := buildingsIn(cell, set)
	if err != nil {
		return NoData, err
	}
	hs := make([]float64, 0, len(bs))
	for _, b := range bs {
		if b.hasHeight {
			hs = append(hs, b.height)
		}
	}
	if len(hs) < 2 {
		return NoData, nil
	}
	return Num(stat.PopStdDev(hs, nil)), nil
}

// footprintStdDev is the population standard deviation of footprint areas.
type footprintStdDev struct{}

func (footprintStdDev) Name() string { return EcartTypeSurfaceBatiment }

func (footprintStdDev) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	bs, err := buildingsIn(cell, set)
	if err != nil {
		return NoData, err
	}
	if len(bs) < 2 {
		return NoData, nil
	}
	as := make([]float64, 0, len(bs))
	for _, b := range bs {
		as = append(as, b.area)
	}
	return Num(stat.PopStdDev(as, nil)), nil
}

// meanVolume is the mean A·H of the buildings with a known height.
type meanVolume struct{}

func (meanVolume) Name() string { return VolumeMoyenBatiments }

func (meanVolume) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	bs, err := buildingsIn(cell, set)
	if err != nil {
		return NoData, err
	}
	var sum float64
	var n int
	for _, b := range bs {
		if !b.hasHeight {
			continue
		}
		sum += b.area * b.height
		n++
	}
	return Ratio(sum, float64(n)), nil
}

// meanNearestDistance is the mean distance from each building centroid in the
// cell to the nearest other centroid in the cell. Buildings are attributed to
// the cell holding their centroid so each one is counted once.
type meanNearestDistance struct{}

func (meanNearestDistance) Name() string { return DistanceMoyenneBatiments }

func (meanNearestDistance) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	idx := set.Get(layer.KindBuildings)
	fs := idx.Contained(cell.Bounds)
	if len(fs) < 2 {
		return NoData, nil
	}

	centroids := layer.New("centroids", layer.KindBuildings, cell.SRID)
	for _, f := range fs {
		c := idx.Representative(f)
		centroids.Add(geom.NewPointFlat(geom.XY, []float64{c[0], c[1]}), nil)
	}
	local := spatial.Build(centroids)

	var sum float64
	for _, f := range centroids.Features {
		for _, nb := range local.Nearest(local.Representative(f), 2) {
			if nb.Feature.Index != f.Index {
				sum += nb.Distance
				break
			}
		}
	}
	return Num(sum / float64(len(fs))), nil
}
