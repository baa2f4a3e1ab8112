package features

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/popgrid/internal/geometry"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/spatial"
)

// poiScore sums the type weights of the POIs located in the cell.
type poiScore struct {
	tables Tables
}

func (poiScore) Name() string { return ScorePOIPondere }

func (c poiScore) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	var score float64
	for _, f := range set.Get(layer.KindPOI).Contained(cell.Bounds) {
		score += c.tables.POIWeights[layer.Fold(f.Attrs.String("type"))]
	}
	return Num(score), nil
}

// jobEstimate sums the estimated workforce of the establishments located in
// the cell, restricted to the configured sectors.
type jobEstimate struct {
	tables Tables
}

func (jobEstimate) Name() string { return EmploisEstimesPondere }

func (c jobEstimate) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	var jobs float64
	for _, f := range set.Get(layer.KindEstablishments).Contained(cell.Bounds) {
		naf := NormalizeNAF(f.Attrs.String("naf"))
		if len(c.tables.JobSectors) > 0 && !hasAnyPrefix(naf, c.tables.JobSectors) {
			continue
		}
		jobs += c.tables.jobs(naf, f.Attrs.String("tranche"))
	}
	return Num(jobs), nil
}

// establishmentDensity counts establishments per m² of built surface.
type establishmentDensity struct {
	name     string
	tables   Tables
	min      float64
	commerce bool
}

func (c establishmentDensity) Name() string { return c.name }

func (c establishmentDensity) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	surface := BuiltSurface(cell, set)
	if surface <= c.min {
		return NoData, nil
	}
	var n int
	for _, f := range set.Get(layer.KindEstablishments).Contained(cell.Bounds) {
		if c.commerce && !hasAnyPrefix(NormalizeNAF(f.Attrs.String("naf")), c.tables.CommercePrefixes) {
			continue
		}
		n++
	}
	return Ratio(float64(n), surface), nil
}

// BuiltSurface is the building footprint area inside the cell, in m².
func BuiltSurface(cell grid.Cell, set *spatial.Set) float64 {
	var total float64
	for _, f := range set.Get(layer.KindBuildings).Intersecting(cell.Bounds) {
		total += geometry.ClippedArea(f.Geom, cell.Bounds)
	}
	return total
}

// functionalMix is the Shannon entropy of the urban functions of the
// establishments located in the cell.
type functionalMix struct {
	tables Tables
}

func (functionalMix) Name() string { return IndiceMixiteFonctionnelle }

func (c functionalMix) Compute(cell grid.Cell, set *spatial.Set) (Value, error) {
	counts := make(map[string]float64)
	var n float64
	for _, f := range set.Get(layer.KindEstablishments).Contained(cell.Bounds) {
		counts[c.tables.function(f.Attrs.String("naf"))]++
		n++
	}
	if n == 0 {
		return Num(0), nil
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := make([]float64, 0, len(keys))
	for _, k := range keys {
		p = append(p, counts[k]/n)
	}
	return Num(stat.Entropy(p)), nil
}
