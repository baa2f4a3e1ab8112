// Package spatial wraps layers with an R-tree for cell and nearest-neighbour
// queries. Indexes are immutable once built and safe for concurrent reads.
package spatial

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/popgrid/internal/geometry"
	"github.com/sells-group/popgrid/internal/layer"
)

// Tree fan-out, as recommended by rtreego for 2D data.
const (
	minChildren = 25
	maxChildren = 50
)

// pad keeps degenerate boxes (points, axis-parallel lines) non-empty and makes
// touching boxes overlap, since rtreego treats shared borders as disjoint.
// Results are always re-checked with exact predicates.
const pad = 1e-6

type entry struct {
	feature *layer.Feature
	rect    rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect {
	return e.rect
}

// Neighbor is one nearest-neighbour result.
type Neighbor struct {
	Feature  *layer.Feature
	Distance float64
}

// Index is an R-tree over one layer.
type Index struct {
	kind     layer.Kind
	tree     *rtreego.Rtree
	features []*layer.Feature
	// reps holds the representative point of each feature, by Index.
	reps []geom.Coord
}

// Build indexes every feature of l by its bounding box. A nil or empty layer
// yields an empty index.
func Build(l *layer.Layer) *Index {
	idx := &Index{}
	if l == nil {
		return idx
	}
	idx.kind = l.Kind
	idx.features = l.Features
	idx.reps = make([]geom.Coord, len(l.Features))
	if len(l.Features) == 0 {
		return idx
	}

	objs := make([]rtreego.Spatial, 0, len(l.Features))
	for i, f := range l.Features {
		idx.reps[i] = representative(f.Geom)
		objs = append(objs, &entry{feature: f, rect: toRect(geometry.RectOf(f.Geom))})
	}
	idx.tree = rtreego.NewTree(2, minChildren, maxChildren, objs...)
	return idx
}

// Kind returns the kind of the indexed layer.
func (idx *Index) Kind() layer.Kind { return idx.kind }

// Len returns the number of indexed features.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.features)
}

// Intersecting returns the features sharing at least one point with the closed
// rectangle r, in layer order.
func (idx *Index) Intersecting(r geometry.Rect) []*layer.Feature {
	var out []*layer.Feature
	for _, f := range idx.candidates(r) {
		if geometry.IntersectsRect(f.Geom, r) {
			out = append(out, f)
		}
	}
	return out
}

// Contained returns the features whose representative point (the point
// itself, or the centroid) lies in the half-open rectangle
// [MinX, MaxX) × [MinY, MaxY), in layer order. Every feature is contained in
// at most one cell of a grid.
func (idx *Index) Contained(r geometry.Rect) []*layer.Feature {
	var out []*layer.Feature
	for _, f := range idx.candidates(r) {
		if r.ContainsHalfOpen(idx.reps[f.Index]) {
			out = append(out, f)
		}
	}
	return out
}

// Representative returns the point used by Contained for f.
func (idx *Index) Representative(f *layer.Feature) geom.Coord {
	return idx.reps[f.Index]
}

// Nearest returns up to k features ordered by ascending exact distance to p.
// Ties are broken by layer order.
func (idx *Index) Nearest(p geom.Coord, k int) []Neighbor {
	if idx.Len() == 0 || k <= 0 {
		return nil
	}
	// rtreego ranks by box distance, a lower bound of the exact distance, so
	// its k nearest only bound the search radius.
	seed := idx.tree.NearestNeighbors(k, rtreego.Point{p[0], p[1]})
	radius := 0.0
	for _, s := range seed {
		if s == nil {
			continue
		}
		d := geometry.DistanceToGeometry(p, s.(*entry).feature.Geom)
		radius = math.Max(radius, d)
	}

	cands := idx.candidates(geometry.Rect{MinX: p[0], MinY: p[1], MaxX: p[0], MaxY: p[1]}.Expand(radius))
	out := make([]Neighbor, 0, len(cands))
	for _, f := range cands {
		out = append(out, Neighbor{Feature: f, Distance: geometry.DistanceToGeometry(p, f.Geom)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Feature.Index < out[j].Feature.Index
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// candidates returns the features whose box meets r, sorted by layer order.
func (idx *Index) candidates(r geometry.Rect) []*layer.Feature {
	if idx.Len() == 0 {
		return nil
	}
	hits := idx.tree.SearchIntersect(toRect(r))
	out := make([]*layer.Feature, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*entry).feature)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func toRect(r geometry.Rect) rtreego.Rect {
	r = r.Expand(pad)
	rect, err := rtreego.NewRect(rtreego.Point{r.MinX, r.MinY}, []float64{r.Width(), r.Height()})
	if err != nil {
		// Unreachable: Expand guarantees positive lengths.
		return rtreego.Point{r.MinX, r.MinY}.ToRect(pad)
	}
	return rect
}

func representative(g geom.T) geom.Coord {
	c, err := geometry.Centroid(g)
	if err != nil || math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return geometry.RectOf(g).Center()
	}
	return c
}
