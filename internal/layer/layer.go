// Package layer defines the in-memory vector layers consumed by the feature
// engine: typed features grouped by kind, with a declared attribute schema per
// kind that is enforced at ingestion.
package layer

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/popgrid/internal/geometry"
)

// Kind identifies the role of a layer in the feature engine.
type Kind string

// Layer kinds.
const (
	KindBuildings      Kind = "buildings"
	KindStreets        Kind = "streets"
	KindPOI            Kind = "poi"
	KindEstablishments Kind = "establishments"
	KindCensus         Kind = "census"
	KindSectors        Kind = "sectors"
)

// Feature is one geometry with its typed attributes.
type Feature struct {
	// Index is the position of the feature in its layer. Query results are
	// ordered by Index so that floating-point sums are reproducible.
	Index int
	Geom  geom.T
	Attrs Attrs
}

// Layer is an immutable collection of features of one kind.
type Layer struct {
	Name     string
	Kind     Kind
	SRID     int
	Features []*Feature
}

// New returns an empty layer.
func New(name string, kind Kind, srid int) *Layer {
	return &Layer{Name: name, Kind: kind, SRID: srid}
}

// Add appends a feature and returns it.
func (l *Layer) Add(g geom.T, attrs Attrs) *Feature {
	if attrs == nil {
		attrs = Attrs{}
	}
	f := &Feature{Index: len(l.Features), Geom: g, Attrs: attrs}
	l.Features = append(l.Features, f)
	return f
}

// Len returns the number of features.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// Validate checks the layer CRS, every geometry and the declared attribute
// schema of its kind.
func (l *Layer) Validate() error {
	if l.Len() > 0 && !geometry.IsMetricSRID(l.SRID) {
		return &geometry.InvalidGeometryError{
			Reason: "layer " + l.Name + " is not in a projected metric CRS",
		}
	}
	schema := SchemaFor(l.Kind)
	for _, f := range l.Features {
		if geometry.IsEmpty(f.Geom) {
			return geometry.Invalidf("layer %s: feature %d has an empty geometry", l.Name, f.Index)
		}
		if !geometryAllowed(l.Kind, f.Geom) {
			return geometry.Invalidf("layer %s: feature %d has unsupported geometry %T for %s",
				l.Name, f.Index, f.Geom, l.Kind)
		}
		if err := schema.Check(l.Kind, f); err != nil {
			return eris.Wrapf(err, "layer: validate %s", l.Name)
		}
	}
	return nil
}

func geometryAllowed(kind Kind, g geom.T) bool {
	switch g.(type) {
	case *geom.Point, *geom.MultiPoint:
		return kind == KindPOI || kind == KindEstablishments || kind == KindCensus
	case *geom.LineString, *geom.MultiLineString:
		return kind == KindStreets
	case *geom.Polygon, *geom.MultiPolygon:
		// OSM POIs may be mapped as areas.
		return kind == KindBuildings || kind == KindCensus || kind == KindSectors || kind == KindPOI
	default:
		return false
	}
}
