// Package loader reads the raw source layers (BD TOPO shapefiles, OSM and
// INSEE GeoJSON, SIRENE CSV, weight tables) into validated layers.
package loader

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/popgrid/internal/layer"
)

// Attribute mappings of the BD TOPO layers.
var (
	BuildingFields = map[string]string{"HAUTEUR": "height"}
	StreetFields   = map[string]string{"LARGEUR": "width"}
)

// ShapefileOptions describe how a shapefile maps onto a layer.
type ShapefileOptions struct {
	Kind layer.Kind
	SRID int
	// Fields maps source field names (case-insensitive) to attribute keys.
	Fields map[string]string
}

// ReadShapefile loads every record of a shapefile into a validated layer.
// Records without a usable shape are skipped.
func ReadShapefile(path, name string, opts ShapefileOptions) (*layer.Layer, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		fieldName := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(fieldName)] = i
	}

	l := layer.New(name, opts.Kind, opts.SRID)
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		attrs := make(layer.Attrs, len(opts.Fields))
		for src, key := range opts.Fields {
			idx, ok := fieldIdx[strings.ToLower(src)]
			if !ok {
				attrs[key] = layer.Missing()
				continue
			}
			attrs[key] = layer.Parse(reader.Attribute(idx))
		}
		l.Add(g, attrs)
	}

	if skipped > 0 {
		zap.L().Debug("loader: skipped shapefile records",
			zap.String("layer", name),
			zap.Int("skipped", skipped),
		)
	}
	if err := l.Validate(); err != nil {
		return nil, eris.Wrapf(err, "loader: shapefile %s", path)
	}
	return l, nil
}

// shapeToGeom converts a go-shp shape to a 2D go-geom geometry, or nil for
// unsupported and empty shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		return multiPoint(s.Points)
	case *shp.PolyLine:
		return multiLineString(s.Parts, s.Points)
	case *shp.PolyLineZ:
		return multiLineString(s.Parts, s.Points)
	case *shp.Polygon:
		return multiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return multiPolygon(s.Parts, s.Points)
	default:
		return nil
	}
}

func multiPoint(points []shp.Point) geom.T {
	if len(points) == 0 {
		return nil
	}
	flat := make([]float64, 0, 2*len(points))
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewMultiPointFlat(geom.XY, flat)
}

// partRanges splits a shapefile point array into its parts.
func partRanges(parts []int32, n int) [][2]int {
	out := make([][2]int, 0, len(parts))
	for i, start := range parts {
		end := n
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if int(start) >= end || end > n {
			continue
		}
		out = append(out, [2]int{int(start), end})
	}
	return out
}

func multiLineString(parts []int32, points []shp.Point) geom.T {
	mls := geom.NewMultiLineString(geom.XY)
	for i, r := range partRanges(parts, len(points)) {
		if r[1]-r[0] < 2 {
			continue
		}
		ls := geom.NewLineStringFlat(geom.XY, flatCoords(points[r[0]:r[1]]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("loader: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// multiPolygon assembles shapefile rings: clockwise rings are shells and
// counter-clockwise rings are holes of the preceding shell.
func multiPolygon(parts []int32, points []shp.Point) geom.T {
	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("loader: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for _, r := range partRanges(parts, len(points)) {
		ring := points[r[0]:r[1]]
		if len(ring) < 4 {
			continue
		}
		lr := geom.NewLinearRingFlat(geom.XY, flatCoords(ring))
		if signedArea(ring) <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(lr); err != nil {
			zap.L().Debug("loader: skipping malformed ring", zap.Error(err))
		}
	}
	flush()

	switch mp.NumPolygons() {
	case 0:
		return nil
	case 1:
		return mp.Polygon(0)
	default:
		return mp
	}
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []shp.Point) float64 {
	var s float64
	for i := 0; i+1 < len(ring); i++ {
		s += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return s / 2
}

func flatCoords(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}
