package loader

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/popgrid/internal/layer"
)

// POITags are the OSM keys whose GeoJSON extracts feed the POI layer.
var POITags = []string{"amenity", "shop", "office", "leisure"}

// CensusFields maps the INSEE gridded census columns to census attributes.
func CensusFields() map[string]string {
	m := map[string]string{"ind": "ind", "Ind": "ind"}
	for _, b := range layer.CensusBands {
		m[b] = b
		m["I"+b[1:]] = b
	}
	return m
}

// GeoJSONOptions describe how a FeatureCollection maps onto a layer.
type GeoJSONOptions struct {
	Kind layer.Kind
	SRID int
	// Properties maps source properties to attribute keys.
	Properties map[string]string
	// Const attributes are set on every feature.
	Const layer.Attrs
	// Require drops features lacking this property.
	Require string
	// Derive, when set, fills computed attributes from the mapped ones.
	Derive func(layer.Attrs)
}

// decodeCollection reads a FeatureCollection.
func decodeCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "loader: decode geojson")
	}
	return &fc, nil
}

// ReadGeoJSON loads a FeatureCollection into a validated layer.
func ReadGeoJSON(r io.Reader, name string, opts GeoJSONOptions) (*layer.Layer, error) {
	l := layer.New(name, opts.Kind, opts.SRID)
	if err := appendGeoJSON(l, r, opts); err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, eris.Wrapf(err, "loader: geojson %s", name)
	}
	return l, nil
}

func appendGeoJSON(l *layer.Layer, r io.Reader, opts GeoJSONOptions) error {
	fc, err := decodeCollection(r)
	if err != nil {
		return err
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if opts.Require != "" {
			if v, ok := f.Properties[opts.Require]; !ok || v == nil {
				continue
			}
		}
		attrs := make(layer.Attrs, len(opts.Properties)+len(opts.Const))
		for k, v := range opts.Const {
			attrs[k] = v
		}
		for src, key := range opts.Properties {
			v, ok := f.Properties[src]
			if !ok {
				if _, set := attrs[key]; !set {
					attrs[key] = layer.Missing()
				}
				continue
			}
			attrs[key] = propertyValue(v)
		}
		if opts.Derive != nil {
			opts.Derive(attrs)
		}
		l.Add(f.Geometry, attrs)
	}
	return nil
}

func propertyValue(v any) layer.Value {
	switch t := v.(type) {
	case nil:
		return layer.Missing()
	case float64:
		return layer.Number(t)
	case string:
		return layer.Parse(t)
	case bool:
		return layer.Text(strconv.FormatBool(t))
	default:
		data, _ := json.Marshal(t)
		return layer.Parse(string(data))
	}
}

// ReadPOI merges the OSM extracts of each tag into one POI layer. The tag
// value becomes the POI type. Missing files are skipped.
func ReadPOI(paths map[string]string, srid int) (*layer.Layer, error) {
	l := layer.New("poi", layer.KindPOI, srid)
	for _, tag := range POITags {
		path, ok := paths[tag]
		if !ok || path == "" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: open poi %s", path)
		}
		err = appendGeoJSON(l, f, GeoJSONOptions{
			Properties: map[string]string{tag: "type"},
			Const:      layer.Attrs{"tag": layer.Text(tag)},
			Require:    tag,
		})
		_ = f.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "loader: poi %s", path)
		}
	}
	if err := l.Validate(); err != nil {
		return nil, eris.Wrap(err, "loader: poi")
	}
	return l, nil
}

// ReadBoundary returns the geometry of the feature whose codeField property
// equals code, tagged with srid.
func ReadBoundary(r io.Reader, codeField, code string, srid int) (geom.T, error) {
	fc, err := decodeCollection(r)
	if err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		if propertyValue(f.Properties[codeField]).String() != code {
			continue
		}
		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			return g.SetSRID(srid), nil
		case *geom.MultiPolygon:
			return g.SetSRID(srid), nil
		default:
			return nil, eris.Errorf("loader: boundary %s is a %T, not a polygon", code, f.Geometry)
		}
	}
	return nil, eris.Errorf("loader: no boundary with %s = %s", codeField, code)
}
