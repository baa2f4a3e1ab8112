package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/popgrid/internal/features"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/loader"
)

// ReadBoundary loads the department polygon of the configured territory.
func ReadBoundary(path, codeField, code string, srid int) (geom.T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open boundary %s", path)
	}
	defer f.Close() //nolint:errcheck
	return loader.ReadBoundary(f, codeField, code, srid)
}

// readVector loads a polygon or line layer from a shapefile or a GeoJSON
// file, picked by extension. fields map source attribute names to keys.
func readVector(path, name string, kind layer.Kind, srid int, fields map[string]string) (*layer.Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return loader.ReadShapefile(path, name, loader.ShapefileOptions{Kind: kind, SRID: srid, Fields: fields})
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return loader.ReadGeoJSON(f, name, loader.GeoJSONOptions{Kind: kind, SRID: srid, Properties: anyCase(fields)})
	default:
		return nil, eris.Errorf("pipeline: unsupported layer file %s", path)
	}
}

// anyCase also accepts the lowercase spelling of every source name, as found
// in GeoJSON re-exports of the BD TOPO.
func anyCase(fields map[string]string) map[string]string {
	out := make(map[string]string, 2*len(fields))
	for k, v := range fields {
		out[k] = v
		out[strings.ToLower(k)] = v
	}
	return out
}

// loadLayers reads every configured input layer. Establishments are clipped
// to the grid extent while streaming.
func (p *Pipeline) loadLayers(ctx context.Context, g *grid.Grid) ([]*layer.Layer, error) {
	srid := g.SRID
	paths := p.cfg.Layers
	var out []*layer.Layer

	if paths.Buildings != "" {
		l, err := readVector(paths.Buildings, "buildings", layer.KindBuildings, srid, loader.BuildingFields)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if paths.Streets != "" {
		l, err := readVector(paths.Streets, "streets", layer.KindStreets, srid, loader.StreetFields)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if len(paths.POI) > 0 {
		l, err := loader.ReadPOI(paths.POI, srid)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if paths.Establishments != "" {
		l, err := p.readEstablishments(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if paths.Census != "" {
		f, err := os.Open(paths.Census)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: open census %s", paths.Census)
		}
		l, err := loader.ReadGeoJSON(f, "census", loader.GeoJSONOptions{
			Kind:       layer.KindCensus,
			SRID:       srid,
			Properties: loader.CensusFields(),
		})
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: load layers")
	}
	return out, nil
}

func (p *Pipeline) readEstablishments(ctx context.Context, g *grid.Grid) (*layer.Layer, error) {
	r := float64(g.Resolution)
	bounds := [4]float64{
		g.Origin[0],
		g.Origin[1],
		g.Origin[0] + float64(g.Cols)*r,
		g.Origin[1] + float64(g.Rows)*r,
	}
	opts := loader.SireneOptions{
		SRID:       g.SRID,
		Bounds:     &bounds,
		ActiveOnly: p.cfg.Features.ActiveOnly,
	}

	path := p.cfg.Layers.Establishments
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return loader.ReadSireneZIP(ctx, path, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open establishments %s", path)
	}
	defer f.Close() //nolint:errcheck
	return loader.ReadSirene(ctx, f, opts)
}

// lookupTables merges the configured weights over the built-in tables. Without
// a NAF jobs file the fallback is derived from the establishments layer.
func (p *Pipeline) lookupTables(ctx context.Context, establishments *layer.Layer) (features.Tables, error) {
	w := p.cfg.Weights
	t := features.DefaultTables()

	if w.POI != "" {
		weights, err := loader.ReadWeightsFile(ctx, w.POI, loader.POIWeightOptions)
		if err != nil {
			return t, eris.Wrap(err, "pipeline: poi weights")
		}
		t.POIWeights = weights
	}
	for k, v := range w.Tranche {
		t.TrancheJobs[k] = v
	}
	for k, v := range w.NAFFunctions {
		t.NAFFunctions[k] = v
	}
	if len(w.CommercePrefixes) > 0 {
		t.CommercePrefixes = w.CommercePrefixes
	}
	t.JobSectors = w.JobSectors

	if w.NAFJobs != "" {
		jobs, err := loader.ReadWeightsFile(ctx, w.NAFJobs, loader.NAFJobsOptions)
		if err != nil {
			return t, eris.Wrap(err, "pipeline: naf jobs")
		}
		t.NAFJobs = jobs
	} else {
		t.NAFJobs = features.DeriveNAFJobs(establishments, t.TrancheJobs)
	}
	return t, nil
}

func findLayer(layers []*layer.Layer, kind layer.Kind) *layer.Layer {
	for _, l := range layers {
		if l.Kind == kind {
			return l
		}
	}
	return nil
}
