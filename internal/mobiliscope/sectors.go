package mobiliscope

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/loader"
)

// File name suffixes of the per-city exports.
const (
	SectorsSuffix = "_secteurs.geojson"
	StackedSuffix = "_pop_choro_stacked.csv"
)

// CodeField is the sector code property of the sector GeoJSON.
const CodeField = "CODE_SEC"

// ReadSectors loads one city's sector polygons. Each feature gets its national
// uid and its city.
func ReadSectors(path, city string, srid int) (*layer.Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mobiliscope: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	l, err := loader.ReadGeoJSON(f, city+"_sectors", loader.GeoJSONOptions{
		Kind:       layer.KindSectors,
		SRID:       srid,
		Properties: map[string]string{CodeField: "code"},
		Const:      layer.Attrs{"city": layer.Text(city)},
		Require:    CodeField,
		Derive: func(a layer.Attrs) {
			a["uid"] = layer.Text(SectorUID(city, a.String("code")))
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "mobiliscope: sectors %s", city)
	}
	return l, nil
}

// Dataset is the Mobiliscope survey extract of every city found in a directory.
type Dataset struct {
	Sectors *layer.Layer
	Targets []Target
}

// LoadDir reads every <city>_secteurs.geojson and <city>_pop_choro_stacked.csv
// in dir. Sectors of all cities are merged into one layer.
func LoadDir(ctx context.Context, dir string, srid int) (*Dataset, error) {
	sectorFiles, err := filepath.Glob(filepath.Join(dir, "*"+SectorsSuffix))
	if err != nil {
		return nil, eris.Wrap(err, "mobiliscope: glob sectors")
	}
	if len(sectorFiles) == 0 {
		return nil, eris.Errorf("mobiliscope: no *%s in %s", SectorsSuffix, dir)
	}
	sort.Strings(sectorFiles)

	ds := &Dataset{Sectors: layer.New("sectors", layer.KindSectors, srid)}
	for _, path := range sectorFiles {
		city := strings.TrimSuffix(filepath.Base(path), SectorsSuffix)
		l, err := ReadSectors(path, city, srid)
		if err != nil {
			return nil, err
		}
		for _, f := range l.Features {
			ds.Sectors.Add(f.Geom, f.Attrs)
		}
	}

	stacked, err := filepath.Glob(filepath.Join(dir, "*"+StackedSuffix))
	if err != nil {
		return nil, eris.Wrap(err, "mobiliscope: glob stacked")
	}
	sort.Strings(stacked)
	for _, path := range stacked {
		city := strings.TrimSuffix(filepath.Base(path), StackedSuffix)
		targets, err := readStackedFile(ctx, path, city)
		if err != nil {
			return nil, err
		}
		ds.Targets = append(ds.Targets, targets...)
	}
	sort.Slice(ds.Targets, func(i, j int) bool { return ds.Targets[i].Sector < ds.Targets[j].Sector })

	zap.L().Info("mobiliscope: dataset loaded",
		zap.String("component", "mobiliscope"),
		zap.Int("cities", len(sectorFiles)),
		zap.Int("sectors", ds.Sectors.Len()),
		zap.Int("targets", len(ds.Targets)),
	)
	return ds, nil
}

func readStackedFile(ctx context.Context, path, city string) ([]Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mobiliscope: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadStacked(ctx, f, city)
}

// Boundary returns every sector polygon as one MultiPolygon, the tiling
// boundary of model mode.
func Boundary(sectors *layer.Layer) (geom.T, error) {
	mp := geom.NewMultiPolygon(geom.XY)
	for _, f := range sectors.Features {
		switch g := f.Geom.(type) {
		case *geom.Polygon:
			if err := mp.Push(flatten(g)); err != nil {
				return nil, eris.Wrapf(err, "mobiliscope: sector %d", f.Index)
			}
		case *geom.MultiPolygon:
			for i := 0; i < g.NumPolygons(); i++ {
				if err := mp.Push(flatten(g.Polygon(i))); err != nil {
					return nil, eris.Wrapf(err, "mobiliscope: sector %d", f.Index)
				}
			}
		}
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.New("mobiliscope: no sector polygons")
	}
	mp.SetSRID(sectors.SRID)
	return mp, nil
}

// flatten drops any Z or M ordinate so every polygon shares the XY layout.
func flatten(p *geom.Polygon) *geom.Polygon {
	if p.Layout() == geom.XY {
		return p
	}
	rings := make([][]geom.Coord, p.NumLinearRings())
	for i := range rings {
		for _, c := range p.LinearRing(i).Coords() {
			rings[i] = append(rings[i], geom.Coord{c[0], c[1]})
		}
	}
	return geom.NewPolygon(geom.XY).MustSetCoords(rings)
}
