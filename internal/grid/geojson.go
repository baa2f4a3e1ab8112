package grid

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// WriteGeoJSON writes the grid as a GeoJSON FeatureCollection, one feature per
// cell carrying its idINSPIRE, row and column.
func WriteGeoJSON(w io.Writer, g *Grid) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, g.Len())}
	for _, c := range g.Cells {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       c.ID,
			Geometry: c.Polygon(),
			Properties: map[string]interface{}{
				"idINSPIRE": c.ID,
				"row":       c.Row,
				"col":       c.Col,
			},
		})
	}
	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return eris.Wrap(err, "grid: encode geojson")
	}
	return nil
}
