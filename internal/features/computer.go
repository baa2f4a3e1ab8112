// Package features holds the per-cell feature computers. Each computer is a
// pure function of one cell and the read-only spatial indexes, so cells can be
// computed in any order and in parallel.
package features

import (
	"errors"
	"fmt"

	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/spatial"
)

// Variable names, in the declared column order of the feature table.
const (
	ScorePOIPondere           = "score_poi_pondere"
	EmploisEstimesPondere     = "emplois_estimes_pondere"
	DensiteEtablissements     = "densite_etablissements"
	DensiteCommerces          = "densite_commerces"
	IndiceMixiteFonctionnelle = "indice_mixite_fonctionnelle"
	PartPopulationActive      = "part_population_active"
	PartJeunes                = "part_jeunes"
	ShapeIndexMoyen           = "shape_index_moyen"
	HauteurPondereeSurface    = "hauteur_ponderee_surface"
	EcartTypeHauteur          = "ecart_type_hauteur"
	EcartTypeSurfaceBatiment  = "ecart_type_surface_batiment"
	DistanceMoyenneBatiments  = "distance_moyenne_batiments"
	VolumeMoyenBatiments      = "volume_moyen_batiments"
	LargeurMoyenneRue         = "largeur_moyenne_rue"
	DensiteVoirie             = "densite_voirie"
)

// Computer produces one variable for one cell.
type Computer interface {
	Name() string
	Compute(cell grid.Cell, set *spatial.Set) (Value, error)
}

// ComputationError reports a computer failing on a cell, usually because of
// malformed layer data.
type ComputationError struct {
	Variable string
	CellID   string
	Err      error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("compute %s for cell %s: %v", e.Variable, e.CellID, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Options select optional variables and thresholds.
type Options struct {
	// Extended appends densite_voirie to the 14 core variables.
	Extended bool
	// MinBuiltSurface is the built surface (m²) at or below which densities
	// are undefined.
	MinBuiltSurface float64
}

// DefaultComputers returns the computers in declared column order.
func DefaultComputers(t Tables, opts Options) []Computer {
	t = t.normalized()
	cs := []Computer{
		poiScore{tables: t},
		jobEstimate{tables: t},
		establishmentDensity{name: DensiteEtablissements, tables: t, min: opts.MinBuiltSurface},
		establishmentDensity{name: DensiteCommerces, tables: t, min: opts.MinBuiltSurface, commerce: true},
		functionalMix{tables: t},
		censusShare{name: PartPopulationActive, bands: ActiveBands},
		censusShare{name: PartJeunes, bands: YoungBands},
		shapeIndex{},
		weightedHeight{},
		heightStdDev{},
		footprintStdDev{},
		meanNearestDistance{},
		meanVolume{},
		meanStreetWidth{},
	}
	if opts.Extended {
		cs = append(cs, roadDensity{})
	}
	return cs
}

// Names returns the variable names of cs, in order.
func Names(cs []Computer) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name())
	}
	return out
}

// number reads a numeric attribute and attaches the feature position to any
// attribute error.
func number(kind layer.Kind, f *layer.Feature, key string) (float64, bool, error) {
	v, ok, err := f.Attrs.Float(key)
	var ae *layer.AttributeError
	if errors.As(err, &ae) {
		ae.Kind = kind
		ae.Feature = f.Index
	}
	return v, ok, err
}
