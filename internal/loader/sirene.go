package loader

import (
	"archive/zip"
	"context"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/popgrid/internal/layer"
)

// SIRENE stock file columns.
const (
	SireneNAF     = "activitePrincipaleEtablissement"
	SireneTranche = "trancheEffectifsEtablissement"
	SireneX       = "coordonneeLambertAbscisseEtablissement"
	SireneY       = "coordonneeLambertOrdonneeEtablissement"
	SireneState   = "etatAdministratifEtablissement"
	// SireneMember is the CSV inside the published stock archive.
	SireneMember = "StockEtablissement_utf8.csv"
)

// SireneOptions configure establishment loading.
type SireneOptions struct {
	SRID int
	// XColumn and YColumn hold projected coordinates. Defaults are the
	// Lambert-93 columns of the stock file.
	XColumn string
	YColumn string
	// Bounds, when set, drops establishments outside this rectangle.
	Bounds *[4]float64
	// ActiveOnly drops closed establishments ("F").
	ActiveOnly bool
}

// ReadSirene streams a SIRENE establishment CSV into a validated point layer.
// Rows with missing or unparsable coordinates are dropped.
func ReadSirene(ctx context.Context, r io.Reader, opts SireneOptions) (*layer.Layer, error) {
	if opts.XColumn == "" {
		opts.XColumn = SireneX
	}
	if opts.YColumn == "" {
		opts.YColumn = SireneY
	}

	l := layer.New("establishments", layer.KindEstablishments, opts.SRID)
	var h header
	var dropped int

	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{LazyQuotes: true})
	err := drain(rowCh, errCh, func(row []string) error {
		if h == nil {
			h = newHeader(row)
			// Pre-processed extracts carry the Lambert pair as longitude/latitude.
			if !h.has(opts.XColumn) && h.has("longitude") && h.has("latitude") {
				opts.XColumn, opts.YColumn = "longitude", "latitude"
			}
			for _, col := range []string{SireneNAF, opts.XColumn, opts.YColumn} {
				if !h.has(col) {
					return eris.Errorf("loader: sirene column %s missing", col)
				}
			}
			return nil
		}
		if opts.ActiveOnly && h.get(row, SireneState) == "F" {
			return nil
		}
		x, errX := strconv.ParseFloat(h.get(row, opts.XColumn), 64)
		y, errY := strconv.ParseFloat(h.get(row, opts.YColumn), 64)
		if errX != nil || errY != nil || math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			dropped++
			return nil
		}
		if b := opts.Bounds; b != nil && (x < b[0] || y < b[1] || x > b[2] || y > b[3]) {
			return nil
		}
		naf := strings.TrimSpace(h.get(row, SireneNAF))
		if naf == "" {
			dropped++
			return nil
		}
		l.Add(geom.NewPointFlat(geom.XY, []float64{x, y}), layer.Attrs{
			"naf":     layer.Text(naf),
			"tranche": layer.Parse(h.get(row, SireneTranche)),
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "loader: sirene")
	}

	zap.L().Debug("loader: sirene loaded",
		zap.Int("establishments", l.Len()),
		zap.Int("dropped", dropped),
	)
	if err := l.Validate(); err != nil {
		return nil, eris.Wrap(err, "loader: sirene")
	}
	return l, nil
}

// ReadSireneZIP reads the stock CSV straight out of the published archive.
func ReadSireneZIP(ctx context.Context, zipPath string, opts SireneOptions) (*layer.Layer, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer zr.Close() //nolint:errcheck

	for _, f := range zr.File {
		if f.Name != SireneMember {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, eris.Wrap(err, "zip: open entry")
		}
		defer rc.Close() //nolint:errcheck
		return ReadSirene(ctx, rc, opts)
	}
	return nil, eris.Errorf("zip: file %q not found in archive", SireneMember)
}
