package mobiliscope

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/popgrid/internal/features"
	"github.com/sells-group/popgrid/internal/geometry"
	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/layer"
	"github.com/sells-group/popgrid/internal/spatial"
	"github.com/sells-group/popgrid/internal/table"
)

// Target column names.
const (
	SectorKey       = "secteur_uid"
	PopulationDay   = "population_jour"
	PopulationNight = "population_nuit"
)

// Assignment links a grid cell to the sector covering most of it.
type Assignment struct {
	CellID  string
	Sector  string
	Overlap float64 // m² of the cell inside the sector
}

// Assign gives each cell the sector with the largest overlap; ties go to the
// sector read first. Cells outside every sector are left out. Assignments
// follow grid order.
func Assign(g *grid.Grid, sectors *layer.Layer) []Assignment {
	idx := spatial.Build(sectors)
	out := make([]Assignment, 0, g.Len())
	for _, cell := range g.Cells {
		var best *layer.Feature
		bestArea := 0.0
		for _, f := range idx.Intersecting(cell.Bounds) {
			a := geometry.ClippedArea(f.Geom, cell.Bounds)
			if a > bestArea {
				best, bestArea = f, a
			}
		}
		if best == nil {
			continue
		}
		out = append(out, Assignment{CellID: cell.ID, Sector: best.Attrs.String("uid"), Overlap: bestArea})
	}
	return out
}

// SectorTable averages the cell features of every sector, weighted by the
// built surface of each cell, and appends the day and night targets. Only
// sectors that have both assigned cells and a target are kept, in uid order.
// A variable with no weighted value in a sector is NoData.
func SectorTable(t *table.Table, assigned []Assignment, built map[string]float64, targets []Target) *table.Table {
	byCell := make(map[string]int, len(t.Records))
	for i, r := range t.Records {
		byCell[r.CellID] = i
	}
	bySector := make(map[string]Target, len(targets))
	for _, tg := range targets {
		bySector[tg.Sector] = tg
	}

	ncols := len(t.Schema.Columns)
	type acc struct{ num, den []float64 }
	sums := make(map[string]*acc)
	for _, a := range assigned {
		if _, ok := bySector[a.Sector]; !ok {
			continue
		}
		ri, ok := byCell[a.CellID]
		if !ok {
			continue
		}
		s, ok := sums[a.Sector]
		if !ok {
			s = &acc{num: make([]float64, ncols), den: make([]float64, ncols)}
			sums[a.Sector] = s
		}
		w := built[a.CellID]
		if w <= 0 {
			continue
		}
		for i, v := range t.Records[ri].Values {
			if !v.Valid {
				continue
			}
			s.num[i] += v.Num * w
			s.den[i] += w
		}
	}

	names := append(t.Schema.Names(), PopulationDay, PopulationNight)
	out := &table.Table{Schema: table.NewSchema(names, t.Schema.NoData)}
	out.Schema.Key = SectorKey

	uids := make([]string, 0, len(sums))
	for uid := range sums {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		s := sums[uid]
		values := make([]features.Value, 0, len(names))
		for i := 0; i < ncols; i++ {
			values = append(values, features.Ratio(s.num[i], s.den[i]))
		}
		tg := bySector[uid]
		values = append(values, tg.Day, tg.Night)
		out.Records = append(out.Records, table.Record{CellID: uid, Values: values})
	}
	return out
}

// WriteAssignments writes the cell to sector targets: one row per assigned
// cell with its sector and the sector's day and night population.
func WriteAssignments(w io.Writer, assigned []Assignment, targets []Target, nodata string) error {
	bySector := make(map[string]Target, len(targets))
	for _, tg := range targets {
		bySector[tg.Sector] = tg
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{table.DefaultKey, SectorKey, "overlap_m2", PopulationDay, PopulationNight}); err != nil {
		return eris.Wrap(err, "mobiliscope: write header")
	}
	for _, a := range assigned {
		tg, ok := bySector[a.Sector]
		if !ok {
			tg = Target{Day: features.NoData, Night: features.NoData}
		}
		row := []string{
			a.CellID,
			a.Sector,
			strconv.FormatFloat(a.Overlap, 'f', 2, 64),
			tg.Day.Format(nodata),
			tg.Night.Format(nodata),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "mobiliscope: write %s", a.CellID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "mobiliscope: flush")
	}
	return nil
}
