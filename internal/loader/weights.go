package loader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/popgrid/internal/layer"
)

// WeightOptions configure a two-column key/value table.
type WeightOptions struct {
	Delimiter rune // default ';'
	KeyColumn string
	// ValueColumn defaults to the second column when empty.
	ValueColumn string
}

// POIWeightOptions match score_POI.csv.
var POIWeightOptions = WeightOptions{Delimiter: ';', KeyColumn: "poi", ValueColumn: "score"}

// NAFJobsOptions match the NAF jobs fallback table.
var NAFJobsOptions = WeightOptions{Delimiter: ';', KeyColumn: "naf", ValueColumn: "jobs"}

// ReadWeights parses a delimited key/value table with a header row. Rows with
// a blank key are skipped; a non-numeric value is an error.
func ReadWeights(ctx context.Context, r io.Reader, opts WeightOptions) (map[string]float64, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	out := make(map[string]float64)
	var h header
	line := 0

	rowCh, errCh := StreamCSV(ctx, r, CSVOptions{Delimiter: opts.Delimiter, LazyQuotes: true})
	err := drain(rowCh, errCh, func(row []string) error {
		line++
		if h == nil {
			h = newHeader(row)
			if opts.KeyColumn != "" && !h.has(opts.KeyColumn) {
				return eris.Errorf("loader: weights column %s missing", opts.KeyColumn)
			}
			return nil
		}
		return addWeight(out, h, row, opts, line)
	})
	if err != nil {
		return nil, eris.Wrap(err, "loader: weights")
	}
	return out, nil
}

// ReadWeightsFile reads a weight table from a CSV or XLSX file, chosen by
// extension. XLSX tables are read from the first sheet.
func ReadWeightsFile(ctx context.Context, path string, opts WeightOptions) (map[string]float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readWeightsXLSX(path, opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open weights %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadWeights(ctx, f, opts)
}

func readWeightsXLSX(path string, opts WeightOptions) (map[string]float64, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	out := make(map[string]float64)
	var h header
	for i, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		if h == nil {
			h = newHeader(cells)
			continue
		}
		if err := addWeight(out, h, cells, opts, i+1); err != nil {
			return nil, eris.Wrap(err, "loader: weights")
		}
	}
	return out, nil
}

func addWeight(out map[string]float64, h header, row []string, opts WeightOptions, line int) error {
	key, raw := "", ""
	if opts.KeyColumn != "" {
		key = h.get(row, opts.KeyColumn)
	} else if len(row) > 0 {
		key = row[0]
	}
	if opts.ValueColumn != "" {
		raw = h.get(row, opts.ValueColumn)
	} else if len(row) > 1 {
		raw = row[1]
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	v, ok, err := layer.Attrs{"value": layer.Parse(raw)}.Float("value")
	if err != nil {
		return eris.Errorf("line %d: %s: non-numeric value %q", line, key, raw)
	}
	if !ok {
		return nil
	}
	out[key] = v
	return nil
}
