package table

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/popgrid/internal/features"
)

// WriteCSV writes the key column then every variable, NoData encoded with the
// schema's marker.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	header := append([]string{t.Schema.Key}, t.Schema.Names()...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "table: write csv header")
	}
	row := make([]string, len(header))
	for _, r := range t.Records {
		row[0] = r.CellID
		for i, v := range r.Values {
			row[i+1] = v.Format(t.Schema.NoData)
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "table: write csv row %s", r.CellID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "table: flush csv")
	}
	return nil
}

// ReadCSV reads a table written by WriteCSV. The header gives the schema; all
// columns after the key are float64 and cells equal to nodata are NoData.
func ReadCSV(r io.Reader, nodata string) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "table: read csv header")
	}
	if len(header) < 1 {
		return nil, eris.New("table: empty csv header")
	}

	t := &Table{Schema: NewSchema(header[1:], nodata)}
	t.Schema.Key = header[0]
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "table: read csv line %d", line)
		}
		values := make([]features.Value, 0, len(rec)-1)
		for i, cell := range rec[1:] {
			if cell == nodata {
				values = append(values, features.NoData)
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "table: line %d column %s", line, header[i+1])
			}
			values = append(values, features.Num(v))
		}
		t.Records = append(t.Records, Record{CellID: rec[0], Values: values})
	}
	return t, nil
}
