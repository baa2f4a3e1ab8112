package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/sells-group/popgrid/internal/table"
)

func TestCSVSink(t *testing.T) {
	out := sampleOutput(t)
	path := filepath.Join(t.TempDir(), "features.csv")

	n, err := (&CSVSink{Path: path}).Write(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	back, err := table.ReadCSV(f, "NA")
	require.NoError(t, err)
	assert.Equal(t, out.Table.Schema.Names(), back.Schema.Names())
	assert.False(t, back.Records[0].Values[1].Valid)
}

func TestXLSXSink(t *testing.T) {
	out := sampleOutput(t)
	path := filepath.Join(t.TempDir(), "features.xlsx")

	n, err := (&XLSXSink{Path: path}).Write(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	rows := f.Sheets[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "idINSPIRE", rows[0].Cells[0].String())
	assert.Equal(t, out.Table.Records[0].CellID, rows[1].Cells[0].String())

	v, err := rows[1].Cells[1].Float()
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
	if len(rows[1].Cells) > 2 {
		assert.Empty(t, rows[1].Cells[2].String(), "NoData cell is empty")
	}

	v, err = rows[2].Cells[2].Float()
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)
}

func TestParquetSink(t *testing.T) {
	out := sampleOutput(t)
	path := filepath.Join(t.TempDir(), "features.parquet")

	n, err := (&ParquetSink{Path: path, Parallel: 1}).Write(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close() //nolint:errcheck

	pr, err := reader.NewParquetReader(fr, nil, 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	assert.Equal(t, int64(2), pr.GetNumRows())
}

func TestParquetSchema_RejectsUnsafeNames(t *testing.T) {
	_, err := parquetSchema(&table.Table{Schema: table.NewSchema([]string{"a,b"}, "NA")})
	assert.Error(t, err)
}
