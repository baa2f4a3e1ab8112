package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sells-group/popgrid/internal/table"
)

// CSVSink writes the table as CSV with the schema's NoData marker.
type CSVSink struct {
	Path string
}

func (s *CSVSink) Write(_ context.Context, out Output) (int64, error) {
	f, err := os.Create(s.Path)
	if err != nil {
		return 0, eris.Wrapf(err, "csv: create %s", s.Path)
	}
	if err := table.WriteCSV(f, out.Table); err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, eris.Wrapf(err, "csv: close %s", s.Path)
	}
	return int64(out.Table.Len()), nil
}

func (s *CSVSink) Close() error { return nil }

// XLSXSink writes the table to the first sheet of a workbook. NoData cells are
// left empty.
type XLSXSink struct {
	Path  string
	Sheet string
}

func (s *XLSXSink) Write(_ context.Context, out Output) (int64, error) {
	name := s.Sheet
	if name == "" {
		name = "features"
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(name)
	if err != nil {
		return 0, eris.Wrapf(err, "xlsx: add sheet %s", name)
	}

	header := sheet.AddRow()
	for _, col := range columnsOf(out.Table) {
		header.AddCell().SetString(col)
	}
	for _, r := range out.Table.Records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.CellID)
		for _, v := range r.Values {
			cell := row.AddCell()
			if v.Valid {
				cell.SetFloat(v.Num)
			}
		}
	}

	if err := f.Save(s.Path); err != nil {
		return 0, eris.Wrapf(err, "xlsx: save %s", s.Path)
	}
	return int64(out.Table.Len()), nil
}

func (s *XLSXSink) Close() error { return nil }

// ParquetSink writes the table as a Parquet file: a UTF8 key column then one
// optional DOUBLE per variable, NoData stored as null.
type ParquetSink struct {
	Path string
	// Parallel is the writer goroutine count (default 4).
	Parallel int64
}

func (s *ParquetSink) Write(_ context.Context, out Output) (int64, error) {
	t := out.Table
	schema, err := parquetSchema(t)
	if err != nil {
		return 0, err
	}
	np := s.Parallel
	if np <= 0 {
		np = 4
	}

	fw, err := local.NewLocalFileWriter(s.Path)
	if err != nil {
		return 0, eris.Wrapf(err, "parquet: create %s", s.Path)
	}
	pw, err := writer.NewJSONWriter(schema, fw, np)
	if err != nil {
		_ = fw.Close()
		return 0, eris.Wrap(err, "parquet: new writer")
	}

	names := t.Schema.Names()
	var n int64
	for _, r := range t.Records {
		rec := make(map[string]any, len(names)+1)
		rec[t.Schema.Key] = r.CellID
		for i, v := range r.Values {
			if v.Valid {
				rec[names[i]] = v.Num
			} else {
				rec[names[i]] = nil
			}
		}
		data, err := json.Marshal(rec)
		if err != nil {
			_ = fw.Close()
			return n, eris.Wrapf(err, "parquet: encode %s", r.CellID)
		}
		if err := pw.Write(string(data)); err != nil {
			_ = fw.Close()
			return n, eris.Wrapf(err, "parquet: write %s", r.CellID)
		}
		n++
	}

	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return n, eris.Wrap(err, "parquet: flush")
	}
	if err := fw.Close(); err != nil {
		return n, eris.Wrapf(err, "parquet: close %s", s.Path)
	}
	return n, nil
}

func (s *ParquetSink) Close() error { return nil }

type parquetField struct {
	Tag string `json:"Tag"`
}

type parquetRoot struct {
	Tag    string         `json:"Tag"`
	Fields []parquetField `json:"Fields"`
}

// parquetSchema builds the JSON schema accepted by the parquet-go JSON writer.
func parquetSchema(t *table.Table) (string, error) {
	root := parquetRoot{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	root.Fields = append(root.Fields, parquetField{
		Tag: "name=" + t.Schema.Key + ", type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED",
	})
	for _, name := range t.Schema.Names() {
		if strings.ContainsAny(name, ", =") {
			return "", eris.Errorf("parquet: column name %s cannot be tagged", strconv.Quote(name))
		}
		root.Fields = append(root.Fields, parquetField{
			Tag: "name=" + name + ", type=DOUBLE, repetitiontype=OPTIONAL",
		})
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(root); err != nil {
		return "", eris.Wrap(err, "parquet: encode schema")
	}
	return buf.String(), nil
}
