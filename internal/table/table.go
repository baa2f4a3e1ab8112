// Package table holds the feature table produced by the aggregator and the
// schema checks that keep training and application tables aligned.
package table

import (
	"fmt"
	"strings"

	"github.com/sells-group/popgrid/internal/features"
)

// ColumnType is the declared type of a feature column.
type ColumnType string

// Float64 is the only value type the feature engine emits.
const Float64 ColumnType = "float64"

// Defaults of the schema descriptor.
const (
	DefaultKey    = "idINSPIRE"
	DefaultNoData = "NA"
)

// Column is one variable of the table.
type Column struct {
	Name string     `yaml:"name"`
	Type ColumnType `yaml:"type"`
}

// Schema is the ordered column layout of a feature table.
type Schema struct {
	Key     string   `yaml:"key"`
	Columns []Column `yaml:"columns"`
	NoData  string   `yaml:"nodata"`
}

// NewSchema returns a float64 schema over names.
func NewSchema(names []string, nodata string) Schema {
	s := Schema{Key: DefaultKey, NoData: nodata, Columns: make([]Column, 0, len(names))}
	for _, n := range names {
		s.Columns = append(s.Columns, Column{Name: n, Type: Float64})
	}
	return s
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Record is the row of one cell.
type Record struct {
	CellID string
	Values []features.Value
}

// Table is the ordered set of records of one grid, one per cell in grid order.
type Table struct {
	Schema  Schema
	Records []Record
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Column returns the values of the named column, or nil if it is absent.
// Records too short to hold the column yield NoData.
func (t *Table) Column(name string) []features.Value {
	for i, c := range t.Schema.Columns {
		if c.Name != name {
			continue
		}
		out := make([]features.Value, 0, len(t.Records))
		for _, r := range t.Records {
			if i < len(r.Values) {
				out = append(out, r.Values[i])
			} else {
				out = append(out, features.NoData)
			}
		}
		return out
	}
	return nil
}

// SchemaMismatchError lists every difference between two schemas, or between
// a table and its declared schema.
type SchemaMismatchError struct {
	Details []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s", strings.Join(e.Details, "; "))
}

// Compare reports the differences of got against want: key column, column
// set, column order, column types and NoData encoding. It returns nil when
// the schemas are identical.
func Compare(got, want Schema) error {
	var details []string
	if got.Key != want.Key {
		details = append(details, fmt.Sprintf("key column %q, want %q", got.Key, want.Key))
	}

	for _, name := range duplicates(got) {
		details = append(details, fmt.Sprintf("duplicate column %q", name))
	}
	for _, name := range duplicates(want) {
		details = append(details, fmt.Sprintf("duplicate column %q in expected schema", name))
	}

	gotIdx := indexOf(got)
	wantIdx := indexOf(want)
	for _, c := range want.Columns {
		if _, ok := gotIdx[c.Name]; !ok {
			details = append(details, fmt.Sprintf("missing column %q", c.Name))
		}
	}
	for _, c := range got.Columns {
		if _, ok := wantIdx[c.Name]; !ok {
			details = append(details, fmt.Sprintf("unexpected column %q", c.Name))
		}
	}
	for i, c := range got.Columns {
		j, ok := wantIdx[c.Name]
		if !ok {
			continue
		}
		if i != j {
			details = append(details, fmt.Sprintf("column %q at position %d, want %d", c.Name, i, j))
		}
		if c.Type != want.Columns[j].Type {
			details = append(details, fmt.Sprintf("column %q has type %s, want %s", c.Name, c.Type, want.Columns[j].Type))
		}
	}
	if got.NoData != want.NoData {
		details = append(details, fmt.Sprintf("nodata encoding %q, want %q", got.NoData, want.NoData))
	}

	if len(details) > 0 {
		return &SchemaMismatchError{Details: details}
	}
	return nil
}

// Validate checks that t follows expected and that every record is well
// formed: one value per column and unique cell identifiers.
func Validate(t *Table, expected Schema) error {
	if t == nil {
		return &SchemaMismatchError{Details: []string{"nil table"}}
	}
	if err := Compare(t.Schema, expected); err != nil {
		return err
	}

	var details []string
	seen := make(map[string]bool, len(t.Records))
	for i, r := range t.Records {
		if len(r.Values) != len(t.Schema.Columns) {
			details = append(details, fmt.Sprintf("record %d (%s) has %d values, want %d", i, r.CellID, len(r.Values), len(t.Schema.Columns)))
		}
		if seen[r.CellID] {
			details = append(details, fmt.Sprintf("record %d: duplicate cell %s", i, r.CellID))
		}
		seen[r.CellID] = true
		if len(details) >= maxDetails {
			details = append(details, "...")
			break
		}
	}
	if len(details) > 0 {
		return &SchemaMismatchError{Details: details}
	}
	return nil
}

// maxDetails bounds the record-level findings reported by Validate.
const maxDetails = 20

// indexOf maps each column name to its first position.
func indexOf(s Schema) map[string]int {
	m := make(map[string]int, len(s.Columns))
	for i, c := range s.Columns {
		if _, ok := m[c.Name]; !ok {
			m[c.Name] = i
		}
	}
	return m
}

// duplicates returns the column names declared more than once, in order of
// their second occurrence.
func duplicates(s Schema) []string {
	seen := make(map[string]int, len(s.Columns))
	var out []string
	for _, c := range s.Columns {
		seen[c.Name]++
		if seen[c.Name] == 2 {
			out = append(out, c.Name)
		}
	}
	return out
}
