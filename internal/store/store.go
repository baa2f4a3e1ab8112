// Package store persists run records and writes feature tables to their
// output formats.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/popgrid/internal/grid"
	"github.com/sells-group/popgrid/internal/model"
	"github.com/sells-group/popgrid/internal/table"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Mode   model.Mode      `json:"mode,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the run bookkeeping of the feature pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, spec model.RunSpec) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Output is one finished feature table. Grid is optional; database sinks use
// it to store cell geometries.
type Output struct {
	Table *table.Table
	Grid  *grid.Grid
	RunID string
}

// Sink writes a feature table to one output format.
type Sink interface {
	Write(ctx context.Context, out Output) (int64, error)
	Close() error
}

// Format names an output format.
type Format string

// Output formats.
const (
	FormatCSV      Format = "csv"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
	FormatXLSX     Format = "xlsx"
	FormatParquet  Format = "parquet"
)

// SinkConfig selects and configures a sink.
type SinkConfig struct {
	Format      Format
	Path        string // file formats and SQLite database
	DatabaseURL string // PostgreSQL
	Table       string // database table, "schema.table" for PostgreSQL
	// Upsert merges rows by cell id instead of replacing the PostgreSQL table.
	Upsert bool
}

// DefaultTable is the database table used when none is configured.
const DefaultTable = "features"

// OpenSink builds the sink of cfg.Format. Database sinks are migrated.
func OpenSink(ctx context.Context, cfg SinkConfig) (Sink, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	switch Format(strings.ToLower(string(cfg.Format))) {
	case FormatCSV, "":
		return &CSVSink{Path: cfg.Path}, nil
	case FormatXLSX:
		return &XLSXSink{Path: cfg.Path}, nil
	case FormatParquet:
		return &ParquetSink{Path: cfg.Path}, nil
	case FormatSQLite:
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		s.table = cfg.Table
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case FormatPostgres:
		s, err := NewPostgres(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		s.table = cfg.Table
		s.upsert = cfg.Upsert
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown output format %q", cfg.Format)
	}
}

// OpenStore opens the run store named by dsn: a postgres:// URL or a SQLite
// path. An empty dsn disables run tracking and returns nil.
func OpenStore(ctx context.Context, dsn string) (Store, error) {
	if dsn == "" {
		return nil, nil
	}
	var (
		s   Store
		err error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s, err = NewPostgres(ctx, dsn, nil)
	} else {
		s, err = NewSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// columnsOf returns the key column followed by every variable.
func columnsOf(t *table.Table) []string {
	return append([]string{t.Schema.Key}, t.Schema.Names()...)
}
