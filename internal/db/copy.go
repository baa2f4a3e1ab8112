package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of rows sent per COPY.
const DefaultBatchSize = 50000

// Table names an optionally schema-qualified table.
type Table struct {
	Schema string
	Name   string
}

// ParseTable splits "schema.table"; a bare name stays unqualified.
func ParseTable(s string) Table {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) == 2 {
		return Table{Schema: parts[0], Name: parts[1]}
	}
	return Table{Name: s}
}

// Identifier returns the pgx identifier of the table.
func (t Table) Identifier() pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}
	}
	return pgx.Identifier{t.Schema, t.Name}
}

// Sanitize returns the quoted table name for use in SQL text.
func (t Table) Sanitize() string {
	return t.Identifier().Sanitize()
}

func (t Table) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// CopyRows bulk-inserts rows with the COPY protocol in batches of batchSize
// rows (0 = DefaultBatchSize). It returns the number of rows copied before any
// failure.
func CopyRows(ctx context.Context, pool Pool, table Table, columns []string, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "db.copy"),
		zap.String("table", table.String()),
		zap.Int("total_rows", len(rows)),
	)

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		n, err := pool.CopyFrom(ctx, table.Identifier(), columns, pgx.CopyFromRows(rows[i:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s (batch %d-%d)", table, i, end)
		}
		total += n
		log.Debug("batch loaded",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}
	return total, nil
}

// CreateGISTIndex adds a spatial index on column if it does not exist.
func CreateGISTIndex(ctx context.Context, pool Pool, table Table, column string) error {
	idx := pgx.Identifier{fmt.Sprintf("idx_%s_%s", table.Name, column)}.Sanitize()
	sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (%s)",
		idx, table.Sanitize(), pgx.Identifier{column}.Sanitize())
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "db: create GIST index on %s", table)
	}
	return nil
}
