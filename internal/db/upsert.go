package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// UpsertConfig describes a merge of rows into an existing table.
type UpsertConfig struct {
	Table        Table
	Columns      []string
	ConflictKeys []string
	// UpdateCols are overwritten on conflict. Nil means every non-key column.
	UpdateCols []string
}

// BulkUpsert merges rows into cfg.Table. Rows are copied into a temporary
// table dropped at commit, then inserted with ON CONFLICT on the key columns,
// all in one transaction.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: upsert: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := stagingTable(cfg.Table)
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		staging.Sanitize(), cfg.Table.Sanitize(),
	)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, staging, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, mergeSQL(cfg, staging))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: INSERT ON CONFLICT for %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}

	zap.L().Debug("db: rows merged",
		zap.String("table", cfg.Table.String()),
		zap.Int("staged", len(rows)),
		zap.Int64("affected", tag.RowsAffected()),
	)
	return tag.RowsAffected(), nil
}

func stagingTable(t Table) pgx.Identifier {
	return pgx.Identifier{"_tmp_upsert_" + strings.ReplaceAll(t.String(), ".", "_")}
}

// mergeSQL builds the INSERT ... SELECT ... ON CONFLICT statement.
func mergeSQL(cfg UpsertConfig, staging pgx.Identifier) string {
	action := "DO NOTHING"
	if cols := updateColumns(cfg); len(cols) > 0 {
		sets := make([]string, len(cols))
		for i, col := range cols {
			q := pgx.Identifier{col}.Sanitize()
			sets[i] = q + " = EXCLUDED." + q
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	colList := quoteAndJoin(cfg.Columns)
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		cfg.Table.Sanitize(), colList, colList, staging.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys), action,
	)
}

func updateColumns(cfg UpsertConfig) []string {
	if cfg.UpdateCols != nil {
		return cfg.UpdateCols
	}
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	var out []string
	for _, c := range cfg.Columns {
		if !keys[c] {
			out = append(out, c)
		}
	}
	return out
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
