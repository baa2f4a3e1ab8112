package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        Table{Schema: "popgrid", Name: "features"},
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        Table{Name: "features"},
		ConflictKeys: []string{"id"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   Table{Name: "features"},
		Columns: []string{"id", "name"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_popgrid_features" \(LIKE "popgrid"."features" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_popgrid_features"}, []string{"id", "v"}).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "popgrid"."features" \("id", "v"\) SELECT "id", "v" FROM "_tmp_upsert_popgrid_features" ON CONFLICT \("id"\) DO UPDATE SET "v" = EXCLUDED."v"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        Table{Schema: "popgrid", Name: "features"},
		Columns:      []string{"id", "v"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"a", 1.0}, {"b", 2.0}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}

func TestMergeSQL_KeysOnly(t *testing.T) {
	cfg := UpsertConfig{
		Table:        Table{Name: "features"},
		Columns:      []string{"idINSPIRE"},
		ConflictKeys: []string{"idINSPIRE"},
	}
	sql := mergeSQL(cfg, stagingTable(cfg.Table))
	assert.Equal(t, `INSERT INTO "features" ("idINSPIRE") SELECT "idINSPIRE" FROM "_tmp_upsert_features" ON CONFLICT ("idINSPIRE") DO NOTHING`, sql)
}
