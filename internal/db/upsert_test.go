package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = UpsertConfig{
	Table:        "businesses",
	Columns:      []string{"place_id", "name", "created_at"},
	ConflictKeys: []string{"place_id"},
	UpdateCols:   []string{"name"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, testCfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "businesses",
		ConflictKeys: []string{"place_id"},
	}, [][]any{{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "businesses",
		Columns: []string{"place_id", "name"},
	}, [][]any{{"a", "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "_tmp_upsert_businesses" (LIKE "businesses" INCLUDING DEFAULTS INCLUDING IDENTITY) ON COMMIT DROP`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_businesses"}, testCfg.Columns).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("place_id") DO UPDATE SET "name" = EXCLUDED."name"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, testCfg, [][]any{{"p1", "A", nil}, {"p2", "B", nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_businesses"}, testCfg.Columns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, testCfg, [][]any{{"p1", "A", nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSelectSQL_DefaultUpdateCols(t *testing.T) {
	sql := UpsertSelectSQL(UpsertConfig{
		Table:        "public.businesses",
		Columns:      []string{"place_id", "name", "phone"},
		ConflictKeys: []string{"place_id"},
	}, "_tmp")
	assert.Equal(t,
		`INSERT INTO "public"."businesses" ("place_id", "name", "phone") SELECT "place_id", "name", "phone" FROM "_tmp" ON CONFLICT ("place_id") DO UPDATE SET "name" = EXCLUDED."name", "phone" = EXCLUDED."phone"`,
		sql)
}

func TestUpsertValuesSQL(t *testing.T) {
	sql := UpsertValuesSQL(testCfg)
	assert.Equal(t,
		`INSERT INTO "businesses" ("place_id", "name", "created_at") VALUES ($1, $2, $3) ON CONFLICT ("place_id") DO UPDATE SET "name" = EXCLUDED."name"`,
		sql)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.businesses", `"public"."businesses"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "value"`, quoteAndJoin([]string{"id", "name", "value"}))
}
