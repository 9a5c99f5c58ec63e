package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkInsertNew_Validation(t *testing.T) {
	n, err := BulkInsertNew(context.TODO(), nil, InsertConfig{Table: "expenses"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = BulkInsertNew(context.TODO(), nil, InsertConfig{
		Table:        "expenses",
		ConflictKeys: []string{"id"},
	}, [][]any{{"1"}})
	assert.ErrorContains(t, err, "no columns specified")

	_, err = BulkInsertNew(context.TODO(), nil, InsertConfig{
		Table:   "expenses",
		Columns: []string{"id"},
	}, [][]any{{"1"}})
	assert.ErrorContains(t, err, "no conflict keys specified")
}

func TestBulkInsertNew_SkipsExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_insert_expenses" \(LIKE "expenses" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_expenses"}, []string{"id", "owner"}).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO "expenses" \("id", "owner"\) SELECT "id", "owner" FROM "_tmp_insert_expenses" ON CONFLICT \("id"\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkInsertNew(context.Background(), mock, InsertConfig{
		Table:        "expenses",
		Columns:      []string{"id", "owner"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"1", "a"}, {"2", "a"}, {"3", "b"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkInsertNew_CopyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_expenses"}, []string{"id"}).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkInsertNew(context.Background(), mock, InsertConfig{
		Table:        "expenses",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO _tmp_insert_expenses")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "owner", "amount"`, quoteAndJoin([]string{"id", "owner", "amount"}))
}
