package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func newMockPostgresLedger(t *testing.T) (*PostgresLedger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresLedger{pool: mock, now: func() time.Time { return fixedNow }}, mock
}

func configFor(driver, url string) config.StoreConfig {
	return config.StoreConfig{Driver: driver, DatabaseURL: url}
}

func TestPostgres_Migrate(t *testing.T) {
	l, mock := newMockPostgresLedger(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS expenses`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, l.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PoolConfig(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/payai", nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.AfterConnect, "connections must not prepare statements against tables Migrate has yet to create")
	assert.Equal(t, int32(10), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnLifetime)

	cfg, err = poolConfig("postgres://u:p@localhost:5432/payai", &PoolConfig{MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(4), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)

	_, err = poolConfig("://bad", nil)
	assert.ErrorContains(t, err, "postgres: parse config")
}

func TestPostgres_FreshSchemaMigrateThenWrite(t *testing.T) {
	l, mock := newMockPostgresLedger(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS expenses`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO expenses`).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	require.NoError(t, l.Migrate(ctx))
	require.NoError(t, l.AppendExpense(ctx, expense("rahul", model.CategoryFood, 10)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendExpense(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	rec := expense("rahul", model.CategoryFood, 1250)
	mock.ExpectExec(`INSERT INTO expenses`).
		WithArgs(pgxmock.AnyArg(), "rahul", "food", 1250.0, "INR", "Acme", "2024-03-01", "upi", "",
			"invoice", "", "", "", "", "", "processed", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, l.AppendExpense(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendExpenseError(t *testing.T) {
	l, mock := newMockPostgresLedger(t)
	mock.ExpectExec(`INSERT INTO expenses`).WillReturnError(errors.New("connection reset"))

	err := l.AppendExpense(context.Background(), expense("rahul", model.CategoryFood, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLedgerWriteFailed))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgres_AppendCompliance(t *testing.T) {
	l, mock := newMockPostgresLedger(t)
	window := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO compliance_updates`).
		WithArgs(pgxmock.AnyArg(), "rahul", 10, 7, 3, "line a", window, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := l.AppendCompliance(context.Background(), &model.ComplianceUpdate{
		Owner: "rahul", Total: 10, Using: 7, NotUsing: 3, GroupLabel: "line a", Window: window,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CountExpenses(t *testing.T) {
	l, mock := newMockPostgresLedger(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM expenses WHERE owner = \$1 AND category = \$2`).
		WithArgs("rahul", "cab").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := l.CountExpenses(context.Background(), "rahul", model.CategoryCab)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_HasComplianceUpdate(t *testing.T) {
	l, mock := newMockPostgresLedger(t)
	window := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("rahul", window).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("asha", window).
		WillReturnError(pgx.ErrTxClosed)

	ok, err := l.HasComplianceUpdate(context.Background(), "rahul", window)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = l.HasComplianceUpdate(context.Background(), "asha", window)
	assert.ErrorContains(t, err, "has compliance update")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListByOwner(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	cols := []string{"id", "owner", "category", "amount", "currency", "vendor", "expense_date",
		"payment_method", "notes", "kind", "artifact_id", "artifact_link", "local_path", "raw_ocr_text",
		"raw_llm_response", "status", "created_at"}
	rows := pgxmock.NewRows(cols).
		AddRow("b", "rahul", model.CategoryCab, 300.0, "INR", "Uber", "2024-03-02", "card", "",
			model.ArtifactInvoice, "f2", "link2", "/tmp/b.jpg", "ocr", "{}", model.ExpenseStatusProcessed, fixedNow).
		AddRow("a", "rahul", model.CategoryFood, 1250.0, "INR", "Acme", "2024-03-01", "upi", "",
			model.ArtifactInvoice, "f1", "link1", "/tmp/a.jpg", "ocr", "{}", model.ExpenseStatusProcessed, fixedNow.Add(-time.Hour))

	mock.ExpectQuery(`FROM expenses WHERE owner = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("rahul", 5).
		WillReturnRows(rows)

	got, err := l.ListByOwner(context.Background(), "rahul", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, model.CategoryCab, got[0].Category)
	assert.Equal(t, "2024-03-02", got[0].ExpenseDate.Format(model.DateLayout))
	assert.Equal(t, 1250.0, got[1].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ImportExpenses(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_expenses"}, importColumns).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("id"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	recs := []model.ExpenseRecord{*expense("rahul", model.CategoryFood, 1), *expense("asha", model.CategoryCab, 2)}
	n, err := l.ImportExpenses(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotEmpty(t, recs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
