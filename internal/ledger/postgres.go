package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/payai/internal/db"
	"github.com/sells-group/payai/internal/model"
)

// PostgresLedger implements Ledger using pgxpool.
type PostgresLedger struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

const (
	pgInsertExpense = `INSERT INTO expenses (id, owner, category, amount, currency, vendor, expense_date,
	payment_method, notes, kind, artifact_id, artifact_link, local_path, raw_ocr_text, raw_llm_response,
	status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	pgInsertCompliance = `INSERT INTO compliance_updates (id, owner, total, using_count, not_using, group_label,
	window_start, reported_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	pgCountExpenses = `SELECT COUNT(*) FROM expenses WHERE owner = $1 AND category = $2`
	pgHasCompliance = `SELECT EXISTS (SELECT 1 FROM compliance_updates WHERE owner = $1 AND window_start = $2)`
	pgListByOwner   = `SELECT ` + expenseColumns + ` FROM expenses WHERE owner = $1 ORDER BY created_at DESC LIMIT $2`
)

// NewPostgres creates a PostgresLedger with a connection pool. Statements run
// unprepared, so the pool can be opened before Migrate has created the tables.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresLedger, error) {
	pgxCfg, err := poolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresLedger{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

func poolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	return pgxCfg, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS expenses (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner            TEXT NOT NULL,
	category         TEXT NOT NULL,
	amount           DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency         TEXT NOT NULL,
	vendor           TEXT NOT NULL,
	expense_date     TEXT NOT NULL,
	payment_method   TEXT NOT NULL,
	notes            TEXT NOT NULL DEFAULT '',
	kind             TEXT NOT NULL DEFAULT 'invoice',
	artifact_id      TEXT NOT NULL DEFAULT '',
	artifact_link    TEXT NOT NULL DEFAULT '',
	local_path       TEXT NOT NULL DEFAULT '',
	raw_ocr_text     TEXT NOT NULL DEFAULT '',
	raw_llm_response TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'processed',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS compliance_updates (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner        TEXT NOT NULL,
	total        INTEGER NOT NULL,
	using_count  INTEGER NOT NULL,
	not_using    INTEGER NOT NULL,
	group_label  TEXT NOT NULL DEFAULT '',
	window_start TIMESTAMPTZ NOT NULL,
	reported_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_expenses_owner_category ON expenses(owner, category);
CREATE INDEX IF NOT EXISTS idx_expenses_owner_created ON expenses(owner, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_compliance_owner_window ON compliance_updates(owner, window_start);
`

func (s *PostgresLedger) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresLedger) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresLedger) AppendExpense(ctx context.Context, rec *model.ExpenseRecord) error {
	prepareExpense(rec, s.now(), uuid.NewString)
	if _, err := s.pool.Exec(ctx, pgInsertExpense, expenseArgs(rec)...); err != nil {
		return writeFailed(err, "postgres: insert expense")
	}
	return nil
}

func (s *PostgresLedger) AppendCompliance(ctx context.Context, upd *model.ComplianceUpdate) error {
	prepareCompliance(upd, s.now(), uuid.NewString)
	_, err := s.pool.Exec(ctx, pgInsertCompliance,
		upd.ID, upd.Owner, upd.Total, upd.Using, upd.NotUsing, upd.GroupLabel, upd.Window, upd.ReportedAt,
	)
	if err != nil {
		return writeFailed(err, "postgres: insert compliance update")
	}
	return nil
}

func (s *PostgresLedger) CountExpenses(ctx context.Context, owner string, category model.Category) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, pgCountExpenses, owner, string(category)).Scan(&n)
	return n, eris.Wrap(err, "postgres: count expenses")
}

func (s *PostgresLedger) HasComplianceUpdate(ctx context.Context, owner string, window time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, pgHasCompliance, owner, window.UTC()).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: has compliance update")
}

func (s *PostgresLedger) ListByOwner(ctx context.Context, owner string, limit int) ([]model.ExpenseRecord, error) {
	rows, err := s.pool.Query(ctx, pgListByOwner, owner, listLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list expenses")
	}
	defer rows.Close()

	var out []model.ExpenseRecord
	for rows.Next() {
		rec, err := scanExpense(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan expense")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list expenses iterate")
}

var importColumns = []string{
	"id", "owner", "category", "amount", "currency", "vendor", "expense_date", "payment_method", "notes",
	"kind", "artifact_id", "artifact_link", "local_path", "raw_ocr_text", "raw_llm_response", "status",
	"created_at",
}

// ImportExpenses loads recs through COPY into a temp table and inserts the
// rows whose IDs are new.
func (s *PostgresLedger) ImportExpenses(ctx context.Context, recs []model.ExpenseRecord) (int64, error) {
	rows := make([][]any, len(recs))
	now := s.now()
	for i := range recs {
		prepareExpense(&recs[i], now, uuid.NewString)
		rows[i] = expenseArgs(&recs[i])
	}

	n, err := db.BulkInsertNew(ctx, s.pool, db.InsertConfig{
		Table:        "expenses",
		Columns:      importColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, writeFailed(err, "postgres: import expenses")
	}
	return n, nil
}
