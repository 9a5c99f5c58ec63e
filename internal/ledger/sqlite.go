package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/payai/internal/model"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS expenses (
	id               TEXT PRIMARY KEY,
	owner            TEXT NOT NULL,
	category         TEXT NOT NULL,
	amount           REAL NOT NULL DEFAULT 0,
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
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS compliance_updates (
	id          TEXT PRIMARY KEY,
	owner       TEXT NOT NULL,
	total       INTEGER NOT NULL,
	using_count INTEGER NOT NULL,
	not_using   INTEGER NOT NULL,
	group_label TEXT NOT NULL DEFAULT '',
	window_unix INTEGER NOT NULL,
	reported_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_owner_category ON expenses(owner, category);
CREATE INDEX IF NOT EXISTS idx_expenses_owner_created ON expenses(owner, created_at);
CREATE INDEX IF NOT EXISTS idx_compliance_owner_window ON compliance_updates(owner, window_unix);
`

func (s *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

const sqliteInsertExpense = `INSERT INTO expenses (id, owner, category, amount, currency, vendor, expense_date,
	payment_method, notes, kind, artifact_id, artifact_link, local_path, raw_ocr_text, raw_llm_response,
	status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteLedger) AppendExpense(ctx context.Context, rec *model.ExpenseRecord) error {
	prepareExpense(rec, s.now(), uuid.NewString)
	_, err := s.db.ExecContext(ctx, sqliteInsertExpense, expenseArgs(rec)...)
	if err != nil {
		return writeFailed(err, "sqlite: insert expense")
	}
	return nil
}

func (s *SQLiteLedger) AppendCompliance(ctx context.Context, upd *model.ComplianceUpdate) error {
	prepareCompliance(upd, s.now(), uuid.NewString)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compliance_updates (id, owner, total, using_count, not_using, group_label, window_unix, reported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		upd.ID, upd.Owner, upd.Total, upd.Using, upd.NotUsing, upd.GroupLabel, upd.Window.Unix(), upd.ReportedAt,
	)
	if err != nil {
		return writeFailed(err, "sqlite: insert compliance update")
	}
	return nil
}

func (s *SQLiteLedger) CountExpenses(ctx context.Context, owner string, category model.Category) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE owner = ? AND category = ?`,
		owner, string(category),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count expenses")
}

func (s *SQLiteLedger) HasComplianceUpdate(ctx context.Context, owner string, window time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM compliance_updates WHERE owner = ? AND window_unix = ?)`,
		owner, window.Unix(),
	).Scan(&exists)
	return exists, eris.Wrap(err, "sqlite: has compliance update")
}

func (s *SQLiteLedger) ListByOwner(ctx context.Context, owner string, limit int) ([]model.ExpenseRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE owner = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		owner, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list expenses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExpenseRecord
	for rows.Next() {
		rec, err := scanExpense(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan expense")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list expenses iterate")
}

func (s *SQLiteLedger) ImportExpenses(ctx context.Context, recs []model.ExpenseRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE"+sqliteInsertExpense[len("INSERT"):])
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	now := s.now()
	for i := range recs {
		prepareExpense(&recs[i], now, uuid.NewString)
		res, err := stmt.ExecContext(ctx, expenseArgs(&recs[i])...)
		if err != nil {
			return 0, writeFailed(err, "sqlite: import expense")
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, writeFailed(err, "sqlite: import commit")
	}
	return inserted, nil
}

const expenseColumns = `id, owner, category, amount, currency, vendor, expense_date, payment_method, notes, kind,
	artifact_id, artifact_link, local_path, raw_ocr_text, raw_llm_response, status, created_at`

func expenseArgs(rec *model.ExpenseRecord) []any {
	return []any{
		rec.ID, rec.Owner, string(rec.Category), rec.Amount, rec.Currency, rec.Vendor,
		rec.ExpenseDate.Format(model.DateLayout), rec.PaymentMethod, rec.Notes, string(rec.Kind),
		rec.ArtifactID, rec.ArtifactLink, rec.LocalPath, rec.RawOCRText, rec.RawLLMResponse,
		string(rec.Status), rec.CreatedAt,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanExpense(row scannable) (*model.ExpenseRecord, error) {
	var rec model.ExpenseRecord
	var date string
	err := row.Scan(&rec.ID, &rec.Owner, &rec.Category, &rec.Amount, &rec.Currency, &rec.Vendor, &date,
		&rec.PaymentMethod, &rec.Notes, &rec.Kind, &rec.ArtifactID, &rec.ArtifactLink, &rec.LocalPath,
		&rec.RawOCRText, &rec.RawLLMResponse, &rec.Status, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.ExpenseDate, _ = time.Parse(model.DateLayout, date)
	return &rec, nil
}
