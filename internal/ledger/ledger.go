// Package ledger persists confirmed expenses and compliance updates.
// Records are append-only; nothing here updates or deletes a row.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/model"
)

// ErrLedgerWriteFailed wraps every failed append.
var ErrLedgerWriteFailed = errors.New("ledger write failed")

// DefaultListLimit caps ListByOwner when no limit is given.
const DefaultListLimit = 100

// Ledger is the append-only expense and compliance store.
type Ledger interface {
	// AppendExpense assigns ID and CreatedAt when empty and inserts rec.
	AppendExpense(ctx context.Context, rec *model.ExpenseRecord) error
	// AppendCompliance assigns ID and ReportedAt when empty and inserts upd.
	AppendCompliance(ctx context.Context, upd *model.ComplianceUpdate) error

	CountExpenses(ctx context.Context, owner string, category model.Category) (int, error)
	// HasComplianceUpdate matches window by exact equality; callers snap first.
	HasComplianceUpdate(ctx context.Context, owner string, window time.Time) (bool, error)
	// ListByOwner returns the newest records first.
	ListByOwner(ctx context.Context, owner string, limit int) ([]model.ExpenseRecord, error)
	// ImportExpenses bulk-loads records, skipping IDs already present.
	ImportExpenses(ctx context.Context, recs []model.ExpenseRecord) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the ledger named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Ledger, error) {
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "payai.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("ledger: unknown driver %q", cfg.Driver)
	}
}

func writeFailed(err error, msg string) error {
	return eris.Wrapf(ErrLedgerWriteFailed, "%s: %v", msg, err)
}

func prepareExpense(rec *model.ExpenseRecord, now time.Time, newID func() string) {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.Status == "" {
		rec.Status = model.ExpenseStatusProcessed
	}
	if rec.Kind == "" {
		rec.Kind = model.ArtifactInvoice
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
}

func prepareCompliance(upd *model.ComplianceUpdate, now time.Time, newID func() string) {
	if upd.ID == "" {
		upd.ID = newID()
	}
	if upd.ReportedAt.IsZero() {
		upd.ReportedAt = now
	}
	upd.ReportedAt = upd.ReportedAt.UTC()
	upd.Window = upd.Window.UTC()
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
