package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/model"
)

// Opener connects to and migrates a ledger.
type Opener func(ctx context.Context) (Ledger, error)

// Lazy defers opening the ledger until first use. Concurrent first calls
// share one open. A failed open is not cached, so the next call tries
// again.
type Lazy struct {
	open Opener

	mu     sync.Mutex
	ledger Ledger
}

// NewLazy creates a Lazy ledger around open.
func NewLazy(open Opener) *Lazy {
	return &Lazy{open: open}
}

func (l *Lazy) get(ctx context.Context) (Ledger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ledger != nil {
		return l.ledger, nil
	}
	led, err := l.open(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}
	l.ledger = led
	zap.L().Debug("ledger: opened")
	return led, nil
}

// Close tears down the ledger if it was opened. A later call reopens it.
func (l *Lazy) Close() error {
	l.mu.Lock()
	led := l.ledger
	l.ledger = nil
	l.mu.Unlock()

	if led == nil {
		return nil
	}
	return led.Close()
}

func (l *Lazy) Migrate(ctx context.Context) error {
	led, err := l.get(ctx)
	if err != nil {
		return err
	}
	return led.Migrate(ctx)
}

func (l *Lazy) AppendExpense(ctx context.Context, rec *model.ExpenseRecord) error {
	led, err := l.get(ctx)
	if err != nil {
		return writeFailed(err, "lazy")
	}
	return led.AppendExpense(ctx, rec)
}

func (l *Lazy) AppendCompliance(ctx context.Context, upd *model.ComplianceUpdate) error {
	led, err := l.get(ctx)
	if err != nil {
		return writeFailed(err, "lazy")
	}
	return led.AppendCompliance(ctx, upd)
}

func (l *Lazy) CountExpenses(ctx context.Context, owner string, category model.Category) (int, error) {
	led, err := l.get(ctx)
	if err != nil {
		return 0, err
	}
	return led.CountExpenses(ctx, owner, category)
}

func (l *Lazy) HasComplianceUpdate(ctx context.Context, owner string, window time.Time) (bool, error) {
	led, err := l.get(ctx)
	if err != nil {
		return false, err
	}
	return led.HasComplianceUpdate(ctx, owner, window)
}

func (l *Lazy) ListByOwner(ctx context.Context, owner string, limit int) ([]model.ExpenseRecord, error) {
	led, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return led.ListByOwner(ctx, owner, limit)
}

func (l *Lazy) ImportExpenses(ctx context.Context, recs []model.ExpenseRecord) (int64, error) {
	led, err := l.get(ctx)
	if err != nil {
		return 0, writeFailed(err, "lazy")
	}
	return led.ImportExpenses(ctx, recs)
}
