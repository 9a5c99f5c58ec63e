// Package intake runs the per-conversation bill intake flow: a photo or
// document is downloaded, read, extracted into a pending expense, and on
// confirmation uploaded as an artifact and appended to the ledger.
package intake

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/artifact"
	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/gateway"
	"github.com/sells-group/payai/internal/model"
	"github.com/sells-group/payai/internal/ocr"
)

// FieldExtractor turns OCR text into expense fields.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (*gateway.Extraction, error)
}

// ExpenseLedger is the slice of the ledger the intake flow needs.
type ExpenseLedger interface {
	AppendExpense(ctx context.Context, rec *model.ExpenseRecord) error
	CountExpenses(ctx context.Context, owner string, category model.Category) (int, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]model.ExpenseRecord, error)
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Messenger chat.Messenger
	Files     chat.FileSource
	OCR       ocr.Extractor
	Extractor FieldExtractor
	Ledger    ExpenseLedger
	Artifacts artifact.Layout
}

// session holds the state of one conversation. mu serializes every event
// for the conversation.
type session struct {
	mu        sync.Mutex
	pending   *model.PendingExpense
	summaryID int
}

// Bot handles direct-chat events. It is safe for concurrent use; events for
// the same chat are applied in arrival order of lock acquisition.
type Bot struct {
	deps     Deps
	approved map[string]bool
	tempDir  string
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*session

	uploads *keyedMutex
}

// Option configures a Bot.
type Option func(*Bot)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// New creates a Bot.
func New(deps Deps, cfg config.IntakeConfig, opts ...Option) (*Bot, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, eris.Wrapf(err, "intake: load timezone %q", cfg.Timezone)
		}
		loc = l
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = "tmp"
	}

	approved := make(map[string]bool, len(cfg.ApprovedUsers))
	for _, u := range cfg.ApprovedUsers {
		if id := config.NormalizeIdentity(u); id != "" {
			approved[id] = true
		}
	}

	b := &Bot{
		deps:     deps,
		approved: approved,
		tempDir:  tempDir,
		loc:      loc,
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "intake")),
		sessions: make(map[int64]*session),
		uploads:  newKeyedMutex(),
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// Authorized reports whether identity is on the allow-list.
func (b *Bot) Authorized(identity string) bool {
	return b.approved[config.NormalizeIdentity(identity)]
}

func (b *Bot) session(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[chatID]
	if !ok {
		s = &session{}
		b.sessions[chatID] = s
	}
	return s
}

// Pending returns a copy of the chat's pending expense, or nil.
func (b *Bot) Pending(chatID int64) *model.PendingExpense {
	s := b.session(chatID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// HandleEvent applies one event to its conversation.
func (b *Bot) HandleEvent(ctx context.Context, ev chat.Event) {
	owner := ev.Sender.Identity()
	log := b.log.With(zap.Int64("chat_id", ev.ChatID), zap.String("owner", owner), zap.String("kind", string(ev.Kind)))

	if !b.Authorized(owner) {
		log.Warn("rejected unauthorized sender")
		if ev.Kind == chat.EventAction {
			b.answer(ctx, ev, "")
		}
		b.reply(ctx, ev.ChatID, unauthorizedText(owner))
		return
	}

	s := b.session(ev.ChatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case chat.EventPhoto:
		b.handleUpload(ctx, s, ev, owner, log)
	case chat.EventDocument:
		if !supportedDocument(ev.MimeType, ev.FileName) {
			b.reply(ctx, ev.ChatID, unsupportedDocumentText)
			return
		}
		b.handleUpload(ctx, s, ev, owner, log)
	case chat.EventCommand:
		b.handleCommand(ctx, s, ev, owner, log)
	case chat.EventAction:
		switch ev.ActionData {
		case chat.ActionConfirm:
			b.answer(ctx, ev, "Saving...")
			b.confirm(ctx, s, ev.ChatID, ev.MessageID, owner, log)
		case chat.ActionCancel:
			b.answer(ctx, ev, "Cancelled")
			b.cancel(ctx, s, ev.ChatID, ev.MessageID)
		default:
			b.answer(ctx, ev, "")
		}
	case chat.EventText:
		b.reply(ctx, ev.ChatID, helpText)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, chatID, chat.OutgoingMessage{Text: text})
}

func (b *Bot) send(ctx context.Context, chatID int64, msg chat.OutgoingMessage) int {
	id, err := b.deps.Messenger.Send(ctx, chatID, msg)
	if err != nil {
		b.log.Error("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return id
}

func (b *Bot) answer(ctx context.Context, ev chat.Event, text string) {
	if ev.ActionID == "" {
		return
	}
	if err := b.deps.Messenger.AnswerAction(ctx, ev.ActionID, text); err != nil {
		b.log.Warn("answer callback failed", zap.Error(err))
	}
}
