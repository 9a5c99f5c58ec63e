package intake

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/artifact"
	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/model"
)

// confirm persists the pending expense. Upload and append run under a lock
// on (owner, category) so concurrent confirms cannot reuse a sequence
// number. On failure the pending expense is kept and the buttons stay up.
func (b *Bot) confirm(ctx context.Context, s *session, chatID int64, messageID int, owner string, log *zap.Logger) {
	if s.pending == nil {
		b.reply(ctx, chatID, nothingPendingText)
		return
	}
	if messageID == 0 {
		messageID = s.summaryID
	}
	p := s.pending

	b.send(ctx, chatID, chat.OutgoingMessage{Text: savingText, EditMessageID: messageID})

	rec, err := b.persist(ctx, p, owner)
	if err != nil {
		log.Error("confirm failed, keeping pending expense", zap.String("path", p.LocalPath), zap.Error(err))
		b.send(ctx, chatID, chat.OutgoingMessage{
			Text:          saveFailedText(p),
			Markdown:      true,
			Actions:       chat.ConfirmActions(),
			EditMessageID: messageID,
		})
		return
	}

	s.pending = nil
	s.summaryID = 0
	log.Info("expense saved",
		zap.String("id", rec.ID),
		zap.String("artifact_id", rec.ArtifactID),
		zap.Float64("amount", rec.Amount),
	)
	b.send(ctx, chatID, chat.OutgoingMessage{
		Text:          savedText(rec),
		Markdown:      true,
		EditMessageID: messageID,
	})
}

func (b *Bot) persist(ctx context.Context, p *model.PendingExpense, owner string) (*model.ExpenseRecord, error) {
	category := model.ParseCategory(string(p.Fields.Category))

	unlock := b.uploads.Lock(fmt.Sprintf("%s/%s", owner, category))
	defer unlock()

	count, err := b.deps.Ledger.CountExpenses(ctx, owner, category)
	if err != nil {
		return nil, eris.Wrap(err, "intake: count expenses")
	}

	folderID, err := b.deps.Artifacts.Resolve(ctx, owner, category, p.Kind)
	if err != nil {
		return nil, eris.Wrap(err, "intake: resolve folder")
	}

	name := artifact.FileName(b.now().In(b.loc), owner, category, count+1, p.LocalPath)
	file, err := b.deps.Artifacts.Store.Upload(ctx, p.LocalPath, name, p.MimeType, folderID)
	if err != nil {
		return nil, eris.Wrap(err, "intake: upload artifact")
	}

	rec := model.NewExpenseRecord(p, file.ID, file.ViewLink)
	if err := b.deps.Ledger.AppendExpense(ctx, &rec); err != nil {
		return nil, eris.Wrap(err, "intake: append expense")
	}
	return &rec, nil
}

// cancel clears the pending expense. It is idempotent.
func (b *Bot) cancel(ctx context.Context, s *session, chatID int64, messageID int) {
	had := s.pending != nil
	s.pending = nil
	s.summaryID = 0

	text := cancelledText
	if !had {
		text = nothingToCancelText
	}
	b.send(ctx, chatID, chat.OutgoingMessage{Text: text, EditMessageID: messageID})
}
