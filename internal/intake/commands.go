package intake

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/chat"
)

// recentLimit is how many expenses /expenses lists.
const recentLimit = 5

func (b *Bot) handleCommand(ctx context.Context, s *session, ev chat.Event, owner string, log *zap.Logger) {
	switch ev.Command {
	case "start", "help":
		b.reply(ctx, ev.ChatID, welcomeText)
	case "cancel":
		b.cancel(ctx, s, ev.ChatID, 0)
	case "expenses":
		recs, err := b.deps.Ledger.ListByOwner(ctx, owner, recentLimit)
		if err != nil {
			log.Error("list expenses failed", zap.Error(err))
			b.reply(ctx, ev.ChatID, listFailedText)
			return
		}
		b.send(ctx, ev.ChatID, chat.OutgoingMessage{Text: expenseListText(recs), Markdown: true})
	default:
		b.reply(ctx, ev.ChatID, helpText)
	}
}
