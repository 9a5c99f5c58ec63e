package chat

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/fetcher"
)

const defaultPollTimeout = 60

// Telegram implements Messenger and FileSource on the Bot API and produces
// Events from long polling.
type Telegram struct {
	bot          *tgbotapi.BotAPI
	files        fetcher.Fetcher
	fileEndpoint string
	pollTimeout  int
	stopOnce     sync.Once
	log          *zap.Logger
}

type telegramOptions struct {
	apiEndpoint  string
	fileEndpoint string
	client       *http.Client
}

// TelegramOption configures NewTelegram.
type TelegramOption func(*telegramOptions)

// WithEndpoints overrides the Bot API and file download URL formats. Both
// take the token and the method (or file path) as %s verbs.
func WithEndpoints(api, file string) TelegramOption {
	return func(o *telegramOptions) {
		o.apiEndpoint = api
		o.fileEndpoint = file
	}
}

// WithHTTPClient sets the client used for Bot API calls.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(o *telegramOptions) { o.client = c }
}

// NewTelegram authenticates the bot token with getMe. Attachments are
// downloaded through files.
func NewTelegram(cfg config.TelegramConfig, files fetcher.Fetcher, opts ...TelegramOption) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, eris.New("chat: telegram token is required")
	}

	o := telegramOptions{
		apiEndpoint:  tgbotapi.APIEndpoint,
		fileEndpoint: tgbotapi.FileEndpoint,
		client:       &http.Client{Timeout: time.Duration(pollTimeout(cfg)+10) * time.Second},
	}
	for _, fn := range opts {
		fn(&o)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, o.apiEndpoint, o.client)
	if err != nil {
		return nil, eris.Wrap(err, "chat: connect to telegram")
	}
	bot.Debug = cfg.Debug

	log := zap.L().With(zap.String("component", "chat.telegram"))
	log.Info("authorized bot", zap.String("username", bot.Self.UserName))

	return &Telegram{
		bot:          bot,
		files:        files,
		fileEndpoint: o.fileEndpoint,
		pollTimeout:  pollTimeout(cfg),
		log:          log,
	}, nil
}

func pollTimeout(cfg config.TelegramConfig) int {
	if cfg.PollTimeout <= 0 {
		return defaultPollTimeout
	}
	return cfg.PollTimeout
}

// Username returns the bot's own username.
func (t *Telegram) Username() string {
	return t.bot.Self.UserName
}

// Send delivers msg, or edits an earlier message when msg.EditMessageID is
// set. A Markdown message that Telegram refuses to parse is resent as plain
// text.
func (t *Telegram) Send(ctx context.Context, chatID int64, msg OutgoingMessage) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, eris.Wrap(err, "chat: send")
	}

	sent, err := t.bot.Send(buildChattable(chatID, msg))
	if err != nil && msg.Markdown {
		t.log.Warn("markdown send failed, retrying as plain text", zap.Int64("chat_id", chatID), zap.Error(err))
		msg.Markdown = false
		sent, err = t.bot.Send(buildChattable(chatID, msg))
	}
	if err != nil {
		return 0, eris.Wrapf(err, "chat: send to %d", chatID)
	}
	return sent.MessageID, nil
}

func buildChattable(chatID int64, msg OutgoingMessage) tgbotapi.Chattable {
	parseMode := ""
	if msg.Markdown {
		parseMode = tgbotapi.ModeMarkdown
	}
	kb := keyboard(msg.Actions)

	if msg.EditMessageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, msg.EditMessageID, msg.Text)
		edit.ParseMode = parseMode
		edit.ReplyMarkup = kb
		return edit
	}

	m := tgbotapi.NewMessage(chatID, msg.Text)
	m.ParseMode = parseMode
	if kb != nil {
		m.ReplyMarkup = *kb
	}
	return m
}

func keyboard(actions []Action) *tgbotapi.InlineKeyboardMarkup {
	if len(actions) == 0 {
		return nil
	}
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
	return &kb
}

// AnswerAction acknowledges a callback query.
func (t *Telegram) AnswerAction(ctx context.Context, actionID, text string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "chat: answer callback")
	}
	if _, err := t.bot.Request(tgbotapi.NewCallback(actionID, text)); err != nil {
		return eris.Wrap(err, "chat: answer callback")
	}
	return nil
}

// Fetch resolves fileID through getFile and downloads it to dest.
func (t *Telegram) Fetch(ctx context.Context, fileID, dest string) (int64, error) {
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return 0, eris.Wrapf(err, "chat: get file %s", fileID)
	}
	link := fmt.Sprintf(t.fileEndpoint, t.bot.Token, file.FilePath)

	n, err := t.files.DownloadToFile(ctx, link, dest)
	if err != nil {
		return n, eris.Wrapf(err, "chat: download file %s", fileID)
	}
	return n, nil
}

// Events starts long polling and returns the normalized update stream. The
// channel is closed after ctx is cancelled.
func (t *Telegram) Events(ctx context.Context) <-chan Event {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = t.pollTimeout
	updates := t.bot.GetUpdatesChan(cfg)

	out := make(chan Event)
	go func() {
		defer close(out)
		defer t.stop()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := ToEvent(upd)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (t *Telegram) stop() {
	t.stopOnce.Do(t.bot.StopReceivingUpdates)
}

// ToEvent converts a Bot API update. Updates the handlers have no use for
// (edits, channel posts, stickers) report false.
func ToEvent(u tgbotapi.Update) (Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		ev := Event{
			Kind:       EventAction,
			ActionID:   cq.ID,
			ActionData: cq.Data,
			Sender:     senderOf(cq.From),
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
			ev.IsGroup = !cq.Message.Chat.IsPrivate()
		}
		return ev, true
	}

	m := u.Message
	if m == nil || m.Chat == nil {
		return Event{}, false
	}
	ev := Event{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		IsGroup:   !m.Chat.IsPrivate(),
		Sender:    senderOf(m.From),
		Text:      m.Text,
		Caption:   m.Caption,
	}

	switch {
	case len(m.Photo) > 0:
		p := largestPhoto(m.Photo)
		ev.Kind = EventPhoto
		ev.FileID = p.FileID
		ev.MimeType = "image/jpeg"
	case m.Document != nil:
		ev.Kind = EventDocument
		ev.FileID = m.Document.FileID
		ev.FileName = m.Document.FileName
		ev.MimeType = m.Document.MimeType
	case m.IsCommand():
		ev.Kind = EventCommand
		ev.Command = m.Command()
		ev.CommandArgs = m.CommandArguments()
	case m.Text != "":
		ev.Kind = EventText
	default:
		return Event{}, false
	}
	return ev, true
}

func senderOf(u *tgbotapi.User) Sender {
	if u == nil {
		return Sender{}
	}
	return Sender{ID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}
