// Package chat defines the transport-neutral event and message types used by
// the intake and compliance handlers, and a Telegram adapter that produces
// and delivers them.
package chat

import (
	"context"
	"strings"
)

// EventKind identifies what an incoming event carries.
type EventKind string

const (
	EventText     EventKind = "text"
	EventCommand  EventKind = "command"
	EventPhoto    EventKind = "photo"
	EventDocument EventKind = "document"
	EventAction   EventKind = "action"
)

// Action data values attached to the confirmation buttons.
const (
	ActionConfirm = "confirm"
	ActionCancel  = "cancel"
)

// Sender identifies who produced an event.
type Sender struct {
	ID        int64
	Username  string
	FirstName string
}

// Identity returns the lower-cased username, falling back to the first name.
func (s Sender) Identity() string {
	if s.Username != "" {
		return strings.ToLower(strings.TrimPrefix(s.Username, "@"))
	}
	return strings.ToLower(strings.TrimSpace(s.FirstName))
}

// Event is one normalized update from the chat transport.
type Event struct {
	Kind      EventKind
	ChatID    int64
	MessageID int
	Sender    Sender
	IsGroup   bool

	Text        string
	Command     string
	CommandArgs string
	Caption     string

	// FileID is set for photo and document events.
	FileID   string
	FileName string
	MimeType string

	// ActionID and ActionData are set for button presses.
	ActionID   string
	ActionData string
}

// Action is an inline button rendered under a message.
type Action struct {
	Label string
	Data  string
}

// ConfirmActions returns the Confirm / Cancel button pair.
func ConfirmActions() []Action {
	return []Action{
		{Label: "✅ Confirm", Data: ActionConfirm},
		{Label: "❌ Cancel", Data: ActionCancel},
	}
}

// OutgoingMessage is a message to send, or an edit of a previously sent
// message when EditMessageID is non-zero.
type OutgoingMessage struct {
	Text          string
	Markdown      bool
	Actions       []Action
	EditMessageID int
}

// Messenger delivers outgoing messages. Send returns the ID of the message
// that was sent or edited.
type Messenger interface {
	Send(ctx context.Context, chatID int64, msg OutgoingMessage) (int, error)
	// AnswerAction acknowledges a button press so the client stops its
	// loading indicator.
	AnswerAction(ctx context.Context, actionID, text string) error
}

// FileSource downloads attachments referenced by events.
type FileSource interface {
	Fetch(ctx context.Context, fileID, dest string) (int64, error)
}

// Handler consumes events.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}
