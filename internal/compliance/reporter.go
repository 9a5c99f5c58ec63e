package compliance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/model"
)

// FiguresExtractor parses a status message into compliance figures.
type FiguresExtractor interface {
	ExtractCompliance(ctx context.Context, message string) (*model.ComplianceFigures, string, error)
}

// UpdateStore persists compliance updates.
type UpdateStore interface {
	AppendCompliance(ctx context.Context, upd *model.ComplianceUpdate) error
}

// Reporter records updates that tracked participants post in the monitored
// group. Everything else in the group is ignored.
type Reporter struct {
	extractor    FiguresExtractor
	store        UpdateStore
	messenger    chat.Messenger
	groupChatID  int64
	participants map[string]bool
	grid         time.Duration
	loc          *time.Location
	now          func() time.Time
	log          *zap.Logger
}

// NewReporter creates a Reporter.
func NewReporter(cfg config.ComplianceConfig, extractor FiguresExtractor, store UpdateStore, messenger chat.Messenger, opts ...ReporterOption) (*Reporter, error) {
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	grid, err := reportGridOf(cfg)
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]bool, len(cfg.Participants))
	for _, p := range cfg.Participants {
		tracked[config.NormalizeIdentity(p)] = true
	}

	r := &Reporter{
		extractor:    extractor,
		store:        store,
		messenger:    messenger,
		groupChatID:  cfg.GroupChatID,
		participants: tracked,
		grid:         grid,
		loc:          loc,
		now:          time.Now,
		log:          zap.L().With(zap.String("component", "compliance.reporter")),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithReporterClock overrides time.Now.
func WithReporterClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) { r.now = now }
}

// HandleEvent records ev when it is a text message from a tracked
// participant in the monitored group.
func (r *Reporter) HandleEvent(ctx context.Context, ev chat.Event) {
	if ev.Kind != chat.EventText || ev.ChatID != r.groupChatID {
		return
	}
	owner := ev.Sender.Identity()
	if !r.participants[owner] {
		return
	}
	log := r.log.With(zap.String("owner", owner))

	figures, raw, err := r.extractor.ExtractCompliance(ctx, ev.Text)
	if err != nil {
		log.Warn("could not parse update", zap.String("raw", raw), zap.Error(err))
		return
	}
	if figures.Total == 0 && figures.Using == 0 && figures.NotUsing == 0 {
		log.Debug("message carries no figures")
		return
	}

	now := r.now()
	upd := &model.ComplianceUpdate{
		Owner:      owner,
		Total:      figures.Total,
		Using:      figures.Using,
		NotUsing:   figures.NotUsing,
		GroupLabel: figures.GroupLabel,
		Window:     Snap(now, r.grid, r.loc),
		ReportedAt: now,
	}
	if err := r.store.AppendCompliance(ctx, upd); err != nil {
		log.Error("failed to record update", zap.Error(err))
		return
	}
	log.Info("update recorded",
		zap.Time("window", upd.Window),
		zap.Int("total", upd.Total),
		zap.Int("using", upd.Using),
	)

	ack := fmt.Sprintf("✅ Logged @%s for the %s window: %d/%d using.",
		owner, upd.Window.Format("15:04"), upd.Using, upd.Total)
	if upd.GroupLabel != "" {
		ack += fmt.Sprintf(" (%s)", upd.GroupLabel)
	}
	if _, err := r.messenger.Send(ctx, ev.ChatID, chat.OutgoingMessage{Text: ack}); err != nil {
		log.Warn("failed to acknowledge update", zap.Error(err))
	}
}
