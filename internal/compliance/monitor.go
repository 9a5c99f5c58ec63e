package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/gateway"
)

// PresenceStore answers whether an owner reported in a window.
type PresenceStore interface {
	HasComplianceUpdate(ctx context.Context, owner string, window time.Time) (bool, error)
}

// TextGenerator produces the escalation text. It never fails; fallback is
// returned when nothing could be generated.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, fallback string) string
}

// Schedule pairs a cron spec with the grid it checks.
type Schedule struct {
	Spec string
	Grid time.Duration
}

// Schedules returns the 15- and 60-minute check schedules for the active
// span [startHour, endHour]. Each fires one minute after a window closes, so
// the last windows of the span are checked at one minute past endHour+1.
func Schedules(startHour, endHour int) []Schedule {
	after := endHour + 1
	scheds := []Schedule{
		{Spec: fmt.Sprintf("1,16,31,46 %d-%d * * *", startHour, endHour), Grid: Grid15},
	}
	if after%24 != startHour {
		scheds = append(scheds, Schedule{Spec: fmt.Sprintf("1 %d * * *", after%24), Grid: Grid15})
	}
	return append(scheds, Schedule{Spec: fmt.Sprintf("1 %s * * *", hourRange(startHour+1, after)), Grid: Grid60})
}

// hourRange renders from..to as a cron hour field, wrapping past midnight.
func hourRange(from, to int) string {
	if to < 24 {
		return fmt.Sprintf("%d-%d", from, to)
	}
	return fmt.Sprintf("%d-23,%d", from, to%24)
}

// Result summarizes one check.
type Result struct {
	Grid    time.Duration
	Window  time.Time
	Checked int
	Missing []string
	Skipped bool
	Sent    bool
}

// Monitor checks tracked participants for missed windows and posts one
// escalation per check to the monitored group.
type Monitor struct {
	store        PresenceStore
	text         TextGenerator
	messenger    chat.Messenger
	groupChatID  int64
	participants []string
	goalContext  string
	startHour    int
	endHour      int
	reportGrid   time.Duration
	loc          *time.Location
	now          func() time.Time
	log          *zap.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithMonitorClock overrides time.Now.
func WithMonitorClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a Monitor from cfg.
func NewMonitor(cfg config.ComplianceConfig, store PresenceStore, text TextGenerator, messenger chat.Messenger, opts ...MonitorOption) (*Monitor, error) {
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if cfg.StartHour < 0 || cfg.EndHour > 23 || cfg.StartHour >= cfg.EndHour {
		return nil, eris.Errorf("compliance: invalid active span %d-%d", cfg.StartHour, cfg.EndHour)
	}
	reportGrid, err := reportGridOf(cfg)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		store:        store,
		text:         text,
		messenger:    messenger,
		groupChatID:  cfg.GroupChatID,
		participants: normalizeParticipants(cfg.Participants),
		goalContext:  cfg.GoalContext,
		startHour:    cfg.StartHour,
		endHour:      cfg.EndHour,
		reportGrid:   reportGrid,
		loc:          loc,
		now:          time.Now,
		log:          zap.L().With(zap.String("component", "compliance.monitor")),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// normalizeParticipants keys participants the way Reporter records them.
func normalizeParticipants(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		id := config.NormalizeIdentity(p)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, eris.Wrapf(err, "compliance: load timezone %q", name)
	}
	return loc, nil
}

func reportGridOf(cfg config.ComplianceConfig) (time.Duration, error) {
	grid := time.Duration(cfg.ReportGridMinutes) * time.Minute
	if cfg.ReportGridMinutes == 0 {
		grid = Grid15
	}
	if err := ValidateGrid(grid); err != nil {
		return 0, err
	}
	return grid, nil
}

// Check evaluates the window that closed one minute before fire. Windows
// starting before the active span are skipped. Participants whose lookup
// fails are left out of the escalation and reported in the returned error.
func (m *Monitor) Check(ctx context.Context, grid time.Duration, fire time.Time) (*Result, error) {
	window := CheckedWindow(fire, grid, m.loc)
	res := &Result{Grid: grid, Window: window}
	log := m.log.With(zap.Duration("grid", grid), zap.Time("window", window))

	if window.Hour() < m.startHour {
		res.Skipped = true
		log.Debug("window before active span, skipping")
		return res, nil
	}

	var errs []error
	for _, owner := range m.participants {
		reported, err := m.reported(ctx, owner, window, grid)
		if err != nil {
			errs = append(errs, eris.Wrapf(err, "compliance: lookup %s", owner))
			log.Error("presence lookup failed", zap.String("owner", owner), zap.Error(err))
			continue
		}
		res.Checked++
		if !reported {
			res.Missing = append(res.Missing, owner)
		}
	}

	if len(res.Missing) == 0 {
		log.Debug("all participants reported", zap.Int("checked", res.Checked))
		return res, errors.Join(errs...)
	}

	minutes := int(grid / time.Minute)
	roast := m.text.GenerateText(ctx,
		gateway.RoastPrompt(minutes, res.Missing, m.goalContext),
		gateway.RoastFallback(res.Missing),
	)
	msg := chat.OutgoingMessage{
		Text:     fmt.Sprintf("🚨 *MISSED %d MINUTE UPDATE!* 🚨\n\n%s", minutes, roast),
		Markdown: true,
	}
	if _, err := m.messenger.Send(ctx, m.groupChatID, msg); err != nil {
		log.Error("failed to send escalation", zap.Int64("group_chat_id", m.groupChatID), zap.Error(err))
	} else {
		res.Sent = true
	}
	log.Info("compliance check complete",
		zap.Int("checked", res.Checked),
		zap.Strings("missing", res.Missing),
		zap.Bool("sent", res.Sent),
	)
	return res, errors.Join(errs...)
}

// reported looks up every report-grid window inside the checked window.
func (m *Monitor) reported(ctx context.Context, owner string, window time.Time, grid time.Duration) (bool, error) {
	for _, w := range subWindows(window, grid, m.reportGrid) {
		ok, err := m.store.HasComplianceUpdate(ctx, owner, w)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Run registers the check schedules and blocks until ctx is cancelled,
// then waits for a running check to finish.
func (m *Monitor) Run(ctx context.Context) error {
	logger := cronLogger{m.log.Sugar()}
	c := cron.New(
		cron.WithLocation(m.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	for _, s := range Schedules(m.startHour, m.endHour) {
		grid := s.Grid
		if _, err := c.AddFunc(s.Spec, func() { m.tick(ctx, grid) }); err != nil {
			return eris.Wrapf(err, "compliance: schedule %q", s.Spec)
		}
	}

	m.log.Info("compliance monitor started",
		zap.Int("start_hour", m.startHour),
		zap.Int("end_hour", m.endHour),
		zap.String("timezone", m.loc.String()),
		zap.Int("participants", len(m.participants)),
	)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	m.log.Info("compliance monitor stopped")
	return nil
}

func (m *Monitor) tick(ctx context.Context, grid time.Duration) {
	if _, err := m.Check(ctx, grid, m.now()); err != nil {
		m.log.Error("compliance check failed", zap.Duration("grid", grid), zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
