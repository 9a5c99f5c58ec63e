package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/compliance"
	"github.com/sells-group/payai/internal/fetcher"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Compliance monitor tools",
}

var complianceCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one compliance check immediately",
	Long: "Checks the window that closed one minute before --at (default now) and sends " +
		"the reminder to the monitored group. With --dry-run the reminder is printed instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		gridMin, _ := cmd.Flags().GetInt("grid")
		atRaw, _ := cmd.Flags().GetString("at")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		grid := time.Duration(gridMin) * time.Minute
		if err := compliance.ValidateGrid(grid); err != nil {
			return err
		}
		fire, err := parseFireTime(atRaw, time.Now())
		if err != nil {
			return err
		}

		var msgr chat.Messenger = printMessenger{out: os.Stdout}
		if !dryRun {
			tg, err := chat.NewTelegram(cfg.Telegram, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}))
			if err != nil {
				return err
			}
			msgr = tg
		}

		gw, err := initGateway(cfg)
		if err != nil {
			return err
		}
		led, err := openLedger(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		monitor, err := compliance.NewMonitor(cfg.Compliance, led, gw, msgr)
		if err != nil {
			return err
		}

		res, err := monitor.Check(ctx, grid, fire)
		if res != nil {
			formatCheckResult(os.Stdout, res)
		}
		if err != nil {
			zap.L().Warn("compliance check had lookup errors", zap.Error(err))
		}
		return err
	},
}

// parseFireTime accepts RFC3339 or an empty string for now.
func parseFireTime(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid --at %q", raw)
	}
	return t, nil
}

func formatCheckResult(out io.Writer, res *compliance.Result) {
	_, _ = fmt.Fprintf(out, "window:  %s (%d min)\n", res.Window.Format("2006-01-02 15:04 MST"), int(res.Grid.Minutes()))
	if res.Skipped {
		_, _ = fmt.Fprintln(out, "status:  outside active hours, skipped")
		return
	}
	_, _ = fmt.Fprintf(out, "checked: %d\n", res.Checked)
	if len(res.Missing) == 0 {
		_, _ = fmt.Fprintln(out, "missing: none")
		return
	}
	_, _ = fmt.Fprintf(out, "missing: %s\n", strings.Join(res.Missing, ", "))
	_, _ = fmt.Fprintf(out, "sent:    %t\n", res.Sent)
}

// printMessenger writes outgoing messages instead of delivering them.
type printMessenger struct {
	out io.Writer
}

func (p printMessenger) Send(_ context.Context, chatID int64, msg chat.OutgoingMessage) (int, error) {
	_, err := fmt.Fprintf(p.out, "--- to %d ---\n%s\n", chatID, msg.Text)
	return 0, err
}

func (p printMessenger) AnswerAction(context.Context, string, string) error { return nil }

func init() {
	complianceCheckCmd.Flags().Int("grid", 15, "window size in minutes (15 or 60)")
	complianceCheckCmd.Flags().String("at", "", "fire time in RFC3339 (default now)")
	complianceCheckCmd.Flags().Bool("dry-run", false, "print the reminder instead of sending it")

	complianceCmd.AddCommand(complianceCheckCmd)
	rootCmd.AddCommand(complianceCmd)
}
