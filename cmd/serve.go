package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/payai/internal/artifact"
	"github.com/sells-group/payai/internal/chat"
	"github.com/sells-group/payai/internal/compliance"
	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/fetcher"
	"github.com/sells-group/payai/internal/intake"
	"github.com/sells-group/payai/internal/ledger"
	"github.com/sells-group/payai/internal/ocr"
	"github.com/sells-group/payai/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot, compliance monitor and health server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		tg, err := chat.NewTelegram(cfg.Telegram, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}))
		if err != nil {
			return err
		}

		env, err := buildBot(ctx, cfg, tg, tg)
		if err != nil {
			return err
		}
		defer env.Close()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			chat.Dispatch(gctx, tg.Events(gctx), env.Handler)
			return nil
		})
		if env.Monitor != nil {
			g.Go(func() error { return env.Monitor.Run(gctx) })
		}
		g.Go(func() error { return server.Run(gctx, cfg.Server) })

		zap.L().Info("payai running",
			zap.String("bot", tg.Username()),
			zap.Bool("compliance", env.Monitor != nil),
			zap.Int("port", cfg.Server.Port),
		)
		return g.Wait()
	},
}

// botEnv is everything serve runs besides transport and HTTP.
type botEnv struct {
	Ledger  *ledger.Lazy
	Handler chat.Handler
	// Monitor is nil when compliance monitoring is disabled.
	Monitor *compliance.Monitor
}

// Close releases the ledger.
func (e *botEnv) Close() {
	if err := e.Ledger.Close(); err != nil {
		zap.L().Warn("close ledger", zap.Error(err))
	}
}

// buildBot wires intake and, when enabled, compliance over one lazily
// opened ledger and one extraction gateway.
func buildBot(ctx context.Context, c *config.Config, msgr chat.Messenger, files chat.FileSource) (*botEnv, error) {
	gw, err := initGateway(c)
	if err != nil {
		return nil, err
	}
	if len(c.LLM.APIKeys) == 0 {
		zap.L().Warn("no llm api keys configured, extraction will be unavailable")
	}

	extractor, err := ocr.NewExtractor(c.OCR)
	if err != nil {
		return nil, err
	}

	store, err := artifact.NewStore(ctx, c.Artifact, c.Retry)
	if err != nil {
		return nil, err
	}

	led := lazyLedger(c.Store)

	bot, err := intake.New(intake.Deps{
		Messenger: msgr,
		Files:     files,
		OCR:       extractor,
		Extractor: gw,
		Ledger:    led,
		Artifacts: artifact.Layout{
			Store:    store,
			RootID:   c.Artifact.RootFolderID,
			RootName: c.Artifact.RootFolderName,
		},
	}, c.Intake)
	if err != nil {
		return nil, err
	}

	env := &botEnv{Ledger: led}
	router := chat.Router{Direct: bot}

	if c.Compliance.Enabled {
		if c.Compliance.GroupChatID == 0 {
			return nil, eris.New("compliance.group_chat_id is required when compliance is enabled (PAYAI_COMPLIANCE_GROUP_CHAT_ID)")
		}
		reporter, err := compliance.NewReporter(c.Compliance, gw, led, msgr)
		if err != nil {
			return nil, err
		}
		monitor, err := compliance.NewMonitor(c.Compliance, led, gw, msgr)
		if err != nil {
			return nil, err
		}
		router.Group = reporter
		env.Monitor = monitor
	}

	env.Handler = router
	return env, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "health server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
