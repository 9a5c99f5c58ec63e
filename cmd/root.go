package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/config"
)

var (
	cfg *config.Config

	configFile string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "payai",
	Short:        "Telegram bill collector and field compliance monitor",
	Long:         "Turns bill photos sent over Telegram into confirmed expense records with archived artifacts, and nudges field teams that miss their periodic compliance updates.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initRuntime(cmd)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = zap.L().Sync()
	},
}

// initRuntime loads configuration, applies the logging flags on top of it
// and installs the global logger.
func initRuntime(cmd *cobra.Command) error {
	c, err := config.LoadFile(configFile)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	if flagChanged(cmd, "log-level") {
		c.Log.Level = logLevel
	}
	if flagChanged(cmd, "log-format") {
		c.Log.Format = logFormat
	}
	if err := config.InitLogger(c.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	cfg = c

	zap.L().Debug("runtime ready",
		zap.String("command", cmd.CommandPath()),
		zap.String("config_file", configFile),
		zap.String("store", cfg.Store.Driver),
	)
	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default ./config.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "override log.level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "json", "override log.format (json, console)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
