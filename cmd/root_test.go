package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "migrate", "expenses", "compliance", "config"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "payai", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for name, def := range map[string]string{"config": "", "log-level": "info", "log-format": "json"} {
		f := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, "root should have --%s", name)
		assert.Equal(t, def, f.DefValue)
	}
}

// setRootFlag sets a persistent flag for one test and restores it afterwards.
func setRootFlag(t *testing.T, name, value string) {
	t.Helper()
	f := rootCmd.PersistentFlags().Lookup(name)
	require.NotNil(t, f)
	prev := f.Value.String()
	require.NoError(t, rootCmd.PersistentFlags().Set(name, value))
	t.Cleanup(func() {
		_ = f.Value.Set(prev)
		f.Changed = false
	})
}

func TestInitRuntime_ConfigFileAndLogOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payai.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: postgres\nlog:\n  level: error\n"), 0o644))
	setRootFlag(t, "config", path)
	setRootFlag(t, "log-level", "debug")

	prevCfg, prevLogger := cfg, zap.L()
	t.Cleanup(func() {
		cfg = prevCfg
		zap.ReplaceGlobals(prevLogger)
	})

	require.NoError(t, initRuntime(rootCmd))
	require.NotNil(t, cfg)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level, "--log-level wins over the file")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, zap.L().Core().Enabled(zapcore.DebugLevel))
}

func TestInitRuntime_MissingConfigFile(t *testing.T) {
	setRootFlag(t, "config", filepath.Join(t.TempDir(), "absent.yaml"))

	err := initRuntime(rootCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestExpensesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range expensesCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "export", "import"} {
		assert.True(t, names[name], "expenses should have subcommand %q", name)
	}
}

func TestExpensesCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"owner", "limit"} {
		assert.NotNil(t, expensesListCmd.Flags().Lookup(flagName), "expenses list should have --%s flag", flagName)
	}
	out := expensesExportCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "expenses.xlsx", out.DefValue)
	assert.NotNil(t, expensesImportCmd.Flags().Lookup("file"))
}

func TestComplianceCheckCommand_Flags(t *testing.T) {
	grid := complianceCheckCmd.Flags().Lookup("grid")
	require.NotNil(t, grid)
	assert.Equal(t, "15", grid.DefValue)
	for _, flagName := range []string{"at", "dry-run"} {
		assert.NotNil(t, complianceCheckCmd.Flags().Lookup(flagName), "compliance check should have --%s flag", flagName)
	}
}
