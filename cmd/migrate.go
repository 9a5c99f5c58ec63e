package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the ledger schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		led, err := openLedger(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		zap.L().Info("ledger migrated", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
