package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"expense-svc/internal/backend"
	"expense-svc/internal/cli"
	applog "expense-svc/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Long:  "Applies the embedded schema migrations for the sqlite or postgres backend.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		logger := cli.SetupLogger(cfg, applog.ComponentStorage)

		bc, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		if err := backend.Migrate(bc); err != nil {
			return fmt.Errorf("migrate %s: %w", bc.Type, err)
		}

		logger.Info("Migrations applied",
			applog.FieldOperation, applog.OpMigrate,
			applog.FieldBackend, bc.Type.String())
		return nil
	},
}
