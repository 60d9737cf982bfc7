package main

import (
	"os"

	"github.com/spf13/cobra"

	"expense-svc/internal/cli"
)

var flagConfigFile string

var rootCmd = &cobra.Command{
	Use:          "expense-svc",
	Short:        "Personal expense API",
	Long:         "Serves the owner-scoped expense API and manages its database schema.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		if flagConfigFile != "" {
			return os.Setenv("CONFIG_FILE", flagConfigFile)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "", "TOML config file (overrides CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
