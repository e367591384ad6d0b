package main

import (
	"github.com/spf13/cobra"
	"github.com/vcontests/vscubing-back/internal/platform/config"
	"github.com/vcontests/vscubing-back/internal/platform/database"
	"github.com/vcontests/vscubing-back/internal/platform/logging"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema for the configured DB_DRIVER and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Load()
			if err := config.AppConfig.Validate(); err != nil {
				return err
			}
			logger := logging.New(config.AppConfig.LogLevel, config.AppConfig.LogFormat)

			if err := database.Connect(); err != nil {
				return err
			}
			defer database.Close()
			if err := database.Migrate(cmd.Context(), database.DB, database.Driver); err != nil {
				return err
			}
			logger.Info("Schema applied", "driver", database.Driver)
			return nil
		},
	}
}
