package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := migrateStorage(cfg, log); err != nil {
				log.Error("migrations failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
				return err
			}
			return nil
		},
	}
}
