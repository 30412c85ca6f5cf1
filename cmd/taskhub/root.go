package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/internal/config"
	"github.com/fastygo/taskhub/pkg/logger"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskhub",
		Short: "Project and task tracker API",
		Long: `taskhub serves the project and task tracker HTTP API.
Settings come from the environment; --env-file names a dotenv file loaded first.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cobra.OnInitialize(initConfig)
	root.PersistentFlags().String("env-file", ".env", "dotenv file to load")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("log-level", "", "override LOG_LEVEL")
	_ = viper.BindPFlag("env-file", root.PersistentFlags().Lookup("env-file"))
	_ = viper.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(serveCmd(), migrateCmd(), reportCmd())
	return root
}

func initConfig() {
	viper.SetEnvPrefix("TASKHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the configuration and builds the logger for a command.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(viper.GetString("env-file"))
	if err != nil {
		return nil, nil, err
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Logger.Level = level
	}
	log, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
