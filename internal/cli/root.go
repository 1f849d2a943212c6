package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/prota/internal/config"
	"github.com/dukerupert/prota/internal/database"
	"github.com/dukerupert/prota/internal/logging"
)

const defaultConfigFile = "prota.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "prota",
	Short: "Break objectives into micro-tasks and keep momentum",
	Long: `prota turns an objective into a short list of concrete micro-tasks,
tracks points and progress as they are completed, and sends scheduled
reminder emails.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./prota.yaml when present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(remindCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(backupCmd)
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// env holds what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadEnv() (*env, error) {
	path := cfgFile
	if path == "" && config.FileExists(defaultConfigFile) {
		path = defaultConfigFile
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if path != "" {
		logger.Debug("loaded config file", "path", path)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) openDB() (*sql.DB, error) {
	db, err := database.Open(e.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if v, err := database.SchemaVersion(context.Background(), db); err == nil {
		e.logger.Debug("database ready", "path", e.cfg.DBPath, "schema", v)
	}
	return db, nil
}
