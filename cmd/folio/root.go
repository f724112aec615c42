package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/config"
	"github.com/jackzampolin/folio/version"
)

var (
	cfgFile string

	cfgManager *config.Manager
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Resumable novel translation pipeline",
	Long: `Folio translates long-form novels through an LLM completion endpoint
in bounded chunks, persisting per-chunk state so an interrupted run
resumes without re-paying for finished work.

The pipeline includes:
  - Boundary-aware text segmentation
  - Chapter heading detection across numbering styles
  - Crash-consistent chunk state with retry/backoff
  - Per-call cost and token accounting`,
	Version: version.GitRelease,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfgManager, err = config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgManager.WatchConfig()

		logger = newLogger(cfgManager.Get().Log)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.folio/config.yaml)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

func newLogger(cfg config.LogCfg) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}

// storePath expands the configured store location, creating the parent
// directory on first use.
func storePath(cfg *config.Config) (string, error) {
	path := config.ResolveEnvVars(cfg.Storage.Path)
	if len(path) >= 5 && path[:5] == "$HOME" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[5:])
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	return path, nil
}
