// Package cmd provides the CLI commands for trackindex. The CLI is a debug
// surface around the library; the index itself has no command-line
// dependency.
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	trackindex "github.com/auralite/trackindex"
	"github.com/auralite/trackindex/internal/config"
	"github.com/auralite/trackindex/internal/logging"
)

var (
	configPath string
	dataDir    string
	userID     string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the trackindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackindex",
		Short: "Per-user on-device music search index",
		Long: `trackindex maintains a per-user SQLite search index over a music
library: track metadata plus extracted lyrics, searchable by substring
across title, artist, album, and lyrics.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for per-user store files")
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", "default", "User the index belongs to")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newPurgeCmd())
	cmd.AddCommand(newWatchCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: false,
	}
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
		if logCfg.FilePath == "" {
			logCfg.FilePath = filepath.Join(cfg.DataDir, "logs", "trackindex.log")
		}
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig loads the YAML config and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// openIndex assembles the index for the selected user. The returned cleanup
// closes the store.
func openIndex(cmd *cobra.Command, gateway trackindex.LyricsGateway) (*trackindex.Index, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	ix := trackindex.New(trackindex.Options{
		DataDir:            cfg.DataDir,
		Gateway:            gateway,
		ExtractConcurrency: cfg.Sync.ExtractConcurrency,
		SearchCacheSize:    cfg.Search.CacheSize,
	})
	if err := ix.Open(cmd.Context(), userID); err != nil {
		return nil, nil, fmt.Errorf("failed to open index for user %s: %w", userID, err)
	}
	return ix, func() { _ = ix.Close() }, nil
}
