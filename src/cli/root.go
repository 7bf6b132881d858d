// Package cli implements the imagekit command line
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"imagekit/src/config"
	"imagekit/src/processor"
	"imagekit/src/source"
)

const (
	configFlag      = "config"
	defaultConfig   = "imagekit.yaml"
	logFormatFlag   = "log-format"
	logLevelFlag    = "log-level"
	logFormatText   = "text"
	logFormatJSON   = "json"
	defaultLogLevel = "info"
)

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := New().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// New creates the root command with every subcommand attached
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagekit [sub-command]",
		Short: "Responsive image service for static sites",
		Long: `imagekit validates image options, builds transform URLs and srcsets,
serves the on-demand image endpoint and renders images for static builds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(cmd)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(configFlag, defaultConfig, "path to the configuration file")
	cmd.PersistentFlags().String(logFormatFlag, logFormatText, "log format: text or json")
	cmd.PersistentFlags().String(logLevelFlag, defaultLogLevel, "log level: debug, info, warn or error")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newURLCommand())
	cmd.AddCommand(newProbeCommand())
	return cmd
}

// setupLogging installs the default slog logger from the logging flags
func setupLogging(cmd *cobra.Command) error {
	format, err := cmd.Flags().GetString(logFormatFlag)
	if err != nil {
		return err
	}
	levelName, err := cmd.Flags().GetString(logLevelFlag)
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case logFormatJSON:
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	case logFormatText:
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads the configuration file. A missing default file falls
// back to built-in defaults plus environment overrides; a missing explicit
// file is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed(configFlag) {
		slog.Debug("no configuration file, using defaults", "path", path)
		cfg, err := config.LoadEnv(filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// components are the shared pieces every command wires together
type components struct {
	cfg       *config.Config
	processor *processor.Processor
	loader    *source.Loader
}

func newComponents(cfg *config.Config) (*components, error) {
	p, err := processor.New(cfg)
	if err != nil {
		return nil, err
	}
	return &components{
		cfg:       cfg,
		processor: p,
		loader:    source.NewLoader(cfg, p),
	}, nil
}
