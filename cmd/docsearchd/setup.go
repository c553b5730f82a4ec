package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/localsearch/docsearch/internal/app"
	"github.com/localsearch/docsearch/internal/config"
	"github.com/localsearch/docsearch/internal/logging"
)

// loadApp reads the --config-dir/--debug persistent flags, loads the
// configuration, sets up structured logging and returns a wired App. The
// caller is responsible for calling Close on the returned App.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	configDir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return nil, err
	}
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	if debug {
		logCfg = logging.DebugConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	logCfg.WriteToStderr = cfg.Logging.AlsoStderr

	logger, cleanup, err := logging.Setup(logCfg)
	if err == nil {
		slog.SetDefault(logger)
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}
	return a, nil
}
