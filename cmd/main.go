package main

import (
	"context"
	"errors"
	"os"

	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := "config.toml"
	if p := os.Getenv("YMLIB_CONFIG"); p != "" {
		configPath = p
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loadedConfig, err := shared.LoadConfig(configPath)
		if err != nil {
			logger.Fatalf("invalid config %s: %v", configPath, err)
		}
		config = loadedConfig
	}

	if level, err := shared.ParseLogLevel(config.Log.Level); err == nil {
		shared.SetLogLevel(logger, level)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "ymlib",
		Usage:    "Track video backup stages against the media library backend",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotAuthenticated):
			logger.Fatal("not logged in, run 'ymlib auth login' first")
		case services.IsTransport(err):
			logger.Fatalf("cannot reach the backend at %s: %v", config.API.BaseURL, err)
		case errors.Is(err, shared.ErrStateLocked):
			logger.Fatal("another ymlib process is using the local state, try again when it exits")
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
