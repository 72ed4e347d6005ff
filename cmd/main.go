package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/nnaudify/audify/internal/services"
	"github.com/nnaudify/audify/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	provider := services.NewYTDLProvider(
		config.Provider.Binary,
		time.Duration(config.Provider.TimeoutSeconds)*time.Second,
		logger,
	)
	exporter := services.NewSpotdlExporter(
		config.Exporter.Binary,
		time.Duration(config.Exporter.TimeoutSeconds)*time.Second,
		logger,
	)

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Provider: provider,
		Exporter: exporter,
		Logger:   logger,
	})

	app := &cli.Command{
		Name:     "audify",
		Usage:    "Search, stream, and collect audio from the catalog",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
