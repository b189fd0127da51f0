package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"brewble/internal/app"
	"brewble/internal/config"
	"brewble/internal/logging"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("BREWBLE_CONFIG"), "path to YAML or JSON config file")
	flag.Parse()

	mgr, err := config.NewManager(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg := mgr.Get()

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat).With("app", "brewble", "version", version)
	slog.SetDefault(logger)
	logger.Info("starting", "config", mgr.Path(), "log_level", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, mgr, logger, version); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}
