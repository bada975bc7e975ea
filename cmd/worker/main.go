package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betassistant/server/internal/app"
	"github.com/betassistant/server/internal/config"
	"github.com/betassistant/server/internal/observability"
	"github.com/betassistant/server/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, closeLogs, err := buildLogger(cfg)
	if err != nil {
		panic(err)
	}
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Sync()
		closeLogs()
	}()

	shutdownUptrace, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace failed", "error", err)
		os.Exit(1)
	}

	stopPyroscope, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stopPyroscope(); err != nil {
			logger.Error("stop pyroscope failed", "error", err)
		}
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error("close app failed", "error", err)
		}
	}()

	if application.InMemory() {
		logger.Warn("running against in-memory repositories; jobs created through the api binary are not visible here")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := application.Worker.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownUptrace(shutdownCtx); err != nil {
		logger.Error("shutdown uptrace failed", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("worker stopped", "error", runErr)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// buildLogger tees worker logs into a daily rotated file when LOG_DIR is
// configured, keeping stdout JSON for the process supervisor.
func buildLogger(cfg config.Config) (*logging.Logger, func(), error) {
	if cfg.LogDir == "" {
		return logging.NewJSON(cfg.LogLevel), func() {}, nil
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, nil, err
	}
	fileSink := logging.NewDailyFileWriter(cfg.LogDir, "worker")
	logger := logging.NewJSONTee(cfg.LogLevel, fileSink)
	return logger, func() { _ = fileSink.Close() }, nil
}
