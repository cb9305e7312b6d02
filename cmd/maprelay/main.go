package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/citybuild/maprelay/internal/server"
	"github.com/citybuild/maprelay/pkg/config"
	"github.com/citybuild/maprelay/pkg/logging"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	bootLogger := logging.New("dev", logging.LevelInfo)
	cfg, err := config.Load(bootLogger, "config")
	if err != nil {
		bootLogger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	level := logging.LevelInfo
	if cfg.Server.Env != "prod" {
		level = logging.LevelDebug
	}
	logger := logging.New(cfg.Server.Env, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	app := server.NewApp(logger, ctx, cfg, promReg)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
