package main

import (
	"log/slog"
	"os"

	"go-user-accounts/internal/app"
	"go-user-accounts/internal/config"
	"go-user-accounts/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(os.Stdout, cfg.IsProduction(), logger.ParseLevel(cfg.LogLevel))))

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
