package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sikiCompany/catalog-api/internal/app"
	"github.com/sikiCompany/catalog-api/internal/config"
	"github.com/sikiCompany/catalog-api/pkg/logger"
)

func main() {
	reindex := flag.Bool("reindex", false, "rebuild the search index from the database and exit")
	flag.Parse()

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger.
	log := logger.New("catalog-api", cfg.LogLevel)
	log.Info("starting catalog API",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
	)

	// Create a context that is cancelled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create the application with all dependencies wired.
	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// One-shot reindex mode.
	if *reindex {
		if err := application.Reindex(ctx); err != nil {
			log.Error("reindex failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("reindex finished")
		return
	}

	// Run the application. This blocks until shutdown.
	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("catalog API stopped")
}
