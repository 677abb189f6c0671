package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backoffice/internal/app"
	"backoffice/internal/config"
	"backoffice/pkg/database"
	"backoffice/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == "production" {
		mode = logger.ProductionMode
	}
	appLogger := logger.New(mode)
	logger.SetGlobalLogger(appLogger)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, db, appLogger)
	if err != nil {
		log.Fatalf("Failed to wire application: %v", err)
	}

	application.Start()
	appLogger.Infof("backoffice started, outbox publisher and topic consumers running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	application.Shutdown(shutdownCtx)
}
