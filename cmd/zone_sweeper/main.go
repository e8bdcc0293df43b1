package main

import (
	"context"
	"log"
	"time"

	"coworking/internal/config"
	"coworking/internal/database"
	"coworking/internal/modules/zone"
	"coworking/internal/pkg/logger"
	"coworking/internal/repository"

	"go.uber.org/zap"
)

// zone_sweeper runs a single reactivation pass; schedule it with cron when
// the API instances run with a long ZONE_SWEEP_INTERVAL.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	appLog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, appLog)
	if err != nil {
		appLog.Fatal("db connect failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := zone.NewSweeper(repository.NewStore(db), appLog).Sweep(ctx)
	if err != nil {
		appLog.Fatal("zone sweep failed", zap.Error(err))
	}
	appLog.Info("zone sweep completed", zap.Int64("reactivated", n))
}
