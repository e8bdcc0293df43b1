package main

import (
	"context"
	"flag"
	"log"

	"coworking/internal/config"
	"coworking/internal/database"
	"coworking/internal/domain"
	"coworking/internal/modules/zone"
	"coworking/internal/notification"
	"coworking/internal/pkg/lock"
	"coworking/internal/pkg/logger"
	"coworking/internal/repository"

	"go.uber.org/zap"
)

type seedZone struct {
	name    string
	address string
	places  int
}

var zones = []seedZone{
	{name: "Open space", address: "ул. Тверская, 7, 2 этаж", places: 20},
	{name: "Тихая зона", address: "ул. Тверская, 7, 3 этаж", places: 8},
	{name: "Переговорная", address: "ул. Тверская, 7, 3 этаж", places: 1},
	{name: "Лофт", address: "Покровка, 12", places: 12},
}

type noNotify struct{}

func (noNotify) Emit(notification.Event) {}

func main() {
	reset := flag.Bool("reset", false, "delete every zone (with places, slots and bookings) before seeding")
	flag.Parse()

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
	if err := database.Migrate(db); err != nil {
		appLog.Fatal("migrate failed", zap.Error(err))
	}

	ctx := context.Background()
	store := repository.NewStore(db)
	svc := zone.NewService(store, lock.NewLocal(), noNotify{}, appLog)

	existing, err := store.Zones.ListByID(ctx)
	if err != nil {
		appLog.Fatal("list zones failed", zap.Error(err))
	}
	if *reset {
		for _, z := range existing {
			if err := svc.DeleteZone(ctx, z.ID); err != nil {
				appLog.Fatal("delete zone failed", zap.Int64("zone_id", z.ID), zap.Error(err))
			}
		}
		existing = nil
	}

	have := make(map[string]bool, len(existing))
	for _, z := range existing {
		have[z.Name] = true
	}

	created := 0
	for _, s := range zones {
		if have[s.name] {
			continue
		}
		z, err := svc.CreateZone(ctx, zone.CreateInput{
			Name:        s.name,
			Address:     s.address,
			IsActive:    true,
			PlacesCount: s.places,
		})
		if err != nil {
			appLog.Fatal("create zone failed", zap.String("zone", s.name), zap.Error(err))
		}
		created++
		logZone(appLog, z)
	}

	appLog.Info("seed completed", zap.Int("created", created), zap.Int("skipped", len(zones)-created))
}

func logZone(log *zap.Logger, z *domain.Zone) {
	log.Info("zone seeded", zap.Int64("zone_id", z.ID), zap.String("name", z.Name), zap.Int("places", len(z.Places)))
}
