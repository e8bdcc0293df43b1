package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"coworking/internal/app"
	"coworking/internal/config"
	"coworking/internal/database"
	"coworking/internal/middleware"
	"coworking/internal/modules/booking"
	"coworking/internal/modules/zone"
	"coworking/internal/notification"
	"coworking/internal/pkg/jwt"
	"coworking/internal/pkg/lock"
	"coworking/internal/pkg/logger"
	"coworking/internal/pkg/telemetry"
	"coworking/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "coworking-booking"

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

	if logger.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:       cfg.OTelEnabled,
		ServiceName:   serviceName,
		Environment:   cfg.AppEnv,
		CollectorAddr: cfg.OTelCollectorAddr,
	})
	if err != nil {
		appLog.Fatal("tracing init failed", zap.Error(err))
	}

	db, err := database.Connect(cfg.DatabaseURL, appLog)
	if err != nil {
		appLog.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		appLog.Fatal("database migration failed", zap.Error(err))
	}
	store := repository.NewStore(db)

	locker, closeLocker := newLocker(cfg, appLog)
	defer closeLocker()

	hub := notification.NewHub()
	senders, closeSenders := newSenders(cfg, hub, appLog)
	defer closeSenders()

	dispatcher := notification.NewDispatcher(senders, notification.DispatcherConfig{
		QueueSize:   cfg.NotifyQueueSize,
		Workers:     cfg.NotifyWorkers,
		SendTimeout: cfg.NotifyTimeout,
	}, appLog.Named("notify"))

	bookingService := booking.NewService(store, locker, dispatcher, booking.Config{
		MaxBookingDuration: cfg.MaxBookingDuration(),
		Location:           cfg.Location(),
	}, appLog.Named("booking"))
	zoneService := zone.NewService(store, locker, dispatcher, appLog.Named("zone"))

	sweeper := zone.NewSweeper(store, appLog.Named("sweeper"))
	stopSweeper := sweeper.Schedule(ctx, cfg.ZoneSweepInterval)

	identity := middleware.IdentityConfig{
		TrustHeaders: cfg.TrustGatewayHeaders,
		GatewayToken: cfg.GatewayToken,
	}
	if cfg.JWTEnabled() {
		identity.Verifier = jwt.NewVerifier(cfg.JWTSecret, cfg.JWTLeeway)
	}

	router := app.NewRouter(app.Deps{
		ServiceName: serviceName,
		Store:       store,
		Bookings:    bookingService,
		Zones:       zoneService,
		Hub:         hub,
		Identity:    identity,
		Location:    cfg.Location(),
		Log:         appLog,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		appLog.Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("env", cfg.AppEnv),
			zap.Duration("max_booking", cfg.MaxBookingDuration()),
			zap.String("timezone", cfg.Location().String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", zap.Error(err))
	}
	close(stopSweeper)
	hub.Close()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		appLog.Warn("notification queue not drained", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLog.Warn("tracing shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	appLog.Info("server exited")
}

// newLocker uses Redis when configured so that several API instances share
// admission locks.
func newLocker(cfg *config.Config, log *zap.Logger) (booking.Locker, func()) {
	if cfg.RedisAddr == "" {
		// PostgreSQL still serializes each user's admissions across instances
		// with transaction advisory locks; zones are serialized by row locks.
		log.Info("admission locks are in-process")
		return lock.NewLocal(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	log.Info("admission locks are in redis", zap.String("addr", cfg.RedisAddr))
	locker := lock.NewRedis(client, lock.RedisConfig{TTL: cfg.LockTTL}, log.Named("lock"))
	return locker, func() { _ = client.Close() }
}

func newSenders(cfg *config.Config, hub *notification.Hub, log *zap.Logger) (notification.Multi, func()) {
	senders := notification.Multi{hub}
	closers := []func(){}

	if cfg.NotificationServiceURL != "" {
		senders = append(senders, notification.NewHTTPSender(notification.HTTPSenderConfig{
			NotificationURL: cfg.NotificationServiceURL,
			UserServiceURL:  cfg.UserServiceURL,
			Timeout:         cfg.NotifyTimeout,
			Location:        cfg.Location(),
		}))
	}

	if cfg.RabbitMQURL != "" {
		amqpSender, err := notification.DialAMQP(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			// events still reach the other senders
			log.Error("rabbitmq unavailable, events will not be published", zap.Error(err))
		} else {
			senders = append(senders, amqpSender)
			closers = append(closers, func() { _ = amqpSender.Close() })
		}
	}

	return senders, func() {
		for _, c := range closers {
			c()
		}
	}
}
