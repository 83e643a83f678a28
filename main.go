package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estoquefacil/internal/activity"
	"estoquefacil/internal/coalesce"
	"estoquefacil/internal/config"
	"estoquefacil/internal/db"
	"estoquefacil/internal/email"
	httpapi "estoquefacil/internal/http"
	"estoquefacil/internal/jobs"
	"estoquefacil/internal/logging"
	"estoquefacil/internal/payments"
	"estoquefacil/internal/services"
	"estoquefacil/internal/storage"
	"estoquefacil/internal/store"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Printf("load .env failed: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("stat .env failed: %v", err)
	}

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("build logger failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := services.Deps{
		Payments: payments.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		Logger:   logger,
		Config:   cfg,
	}
	switch {
	case cfg.InMemoryStore():
		logger.Warn("STORE_DRIVER=memory, data is kept in process and lost on restart")
		deps.Store = store.NewMemory()
		deps.Activity = &activity.Memory{}
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db connect failed", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate failed", zap.Error(err))
		}
		deps.Store = store.NewPostgres(pool)
		deps.Activity = activity.NewPostgresRecorder(pool, logger)
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		deps.Serializer = coalesce.NewRedisSerializer(rdb, coalesce.NewRegistry(), cfg.ConfigLockTTL)
		logger.Info("configuration writes serialized through redis", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.MinioEndpoint != "" {
		photos, err := storage.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			logger.Fatal("minio client failed", zap.Error(err))
		}
		if err := photos.EnsureBucket(ctx); err != nil {
			logger.Fatal("minio bucket failed", zap.String("bucket", cfg.MinioBucket), zap.Error(err))
		}
		deps.Photos = photos
	} else {
		logger.Warn("MINIO_ENDPOINT not set, product photo upload disabled")
	}

	if mailer := email.NewResendClient(cfg.ResendAPIKey, cfg.EmailFrom); mailer.IsConfigured() {
		deps.Notifier = mailer
	}

	svc := services.New(deps)

	var scheduler *jobs.Scheduler
	if cfg.ReconcileSchedule != "" {
		scheduler = jobs.NewScheduler(svc.Reconciler, logger)
		if err := scheduler.ScheduleReconcile(cfg.ReconcileSchedule); err != nil {
			logger.Fatal("invalid RECONCILE_SCHEDULE", zap.String("schedule", cfg.ReconcileSchedule), zap.Error(err))
		}
		scheduler.Start()
	}

	server := httpapi.NewServer(svc, cfg, logger)
	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ServerAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
