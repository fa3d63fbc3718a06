package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecas/approval-api/internal/handler"
	"github.com/ecas/approval-api/internal/repository"
	"github.com/ecas/approval-api/internal/service"
	"github.com/ecas/approval-api/migrations"
	"github.com/ecas/approval-api/pkg/cache"
	"github.com/ecas/approval-api/pkg/config"
	"github.com/ecas/approval-api/pkg/database"
	"github.com/ecas/approval-api/pkg/events"
	"github.com/ecas/approval-api/pkg/jobs"
	"github.com/ecas/approval-api/pkg/letter"
	"github.com/ecas/approval-api/pkg/logger"
	"github.com/ecas/approval-api/pkg/observability"
	"github.com/ecas/approval-api/pkg/storage"
)

// @title ECAS Approval API
// @version 1.0.0
// @description Campus permission requests and their approval chain
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	flush, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB, migrations.FS); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, unread counters are not cached", zap.Error(err))
		} else {
			defer client.Close()
			cacheSvc = service.NewCacheService(repository.NewCacheRepository(client), metrics, cfg.Cache.NotificationTTL, logr, true)
		}
	}

	uploader, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logr.Fatal("failed to init storage", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}

	producer := events.NewKafkaProducer(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	defer producer.Close() //nolint:errcheck

	publisher := service.NewEventPublisher(producer, metrics, logr)
	eventQueue := jobs.NewQueue("transition-events", publisher.Handle, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.Retries,
		Logger:     logr,
		OnGiveUp:   publisher.GiveUp,
	})
	publisher.Attach(eventQueue)
	eventQueue.Start(ctx)
	defer eventQueue.Stop()

	validate := validator.New()
	userRepo := repository.NewUserRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	authSvc := service.NewAuthService(userRepo, uploader, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	notificationSvc := service.NewNotificationService(notificationRepo, cacheSvc, logr)
	permissionSvc := service.NewPermissionService(permissionRepo, userRepo, uploader, validate, logr,
		service.WithTransitionPublisher(publisher),
		service.WithUnreadInvalidator(notificationSvc),
		service.WithPermissionMetrics(metrics),
	)
	letterSvc := service.NewLetterService(permissionRepo, userRepo, letter.NewRenderer(cfg.Letters.InstitutionName), logr)
	exportSvc := service.NewHistoryExportService(permissionRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := newRouter(cfg, logr, routerDeps{
		auth:          handler.NewAuthHandler(authSvc, cfg.Storage.MaxUploadBytes),
		permissions:   handler.NewPermissionHandler(permissionSvc, letterSvc, exportSvc, cfg.Storage.MaxUploadBytes),
		notifications: handler.NewNotificationHandler(notificationSvc),
		metrics:       handler.NewMetricsHandler(metrics, db),
		metricsSvc:    metrics,
		tokens:        authSvc,
		localFiles:    localStore(uploader),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func localStore(u storage.Uploader) *storage.LocalStore {
	if store, ok := u.(*storage.LocalStore); ok {
		return store
	}
	return nil
}
