package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-api/api/swagger"
	"github.com/noah-isme/lms-api/internal/handler"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/internal/store"
	boltstore "github.com/noah-isme/lms-api/internal/store/bolt"
	"github.com/noah-isme/lms-api/internal/store/memory"
	mongostore "github.com/noah-isme/lms-api/internal/store/mongo"
	pgstore "github.com/noah-isme/lms-api/internal/store/postgres"
	"github.com/noah-isme/lms-api/pkg/cache"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/database"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/logger"
	"github.com/noah-isme/lms-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// @title LMS API
// @version 1.0.0
// @description Courses, content, assignments, grading and notifications for a learning management system.
// @BasePath /api/v1
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	readiness := map[string]handler.ReadinessCheck{}

	driver, err := openStore(cfg, logr)
	if err != nil {
		logr.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
		defer cancel()
		if err := driver.Close(ctx); err != nil {
			logr.Warn("failed to close store", zap.Error(err))
		}
	}()
	readiness["store"] = func(ctx context.Context) error {
		err := driver.Scan(ctx, "users", func(string, []byte) error { return errStopScan })
		if errors.Is(err, errStopScan) {
			return nil
		}
		return err
	}
	driver = store.Instrument(driver, func(operation, collection string, d time.Duration, err error) {
		failed := err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrConflict)
		metrics.ObserveStoreOperation(operation, collection, d, failed)
	})

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.NewRedis(ctx, cfg.Redis)
		cancel()
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			redisClient = client
			defer client.Close() //nolint:errcheck
			readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, "lms", logr.Named("cache")),
		metrics,
		cfg.Cache.TTL,
		logr.Named("cache"),
		cfg.Cache.Enabled && redisClient != nil,
	)

	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.String("dir", cfg.Exports.StorageDir), zap.Error(err))
	}
	secret := cfg.Exports.SignedURLSecret
	if secret == "" {
		secret = cfg.JWT.Secret
	}

	svcs := service.New(service.Deps{
		Driver:  driver,
		Cache:   cacheSvc,
		Metrics: metrics,
		Logger:  logr,
		Auth: service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            "lms-api",
		},
		Attachments:    service.AttachmentPolicy{MaxBytes: cfg.Attachments.MaxBytes, Allowed: cfg.Attachments.AllowedMIMEs},
		CourseCacheTTL: cfg.Cache.TTL,
		Dashboard: service.DashboardServiceConfig{
			CacheTTL:       cfg.Dashboard.CacheTTL,
			UpcomingWindow: cfg.Dashboard.UpcomingWindow,
		},
		ReminderWindow: cfg.Reminders.Window,
		ExportFiles:    exportFiles,
		ExportSigner:   storage.NewSignedURLSigner(secret, cfg.Exports.SignedURLTTL),
		Export:         service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.ResultTTL},
	})

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.Mail.Enabled && cfg.Mail.SendGridAPIKey != "" {
		queue := jobs.NewQueue(service.JobTypeNotificationMail, svcs.Notifications.DeliverMail, jobs.QueueConfig{
			Workers:    cfg.Mail.Workers,
			MaxRetries: cfg.Mail.MaxRetries,
			Logger:     logr.Named("mail"),
		})
		sender := mailer.NewSendGridSender(cfg.Mail.SendGridAPIKey, "", cfg.Mail.FromName, cfg.Mail.FromAddress)
		svcs.Notifications.EnableMail(queue, sender, cfg.Mail.FrontendBaseURL)
		queue.Start(rootCtx)
		defer queue.Stop()
		logr.Info("notification mail enabled", zap.Int("workers", cfg.Mail.Workers))
	}

	scheduler := newScheduler(cfg, svcs, logr.Named("scheduler"))
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins, AllowCredentials: len(cfg.CORS.AllowedOrigins) > 0}))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:          handler.NewAuthHandler(svcs.Auth),
		Courses:       handler.NewCourseHandler(svcs.Courses),
		Content:       handler.NewContentHandler(svcs.Content),
		Assignments:   handler.NewAssignmentHandler(svcs.Assignments),
		Dashboard:     handler.NewDashboardHandler(svcs.Dashboard),
		Notifications: handler.NewNotificationHandler(svcs.Notifications, svcs.Reminders),
		Exports:       handler.NewExportHandler(svcs.Exports),
		Metrics:       metricsHandler,
	}, svcs.Auth)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server error", zap.Error(err))
		}
	case sig := <-shutdown:
		logr.Info("shutdown started", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logr.Error("could not stop server gracefully", zap.Error(err))
			if err := server.Close(); err != nil {
				logr.Error("could not force stop server", zap.Error(err))
			}
		}
	}
	logr.Info("server stopped")
}

var errStopScan = errors.New("stop scan")

func openStore(cfg *config.Config, logr *zap.Logger) (store.Driver, error) {
	switch cfg.Store.Driver {
	case "", config.StoreMemory:
		logr.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	case config.StoreBolt:
		db, err := database.NewBolt(cfg.Store)
		if err != nil {
			return nil, err
		}
		return boltstore.New(db), nil
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
		defer cancel()
		client, db, err := database.NewMongo(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		return mongostore.New(client, db), nil
	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
		defer cancel()
		db, err := database.NewPostgres(ctx, cfg.Database, cfg.Store.Timeout)
		if err != nil {
			return nil, err
		}
		driver := pgstore.New(db)
		if err := driver.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return driver, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newScheduler(cfg *config.Config, svcs *service.Services, logr *zap.Logger) *cron.Cron {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	if cfg.Reminders.Enabled {
		_, err := c.AddFunc(cfg.Reminders.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			created, err := svcs.Reminders.Sweep(ctx)
			if err != nil {
				logr.Error("deadline reminder sweep failed", zap.Error(err))
				return
			}
			logr.Info("deadline reminder sweep finished", zap.Int("created", created))
		})
		if err != nil {
			logr.Error("invalid reminder schedule", zap.String("schedule", cfg.Reminders.Schedule), zap.Error(err))
		}
	}

	if svcs.Exports != nil && cfg.Exports.CleanupSchedule != "" {
		_, err := c.AddFunc(cfg.Exports.CleanupSchedule, func() {
			deleted, err := svcs.Exports.Cleanup()
			if err != nil {
				logr.Error("export cleanup failed", zap.Error(err))
				return
			}
			if deleted > 0 {
				logr.Info("export cleanup finished", zap.Int("deleted", deleted))
			}
		})
		if err != nil {
			logr.Error("invalid export cleanup schedule", zap.String("schedule", cfg.Exports.CleanupSchedule), zap.Error(err))
		}
	}
	return c
}
