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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/yegara-dev/community-api/api/swagger"
	"github.com/yegara-dev/community-api/internal/handler"
	"github.com/yegara-dev/community-api/internal/middleware"
	"github.com/yegara-dev/community-api/internal/notify"
	"github.com/yegara-dev/community-api/internal/repository"
	"github.com/yegara-dev/community-api/internal/service"
	"github.com/yegara-dev/community-api/pkg/cache"
	"github.com/yegara-dev/community-api/pkg/config"
	"github.com/yegara-dev/community-api/pkg/database"
	"github.com/yegara-dev/community-api/pkg/logger"
	corsmiddleware "github.com/yegara-dev/community-api/pkg/middleware/cors"
	reqidmiddleware "github.com/yegara-dev/community-api/pkg/middleware/requestid"
	"github.com/yegara-dev/community-api/pkg/storage"
)

// @title Yegara Community API
// @version 1.0.0
// @description Community issue reporting and engagement platform
// @BasePath /api
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	notifications := service.NewNotificationService(
		notify.NewSMTPMailer(cfg.Mail),
		notify.NewRedisPublisher(redisClient),
		cfg.Notifications,
		metrics,
		logr,
	)
	notifications.Start(ctx)
	defer notifications.Stop()

	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	eventRepo := repository.NewEventRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	authService := service.NewAuthService(userRepo, notifications, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		FrontendURL: cfg.FrontendURL,
	})
	userService := service.NewUserService(userRepo, notifications, validate, logr, cfg.FrontendURL)
	reportService := service.NewReportService(reportRepo, userRepo, notifications, metrics, validate, logr)
	eventService := service.NewEventService(eventRepo, notifications, validate, logr)
	meetingService := service.NewMeetingService(meetingRepo, userRepo, notifications, validate, logr)
	resourceService := service.NewResourceService(resourceRepo, files, validate, logr, cfg.Uploads.MaxFileSizeBytes)
	announcementService := service.NewAnnouncementService(announcementRepo, userRepo, notifications, validate, logr)
	analyticsService := service.NewAnalyticsService(analyticsRepo, cache.NewStore(redisClient), metrics, logr, cfg.Analytics.RealtimeCacheTTL)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Uploaded resource files are addressable at the file_url stored on the
	// resource row.
	r.Static("/uploads", cfg.Uploads.StorageDir)

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:          handler.NewAuthHandler(authService, cfg),
		Users:         handler.NewUserHandler(userService),
		Reports:       handler.NewReportHandler(reportService),
		Events:        handler.NewEventHandler(eventService),
		Meetings:      handler.NewMeetingHandler(meetingService),
		Resources:     handler.NewResourceHandler(resourceService),
		Announcements: handler.NewAnnouncementHandler(announcementService),
		Analytics:     handler.NewAnalyticsHandler(analyticsService),
	}, authService, userRepo)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
