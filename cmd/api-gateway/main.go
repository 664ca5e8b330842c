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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/faculty-appointments-api/api/swagger"
	"github.com/noah-isme/faculty-appointments-api/internal/handler"
	"github.com/noah-isme/faculty-appointments-api/internal/middleware"
	"github.com/noah-isme/faculty-appointments-api/internal/repository"
	"github.com/noah-isme/faculty-appointments-api/internal/routes"
	"github.com/noah-isme/faculty-appointments-api/internal/service"
	"github.com/noah-isme/faculty-appointments-api/pkg/cache"
	"github.com/noah-isme/faculty-appointments-api/pkg/config"
	"github.com/noah-isme/faculty-appointments-api/pkg/database"
	"github.com/noah-isme/faculty-appointments-api/pkg/jobs"
	"github.com/noah-isme/faculty-appointments-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/faculty-appointments-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/faculty-appointments-api/pkg/middleware/requestid"
)

// @title Faculty Appointments API
// @version 1.0.0
// @description Appointment scheduling between students and faculty.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("migrate database", zap.Error(err))
		}
		if version, err := database.Version(ctx, db); err == nil {
			logr.Info("database migrated", zap.Int64("version", version))
		}
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	deps := map[string]handler.Pinger{"postgres": db}
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, stats caching disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix), metricsSvc, cfg.Stats.CacheTTL, logr)
		deps["redis"] = redisPinger{client: redisClient}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	statsSvc := service.NewStatsService(appointmentRepo, userRepo, availabilityRepo, cacheSvc, metricsSvc, cfg.Stats.CacheTTL, logr)

	if cacheSvc != nil && cfg.Stats.Warmup {
		warmup := jobs.NewQueue("stats-warmup", statsSvc.Warm, jobs.QueueConfig{Workers: 1, Logger: logr})
		warmup.Start(ctx)
		defer warmup.Stop()
		service.NewStatsWarmer(warmup, logr).Attach(cacheSvc)
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, userRepo, cacheSvc, metricsSvc, validate, logr, service.AppointmentConfig{
		AllowBackToBack: cfg.Booking.AllowBackToBack,
	})
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, userRepo, validate, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)
	exportSvc := service.NewExportService(appointmentSvc, logr, nil, nil)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	routes.Register(r, routes.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Appointments:  handler.NewAppointmentHandler(appointmentSvc, exportSvc),
		Availability:  handler.NewAvailabilityHandler(availabilitySvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Stats:         handler.NewStatsHandler(statsSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc, deps),
	}, authSvc, routes.Options{
		Prefix:        cfg.APIPrefix,
		EnableExports: cfg.Exports.Enabled,
		EnableMetrics: cfg.Metrics.Enabled,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
