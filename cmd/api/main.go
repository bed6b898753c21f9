package main

import (
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"

	_ "github.com/edupanel/institute-api/api/swagger"
	"github.com/edupanel/institute-api/internal/handler"
	"github.com/edupanel/institute-api/internal/middleware"
	"github.com/edupanel/institute-api/internal/repository"
	"github.com/edupanel/institute-api/internal/router"
	"github.com/edupanel/institute-api/internal/service"
	"github.com/edupanel/institute-api/pkg/cache"
	"github.com/edupanel/institute-api/pkg/config"
	"github.com/edupanel/institute-api/pkg/database"
	"github.com/edupanel/institute-api/pkg/export"
	"github.com/edupanel/institute-api/pkg/logger"
)

// @title Institute Management API
// @version 1.0.0
// @description Multi-role REST API for institute administration
// @BasePath /api/v1
// @schemes http https

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Catalog.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	academicsRepo := repository.NewAcademicsRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	// cacheRepo may be nil; cached reads degrade to direct DB reads.
	courseSvc := service.NewCourseService(courseRepo, cacheRepo, cfg.Catalog.CacheTTL, validate, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, courseRepo, enrollmentRepo, userRepo,
		cacheRepo, cfg.Catalog.QueueTTL, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, export.NewCSVExporter(), validate, logr)
	paymentSvc := service.NewPaymentService(paymentRepo, enrollmentRepo, userRepo, export.NewPDFExporter(), validate, logr)
	academicsSvc := service.NewAcademicsService(academicsRepo, validate, logr)

	gate := middleware.NewAuthGate(authSvc, authSvc, router.DefaultRouteConfig(), middleware.CookieSettings{
		Domain:     cfg.Cookies.Domain,
		Secure:     cfg.Cookies.Secure,
		AccessTTL:  cfg.JWT.Expiration,
		RefreshTTL: cfg.JWT.RefreshExpiration,
	}, metricsSvc, logr)

	handlers := router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc, gate),
		Users:         handler.NewUserHandler(userSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Registrations: handler.NewRegistrationHandler(registrationSvc, metricsSvc),
		Enrollments:   handler.NewEnrollmentHandler(enrollmentSvc),
		Payments:      handler.NewPaymentHandler(paymentSvc),
		Academics:     handler.NewAcademicsHandler(academicsSvc),
	}

	r := router.New(cfg, logr, gate, metricsSvc, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
