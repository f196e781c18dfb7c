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
	"go.uber.org/zap"

	_ "github.com/noah-isme/ocms-api/api/swagger"
	"github.com/noah-isme/ocms-api/internal/handler"
	"github.com/noah-isme/ocms-api/internal/middleware"
	"github.com/noah-isme/ocms-api/internal/repository"
	"github.com/noah-isme/ocms-api/internal/service"
	"github.com/noah-isme/ocms-api/pkg/cache"
	"github.com/noah-isme/ocms-api/pkg/config"
	"github.com/noah-isme/ocms-api/pkg/database"
	"github.com/noah-isme/ocms-api/pkg/jobs"
	"github.com/noah-isme/ocms-api/pkg/logger"
	"github.com/noah-isme/ocms-api/pkg/mailer"
	"github.com/noah-isme/ocms-api/pkg/storage"
	"github.com/noah-isme/ocms-api/pkg/tracing"
)

// @title OCMS API
// @version 1.0.0
// @description Online course management: catalog, enrollment, progress, reviews and reports.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, cfg.Version, logr)
	if err != nil {
		logr.Warn("tracing disabled", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	cacheEnabled := cfg.Cache.Enabled
	var redisClient *redis.Client
	if cacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, cache disabled", zap.Error(err))
			cacheEnabled = false
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.DefaultTTL, logr, cacheEnabled)
	invalidator := service.NewCacheInvalidator(cacheSvc)

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	moduleRepo := repository.NewModuleRepository(db)
	lectureRepo := repository.NewLectureRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	reportRepo := repository.NewReportRepository(db)

	var sender mailer.Sender = mailer.NewLogSender(logr)
	if cfg.Mail.SendGridAPIKey != "" {
		sender = mailer.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	}
	notifications := service.NewNotificationService(sender, service.NotificationConfig{
		MaxRetries: cfg.Mail.WorkerRetries,
		RetryDelay: 5 * time.Second,
	}, metrics, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	}).WithNotifier(notifications).WithInvalidator(invalidator)
	userSvc := service.NewUserService(userRepo, validate, logr)
	categorySvc := service.NewCategoryService(categoryRepo, invalidator, validate, logr)
	courseSvc := service.NewCourseService(service.CourseServiceDeps{
		Courses:     courseRepo,
		Categories:  categoryRepo,
		Modules:     moduleRepo,
		Lectures:    lectureRepo,
		Users:       userRepo,
		Audit:       userRepo,
		Cache:       cacheSvc,
		Invalidator: invalidator,
	}, validate, logr)
	curriculumSvc := service.NewCurriculumService(courseSvc, moduleRepo, lectureRepo, invalidator, validate, logr)
	reviewSvc := service.NewReviewService(reviewRepo, courseRepo, enrollmentRepo, cacheSvc, invalidator, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, enrollmentRepo, cacheSvc, logr).WithMetrics(metrics)

	enrollmentDeps := service.EnrollmentServiceDeps{
		Enrollments: enrollmentRepo,
		Courses:     courseRepo,
		Owned:       courseSvc,
		Users:       userRepo,
		Notifier:    notifications,
		Invalidator: invalidator,
		Metrics:     metrics,
	}

	var (
		reportSvc   *service.ReportService
		reportQueue *jobs.Queue
	)
	if cfg.Reports.Enabled {
		store, err := buildStorage(ctx, cfg)
		if err != nil {
			logr.Fatal("failed to init report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(service.ExportSources{
			Enrollments: enrollmentRepo,
			Courses:     courseRepo,
			Users:       userRepo,
		}, store, signer, service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL}, logr)

		worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			BufferSize: 64,
			MaxRetries: cfg.Reports.WorkerRetries,
			RetryDelay: 5 * time.Second,
			Logger:     logr,
			Observer:   metrics,
		})
		reportSvc = service.NewReportService(reportRepo, courseSvc, enrollmentRepo, reportQueue, exportSvc, logr,
			service.ReportServiceConfig{ResultTTL: cfg.Reports.SignedURLTTL})
		enrollmentDeps.Certificates = reportSvc
	}
	enrollmentSvc := service.NewEnrollmentService(enrollmentDeps, validate, logr)

	notifications.Start(ctx)
	if reportQueue != nil {
		reportQueue.Start(ctx)
		reportSvc.RecoverPendingJobs(ctx)
	}

	maintenanceCfg := service.MaintenanceConfig{
		ReportCleanupInterval: cfg.Reports.CleanupInterval,
		RefreshTokenTTL:       cfg.JWT.RefreshExpiration,
	}
	maintenance := service.NewMaintenanceService(nil, userRepo, maintenanceCfg, logr)
	if reportSvc != nil {
		maintenance = service.NewMaintenanceService(reportSvc, userRepo, maintenanceCfg, logr)
	}
	if err := maintenance.Start(ctx); err != nil {
		logr.Fatal("failed to schedule maintenance", zap.Error(err))
	}

	var authLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		authLimiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	readiness := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		readiness["redis"] = cacheRepo.Ping
	}

	routerCfg := handler.RouterConfig{
		APIPrefix:   cfg.APIPrefix,
		EnableDocs:  cfg.Env != config.EnvProduction,
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Logger:      logr,
		Metrics:     metrics,
		Tokens:      authSvc,
		AuditWriter: userRepo,
		AuthLimiter: authLimiter,
		Auth:        handler.NewAuthHandler(authSvc),
		Users:       handler.NewUserHandler(userSvc),
		Categories:  handler.NewCategoryHandler(categorySvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Curriculum:  handler.NewCurriculumHandler(curriculumSvc),
		Enrollment:  handler.NewEnrollmentHandler(enrollmentSvc),
		Reviews:     handler.NewReviewHandler(reviewSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
		Ops:         handler.NewMetricsHandler(metrics, readiness),
	}
	if cfg.Tracing.Enabled {
		routerCfg.TraceName = cfg.Tracing.ServiceName
		if routerCfg.TraceName == "" {
			routerCfg.TraceName = "ocms-api"
		}
	}
	if reportSvc != nil {
		routerCfg.Reports = handler.NewReportHandler(reportSvc)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http server shutdown", zap.Error(err))
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
	notifications.Stop()
	maintenance.Stop()
	if err := shutdownTracer(shutdownCtx); err != nil {
		logr.Warn("tracer shutdown", zap.Error(err))
	}
	logr.Info("server stopped")
}

func buildStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.Reports.StorageDriver == config.StorageDriverMinio {
		return storage.NewObjectStorage(ctx, cfg.Minio)
	}
	return storage.NewLocalStorage(cfg.Reports.StorageDir)
}
