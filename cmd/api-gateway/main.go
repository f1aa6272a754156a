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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/linkage-api/api/swagger"
	"github.com/noah-isme/linkage-api/internal/bootstrap"
	"github.com/noah-isme/linkage-api/internal/handler"
	"github.com/noah-isme/linkage-api/internal/middleware"
	"github.com/noah-isme/linkage-api/internal/models"
	"github.com/noah-isme/linkage-api/internal/repository"
	"github.com/noah-isme/linkage-api/internal/service"
	"github.com/noah-isme/linkage-api/pkg/cache"
	"github.com/noah-isme/linkage-api/pkg/config"
	"github.com/noah-isme/linkage-api/pkg/export"
	"github.com/noah-isme/linkage-api/pkg/jobs"
	"github.com/noah-isme/linkage-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/linkage-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/linkage-api/pkg/middleware/requestid"
	"github.com/noah-isme/linkage-api/pkg/storage"
)

// @title Linkage API
// @version 0.2.0
// @description Read-only relationship resolution and consistency audits over the school identity store.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	store, closeStore, err := bootstrap.OpenIdentityStore(ctx, cfg, metricsSvc, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to open identity store", "error", err, "backend", cfg.Store.Backend)
	}
	defer closeStore()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	var jobCache interface {
		Get(ctx context.Context, key string, dest interface{}) error
		Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
		Delete(ctx context.Context, key string) error
		Keys(ctx context.Context, pattern string) ([]string, error)
	}
	var cachePinger handler.Pinger
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		jobCache, cachePinger = cacheRepo, cacheRepo
	} else {
		jobCache = repository.NewMemoryCache()
	}

	validate := validator.New()
	resolverSvc := service.NewResolverService(store, metricsSvc, logr)
	consistencySvc := service.NewConsistencyService(store, metricsSvc, logr, service.ConsistencyConfig{
		BatchSize:   cfg.Audit.BatchSize,
		Concurrency: cfg.Audit.Concurrency,
	})
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Expiration: cfg.JWT.Expiration,
	})

	var auditSvc *service.AuditService
	if cfg.Audit.Enabled {
		localStorage, err := storage.NewLocalStorage(cfg.Audit.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare audit storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Audit.SignedURLSecret, cfg.Audit.SignedURLTTL)
		exportSvc := service.NewExportService(consistencySvc, localStorage, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Audit.SignedURLTTL,
		}, logr, export.NewCSVExporter(), export.NewPDFExporter())
		auditRepo := repository.NewAuditJobRepository(jobCache, cfg.Audit.JobTTL)
		worker := service.NewAuditWorker(auditRepo, exportSvc, metricsSvc, cfg.Audit.WorkerRetries, logr)
		auditQueue := jobs.NewQueue("orphan-audits", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Audit.WorkerConcurrency,
			MaxRetries: cfg.Audit.WorkerRetries,
			RetryDelay: 2 * time.Second,
			Logger:     logr,
		})
		auditQueue.Start(ctx)
		defer auditQueue.Stop()

		auditSvc = service.NewAuditService(auditRepo, auditQueue, exportSvc, validate, logr, service.AuditServiceConfig{
			ResultTTL:       cfg.Audit.SignedURLTTL,
			CleanupInterval: cfg.Audit.CleanupInterval,
		})
		auditSvc.RecoverPendingJobs(ctx)
		auditSvc.StartCleanup(ctx)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"identity_store": store,
		"job_cache":      cachePinger,
	}, 2*time.Second)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	if metricsSvc != nil {
		r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	linkHandler := handler.NewLinkHandler(resolverSvc, validate)
	auditHandler := handler.NewAuditHandler(consistencySvc, nil)
	if auditSvc != nil {
		auditHandler = handler.NewAuditHandler(consistencySvc, auditSvc)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta(cfg.Store.Backend))
	api.GET("/export/:token", auditHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokenSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		links := secured.Group("/links")
		links.GET("/children", linkHandler.Children)
		links.GET("/children/:id/guardian", linkHandler.Guardian)
		links.GET("/classrooms", linkHandler.Classrooms)
		links.GET("/classrooms/:id/teacher", linkHandler.Teacher)
		links.GET("/profile", linkHandler.Profile)
		links.POST("/resolve", linkHandler.Resolve)

		audits := secured.Group("/audits")
		audits.GET("/orphans", auditHandler.Orphans)
		audits.POST("", auditHandler.CreateAudit)
		audits.GET("/:id", auditHandler.AuditStatus)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "backend", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("shutdown error", zap.Error(err))
	}
}
