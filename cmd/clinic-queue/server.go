package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/clinic-queue-api/api/swagger"
	"github.com/noah-isme/clinic-queue-api/internal/handler"
	internalmiddleware "github.com/noah-isme/clinic-queue-api/internal/middleware"
	"github.com/noah-isme/clinic-queue-api/internal/repository"
	"github.com/noah-isme/clinic-queue-api/internal/service"
	"github.com/noah-isme/clinic-queue-api/pkg/cache"
	"github.com/noah-isme/clinic-queue-api/pkg/config"
	"github.com/noah-isme/clinic-queue-api/pkg/database"
	"github.com/noah-isme/clinic-queue-api/pkg/export"
	"github.com/noah-isme/clinic-queue-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/clinic-queue-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/clinic-queue-api/pkg/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

type routeHandlers struct {
	queue   *handler.QueueHandler
	reports *handler.ReportHandler
	metrics *handler.MetricsHandler
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	cacheRepo := repository.NewCacheRepository(redisClient, cfg.Redis.Namespace)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Snapshot.CacheTTL, logr, redisClient != nil)
	sequences := repository.NewSequenceRepository(db)

	queueSvc := service.NewQueueService(service.QueueServiceParams{
		Patients:  repository.NewPatientRepository(db),
		Sequences: sequences,
		Allocator: service.NewTokenAllocator(sequences),
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: service.NewValidator(),
		Logger:    logr,
		Config: service.QueueServiceConfig{
			Departments:      cfg.Queue.Departments,
			OperationTimeout: cfg.Queue.OperationTimeout,
			CompletedLimit:   cfg.Queue.CompletedLimit,
			Location:         cfg.Queue.Location(),
			SnapshotCache:    cfg.Snapshot.CacheEnabled,
			SnapshotCacheTTL: cfg.Snapshot.CacheTTL,
			IdempotencyTTL:   cfg.Queue.IdempotencyTTL,
		},
	})
	var csvOpts []export.CSVOption
	if cfg.Queue.ReportCSVBOM {
		csvOpts = append(csvOpts, export.WithBOM())
	}
	exportSvc := service.NewExportService(queueSvc, service.ExportConfig{ClinicName: cfg.Queue.ClinicName}, logr,
		export.NewCSVExporter(csvOpts...), export.NewPDFExporter())

	checks := map[string]func(ctx context.Context) error{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	router := newRouter(cfg, logr, metrics, routeHandlers{
		queue:   handler.NewQueueHandler(queueSvc),
		reports: handler.NewReportHandler(exportSvc),
		metrics: handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("timezone", cfg.Queue.Location().String()),
			zap.Bool("redis", redisClient != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logr.Info("server stopped")
	return nil
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h routeHandlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		patients := api.Group("/patients")
		patients.POST("", h.queue.Register)
		patients.GET("/:id", h.queue.Get)
		patients.POST("/:id/complete", h.queue.Complete)
		patients.GET("/:id/slip", h.reports.TokenSlip)

		queue := api.Group("/queue")
		queue.GET("", h.queue.List)
		queue.GET("/next", h.queue.PeekNext)
		queue.POST("/next", h.queue.CallNext)
		queue.GET("/current", h.queue.Current)
		queue.GET("/completed", h.queue.Completed)
		queue.GET("/snapshot", h.queue.Snapshot)

		api.GET("/dashboard", h.queue.Dashboard)
		api.GET("/departments/sequences", h.queue.Sequences)
		api.GET("/reports/visits", h.reports.Visits)
		api.GET("/system/metrics", h.metrics.Summary)
	}

	return r
}
