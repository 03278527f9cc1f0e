package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"opsreport/internal/attendance"
	"opsreport/internal/auth"
	"opsreport/internal/config"
	"opsreport/internal/handler"
	"opsreport/internal/httpmiddleware"
	"opsreport/internal/ingest"
	"opsreport/internal/inspection"
	"opsreport/internal/logging"
	"opsreport/internal/metrics"
	"opsreport/internal/queue"
	"opsreport/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.Env)
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	inspectionDB, err := store.NewSQLite(cfg.InspectionDBPath)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	defer inspectionDB.Close()

	repo := attendance.NewRepository(db.Client)
	inspections := inspection.NewStore(inspectionDB.Client)
	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := errors.Join(repo.EnsureSchema(ctx), inspections.Migrate(ctx))
		cancel()
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	attSvc := attendance.NewService(repo, loc, cfg.PunchDedupWindow, logger.Named("attendance"), m)
	inspSvc := inspection.NewService(inspections, loc, logger.Named("inspection"), m)

	checks := map[string]handler.Checker{"db": db, "inspection_db": inspectionDB}

	var redisClient *store.Redis
	if cfg.QueueBackend == "redis" || cfg.RateLimitBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		checks["redis"] = redisClient
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		q  queue.Queue
		wg sync.WaitGroup
	)
	if cfg.QueueBackend == "memory" {
		mem := queue.NewInMemory(256)
		q = mem
		proc := ingest.NewProcessor(repo, inspSvc, logger.Named("ingest"), m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = proc.Run(ctx, mem)
		}()
		logger.Info("processing ingest in-process", zap.String("queue", "memory"))
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey, logger.Named("queue"))
	}

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, "", cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	h := handler.New(handler.Deps{
		Attendance:  attSvc,
		Inspections: inspSvc,
		Queue:       q,
		Signer:      auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Tokens:      repo,
		AdminKey:    cfg.AdminKey,
		Checks:      checks,
		Logger:      logger.Named("http"),
	})

	r := gin.New()
	r.Use(
		logging.GinRecovery(logger),
		logging.GinLogger(logger.Named("http"), "/healthz", "/metrics"),
		m.GinMiddleware(),
		httpmiddleware.CORS(cfg.CORSOrigins),
		httpmiddleware.SecurityHeaders(cfg.IsProduction()),
		httpmiddleware.RateLimit(limiter, logger),
	)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	wg.Wait()

	logger.Info("server exited")
	return nil
}
