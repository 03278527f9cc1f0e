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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"opsreport/internal/attendance"
	"opsreport/internal/config"
	"opsreport/internal/ingest"
	"opsreport/internal/inspection"
	"opsreport/internal/logging"
	"opsreport/internal/metrics"
	"opsreport/internal/queue"
	"opsreport/internal/store"
)

// Worker consumes the shared ingest queue, finalizes punches and stores
// inspection results.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.Env).Named("worker")
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	if cfg.QueueBackend != "redis" {
		return errors.New("worker requires QUEUE_BACKEND=redis; the memory queue is processed by the api")
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
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

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet, consumer will retry", zap.String("addr", cfg.RedisAddr))
	}

	repo := attendance.NewRepository(db.Client)
	inspections := inspection.NewStore(inspectionDB.Client)
	if cfg.AutoMigrate {
		if err := errors.Join(repo.EnsureSchema(ctx), inspections.Migrate(ctx)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	inspSvc := inspection.NewService(inspections, loc, logger.Named("inspection"), m)

	admin := &http.Server{
		Addr:              ":" + cfg.WorkerAdminPort,
		Handler:           adminMux(reg, db, inspectionDB, redisClient),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = admin.Shutdown(shutdownCtx)
	}()

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey, logger.Named("queue"))
	proc := ingest.NewProcessor(repo, inspSvc, logger.Named("ingest"), m)

	logger.Info("worker started", zap.String("queue", cfg.QueueKey), zap.String("admin_addr", admin.Addr))
	return proc.Run(ctx, q)
}

type checker interface {
	Healthy(ctx context.Context) bool
}

func adminMux(reg *prometheus.Registry, checks ...checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if !c.Healthy(r.Context()) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("degraded\n"))
				return
			}
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
