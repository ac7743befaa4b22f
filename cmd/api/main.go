package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"fxrate-service/internal/adapter/postgres"
	"fxrate-service/internal/handler"
	"fxrate-service/internal/metrics"
	"fxrate-service/internal/service"
	"fxrate-service/internal/usecase"
	"fxrate-service/pkg/config"
	"fxrate-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log := logger.Init(cfg.Log.Level)

	log.Info("Starting app...")

	if cfg.Migrations.Enabled {
		if err := postgres.RunMigrations(*cfg, log); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.InitDBPool(ctx, *cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize db pool: %v", err)
	}
	defer dbPool.Close()

	db := postgres.NewPostgresRepo(dbPool, log)
	log.Info("Initialized database pool")

	rateMetrics := metrics.NewRateMetrics(prometheus.DefaultRegisterer)

	registry := service.NewRegistry(db, service.NewClientFactory(cfg.Providers, log), cfg.Providers, rateMetrics, log)
	resolver := service.NewResolver(db, db, registry, cfg.Resolver.MaxConcurrency, rateMetrics, log)
	assembler := service.NewAssembler(db, db, registry, cfg.Resolver.MaxConcurrency, rateMetrics, log)
	backfill := service.NewBackfill(db, db, registry, rateMetrics, log)
	log.WithField("sandbox_mode", cfg.Providers.SandboxMode).Info("Initialized service layer")

	rateUsecase := usecase.NewCurrencyUsecase(resolver, assembler, db, log)
	log.Info("Initialized usecase layer")

	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handler.NewRouter(handler.NewCurrencyHandler(rateUsecase, log), handler.DefaultMetricsHandler(), log)

	// task scheduler
	c := cron.New()
	if cfg.Backfill.Enabled {
		_, err = c.AddFunc(cfg.Backfill.Schedule, func() {
			log.Info("Loading recent historical rates...")
			report, err := backfill.LoadRecent(ctx, cfg.Backfill.LookbackDays)
			if err != nil {
				log.WithError(err).Error("Scheduled historical load failed")
				return
			}
			log.WithField("provider", report.Provider).WithField("stored", report.Stored).Info("Scheduled historical load done")
		})
		if err != nil {
			log.Fatalf("Failed to schedule historical load: %v", err)
		}
		c.Start()
		log.WithField("schedule", cfg.Backfill.Schedule).Info("Scheduler initialized")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server starting on port %s...", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("Got shutdown signal...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error on server shutdown")
	}
	log.Info("Server stopped")

	<-c.Stop().Done()
	log.Info("Scheduler stopped")

	log.Info("Gracefully shut down")
}
