package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fxrate-service/internal/adapter/postgres"
	"fxrate-service/internal/entity"
	"fxrate-service/internal/service"
	"fxrate-service/pkg/config"
	"fxrate-service/pkg/logger"
)

const usage = `usage: backfill <command> [flags]

commands:
  migrate                              apply pending database migrations
  load-currencies                      import the currency list from the first capable provider
  set-historical [-disable] CODE...    flag currencies for the historical load
  load-historical -from DATE [-to DATE] load rates between flagged currencies (YYYY-MM-DD)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log := logger.Init(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.InitDBPool(ctx, *cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize db pool: %v", err)
	}
	defer dbPool.Close()

	db := postgres.NewPostgresRepo(dbPool, log)
	registry := service.NewRegistry(db, service.NewClientFactory(cfg.Providers, log), cfg.Providers, nil, log)
	backfill := service.NewBackfill(db, db, registry, nil, log)

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "migrate":
		if err := postgres.RunMigrations(*cfg, log); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}

	case "load-currencies":
		inserted, err := backfill.LoadCurrencies(ctx)
		if err != nil {
			log.Fatalf("Failed to load currencies: %v", err)
		}
		log.WithField("inserted", inserted).Info("Currency list loaded")

	case "set-historical":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		disable := fs.Bool("disable", false, "clear the flag instead of setting it")
		_ = fs.Parse(args)
		if fs.NArg() == 0 {
			log.Fatal("set-historical needs at least one currency code")
		}
		updated, unknown, err := backfill.SetLoadHistorical(ctx, fs.Args(), !*disable)
		if err != nil {
			log.Fatalf("Failed to update currencies: %v", err)
		}
		if len(unknown) > 0 {
			log.Warnf("Unknown currencies: %s", strings.Join(unknown, ", "))
		}
		log.WithField("updated", updated).Info("Historical flag updated")

	case "load-historical":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		from := fs.String("from", "", "first valuation date, YYYY-MM-DD")
		to := fs.String("to", "", "last valuation date, YYYY-MM-DD (default today)")
		_ = fs.Parse(args)

		start, err := time.Parse(entity.DateLayout, *from)
		if err != nil {
			log.Fatalf("Invalid -from date %q", *from)
		}
		end := entity.Day(time.Now())
		if *to != "" {
			if end, err = time.Parse(entity.DateLayout, *to); err != nil {
				log.Fatalf("Invalid -to date %q", *to)
			}
		}

		report, err := backfill.LoadHistorical(ctx, start, end)
		if err != nil {
			log.Fatalf("Historical load failed: %v", err)
		}
		log.WithField("provider", report.Provider).
			WithField("stored", report.Stored).
			WithField("failed", report.Failed).
			Info("Historical load complete")

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
