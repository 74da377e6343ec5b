package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/portfolio-optimizer/internal/clients/yahoo"
	"github.com/aristath/portfolio-optimizer/internal/config"
	"github.com/aristath/portfolio-optimizer/internal/database"
	"github.com/aristath/portfolio-optimizer/internal/modules/history"
	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
	"github.com/aristath/portfolio-optimizer/internal/modules/optimization"
	"github.com/aristath/portfolio-optimizer/internal/scheduler"
	"github.com/aristath/portfolio-optimizer/internal/server"
	"github.com/aristath/portfolio-optimizer/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting portfolio optimizer")

	// Price cache database
	priceDB, err := marketdata.OpenPriceDB(filepath.Join(cfg.DataDir, "prices.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open price database")
	}
	defer priceDB.Close()

	priceRepo := marketdata.NewPriceRepository(priceDB, log)

	// Analysis history database
	historyDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "history.db"),
		Name: "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	runs, err := history.NewRepository(historyDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history repository")
	}

	// Market data provider: Yahoo Finance behind the SQLite cache
	yahooClient := yahoo.NewClient(log)
	provider := marketdata.NewCachedProvider(
		marketdata.NewYahooProvider(yahooClient, log),
		priceRepo,
		log,
	)

	// Background cache maintenance
	sched := scheduler.New(log)
	maintenanceJob := scheduler.NewCacheMaintenanceJob(priceRepo, provider, 0, log)
	if err := sched.AddJob(cfg.CacheRefreshCron, maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache maintenance job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:                 log,
		Port:                cfg.Port,
		DevMode:             cfg.DevMode,
		DefaultRiskFreeRate: cfg.DefaultRiskFreeRate,
		Provider:            provider,
		Optimizer:           optimization.NewService(log),
		Runs:                runs,
		Validator:           yahoo.NewNativeClient(log),
		PriceRepo:           priceRepo,
		Scheduler:           sched,
		MaintenanceJob:      maintenanceJob,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
