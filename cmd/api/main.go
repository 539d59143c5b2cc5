// Command api is the farewatch server: it tracks airfare prices for a set of
// watched routes, sweeps them twice a day, and raises SMS alerts when a fare
// is worth buying.
//
// Usage:
//
//	farewatch-api
//	API_PORT=8080 farewatch-api

// @title farewatch API
// @version 1.0.0
// @description Airfare price tracking API: destination watches, price history, quality-score analysis, and alert history.
// @host localhost:5000
// @BasePath /api/v1
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/ygagnon/farewatch/docs" // swagger docs
	"github.com/ygagnon/farewatch/internal/api"
	"github.com/ygagnon/farewatch/internal/cache"
	"github.com/ygagnon/farewatch/internal/config"
	"github.com/ygagnon/farewatch/internal/db"
	"github.com/ygagnon/farewatch/internal/duffel"
	"github.com/ygagnon/farewatch/internal/notify"
	"github.com/ygagnon/farewatch/internal/store"
	"github.com/ygagnon/farewatch/internal/tracker"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	st := store.New(pool.Pool)

	// Flight search client
	flights := duffel.NewClient(cfg.DuffelBaseURL, cfg.DuffelAPIKey, cfg.Airline, cfg.DuffelRPM, logger)

	// SMS sender (nil when Twilio is not configured; alerts are then logged)
	sender := notify.NewTwilioSender(
		cfg.TwilioAccountSID, cfg.TwilioAuthToken,
		cfg.TwilioFromNumber, cfg.TwilioAlertNumber, logger)
	if sender == nil {
		logger.Info("Twilio not configured, SMS alerts are logged only")
	}

	// Price checker: scheduled sweeps + on-demand triggers
	checker, err := tracker.New(st, flights, sender, tracker.Options{
		CheckTimes: cfg.CheckTimes,
		Delay:      cfg.CheckDelay,
		Currency:   config.Currency,
		Airline:    cfg.Airline,
	}, logger)
	if err != nil {
		logger.Error("Failed to create price checker", "error", err)
		os.Exit(1)
	}
	go checker.Start(ctx)
	logger.Info("Price checker scheduled", "times", cfg.CheckTimes)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Create router
	router := api.NewRouter(pool, st, checker, flights, appCache, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting farewatch API",
			"addr", addr,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
