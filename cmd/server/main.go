/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize structured logging
  3. Initialize SQLite store
  4. Load tax tables and severance formula
  5. Create API handler and router
  6. Start the accrual scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the accrual scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run with in-memory database and token auth
  JWT_SECRET=change-me ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Every environment key
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/store/sqlite"
)

// severanceDaysPerYear is the statutory minimum: one week per completed
// year of service.
const severanceDaysPerYear = 7

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	org := generic.OrganizationID(cfg.DefaultOrganization)
	currency := generic.NewCurrency(cfg.CurrencyCode, cfg.CurrencyPrecision)
	pf := factory.NewPolicyFactory(org)
	taxRules, err := pf.ParseTaxRules(factory.SouthAfrica2025JSON(), currency)
	if err != nil {
		return fmt.Errorf("load tax tables: %w", err)
	}
	severance, err := pf.ParseSeverance(factory.SeverancePerYearJSON(severanceDaysPerYear))
	if err != nil {
		return fmt.Errorf("load severance formula: %w", err)
	}

	handler := api.NewHandler(store, api.Options{
		Currency:            currency,
		Tax:                 taxRules,
		Severance:           severance,
		StandardDayHours:    cfg.StandardDayHours,
		MaxHoursPerLine:     cfg.MaxHoursPerLine,
		HighLeavePayoutDays: cfg.HighLeavePayoutDays,
		TaxYearStartMonth:   cfg.TaxYearStartMonth,
		PayrunWorkers:       cfg.PayrunWorkers,
		Logger:              logger,
	})
	if err := handler.RefreshCalendar(context.Background(), org); err != nil {
		logger.Warn("failed to load calendar", "organization", org, "error", err)
	}

	routerOpts := api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		JWTSecret:   cfg.JWTSecret,
		DefaultOrg:  org,
		Logger:      logger,
	}
	if cfg.RateLimit != "" {
		rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("parse RATE_LIMIT: %w", err)
		}
		routerOpts.Limiter = limiter.New(memory.NewStore(), rate)
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty; actors are taken from request headers")
	}

	// Create router
	router := api.NewRouter(handler, routerOpts)

	scheduler := api.NewAccrualScheduler(handler, []generic.OrganizationID{org}, logger)
	scheduler.CheckInterval = cfg.AccrualInterval
	scheduler.Enabled = cfg.AccrualInterval > 0
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", *dbPath, "organization", org)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
