/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the staffing ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment config, then apply command-line flag overrides
  2. Build the slog logger
  3. Open the store (SQLite file, SQLite :memory:, or in-process memory)
  4. Seed rate cards from RATE_CARDS_FILE when set
  5. Create API handler, metrics and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -addr    HTTP listen address (APP_ADDR, default :8080)
  -db      Database path (DB_PATH, default staffing.db)
           ":memory:" for an in-memory SQLite database,
           "memory" for the in-process store

ENVIRONMENT:
  APP_ENV, APP_ADDR, DB_PATH, LOG_FORMAT (text|json), RATE_CARDS_FILE,
  READ_TIMEOUT, WRITE_TIMEOUT, RATE_LIMIT_PER_MINUTE, CORS_ORIGINS

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/staffing.db"
  RATE_CARDS_FILE=rates.yaml LOG_FORMAT=json ./server -db=":memory:"

SEE ALSO:
  - config.go: Environment configuration
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

	"github.com/warp/staffing-ledger/api"
	"github.com/warp/staffing-ledger/generic"
	"github.com/warp/staffing-ledger/generic/store"
	"github.com/warp/staffing-ledger/rates"
	"github.com/warp/staffing-ledger/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flags
	addr := flag.String("addr", cfg.AppAddr, "HTTP listen address")
	dbPath := flag.String("db", cfg.DBPath, `database path (":memory:" for in-memory SQLite, "memory" for the in-process store)`)
	flag.Parse()
	cfg.AppAddr = *addr
	cfg.DBPath = *dbPath

	logger := NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	// Initialize store
	backend, closeStore, err := openBackend(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer closeStore()

	if cfg.RateCardsFile != "" {
		if err := seedRateCards(context.Background(), backend, cfg.RateCardsFile); err != nil {
			return fmt.Errorf("seed rate cards: %w", err)
		}
		logger.Info("rate cards loaded", slog.String("file", cfg.RateCardsFile))
	}

	metrics := api.NewMetrics()
	handler := api.NewHandler(backend, generic.SystemClock{}, logger, metrics)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins:     cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Production:         cfg.IsProduction(),
		Metrics:            metrics,
		Logger:             logger,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.AppAddr),
			slog.String("env", cfg.AppEnv),
			slog.String("db", cfg.DBPath),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openBackend selects the store for the given path.
func openBackend(path string) (api.Backend, func() error, error) {
	if path == "memory" {
		return store.NewMemory(), func() error { return nil }, nil
	}
	st, err := sqlite.New(path)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

// seedRateCards loads a YAML rate-card file into the backend.
func seedRateCards(ctx context.Context, backend api.Backend, path string) error {
	dir, err := rates.LoadDirectory(path)
	if err != nil {
		return err
	}
	if st, ok := backend.(*sqlite.Store); ok {
		return st.SeedRateCards(ctx, dir.Employees(), dir.Companies())
	}
	for _, e := range dir.Employees() {
		if err := backend.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}
	for _, c := range dir.Companies() {
		if err := backend.SaveCompany(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
