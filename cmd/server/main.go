/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the IT/PEI review registry server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, YAML, ITPEI_* env, flags)
  2. Open the history store (SQLite, Postgres or memory)
  3. Load the unit catalog
  4. Create API handler and router
  5. Start maintenance scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config       YAML configuration file
  -addr/-port   Listen address (default :8080)
  -driver       sqlite | postgres | memory (default sqlite)
  -db           SQLite database path (default itpei.db)
                Use ":memory:" for in-memory database
  -dsn          Postgres DSN
  -log-level    debug | info | warn | error
  -log-format   text | json

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown_timeout)
  3. Stop the scheduler and close the database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/itpei.db"

  # Run against Postgres
  ITPEI_DRIVER=postgres DATABASE_URL="postgres://..." ./server

  # Run with a config file, JSON logs
  ./server -config=itpei.yaml -log-format=json

SEE ALSO:
  - config/config.go: Every setting and its environment variable
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Database implementations
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ceplan/itpei/api"
	"github.com/ceplan/itpei/config"
	"github.com/ceplan/itpei/record"
	"github.com/ceplan/itpei/record/store"
	"github.com/ceplan/itpei/store/postgres"
	"github.com/ceplan/itpei/store/sqlite"
	"github.com/ceplan/itpei/store/sqlstore"
	"github.com/ceplan/itpei/units"
)

// backend is what the server needs from a storage driver.
type backend interface {
	record.Gateway
	units.Store
}

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	log := cfg.Logger(os.Stderr)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, ping, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer closeDB()

	catalog, err := units.NewCatalog(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to load units: %w", err)
	}
	if catalog.Directory().Len() == 0 {
		log.Warn("no executing units loaded; add them with POST /api/units")
	}

	// Initialize handler
	handler := api.NewHandler(db, catalog, log)
	handler.Ping = ping
	handler.Driver = cfg.Driver

	scheduler := api.NewMaintenanceScheduler(handler)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler, api.Options{
		CORSOrigins: cfg.CORSOrigins,
		SubmitRate:  cfg.SubmitRate,
		SubmitBurst: cfg.SubmitBurst,
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Addr, "driver", cfg.Driver, "units", catalog.Directory().Len())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// openStore returns the configured backend, its health check and its
// cleanup.
func openStore(ctx context.Context, cfg config.Config) (backend, func(context.Context) error, func() error, error) {
	var (
		s   *sqlstore.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		return store.NewMemory(), nil, func() error { return nil }, nil
	case config.DriverPostgres:
		s, err = postgres.New(ctx, cfg.PostgresDSN)
	default:
		s, err = sqlite.New(cfg.SQLitePath)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return s, s.Ping, s.Close, nil
}
