/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the StageCall staffing engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize structured logging
  3. Initialize SQLite store
  4. Wire the fulfillment and timesheet services
  5. Configure HTTP router and the background fill scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080, env PORT)
  -db        SQLite database path (default: staffing.db, env DB_PATH)
             Use ":memory:" for an in-memory database
  -env       Environment name used for log files (default: dev, env APP_ENV)
  -logs      Log directory (default: ./logs, env LOG_DIR)
  -sweep     Enable the background fill scheduler (default: true)
  -auto-fill Let the scheduler commit requests, not just report shortfalls

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the fill scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/staffing.db"

  # Run with in-memory database, scheduler off
  ./server -db=":memory:" -sweep=false

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background fill sweep
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/api"
	"github.com/stagecall/staffing-engine/dispatch"
	"github.com/stagecall/staffing-engine/logging"
	"github.com/stagecall/staffing-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override environment values.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "staffing.db"), "SQLite database path")
	env := flag.String("env", envStr("APP_ENV", "dev"), "Environment name")
	logsDir := flag.String("logs", envStr("LOG_DIR", "logs"), "Log directory")
	sweep := flag.Bool("sweep", true, "Enable the background fill scheduler")
	autoFill := flag.Bool("auto-fill", false, "Let the fill scheduler commit requests")
	flag.Parse()

	logger, err := logging.Init(*env, *logsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	sms := &dispatch.LogDispatcher{Logger: logger}
	bus := dispatch.NewBus()
	fulfillment := dispatch.NewFulfillmentService(store, sms, bus, logger)
	timesheet := dispatch.NewTimesheetService(store, logger)

	handler := api.NewHandler(store, fulfillment, timesheet, logger)
	router := api.NewRouter(handler)

	scheduler := api.NewFillScheduler(store, fulfillment, logger)
	scheduler.Enabled = *sweep
	scheduler.AutoFill = *autoFill
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("addr", fmt.Sprintf("http://localhost:%d/api", *port)),
			zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
