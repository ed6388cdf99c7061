/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the credit line engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Select the store: in-memory by default, SQLite when -db is set
  3. Create the engine, audit recorder, and API handler
  4. Configure the HTTP router
  5. Start the server with graceful shutdown

COMMAND-LINE FLAGS (env fallback in parentheses):
  -port         HTTP server port (PORT, default 8080)
  -db           SQLite database path (DB_PATH); empty = in-memory store
  -api-key      Service API key (API_KEY); empty disables auth
  -admin-key    Admin API key (ADMIN_API_KEY)
  -log-level    Log level (LOG_LEVEL, default "info")
  -cors-origins Comma-separated allowed origins (CORS_ORIGINS)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # In-memory store, no auth (dev)
  ./server

  # Durable ledger with auth
  ./server -db=./data/credit.db -api-key=svc-key -admin-key=adm-key

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Durable store
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/credit-engine/api"
	"github.com/warp/credit-engine/audit"
	"github.com/warp/credit-engine/creditline"
	memstore "github.com/warp/credit-engine/creditline/store"
	"github.com/warp/credit-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override it.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", os.Getenv("DB_PATH"), "SQLite database path (empty = in-memory store)")
	apiKey := flag.String("api-key", os.Getenv("API_KEY"), "service API key (empty disables auth)")
	adminKey := flag.String("admin-key", os.Getenv("ADMIN_API_KEY"), "admin API key")
	logLevel := flag.String("log-level", envStr("LOG_LEVEL", "info"), "log level")
	corsOrigins := flag.String("cors-origins", os.Getenv("CORS_ORIGINS"), "comma-separated allowed CORS origins")
	flag.Parse()

	log := api.NewLogger(*logLevel)

	// Select the store. The core never requires durability; SQLite is for
	// deployments that want the ledger to survive a restart.
	var (
		store     creditline.Store
		auditSink audit.Sink
	)
	if *dbPath != "" {
		sqlStore, err := sqlite.New(*dbPath)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize database")
		}
		defer sqlStore.Close()
		store = sqlStore
		auditSink = sqlStore
		log.WithField("path", *dbPath).Info("using sqlite store")
	} else {
		store = memstore.NewMemory()
		auditSink = audit.NewLogSink(log)
		log.Info("using in-memory store")
	}

	engine := creditline.NewEngine(store)
	recorder := audit.NewRecorder(auditSink, log)
	handler := api.NewHandler(engine, recorder, log)

	router := api.NewRouter(handler, api.RouterConfig{
		Keys:           api.Keys{Service: *apiKey, Admin: *adminKey},
		AllowedOrigins: splitOrigins(*corsOrigins),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server stopped")
}

// splitOrigins turns a comma-separated origin list into a slice, dropping
// empty segments. An empty result selects the router's dev defaults.
func splitOrigins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
