package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/parpass/parpass-backend/shared/monitoring"
	"github.com/parpass/parpass-backend/shared/utils"
	v1 "github.com/parpass/parpass-backend/v1"
	v1handlers "github.com/parpass/parpass-backend/v1/handlers"
	v1middleware "github.com/parpass/parpass-backend/v1/middleware"
	v1services "github.com/parpass/parpass-backend/v1/services"
)

func main() {
	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	utils.SetupLogging(utils.GetEnvOrDefault("LOG_FORMAT", "json"), utils.GetEnvOrDefault("LOG_LEVEL", "info"))

	slog.Info("Starting ParPass Backend initialization")

	// Initialize metrics
	if err := monitoring.Initialize(monitoring.DefaultConfig("parpass-backend")); err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	// Initialize GORM database connection
	dbConfig := v1.NewDatabaseConfig()
	gormDB, err := v1.ConnectGormDB(dbConfig)
	if err != nil {
		slog.Error("Failed to connect to GORM database", "error", err)
		os.Exit(1)
	}

	// Push gateway client
	pushGatewayURL := utils.GetEnvOrDefault("EXPO_PUSH_URL", "https://exp.host")
	pushClient := v1services.NewExpoPushClient(pushGatewayURL)

	// Initialize V1 handlers
	v1Handler := v1handlers.NewV1Handler(gormDB, pushClient)

	// Create a mux for API routes
	apiMux := http.NewServeMux()
	v1Handler.SetupV1Routes(apiMux) // All /api/... routes go here

	// Middleware chain: CORS then HTTP metrics, API routes only
	corsMiddleware := v1middleware.CORSMiddleware()
	apiHandler := corsMiddleware(monitoring.HTTPMetricsMiddleware(apiMux))

	// Create the MAIN (top-level) mux for all incoming traffic
	topLevelMux := http.NewServeMux()

	topLevelMux.Handle("/health", utils.PanicRecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type DBHealth struct {
			Status   string `json:"status"`
			Error    string `json:"error,omitempty"`
			Database string `json:"database,omitempty"`
		}
		type HealthStatus struct {
			Status   string   `json:"status"`
			Service  string   `json:"service"`
			Database DBHealth `json:"database"`
		}

		status := HealthStatus{
			Status:   "healthy",
			Service:  "parpass-backend",
			Database: DBHealth{Status: "unknown"},
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sqlDB, err := gormDB.DB()
		if err != nil {
			status.Database = DBHealth{Status: "unhealthy", Error: fmt.Sprintf("failed to get sql.DB: %v", err)}
			status.Status = "unhealthy"
		} else if err := sqlDB.PingContext(ctx); err != nil {
			status.Database = DBHealth{Status: "unhealthy", Error: err.Error()}
			status.Status = "unhealthy"
		} else {
			status.Database = DBHealth{Status: "healthy", Database: dbConfig.Database}
		}

		statusCode := http.StatusOK
		if status.Status != "healthy" {
			statusCode = http.StatusServiceUnavailable
		}

		utils.RespondWithJSON(w, statusCode, status)
	})))

	// Prometheus scrape endpoint
	topLevelMux.Handle("/metrics", monitoring.Handler())

	// All traffic to /api/ (and its sub-paths) passes through the middleware chain
	topLevelMux.Handle("/api/", apiHandler)

	// Start server
	serverConfig := utils.DefaultServerConfig()
	server := utils.CreateServer(serverConfig, topLevelMux)

	// Start server in a goroutine
	go func() {
		slog.Info("ParPass Backend starting", "port", serverConfig.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start ParPass Backend", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down ParPass Backend...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Gracefully close database connection
	if sqlDB, err := gormDB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}

	slog.Info("ParPass Backend exited")
}
