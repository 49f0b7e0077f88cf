package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/coursehub/paygate/gateway"
	"github.com/coursehub/paygate/handler"
	"github.com/coursehub/paygate/infra/config"
	"github.com/coursehub/paygate/infra/logger"
	"github.com/coursehub/paygate/infra/middle"
	"github.com/coursehub/paygate/infra/opensearch"
	"github.com/coursehub/paygate/infra/response"
	"github.com/coursehub/paygate/order"
	"github.com/coursehub/paygate/router"
	"github.com/coursehub/paygate/store"
)

var auditLogger *opensearch.AuditLogger

func init() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := config.GetAppConfig()
	logger.InitGlobalLogger(config.GetEnv("ENVIRONMENT", "development"), cfg.LoggingLevel)

	if cfg.EnableAuditLog {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			logger.Warn("failed to initialize opensearch client, continuing without audit logging", logger.LogContext{
				Fields: map[string]any{"error": err.Error()},
			})
		} else {
			auditLogger = opensearch.NewAuditLogger(osClient)
			logger.Info("audit logging initialized")
		}
	} else {
		logger.Info("audit logging is disabled")
	}
}

func main() {
	cfg := config.GetAppConfig()

	if cfg.EncryptKey == "" {
		logger.Fatal("ENCRYPT_KEY is required", nil)
	}

	orderStore, err := store.NewStore(cfg.DBPath, cfg.EncryptKey)
	if err != nil {
		logger.Fatal("failed to open order store", err)
	}
	defer orderStore.Close()

	orderService := order.NewService(gateway.DefaultRegistry, orderStore, cfg.Environment, auditLogger)

	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.RequestValidationMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint (no auth required)
	healthHandler := handler.NewHealthHandler(orderStore)
	r.Get("/health", healthHandler.Health)

	// API routes with authentication
	r.Group(func(r chi.Router) {
		router.Routes(r, orderService, cfg.DefaultDriver)
	})

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusNotFound, response.Response{Success: false, Message: "Not Found"})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server starting", logger.LogContext{
			Fields: map[string]any{
				"port":        cfg.Port,
				"environment": string(cfg.Environment),
				"drivers":     gateway.DefaultRegistry.DriverNames(),
			},
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", err)
		return
	}
	logger.Info("server stopped")
}
