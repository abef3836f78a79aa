package main

import (
	"context"
	"fmt"
	stlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/synalix-ai/admin-backend/internal/audit"
	"github.com/synalix-ai/admin-backend/internal/backend"
	"github.com/synalix-ai/admin-backend/internal/config"
	consul_client "github.com/synalix-ai/admin-backend/internal/consul"
	"github.com/synalix-ai/admin-backend/internal/handlers"
	authmw "github.com/synalix-ai/admin-backend/internal/middleware"
	nats_client "github.com/synalix-ai/admin-backend/internal/nats"
	"github.com/synalix-ai/admin-backend/internal/orchestrator"
	"github.com/synalix-ai/admin-backend/internal/server"
	"github.com/synalix-ai/admin-backend/internal/storage"
	"github.com/synalix-ai/admin-backend/internal/store"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		stlog.Fatalf("Failed to load configuration: %v", err) // Standard log before Zap is up
	}

	// --- Logger ---
	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		stlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Admin Backend starting up...")

	// --- Consul Client & Service Registration ---
	consulClient, err := consul_client.Connect(cfg.ConsulAddress, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Consul agent", zap.Error(err))
	}

	serviceID := config.GenerateServiceID(cfg.ServiceIDPrefix)
	if err := consul_client.RegisterService(consulClient, cfg, serviceID, logger); err != nil {
		logger.Fatal("Failed to register service with Consul", zap.Error(err))
	}
	logger.Info("Successfully registered service with Consul",
		zap.String("service_name", cfg.ServiceName),
		zap.String("service_id", serviceID),
	)

	// --- Database ---
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer dbCancel()
	dbPool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to create database connection pool", zap.Error(err))
	}
	if err := dbPool.Ping(dbCtx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Successfully connected to PostgreSQL")

	taskStore := store.NewPostgresTaskStore(dbPool, logger)
	if err := taskStore.Initialize(dbCtx); err != nil {
		logger.Fatal("Failed to initialize task store", zap.Error(err))
	}
	auditStore := store.NewPostgresAuditStore(dbPool, logger)
	if err := auditStore.Initialize(dbCtx); err != nil {
		logger.Fatal("Failed to initialize audit store", zap.Error(err))
	}
	refStore := store.NewPostgresRefStore(dbPool, logger)

	// --- NATS Client (audit pipeline) ---
	nc, err := nats_client.Connect(cfg.NatsAddress, logger)
	if err != nil {
		// Audit events fall back to the database when NATS is down.
		logger.Error("Failed to establish initial NATS connection. Audit events will be written directly to the database.", zap.Error(err))
	}
	if nc != nil {
		defer nc.Close()
	}
	var auditPublisher audit.Publisher
	if nc != nil {
		auditPublisher = nc
	}
	auditSink := audit.NewService(auditPublisher, cfg.AuditNatsSubject, auditStore, logger)

	// --- MinIO Client (task logs) ---
	minioClient, err := storage.NewMinioClient(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize MinIO client. Task log retrieval will be unavailable.", zap.Error(err))
	}
	var logFetcher orchestrator.LogFetcher
	if minioClient != nil {
		logFetcher = minioClient
	}

	// --- Compute Backend Client & Orchestrator ---
	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendRequestTimeout, logger)
	orch := orchestrator.New(taskStore, refStore, refStore, backendClient, auditSink, logFetcher, logger)
	taskHandler := handlers.NewTaskHandler(orch, logger)

	// --- Setup Router and HTTP Server ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewStructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// Health Check endpoint (required by Consul registration)
	r.Get(cfg.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
		healthStatus := http.StatusOK
		healthMsg := "Admin Backend is healthy."

		if err := dbPool.Ping(r.Context()); err != nil {
			healthStatus = http.StatusServiceUnavailable
			healthMsg = "Database connection is down."
		} else if nc == nil || nc.Status() != nats.CONNECTED {
			healthMsg += " NATS: degraded (audit falls back to database)."
		} else {
			healthMsg += " NATS: OK."
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(healthStatus)
		fmt.Fprintln(w, healthMsg)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.Authenticator(logger, cfg.JwtSecret))
		r.Mount("/tasks", taskHandler.Routes())
	})

	srv := server.NewServer(cfg, r, logger)

	// --- Start Server Goroutine ---
	go srv.Start()

	// --- Graceful Shutdown & Consul Deregistration ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	if err := consul_client.DeregisterService(consulClient, serviceID, logger); err != nil {
		logger.Error("Error deregistering service from Consul", zap.Error(err))
	} else {
		logger.Info("Successfully deregistered service from Consul")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Stop(ctx)

	if nc != nil {
		logger.Info("Draining NATS connection...")
		if err := nc.Drain(); err != nil {
			logger.Error("Error draining NATS connection", zap.Error(err))
		}
	}

	dbPool.Close()
	logger.Info("Admin Backend gracefully stopped")
}

// setupLogger configures Zap based on the log level string.
func setupLogger(levelString string) (*zap.Logger, error) {
	var logLevel zapcore.Level
	if err := logLevel.Set(levelString); err != nil {
		logLevel = zapcore.InfoLevel // Default to info if parsing fails
	}

	zapCfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(logLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// NewStructuredLogger returns a middleware that logs request details using Zap.
func NewStructuredLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("Request completed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_ip", r.RemoteAddr),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
