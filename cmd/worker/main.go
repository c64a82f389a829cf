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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/events"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/receipts"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/search"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/storage"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/store"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/telemetry"
)

type Config struct {
	Env          string
	Port         string
	DatabaseURL  string
	NatsURL      string
	TypesenseURL string
	TypesenseKey string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3UseSSL     bool
	CollectorURL string
	EventsConfig *events.EventConfig
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found or could not be loaded")
	}

	handler := slog.NewJSONHandler(os.Stdout, nil)
	logger := slog.New(telemetry.NewTraceHandler(handler))
	slog.SetDefault(logger) // Set global logger

	if err := run(logger); err != nil {
		slog.Error("Application terminated with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := loadConfig()
	logger.Info("Starting Expense Worker", "env", cfg.Env)

	var tracerShutdown func(context.Context) error
	if cfg.CollectorURL != "" {
		shutdown, err := telemetry.InitTracer("expense-worker", cfg.CollectorURL)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		tracerShutdown = shutdown
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping db: %w", err)
	}

	provider, err := storage.NewMinioProvider(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL)
	if err != nil {
		return fmt.Errorf("failed to connect to object storage: %w", err)
	}

	bus, err := events.NewNATSBus(cfg.NatsURL, "expense-worker", logger)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}

	index := search.NewTypesenseIndex(cfg.TypesenseURL, cfg.TypesenseKey)
	if err := index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to prepare search collection: %w", err)
	}

	repo := store.NewPostgresRepository(dbPool)
	scanner := receipts.NewScanner(provider, repo, logger)
	indexer := search.NewService(index, repo, logger)

	reader := events.NewEventReader(bus, cfg.EventsConfig, logger)

	// Start Subscriptions
	// This starts the background workers processing messages
	err = reader.SubscribeToExpenseRecordedEvents(func(evt events.ExpenseRecordedEvent) error {
		// Bridge the event payload to the service logic
		return indexer.IndexExpense(context.Background(), evt.AccountID, evt.ExpenseID)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to recorded events: %w", err)
	}

	err = reader.SubscribeToExpenseDeletedEvents(func(evt events.ExpenseDeletedEvent) error {
		return indexer.RemoveExpense(context.Background(), evt.ExpenseID)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to deleted events: %w", err)
	}

	err = reader.SubscribeToReceiptScanEvents(func(evt events.ReceiptScanEvent) error {
		return scanner.VerifyReceipt(context.Background(), evt)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to scan events: %w", err)
	}

	logger.Info("Worker is running and listening for events...")

	// Health Check Server (for orchestrators)
	// Run in a goroutine so it doesn't block
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: healthHandler(dbPool, index),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server failed", "error", err)
		}
	}()

	// Graceful Shutdown Handler
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info("Shutting down worker...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// A. Stop accepting HTTP health checks
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health server shutdown error", "error", err)
	}

	// B. Drain NATS so an in-flight scan or index job finishes
	// instead of being killed halfway through
	if err := bus.Drain(); err != nil {
		logger.Error("NATS drain error", "error", err)
	}

	// C. Close DB Pool (handled by defer, but explicit here for clarity order)
	dbPool.Close()

	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", "error", err)
		}
	}

	logger.Info("Shutdown complete.")
	return nil
}

func loadConfig() Config {
	// Helper to get env with fallback
	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	return Config{
		Env:          get("WORKER_ENV", "production"),
		Port:         get("WORKER_PORT", "8081"),
		DatabaseURL:  os.Getenv("DB_DSN"),
		NatsURL:      os.Getenv("NATS_ENDPOINT"),
		TypesenseURL: os.Getenv("TYPESENSE_URL"),
		TypesenseKey: os.Getenv("TYPESENSE_API_KEY"),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3AccessKey:  os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:  os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3UseSSL:     os.Getenv("S3_USE_SSL") == "true",
		CollectorURL: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EventsConfig: events.NewEventConfig(),
	}
}

// healthHandler provides a simple /healthz endpoint
func healthHandler(db *pgxpool.Pool, index *search.TypesenseIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
			return
		}

		if err := index.HealthCheck(ctx); err != nil {
			http.Error(w, "Search engine unavailable", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
