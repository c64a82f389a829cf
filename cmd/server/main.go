package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/auth"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/cache"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/categorize"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/events"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/handlers/uploads"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/search"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/storage"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/telemetry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found or could not be loaded")
	}

	// Use JSON traced logging
	baseHandler := slog.NewJSONHandler(os.Stdout, nil)
	logger := slog.New(telemetry.NewTraceHandler(baseHandler))
	slog.SetDefault(logger)

	var tracerShutdown func(context.Context) error
	if collectorURL := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); collectorURL != "" {
		shutdown, err := telemetry.InitTracer("expense-api", collectorURL)
		if err != nil {
			slog.Error("Failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		tracerShutdown = shutdown
	}

	config := config{
		events:                       events.NewEventConfig(),
		frontend:                     os.Getenv("DOMAIN_NAME"),
		addr:                         ":" + os.Getenv("API_PORT"),
		authMode:                     authModeFromEnv(),
		receiptConstraint:            uploads.ReceiptConstraint(),
		receiptValidationWindowHours: 1,
	}

	poolSize, _ := strconv.Atoi(os.Getenv("REDIS_POOL_SIZE"))
	minIdleConns, _ := strconv.Atoi(os.Getenv("REDIS_MIN_IDLE_CONNS"))

	cacheCfg := cache.Config{
		Addr:         os.Getenv("REDIS_ADDR"),
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
	}
	slog.Info("Connecting to Redis cache", "addr", cacheCfg.Addr)
	rdb, err := cache.NewRedisClient(cacheCfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	dsn := os.Getenv("DB_DSN")
	slog.Info("Connecting to database")
	conn, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	slog.Info("Connecting to object storage", "endpoint", os.Getenv("S3_ENDPOINT"))
	storageProvider, err := storage.NewMinioProvider(
		os.Getenv("S3_ENDPOINT"),
		os.Getenv("S3_ACCESS_KEY_ID"),
		os.Getenv("S3_SECRET_ACCESS_KEY"),
		os.Getenv("S3_USE_SSL") == "true",
	)
	if err != nil {
		slog.Error("Failed to initialize MinIO provider", "error", err)
		os.Exit(1)
	}

	slog.Info("Connecting to event bus", "endpoint", os.Getenv("NATS_ENDPOINT"))
	eventBus, err := events.NewNATSBus(os.Getenv("NATS_ENDPOINT"), "expense-api", logger)
	if err != nil {
		slog.Error("Failed to initialize event bus", "error", err)
		os.Exit(1)
	}

	index := search.NewTypesenseIndex(os.Getenv("TYPESENSE_URL"), os.Getenv("TYPESENSE_API_KEY"))

	categorizer := categorize.NewCachedCategorizer(
		categorize.NewClient(
			os.Getenv("INFERENCE_URL"),
			os.Getenv("INFERENCE_API_KEY"),
			os.Getenv("INFERENCE_MODEL"),
			logger,
		),
		rdb,
		logger,
	)

	var authenticator *auth.Authenticator
	if config.authMode == authModeBearer {
		issuerURL := os.Getenv("AUTHORIZATION_URL")
		clientID := os.Getenv("AUTHORIZATION_CLIENT_ID")
		slog.Info("Connecting to authorization service", "url", issuerURL)

		verifier, err := auth.NewOIDCVerifier(context.Background(), issuerURL, clientID)
		if err != nil {
			slog.Error("Failed to initialize token verifier", "error", err)
			os.Exit(1)
		}
		authenticator = auth.NewAuthenticator(verifier)
	} else {
		slog.Info("Running behind a trusted edge, using pre-validated claims")
	}

	app := &application{
		conn:           conn,
		config:         config,
		authenticator:  authenticator,
		eventBus:       eventBus,
		storage:        storageProvider,
		index:          index,
		categorizer:    categorizer,
		logger:         logger,
		cache:          rdb,
		tracerShutdown: tracerShutdown,
	}

	if err := app.run(app.mount()); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}

const (
	authModeBearer = "bearer"
	authModeEdge   = "edge"
)

func authModeFromEnv() string {
	switch os.Getenv("AUTH_MODE") {
	case authModeEdge:
		return authModeEdge
	default:
		return authModeBearer
	}
}
