package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/auth"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/cache"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/categorize"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/events"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/handlers/expenses"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/handlers/uploads"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/idempotency"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/search"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/storage"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/store"
)

type application struct {
	config         config
	conn           *pgxpool.Pool
	cache          *cache.RedisClient
	authenticator  *auth.Authenticator
	storage        storage.Provider
	eventBus       events.Bus
	index          search.Index
	categorizer    categorize.Categorizer
	logger         *slog.Logger
	tracerShutdown func(context.Context) error
}

type config struct {
	events                       *events.EventConfig
	frontend                     string
	addr                         string
	authMode                     string
	receiptConstraint            uploads.FileConstraint
	receiptValidationWindowHours int
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{app.config.frontend},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Idempotency-Key", auth.EdgeClaimsHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	slog.Info("Allowed origins", "origin", app.config.frontend)

	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	idempotencyStore := idempotency.NewStore(app.cache)

	repo := store.NewPostgresRepository(app.conn)
	eventHandler := events.NewEventHandler(app.eventBus, app.config.events, app.logger)

	uploadService := uploads.NewUploadService(app.storage, app.config.receiptValidationWindowHours, app.config.receiptConstraint)
	uploadHandler := uploads.NewUploadHandler(uploadService)

	expensesService := expenses.NewExpensesService(repo, app.cache, app.storage, app.categorizer, app.index, eventHandler, app.logger)
	expensesHandler := expenses.NewExpensesHandler(expensesService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Recoverer)

		// Authenticated routes
		switch app.config.authMode {
		case authModeEdge:
			r.Use(auth.EdgeClaimsAdapter)
			r.Use(auth.RequireEdgeClaims)
		default:
			r.Use(app.authenticator.Middleware)
		}

		// Idempotency keys are scoped per account, so this sits behind auth.
		r.Use(idempotency.Idempotency(idempotencyStore))

		r.Post("/receipts/presign", uploadHandler.PresignReceipt)

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", expensesHandler.CreateExpense)
			r.Get("/", expensesHandler.ListExpenses)
			r.Post("/categorize", expensesHandler.CategorizeExpense)
			r.Get("/search", expensesHandler.SearchExpenses)
			r.Get("/{id}", expensesHandler.GetExpense)
			r.Put("/{id}", expensesHandler.UpdateExpense)
			r.Delete("/{id}", expensesHandler.DeleteExpense)
		})

		r.Get("/authenticated", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("you are authenticated!"))
		})
	})

	return r
}

func (app *application) run(h http.Handler) error {
	svr := &http.Server{
		Addr:         app.config.addr,
		Handler:      h,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute * 1,
	}

	slog.Info("Starting server on " + app.config.addr)
	go func() {
		if err := svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// Block until interrupted (Ctrl+C or docker stop)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	// Give in-flight requests a deadline to finish
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := svr.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	// Drain NATS rather than close it, so queued publishes still flush
	if err := app.eventBus.Drain(); err != nil {
		slog.Error("NATS drain failed", "error", err)
		return err
	}

	app.conn.Close()

	if err := app.cache.Close(); err != nil {
		slog.Error("Redis close failed", "error", err)
		return err
	}

	if app.tracerShutdown != nil {
		if err := app.tracerShutdown(ctx); err != nil {
			slog.Warn("Tracer shutdown failed", "error", err)
		}
	}

	slog.Info("Server exited cleanly")
	return nil
}
