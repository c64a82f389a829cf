package expenses

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/auth"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/errors"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/json"
)

type ExpensesHandler struct {
	service ExpensesService
}

func NewExpensesHandler(svc ExpensesService) *ExpensesHandler {
	return &ExpensesHandler{
		service: svc,
	}
}

func (h *ExpensesHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc, err := auth.FromContext(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Unauthorized access attempt", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrUnauthorized, "Unauthorized access", err))
		return
	}

	slog.DebugContext(ctx, "Creating expense", "account_id", sc.AccountID)

	createExpenseRequest := CreateExpenseRequest{}
	if err := json.Read(r, &createExpenseRequest); err != nil {
		slog.WarnContext(ctx, "Invalid request body", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "Input provided was not in the format expected. Please contact support if this error persists.", err))
		return
	}

	expense, err := h.service.CreateExpense(ctx, sc, &createExpenseRequest)
	if err != nil {
		slog.WarnContext(ctx, "Failed to create expense", "error", err)
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusCreated, expense)
}

func (h *ExpensesHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc, err := auth.FromContext(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Unauthorized access attempt", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrUnauthorized, "Unauthorized access", err))
		return
	}

	statusFilter := r.URL.Query().Get("status")
	slog.DebugContext(ctx, "Listing expenses", "account_id", sc.AccountID, "status", statusFilter)

	expenses, err := h.service.ListExpenses(ctx, sc, statusFilter)
	if err != nil {
		slog.WarnContext(ctx, "Failed to list expenses", "error", err)
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, expenses)
}

func (h *ExpensesHandler) GetExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	expenseID := chi.URLParam(r, "id")
	if expenseID == "" {
		slog.WarnContext(ctx, "Missing expense ID in request")
		errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "Expense ID is required", nil))
		return
	}

	sc, err := auth.FromContext(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Unauthorized access attempt", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrUnauthorized, "Unauthorized access", err))
		return
	}

	expense, err := h.service.GetExpense(ctx, sc, expenseID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to fetch expense", "error", err, "expense_id", expenseID)
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, expense)
}

func (h *ExpensesHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	expenseID := chi.URLParam(r, "id")
	if expenseID == "" {
		slog.WarnContext(ctx, "Missing expense ID in request")
		errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "Expense ID is required", nil))
		return
	}

	sc, err := auth.FromContext(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Unauthorized access attempt", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrUnauthorized, "Unauthorized access", err))
		return
	}

	updateExpenseRequest := UpdateExpenseRequest{}
	if err := json.Read(r, &updateExpenseRequest); err != nil {
		slog.WarnContext(ctx, "Invalid request body", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "Input provided was not in the format expected. Please contact support if this error persists.", err))
		return
	}

	expense, err := h.service.UpdateExpense(ctx, sc, expenseID, &updateExpenseRequest)
	if err != nil {
		slog.WarnContext(ctx, "Failed to update expense", "error", err, "expense_id", expenseID)
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, expense)
}

func (h *ExpensesHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	expenseID := chi.URLParam(r, "id")
	if expenseID == "" {
		slog.WarnContext(ctx, "Missing expense ID in request")
		errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "Expense ID is required", nil))
		return
	}

	sc, err := auth.FromContext(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Unauthorized access attempt", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrUnauthorized, "Unauthorized access", err))
		return
	}

	slog.DebugContext(ctx, "Deleting expense", "account_id", sc.AccountID, "expense_id", expenseID)

	if err := h.service.DeleteExpense(ctx, sc, expenseID); err != nil {
		slog.WarnContext(ctx, "Failed to delete expense", "error", err, "expense_id", expenseID)
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusNoContent, nil)
}

func (h *ExpensesHandler) CategorizeExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := auth.FromContext(ctx); err != nil {
		slog.WarnContext(ctx, "Unauthorized access attempt", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrUnauthorized, "Unauthorized access", err))
		return
	}

	categorizeRequest := CategorizeRequest{}
	if err := json.Read(r, &categorizeRequest); err != nil {
		slog.WarnContext(ctx, "Invalid request body", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "Input provided was not in the format expected. Please contact support if this error persists.", err))
		return
	}

	suggestion, err := h.service.SuggestCategory(ctx, &categorizeRequest)
	if err != nil {
		slog.WarnContext(ctx, "Failed to categorize expense", "error", err)
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, suggestion)
}

func (h *ExpensesHandler) SearchExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc, err := auth.FromContext(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Unauthorized access attempt", "error", err)
		errors.RespondError(w, r, errors.New(errors.ErrUnauthorized, "Unauthorized access", err))
		return
	}

	query := r.URL.Query().Get("q")
	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			errors.RespondError(w, r, errors.New(errors.ErrInvalidInput, "limit must be a non-negative integer", err))
			return
		}
		limit = parsed
	}

	results, err := h.service.SearchExpenses(ctx, sc, query, limit)
	if err != nil {
		slog.WarnContext(ctx, "Failed to search expenses", "error", err)
		errors.RespondError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, results)
}
