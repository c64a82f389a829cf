package expenses

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/auth"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/cache"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/categorize"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/errors"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/events"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/search"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/storage"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/store"
)

const (
	receiptURLExpiry = 10 * time.Minute
	listCacheTTL     = 60 * time.Second

	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type ExpensesService interface {
	CreateExpense(ctx context.Context, sc auth.SecurityContext, req *CreateExpenseRequest) (*ExpenseResponse, error)
	GetExpense(ctx context.Context, sc auth.SecurityContext, expenseID string) (*ExpenseResponse, error)
	ListExpenses(ctx context.Context, sc auth.SecurityContext, statusFilter string) ([]ExpenseResponse, error)
	UpdateExpense(ctx context.Context, sc auth.SecurityContext, expenseID string, req *UpdateExpenseRequest) (*ExpenseResponse, error)
	DeleteExpense(ctx context.Context, sc auth.SecurityContext, expenseID string) error
	SuggestCategory(ctx context.Context, req *CategorizeRequest) (*categorize.Suggestion, error)
	SearchExpenses(ctx context.Context, sc auth.SecurityContext, query string, limit int) ([]search.ExpenseDocument, error)
}

type svc struct {
	repo         store.Repository
	cache        *cache.RedisClient
	storage      storage.Provider
	categorizer  categorize.Categorizer
	index        search.Index
	eventHandler *events.EventHandler
	logger       *slog.Logger
}

func NewExpensesService(
	repo store.Repository,
	cacheClient *cache.RedisClient,
	storageProvider storage.Provider,
	categorizer categorize.Categorizer,
	index search.Index,
	eventHandler *events.EventHandler,
	logger *slog.Logger,
) ExpensesService {
	return &svc{
		repo:         repo,
		cache:        cacheClient,
		storage:      storageProvider,
		categorizer:  categorizer,
		index:        index,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

func (s *svc) CreateExpense(ctx context.Context, sc auth.SecurityContext, req *CreateExpenseRequest) (*ExpenseResponse, error) {
	traceID := traceIDFromContext(ctx)

	s.logger.InfoContext(ctx, "Creating expense", "account_id", sc.AccountID, "merchant", req.Merchant)
	if err := req.Validate(sc.AccountID); err != nil {
		s.logger.WarnContext(ctx, "Validation failed", "error", err)
		return nil, err
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = "usd"
	}

	receiptStatus := store.ReceiptNone
	if req.ReceiptKey != "" {
		receiptStatus = store.ReceiptPending
	}

	expense := store.Expense{
		ID:            uuid.New().String(),
		AccountID:     sc.AccountID,
		SubmittedBy:   sc.UserID,
		Merchant:      req.Merchant,
		Description:   req.Description,
		Category:      req.Category,
		AmountMinUnit: req.AmountMinUnit,
		Currency:      currency,
		Status:        store.StatusPending,
		ReceiptKey:    req.ReceiptKey,
		ReceiptStatus: receiptStatus,
		IncurredAt:    req.IncurredAt,
	}

	if err := s.repo.Create(ctx, &expense); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create expense", "error", err)
		return nil, errors.New(errors.ErrInternal, "Failed to record expense. Please try again later.", fmt.Errorf("failed to create expense: %w", err))
	}

	s.invalidateListCache(ctx, sc.AccountID)

	// Note: if publishing fails the record still exists; the search
	// index catches up on the next write and a receipt stays pending
	// until a scan event lands.
	if err := s.eventHandler.RaiseExpenseRecordedEvent(events.ExpenseRecordedEvent{
		ExpenseID: expense.ID,
		AccountID: expense.AccountID,
		TraceID:   traceID,
	}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense recorded event",
			"expense_id", expense.ID, "trace_id", traceID, "error", err)
	}

	if expense.ReceiptKey != "" {
		s.raiseReceiptScan(ctx, expense, traceID)
	}

	response := toResponse(expense, nil)
	return &response, nil
}

func (s *svc) GetExpense(ctx context.Context, sc auth.SecurityContext, expenseID string) (*ExpenseResponse, error) {
	expense, err := s.repo.GetByID(ctx, sc.AccountID, expenseID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.New(errors.ErrNotFound, "Expense not found", err)
		}
		return nil, errors.New(errors.ErrInternal, "Unable to load expense", err)
	}

	var receiptURL *string
	if expense.ReceiptStatus == store.ReceiptVerified && expense.ReceiptKey != "" {
		signedURL, err := s.storage.PresignGet(ctx, storage.BucketReceipts, expense.ReceiptKey, receiptURLExpiry)
		if err != nil {
			// The record is still useful without the link.
			s.logger.WarnContext(ctx, "Failed to presign receipt", "expense_id", expense.ID, "error", err)
		} else {
			receiptURL = &signedURL
		}
	}

	response := toResponse(*expense, receiptURL)
	return &response, nil
}

func (s *svc) ListExpenses(ctx context.Context, sc auth.SecurityContext, statusFilter string) ([]ExpenseResponse, error) {
	filter := store.ListFilter{}
	if statusFilter != "" {
		status, ok := store.ParseStatus(statusFilter)
		if !ok {
			return nil, errors.New(errors.ErrInvalidInput, "Unknown status filter", nil)
		}
		filter.Status = status
	}

	cacheKey := listCacheKey(sc.AccountID, statusFilter)
	if cached, found, err := cache.Get[[]ExpenseResponse](s.cache, ctx, cacheKey); err != nil {
		s.logger.WarnContext(ctx, "List cache read failed", "error", err)
	} else if found {
		return *cached, nil
	}

	rows, err := s.repo.List(ctx, sc.AccountID, filter)
	if err != nil {
		return nil, errors.New(errors.ErrInternal, "Unable to list expenses", err)
	}

	response := make([]ExpenseResponse, len(rows))
	for i, row := range rows {
		response[i] = toResponse(row, nil)
	}

	if err := cache.Set(s.cache, ctx, cacheKey, response, listCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "List cache write failed", "error", err)
	}

	return response, nil
}

func (s *svc) UpdateExpense(ctx context.Context, sc auth.SecurityContext, expenseID string, req *UpdateExpenseRequest) (*ExpenseResponse, error) {
	traceID := traceIDFromContext(ctx)

	expense, err := s.repo.GetByID(ctx, sc.AccountID, expenseID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.New(errors.ErrNotFound, "Expense not found", err)
		}
		return nil, errors.New(errors.ErrInternal, "Unable to load expense", err)
	}

	receiptChanged, appErr := req.apply(expense)
	if appErr != nil {
		s.logger.WarnContext(ctx, "Validation failed", "error", appErr)
		return nil, appErr
	}

	if err := s.repo.Update(ctx, expense); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.New(errors.ErrNotFound, "Expense not found", err)
		}
		s.logger.ErrorContext(ctx, "Failed to update expense", "error", err, "expense_id", expenseID)
		return nil, errors.New(errors.ErrInternal, "Failed to update expense. Please try again later.", err)
	}

	s.invalidateListCache(ctx, sc.AccountID)

	if err := s.eventHandler.RaiseExpenseRecordedEvent(events.ExpenseRecordedEvent{
		ExpenseID: expense.ID,
		AccountID: expense.AccountID,
		TraceID:   traceID,
	}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense recorded event",
			"expense_id", expense.ID, "trace_id", traceID, "error", err)
	}

	if receiptChanged {
		s.raiseReceiptScan(ctx, *expense, traceID)
	}

	response := toResponse(*expense, nil)
	return &response, nil
}

func (s *svc) DeleteExpense(ctx context.Context, sc auth.SecurityContext, expenseID string) error {
	traceID := traceIDFromContext(ctx)

	expense, err := s.repo.GetByID(ctx, sc.AccountID, expenseID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.New(errors.ErrNotFound, "Expense not found", err)
		}
		return errors.New(errors.ErrInternal, "Unable to load expense", err)
	}

	if err := s.repo.Delete(ctx, sc.AccountID, expenseID); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.New(errors.ErrNotFound, "Expense not found", err)
		}
		s.logger.ErrorContext(ctx, "Failed to delete expense", "error", err, "expense_id", expenseID)
		return errors.New(errors.ErrInternal, "Failed to delete expense. Please try again later.", err)
	}

	s.invalidateListCache(ctx, sc.AccountID)

	// Best effort: the receipt object may still sit in either bucket
	// depending on how far verification got.
	if expense.ReceiptKey != "" {
		for _, bucket := range []storage.Bucket{storage.BucketReceipts, storage.BucketIncoming} {
			if err := s.storage.Delete(ctx, bucket, expense.ReceiptKey); err != nil {
				s.logger.WarnContext(ctx, "Failed to delete receipt object",
					"bucket", string(bucket), "key", expense.ReceiptKey, "error", err)
			}
		}
	}

	if err := s.eventHandler.RaiseExpenseDeletedEvent(events.ExpenseDeletedEvent{
		ExpenseID: expenseID,
		AccountID: sc.AccountID,
		TraceID:   traceID,
	}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense deleted event",
			"expense_id", expenseID, "trace_id", traceID, "error", err)
	}

	return nil
}

func (s *svc) SuggestCategory(ctx context.Context, req *CategorizeRequest) (*categorize.Suggestion, error) {
	if strings.TrimSpace(req.Merchant) == "" && strings.TrimSpace(req.Description) == "" {
		return nil, errors.New(errors.ErrInvalidInput, "Provide a merchant or a description to categorize", nil)
	}

	suggestion, err := s.categorizer.Categorize(ctx, categorize.Input{
		Merchant:      req.Merchant,
		Description:   req.Description,
		AmountMinUnit: req.AmountMinUnit,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Categorization failed", "error", err)
		return nil, errors.New(errors.ErrInternal, "Categorization is unavailable right now", err)
	}

	return &suggestion, nil
}

func (s *svc) SearchExpenses(ctx context.Context, sc auth.SecurityContext, query string, limit int) ([]search.ExpenseDocument, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	docs, err := s.index.Search(ctx, sc.AccountID, query, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Search failed", "error", err, "account_id", sc.AccountID)
		return nil, errors.New(errors.ErrInternal, "Search is unavailable right now", err)
	}
	if docs == nil {
		docs = []search.ExpenseDocument{}
	}
	return docs, nil
}

func (s *svc) raiseReceiptScan(ctx context.Context, expense store.Expense, traceID string) {
	if err := s.eventHandler.RaiseReceiptScanEvent(events.ReceiptScanEvent{
		ExpenseID:  expense.ID,
		AccountID:  expense.AccountID,
		ReceiptKey: expense.ReceiptKey,
		TraceID:    traceID,
	}); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish receipt scan event",
			"expense_id", expense.ID, "key", expense.ReceiptKey, "trace_id", traceID, "error", err)
	}
}

// invalidateListCache drops every cached list variant for the account.
// Keys are enumerable because the status filter is a closed set.
func (s *svc) invalidateListCache(ctx context.Context, accountID string) {
	keys := []string{listCacheKey(accountID, "")}
	for _, status := range []store.Status{store.StatusPending, store.StatusApproved, store.StatusDenied, store.StatusReimbursed} {
		keys = append(keys, listCacheKey(accountID, string(status)))
	}
	if err := cache.Del(s.cache, ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "List cache invalidation failed", "account_id", accountID, "error", err)
	}
}

func listCacheKey(accountID, statusFilter string) string {
	if statusFilter == "" {
		statusFilter = "all"
	}
	return fmt.Sprintf("expenses:%s:%s", accountID, statusFilter)
}

func traceIDFromContext(ctx context.Context) string {
	spanContext := trace.SpanContextFromContext(ctx)
	if spanContext.IsValid() {
		return spanContext.TraceID().String()
	}
	return ""
}
