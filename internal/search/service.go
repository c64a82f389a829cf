package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/store"
)

// Service keeps the search index in step with the expense store. It
// runs on the worker side, driven by expense lifecycle events.
type Service struct {
	index  Index
	repo   store.Repository
	logger *slog.Logger
}

func NewService(index Index, repo store.Repository, logger *slog.Logger) *Service {
	return &Service{
		index:  index,
		repo:   repo,
		logger: logger,
	}
}

// IndexExpense loads the current record and upserts its document. The
// event carries only identifiers, so the store is the source of truth
// even when events arrive out of order.
func (s *Service) IndexExpense(ctx context.Context, accountID, expenseID string) error {
	s.logger.Info("Indexing expense", "expense_id", expenseID, "account_id", accountID)

	expense, err := s.repo.GetByID(ctx, accountID, expenseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// PERMANENT: the expense was deleted before we caught up.
			// Drop any stale document and ack.
			s.logger.Warn("Expense not found in store, removing from index", "expense_id", expenseID)
			return s.index.Delete(ctx, expenseID)
		}

		// TRANSIENT: return err to retry.
		s.logger.Error("Failed to fetch expense from store", "error", err, "expense_id", expenseID)
		return err
	}

	if err := s.index.Upsert(ctx, DocumentFromExpense(*expense)); err != nil {
		s.logger.Error("Failed to upsert expense document", "error", err, "expense_id", expenseID)
		return err
	}
	return nil
}

// RemoveExpense drops the document for a deleted expense.
func (s *Service) RemoveExpense(ctx context.Context, expenseID string) error {
	s.logger.Info("Removing expense from index", "expense_id", expenseID)

	if err := s.index.Delete(ctx, expenseID); err != nil {
		s.logger.Error("Failed to delete expense document", "error", err, "expense_id", expenseID)
		return err
	}
	return nil
}
