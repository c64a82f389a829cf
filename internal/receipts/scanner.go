package receipts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/events"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/storage"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/store"
)

// Scanner verifies uploaded receipt objects and promotes them from the
// short-lived incoming bucket into long-term storage. It runs on the
// worker, driven by receipt scan events.
type Scanner struct {
	storage storage.Provider
	repo    store.Repository
	logger  *slog.Logger
}

func NewScanner(provider storage.Provider, repo store.Repository, logger *slog.Logger) *Scanner {
	return &Scanner{
		storage: provider,
		repo:    repo,
		logger:  logger,
	}
}

// VerifyReceipt handles one scan event. Scan events may be redelivered,
// so every branch must land in the same terminal state when replayed.
func (s *Scanner) VerifyReceipt(ctx context.Context, evt events.ReceiptScanEvent) error {
	s.logger.Info("Verifying receipt", "expense_id", evt.ExpenseID, "key", evt.ReceiptKey)

	_, err := s.storage.Stat(ctx, storage.BucketIncoming, evt.ReceiptKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// A previous delivery may have promoted the object already.
			if _, statErr := s.storage.Stat(ctx, storage.BucketReceipts, evt.ReceiptKey); statErr == nil {
				return s.markReceipt(ctx, evt, store.ReceiptVerified)
			}

			// PERMANENT: the upload never arrived before the URL expired.
			s.logger.Warn("Receipt object missing from incoming bucket",
				"expense_id", evt.ExpenseID, "key", evt.ReceiptKey)
			return s.markReceipt(ctx, evt, store.ReceiptMissing)
		}

		// TRANSIENT: storage is unreachable. Return err to retry.
		s.logger.Error("Failed to stat receipt object", "error", err, "key", evt.ReceiptKey)
		return err
	}

	if err := s.storage.Copy(ctx, storage.BucketIncoming, evt.ReceiptKey, storage.BucketReceipts, evt.ReceiptKey); err != nil {
		s.logger.Error("Failed to promote receipt object", "error", err, "key", evt.ReceiptKey)
		return err
	}

	if err := s.storage.Delete(ctx, storage.BucketIncoming, evt.ReceiptKey); err != nil {
		// The incoming bucket carries a retention policy, so a leftover
		// object ages out on its own. Don't fail the whole scan over it.
		s.logger.Warn("Failed to delete incoming receipt object", "error", err, "key", evt.ReceiptKey)
	}

	return s.markReceipt(ctx, evt, store.ReceiptVerified)
}

func (s *Scanner) markReceipt(ctx context.Context, evt events.ReceiptScanEvent, status store.ReceiptStatus) error {
	err := s.repo.UpdateReceiptStatus(ctx, evt.AccountID, evt.ExpenseID, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The expense was deleted while its receipt was in flight.
			// Nothing left to update; ack.
			s.logger.Warn("Expense gone before receipt verification finished",
				"expense_id", evt.ExpenseID, "account_id", evt.AccountID)
			return nil
		}

		s.logger.Error("Failed to update receipt status", "error", err, "expense_id", evt.ExpenseID)
		return err
	}

	s.logger.Info("Receipt status updated", "expense_id", evt.ExpenseID, "status", string(status))
	return nil
}
