package search

import (
	"context"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/store"
)

// ExpenseDocument is the flattened shape of an expense in the search
// engine. Timestamps are unix seconds so they sort as plain integers.
type ExpenseDocument struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Merchant      string `json:"merchant"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Status        string `json:"status"`
	AmountMinUnit int64  `json:"amount_min_unit"`
	Currency      string `json:"currency"`
	IncurredAt    int64  `json:"incurred_at"`
}

// DocumentFromExpense flattens a stored expense into its indexable form.
func DocumentFromExpense(e store.Expense) ExpenseDocument {
	return ExpenseDocument{
		ID:            e.ID,
		AccountID:     e.AccountID,
		Merchant:      e.Merchant,
		Description:   e.Description,
		Category:      e.Category,
		Status:        string(e.Status),
		AmountMinUnit: e.AmountMinUnit,
		Currency:      e.Currency,
		IncurredAt:    e.IncurredAt.Unix(),
	}
}

// Index defines the contract for any search engine we support.
// This allows us to swap Typesense for Algolia/Elasticsearch later,
// and makes unit testing trivial.
type Index interface {
	// Upsert adds or updates a document keyed by its ID.
	Upsert(ctx context.Context, doc ExpenseDocument) error

	// Delete removes a document by ID. Missing IDs are not an error.
	Delete(ctx context.Context, id string) error

	// Search runs a text query scoped to one account. Results come
	// back newest first.
	Search(ctx context.Context, accountID, query string, limit int) ([]ExpenseDocument, error)

	// HealthCheck checks the health of the engine.
	HealthCheck(ctx context.Context) error

	// Close cleans up any resources held by the engine.
	Close() error
}
