package expenses

import (
	"strings"
	"time"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/categorize"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/errors"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/receipts"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/store"
)

type CreateExpenseRequest struct {
	Merchant      string    `json:"merchant"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	AmountMinUnit int64     `json:"amount_min_unit"`
	Currency      string    `json:"currency"`
	IncurredAt    time.Time `json:"incurred_at"`

	// ReceiptKey is the object key returned by the presign endpoint.
	// Optional; a receipt can also be attached later via update.
	ReceiptKey string `json:"receipt_key"`
}

type UpdateExpenseRequest struct {
	Merchant      *string    `json:"merchant"` // Pointer allows distinguishing "" from nil
	Description   *string    `json:"description"`
	Category      *string    `json:"category"`
	AmountMinUnit *int64     `json:"amount_min_unit"`
	Currency      *string    `json:"currency"`
	Status        *string    `json:"status"`
	IncurredAt    *time.Time `json:"incurred_at"`
	ReceiptKey    *string    `json:"receipt_key"`
}

type CategorizeRequest struct {
	Merchant      string `json:"merchant"`
	Description   string `json:"description"`
	AmountMinUnit int64  `json:"amount_min_unit"`
}

type ExpenseResponse struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	SubmittedBy   string `json:"submitted_by"`
	Merchant      string `json:"merchant"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	AmountMinUnit int64  `json:"amount_min_unit"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`

	ReceiptKey    string `json:"receipt_key,omitempty"`
	ReceiptStatus string `json:"receipt_status"`

	// ReceiptURL is a short-lived presigned link, attached only on
	// single-expense reads and only once the receipt is verified.
	ReceiptURL *string `json:"receipt_url,omitempty"`

	IncurredAt time.Time `json:"incurred_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// futureSkew tolerates client clocks running slightly ahead.
const futureSkew = 24 * time.Hour

func (req *CreateExpenseRequest) Validate(accountID string) *errors.AppError {
	merchantLen := len(strings.TrimSpace(req.Merchant))
	if merchantLen == 0 || merchantLen > 120 {
		return errors.New(errors.ErrInvalidInput, "Merchant must be between 1 and 120 characters", nil)
	}

	if len(req.Description) > 1000 {
		return errors.New(errors.ErrInvalidInput, "Description must be 1000 characters or fewer", nil)
	}

	// We disallow 0: a reimbursement claim for nothing is always a
	// client bug.
	if req.AmountMinUnit <= 0 {
		return errors.New(errors.ErrInvalidInput, "Amount must be positive", nil)
	}

	// ABLE accounts are a US program; everything is settled in USD.
	if req.Currency != "" && strings.ToLower(req.Currency) != "usd" {
		return errors.New(errors.ErrInvalidInput, "Currency must be 'usd'", nil)
	}

	if req.Category != "" {
		if _, ok := categorize.ParseCategory(req.Category); !ok {
			return errors.New(errors.ErrInvalidInput, "Unknown expense category", nil)
		}
	}

	if req.IncurredAt.IsZero() {
		return errors.New(errors.ErrInvalidInput, "incurred_at is required", nil)
	}
	if time.Until(req.IncurredAt) > futureSkew {
		return errors.New(errors.ErrInvalidInput, "incurred_at cannot be in the future", nil)
	}

	if req.ReceiptKey != "" && !receipts.OwnsKey(accountID, req.ReceiptKey) {
		return errors.New(errors.ErrInvalidInput, "Receipt key does not belong to this account", nil)
	}

	return nil
}

// apply merges the non-nil fields onto the stored record and validates
// each one against the same rules as create. It reports whether the
// receipt key changed, which forces a fresh verification pass.
func (req *UpdateExpenseRequest) apply(e *store.Expense) (receiptChanged bool, appErr *errors.AppError) {
	if req.Merchant != nil {
		merchantLen := len(strings.TrimSpace(*req.Merchant))
		if merchantLen == 0 || merchantLen > 120 {
			return false, errors.New(errors.ErrInvalidInput, "Merchant must be between 1 and 120 characters", nil)
		}
		e.Merchant = *req.Merchant
	}

	if req.Description != nil {
		if len(*req.Description) > 1000 {
			return false, errors.New(errors.ErrInvalidInput, "Description must be 1000 characters or fewer", nil)
		}
		e.Description = *req.Description
	}

	if req.Category != nil {
		category, ok := categorize.ParseCategory(*req.Category)
		if !ok {
			return false, errors.New(errors.ErrInvalidInput, "Unknown expense category", nil)
		}
		e.Category = string(category)
	}

	if req.AmountMinUnit != nil {
		if *req.AmountMinUnit <= 0 {
			return false, errors.New(errors.ErrInvalidInput, "Amount must be positive", nil)
		}
		e.AmountMinUnit = *req.AmountMinUnit
	}

	if req.Currency != nil {
		if strings.ToLower(*req.Currency) != "usd" {
			return false, errors.New(errors.ErrInvalidInput, "Currency must be 'usd'", nil)
		}
		e.Currency = "usd"
	}

	if req.Status != nil {
		status, ok := store.ParseStatus(*req.Status)
		if !ok {
			return false, errors.New(errors.ErrInvalidInput, "Unknown expense status", nil)
		}
		e.Status = status
	}

	if req.IncurredAt != nil {
		if req.IncurredAt.IsZero() || time.Until(*req.IncurredAt) > futureSkew {
			return false, errors.New(errors.ErrInvalidInput, "incurred_at cannot be in the future", nil)
		}
		e.IncurredAt = *req.IncurredAt
	}

	if req.ReceiptKey != nil {
		switch {
		case *req.ReceiptKey == "":
			// Explicit empty string detaches the receipt.
			e.ReceiptKey = ""
			e.ReceiptStatus = store.ReceiptNone
		case !receipts.OwnsKey(e.AccountID, *req.ReceiptKey):
			return false, errors.New(errors.ErrInvalidInput, "Receipt key does not belong to this account", nil)
		case *req.ReceiptKey != e.ReceiptKey:
			e.ReceiptKey = *req.ReceiptKey
			e.ReceiptStatus = store.ReceiptPending
			receiptChanged = true
		}
	}

	return receiptChanged, nil
}

func toResponse(e store.Expense, receiptURL *string) ExpenseResponse {
	return ExpenseResponse{
		ID:            e.ID,
		AccountID:     e.AccountID,
		SubmittedBy:   e.SubmittedBy,
		Merchant:      e.Merchant,
		Description:   e.Description,
		Category:      e.Category,
		AmountMinUnit: e.AmountMinUnit,
		Currency:      e.Currency,
		Status:        string(e.Status),
		ReceiptKey:    e.ReceiptKey,
		ReceiptStatus: string(e.ReceiptStatus),
		ReceiptURL:    receiptURL,
		IncurredAt:    e.IncurredAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
