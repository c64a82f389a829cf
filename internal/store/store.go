package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("expense not found")
	ErrConflict = errors.New("expense already exists")
)

// Status tracks an expense through the reimbursement pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusDenied     Status = "denied"
	StatusReimbursed Status = "reimbursed"
)

// ParseStatus validates a raw status tag against the closed set.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusApproved, StatusDenied, StatusReimbursed:
		return Status(raw), true
	default:
		return "", false
	}
}

// ReceiptStatus tracks the attached receipt object, which moves
// independently of the reimbursement decision.
type ReceiptStatus string

const (
	ReceiptNone     ReceiptStatus = "none"
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptVerified ReceiptStatus = "verified"
	ReceiptMissing  ReceiptStatus = "missing"
)

func ParseReceiptStatus(raw string) (ReceiptStatus, bool) {
	switch ReceiptStatus(raw) {
	case ReceiptNone, ReceiptPending, ReceiptVerified, ReceiptMissing:
		return ReceiptStatus(raw), true
	default:
		return "", false
	}
}

// Expense is the stored record. Amounts are integer minor units so
// currency math stays exact.
type Expense struct {
	ID            string        `json:"id"`
	AccountID     string        `json:"account_id"`
	SubmittedBy   string        `json:"submitted_by"`
	Merchant      string        `json:"merchant"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	AmountMinUnit int64         `json:"amount_min_unit"`
	Currency      string        `json:"currency"`
	Status        Status        `json:"status"`
	ReceiptKey    string        `json:"receipt_key,omitempty"`
	ReceiptStatus ReceiptStatus `json:"receipt_status"`
	IncurredAt    time.Time     `json:"incurred_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ListFilter narrows List results. Zero value means everything for
// the account.
type ListFilter struct {
	Status Status
}

// Repository is the persistence contract. Every operation is scoped by
// account: a caller can never address another account's rows, whatever
// identifiers it guesses.
type Repository interface {
	Create(ctx context.Context, e *Expense) error
	GetByID(ctx context.Context, accountID, id string) (*Expense, error)
	List(ctx context.Context, accountID string, filter ListFilter) ([]Expense, error)
	Update(ctx context.Context, e *Expense) error
	UpdateReceiptStatus(ctx context.Context, accountID, id string, rs ReceiptStatus) error
	Delete(ctx context.Context, accountID, id string) error
}

// DB is the subset of pgxpool.Pool the repository touches; pgxmock's
// pool satisfies it for tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
