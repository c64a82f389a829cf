package events

import (
	"os"
)

// ExpenseRecordedEvent fans out after an expense row is committed; the
// worker indexes it for search.
type ExpenseRecordedEvent struct {
	ExpenseID string `json:"expense_id"` // Database ID of the expense record
	AccountID string `json:"account_id"` // ABLE account the expense belongs to
	TraceID   string `json:"trace_id"`   // Used for tracing requests across services
}

// ExpenseDeletedEvent tells the worker to drop the search document.
type ExpenseDeletedEvent struct {
	ExpenseID string `json:"expense_id"`
	AccountID string `json:"account_id"`
	TraceID   string `json:"trace_id"`
}

// ReceiptScanEvent asks the worker to verify an uploaded receipt
// object and move it to permanent storage.
type ReceiptScanEvent struct {
	ExpenseID  string `json:"expense_id"`
	AccountID  string `json:"account_id"`
	ReceiptKey string `json:"receipt_key"` // Object location in the incoming bucket
	TraceID    string `json:"trace_id"`
}

type EventConfig struct {
	ExpenseRecorded string
	ExpenseDeleted  string
	ReceiptScan     string
}

func NewEventConfig() *EventConfig {
	return &EventConfig{
		ExpenseRecorded: getEnv("EVENT_EXPENSE_RECORDED", "expense.recorded"),
		ExpenseDeleted:  getEnv("EVENT_EXPENSE_DELETED", "expense.deleted"),
		ReceiptScan:     getEnv("EVENT_RECEIPT_SCAN", "receipt.scan"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
