package testutil

// ExpenseCols must match the column order the expense repository
// selects and returns.
var ExpenseCols = []string{
	"id", "account_id", "submitted_by", "merchant", "description",
	"category", "amount_min_unit", "currency", "status",
	"receipt_key", "receipt_status", "incurred_at", "created_at", "updated_at",
}
