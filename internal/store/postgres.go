package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const expenseColumns = `id, account_id, submitted_by, merchant, description,
	category, amount_min_unit, currency, status,
	receipt_key, receipt_status, incurred_at, created_at, updated_at`

// PostgresRepository implements Repository on a pgx pool.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *Expense) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(ctx, `
		INSERT INTO expenses (
			id, account_id, submitted_by, merchant, description,
			category, amount_min_unit, currency, status,
			receipt_key, receipt_status, incurred_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		e.ID, e.AccountID, e.SubmittedBy, e.Merchant, e.Description,
		e.Category, e.AmountMinUnit, e.Currency, e.Status,
		e.ReceiptKey, e.ReceiptStatus, e.IncurredAt, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	e.CreatedAt = now
	e.UpdatedAt = now

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, accountID, id string) (*Expense, error) {
	var e Expense

	err := r.db.QueryRow(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE account_id = $1 AND id = $2
	`, accountID, id).Scan(
		&e.ID, &e.AccountID, &e.SubmittedBy, &e.Merchant, &e.Description,
		&e.Category, &e.AmountMinUnit, &e.Currency, &e.Status,
		&e.ReceiptKey, &e.ReceiptStatus, &e.IncurredAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	return &e, nil
}

func (r *PostgresRepository) List(ctx context.Context, accountID string, filter ListFilter) ([]Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses
		WHERE account_id = $1`
	args := []any{accountID}

	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY incurred_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []Expense{}
	for rows.Next() {
		var e Expense
		if err := rows.Scan(
			&e.ID, &e.AccountID, &e.SubmittedBy, &e.Merchant, &e.Description,
			&e.Category, &e.AmountMinUnit, &e.Currency, &e.Status,
			&e.ReceiptKey, &e.ReceiptStatus, &e.IncurredAt, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expenses: %w", err)
	}

	return expenses, nil
}

func (r *PostgresRepository) Update(ctx context.Context, e *Expense) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(ctx, `
		UPDATE expenses SET
			merchant = $3,
			description = $4,
			category = $5,
			amount_min_unit = $6,
			status = $7,
			receipt_key = $8,
			receipt_status = $9,
			incurred_at = $10,
			updated_at = $11
		WHERE account_id = $1 AND id = $2
	`,
		e.AccountID, e.ID, e.Merchant, e.Description, e.Category,
		e.AmountMinUnit, e.Status, e.ReceiptKey, e.ReceiptStatus,
		e.IncurredAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	e.UpdatedAt = now

	return nil
}

func (r *PostgresRepository) UpdateReceiptStatus(ctx context.Context, accountID, id string, rs ReceiptStatus) error {
	result, err := r.db.Exec(ctx, `
		UPDATE expenses SET receipt_status = $3, updated_at = $4
		WHERE account_id = $1 AND id = $2
	`, accountID, id, rs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update receipt status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, accountID, id string) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM expenses
		WHERE account_id = $1 AND id = $2
	`, accountID, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
