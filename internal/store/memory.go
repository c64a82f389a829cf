package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a thread-safe Fake for testing.
// It stores expenses in a map: records[accountID][expenseID] = expense
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]map[string]Expense
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]map[string]Expense),
	}
}

func (m *MemoryRepository) Create(ctx context.Context, e *Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.records[e.AccountID] == nil {
		m.records[e.AccountID] = make(map[string]Expense)
	}
	if _, exists := m.records[e.AccountID][e.ID]; exists {
		return ErrConflict
	}

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	m.records[e.AccountID][e.ID] = *e

	return nil
}

func (m *MemoryRepository) GetByID(ctx context.Context, accountID, id string) (*Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if bucket, exists := m.records[accountID]; exists {
		if e, found := bucket[id]; found {
			// Copy out so callers can't mutate the stored record.
			result := e
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) List(ctx context.Context, accountID string, filter ListFilter) ([]Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expenses := []Expense{}
	for _, e := range m.records[accountID] {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		expenses = append(expenses, e)
	}

	// Newest incurred first, matching the SQL ordering.
	sort.Slice(expenses, func(i, j int) bool {
		return expenses[i].IncurredAt.After(expenses[j].IncurredAt)
	})

	return expenses, nil
}

func (m *MemoryRepository) Update(ctx context.Context, e *Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, exists := m.records[e.AccountID]
	if !exists {
		return ErrNotFound
	}
	stored, found := bucket[e.ID]
	if !found {
		return ErrNotFound
	}

	e.CreatedAt = stored.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	bucket[e.ID] = *e

	return nil
}

func (m *MemoryRepository) UpdateReceiptStatus(ctx context.Context, accountID, id string, rs ReceiptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, exists := m.records[accountID]
	if !exists {
		return ErrNotFound
	}
	e, found := bucket[id]
	if !found {
		return ErrNotFound
	}

	e.ReceiptStatus = rs
	e.UpdatedAt = time.Now().UTC()
	bucket[id] = e

	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, exists := m.records[accountID]
	if !exists {
		return ErrNotFound
	}
	if _, found := bucket[id]; !found {
		return ErrNotFound
	}
	delete(bucket, id)

	return nil
}

// Clear resets the storage (useful for `defer cleanup()`)
func (m *MemoryRepository) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]map[string]Expense)
}
