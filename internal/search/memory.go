package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex is a thread-safe Fake for testing. It approximates the
// engine's behavior: case-insensitive substring matching over the
// query fields, account filtering, newest first.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]ExpenseDocument
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]ExpenseDocument)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, doc ExpenseDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *MemoryIndex) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Real engines don't error on deleting a non-existent ID.
	delete(m.docs, id)
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, accountID, query string, limit int) ([]ExpenseDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(query)
	matchAll := query == "" || query == "*"

	var hits []ExpenseDocument
	for _, doc := range m.docs {
		if doc.AccountID != accountID {
			continue
		}
		if matchAll || m.matches(doc, needle) {
			hits = append(hits, doc)
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].IncurredAt > hits[j].IncurredAt
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryIndex) matches(doc ExpenseDocument, needle string) bool {
	for _, field := range []string{doc.Merchant, doc.Description, doc.Category} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (m *MemoryIndex) HealthCheck(ctx context.Context) error {
	// Always healthy
	return nil
}

func (m *MemoryIndex) Close() error {
	return nil
}

// --- Test Helper Methods (Not part of Index interface) ---

// Get lets tests inspect the state of the index.
func (m *MemoryIndex) Get(id string) (ExpenseDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, found := m.docs[id]
	return doc, found
}

// Count returns the number of indexed documents.
func (m *MemoryIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Clear resets the storage (useful for `defer cleanup()`).
func (m *MemoryIndex) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]ExpenseDocument)
}
