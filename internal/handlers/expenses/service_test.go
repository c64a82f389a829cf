package expenses

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/auth"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/categorize"
	apperrors "github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/errors"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/events"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/receipts"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/search"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/storage"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/store"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/testutil"
)

// recordingBus captures publishes so tests can assert on the event
// fan-out without a broker.
type recordingBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: make(map[string][][]byte)}
}

func (b *recordingBus) Publish(subject string, data []byte, msgId string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[subject] = append(b.published[subject], data)
	return nil
}

func (b *recordingBus) Subscribe(subject string, group string, handler events.Handler) (events.Subscription, error) {
	return events.Subscription{Unsubscribe: func() error { return nil }}, nil
}

func (b *recordingBus) Drain() error { return nil }

func (b *recordingBus) payloads(subject string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[subject]
}

// stubCategorizer returns a canned suggestion or error.
type stubCategorizer struct {
	suggestion categorize.Suggestion
	err        error
}

func (s stubCategorizer) Categorize(ctx context.Context, in categorize.Input) (categorize.Suggestion, error) {
	return s.suggestion, s.err
}

type fixture struct {
	svc      *svc
	repo     *store.MemoryRepository
	provider *storage.MemoryProvider
	index    *search.MemoryIndex
	bus      *recordingBus
}

func newFixture(t *testing.T, categorizer categorize.Categorizer) *fixture {
	t.Helper()

	repo := store.NewMemoryRepository()
	provider := storage.NewMemoryProvider()
	index := search.NewMemoryIndex()
	bus := newRecordingBus()
	logger := testutil.NewTestLogger()

	service := &svc{
		repo:         repo,
		cache:        nil, // caching off in unit tests
		storage:      provider,
		categorizer:  categorizer,
		index:        index,
		eventHandler: events.NewEventHandler(bus, events.NewEventConfig(), logger),
		logger:       logger,
	}

	return &fixture{svc: service, repo: repo, provider: provider, index: index, bus: bus}
}

func ownerContext() auth.SecurityContext {
	return auth.SecurityContext{
		UserID:      "user-1",
		AccountID:   "acct1",
		Email:       "owner@example.com",
		DisplayName: "Jordan Owner",
		Role:        auth.RoleOwner,
	}
}

func validCreateRequest() *CreateExpenseRequest {
	return &CreateExpenseRequest{
		Merchant:      "Metro Transit",
		Description:   "Monthly bus pass",
		Category:      "transportation",
		AmountMinUnit: 6500,
		Currency:      "USD",
		IncurredAt:    time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestCreateExpense_Success(t *testing.T) {
	f := newFixture(t, stubCategorizer{})

	resp, err := f.svc.CreateExpense(context.Background(), ownerContext(), validCreateRequest())
	require.NoError(t, err)

	_, parseErr := uuid.Parse(resp.ID)
	assert.NoError(t, parseErr, "expense ID should be a generated UUID")
	assert.Equal(t, "acct1", resp.AccountID)
	assert.Equal(t, "user-1", resp.SubmittedBy)
	assert.Equal(t, string(store.StatusPending), resp.Status)
	assert.Equal(t, "usd", resp.Currency, "currency should be normalized")
	assert.Equal(t, string(store.ReceiptNone), resp.ReceiptStatus)
	assert.Nil(t, resp.ReceiptURL)

	stored, err := f.repo.GetByID(context.Background(), "acct1", resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Metro Transit", stored.Merchant)
	assert.False(t, stored.CreatedAt.IsZero())

	recorded := f.bus.payloads("expense.recorded")
	require.Len(t, recorded, 1)
	var evt events.ExpenseRecordedEvent
	require.NoError(t, json.Unmarshal(recorded[0], &evt))
	assert.Equal(t, resp.ID, evt.ExpenseID)
	assert.Equal(t, "acct1", evt.AccountID)

	assert.Empty(t, f.bus.payloads("receipt.scan"), "no receipt attached, no scan event")
}

func TestCreateExpense_WithReceiptRaisesScan(t *testing.T) {
	f := newFixture(t, stubCategorizer{})

	req := validCreateRequest()
	req.ReceiptKey = receipts.BuildKey("acct1", "ref-1", "receipt.jpg", ".jpg")

	resp, err := f.svc.CreateExpense(context.Background(), ownerContext(), req)
	require.NoError(t, err)
	assert.Equal(t, string(store.ReceiptPending), resp.ReceiptStatus)

	scans := f.bus.payloads("receipt.scan")
	require.Len(t, scans, 1)
	var evt events.ReceiptScanEvent
	require.NoError(t, json.Unmarshal(scans[0], &evt))
	assert.Equal(t, resp.ID, evt.ExpenseID)
	assert.Equal(t, req.ReceiptKey, evt.ReceiptKey)
}

func TestCreateExpense_ValidationFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateExpenseRequest)
	}{
		{"empty merchant", func(r *CreateExpenseRequest) { r.Merchant = "   " }},
		{"zero amount", func(r *CreateExpenseRequest) { r.AmountMinUnit = 0 }},
		{"negative amount", func(r *CreateExpenseRequest) { r.AmountMinUnit = -100 }},
		{"foreign currency", func(r *CreateExpenseRequest) { r.Currency = "gbp" }},
		{"unknown category", func(r *CreateExpenseRequest) { r.Category = "groceries" }},
		{"missing date", func(r *CreateExpenseRequest) { r.IncurredAt = time.Time{} }},
		{"future date", func(r *CreateExpenseRequest) { r.IncurredAt = time.Now().Add(72 * time.Hour) }},
		{"foreign receipt key", func(r *CreateExpenseRequest) {
			r.ReceiptKey = receipts.BuildKey("acct2", "ref-1", "receipt.jpg", ".jpg")
		}},
		{"malformed receipt key", func(r *CreateExpenseRequest) { r.ReceiptKey = "../../etc/passwd" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, stubCategorizer{})
			req := validCreateRequest()
			tc.mutate(req)

			_, err := f.svc.CreateExpense(context.Background(), ownerContext(), req)
			require.Error(t, err)
			assertAppErrorCode(t, err, "INVALID_INPUT")

			rows, listErr := f.repo.List(context.Background(), "acct1", store.ListFilter{})
			require.NoError(t, listErr)
			assert.Empty(t, rows, "nothing may be stored on validation failure")
			assert.Empty(t, f.bus.payloads("expense.recorded"))
		})
	}
}

func TestGetExpense_PresignsVerifiedReceipt(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	key := receipts.BuildKey("acct1", "ref-1", "receipt.jpg", ".jpg")
	f.provider.Put(storage.BucketReceipts, key, []byte("jpeg-bytes"), "image/jpeg")

	e := store.Expense{
		ID:            "e1",
		AccountID:     "acct1",
		SubmittedBy:   "user-1",
		Merchant:      "Walgreens",
		AmountMinUnit: 1299,
		Currency:      "usd",
		Status:        store.StatusPending,
		ReceiptKey:    key,
		ReceiptStatus: store.ReceiptVerified,
		IncurredAt:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.repo.Create(context.Background(), &e))

	resp, err := f.svc.GetExpense(context.Background(), ownerContext(), "e1")
	require.NoError(t, err)
	require.NotNil(t, resp.ReceiptURL)
	assert.Contains(t, *resp.ReceiptURL, "signed")
}

func TestGetExpense_PendingReceiptHasNoURL(t *testing.T) {
	f := newFixture(t, stubCategorizer{})

	e := store.Expense{
		ID:            "e1",
		AccountID:     "acct1",
		Merchant:      "Walgreens",
		AmountMinUnit: 1299,
		Currency:      "usd",
		Status:        store.StatusPending,
		ReceiptKey:    receipts.BuildKey("acct1", "ref-1", "receipt.jpg", ".jpg"),
		ReceiptStatus: store.ReceiptPending,
		IncurredAt:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.repo.Create(context.Background(), &e))

	resp, err := f.svc.GetExpense(context.Background(), ownerContext(), "e1")
	require.NoError(t, err)
	assert.Nil(t, resp.ReceiptURL, "unverified receipts must not get a download link")
}

func TestGetExpense_NotFound(t *testing.T) {
	f := newFixture(t, stubCategorizer{})

	_, err := f.svc.GetExpense(context.Background(), ownerContext(), "missing")
	require.Error(t, err)
	assertAppErrorCode(t, err, "NOT_FOUND")
}

func TestGetExpense_OtherAccountIsNotFound(t *testing.T) {
	f := newFixture(t, stubCategorizer{})

	e := store.Expense{
		ID:            "e1",
		AccountID:     "acct2",
		Merchant:      "Walgreens",
		AmountMinUnit: 1299,
		Currency:      "usd",
		Status:        store.StatusPending,
		ReceiptStatus: store.ReceiptNone,
		IncurredAt:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.repo.Create(context.Background(), &e))

	_, err := f.svc.GetExpense(context.Background(), ownerContext(), "e1")
	require.Error(t, err)
	assertAppErrorCode(t, err, "NOT_FOUND")
}

func TestListExpenses_FilterAndOrder(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	ctx := context.Background()

	seed := []store.Expense{
		{ID: "e1", AccountID: "acct1", Merchant: "A", AmountMinUnit: 100, Currency: "usd", Status: store.StatusPending, ReceiptStatus: store.ReceiptNone, IncurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "e2", AccountID: "acct1", Merchant: "B", AmountMinUnit: 200, Currency: "usd", Status: store.StatusApproved, ReceiptStatus: store.ReceiptNone, IncurredAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "e3", AccountID: "acct1", Merchant: "C", AmountMinUnit: 300, Currency: "usd", Status: store.StatusPending, ReceiptStatus: store.ReceiptNone, IncurredAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for i := range seed {
		require.NoError(t, f.repo.Create(ctx, &seed[i]))
	}

	all, err := f.svc.ListExpenses(ctx, ownerContext(), "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e3", all[0].ID, "newest first")

	approved, err := f.svc.ListExpenses(ctx, ownerContext(), "approved")
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "e2", approved[0].ID)

	_, err = f.svc.ListExpenses(ctx, ownerContext(), "paid")
	require.Error(t, err)
	assertAppErrorCode(t, err, "INVALID_INPUT")
}

func TestUpdateExpense_PartialMerge(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	ctx := context.Background()

	e := store.Expense{
		ID:            "e1",
		AccountID:     "acct1",
		Merchant:      "Metro Transit",
		Description:   "Monthly bus pass",
		Category:      "transportation",
		AmountMinUnit: 6500,
		Currency:      "usd",
		Status:        store.StatusPending,
		ReceiptStatus: store.ReceiptNone,
		IncurredAt:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.repo.Create(ctx, &e))

	newStatus := "approved"
	resp, err := f.svc.UpdateExpense(ctx, ownerContext(), "e1", &UpdateExpenseRequest{Status: &newStatus})
	require.NoError(t, err)

	assert.Equal(t, "approved", resp.Status)
	assert.Equal(t, "Metro Transit", resp.Merchant, "untouched fields must survive")
	assert.Equal(t, int64(6500), resp.AmountMinUnit)

	recorded := f.bus.payloads("expense.recorded")
	assert.Len(t, recorded, 1, "updates re-publish so the index catches up")
}

func TestUpdateExpense_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	ctx := context.Background()

	e := store.Expense{
		ID: "e1", AccountID: "acct1", Merchant: "A", AmountMinUnit: 100, Currency: "usd",
		Status: store.StatusPending, ReceiptStatus: store.ReceiptNone,
		IncurredAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.repo.Create(ctx, &e))

	badStatus := "PAID"
	_, err := f.svc.UpdateExpense(ctx, ownerContext(), "e1", &UpdateExpenseRequest{Status: &badStatus})
	require.Error(t, err)
	assertAppErrorCode(t, err, "INVALID_INPUT")

	stored, getErr := f.repo.GetByID(ctx, "acct1", "e1")
	require.NoError(t, getErr)
	assert.Equal(t, store.StatusPending, stored.Status, "failed update must not persist")
}

func TestUpdateExpense_ReplacingReceiptRestartsVerification(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	ctx := context.Background()

	oldKey := receipts.BuildKey("acct1", "ref-1", "old.jpg", ".jpg")
	e := store.Expense{
		ID: "e1", AccountID: "acct1", Merchant: "A", AmountMinUnit: 100, Currency: "usd",
		Status: store.StatusPending, ReceiptKey: oldKey, ReceiptStatus: store.ReceiptVerified,
		IncurredAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.repo.Create(ctx, &e))

	newKey := receipts.BuildKey("acct1", "ref-1", "new.jpg", ".jpg")
	resp, err := f.svc.UpdateExpense(ctx, ownerContext(), "e1", &UpdateExpenseRequest{ReceiptKey: &newKey})
	require.NoError(t, err)

	assert.Equal(t, string(store.ReceiptPending), resp.ReceiptStatus)

	scans := f.bus.payloads("receipt.scan")
	require.Len(t, scans, 1)
	var evt events.ReceiptScanEvent
	require.NoError(t, json.Unmarshal(scans[0], &evt))
	assert.Equal(t, newKey, evt.ReceiptKey)
}

func TestUpdateExpense_NotFound(t *testing.T) {
	f := newFixture(t, stubCategorizer{})

	merchant := "New Name"
	_, err := f.svc.UpdateExpense(context.Background(), ownerContext(), "missing", &UpdateExpenseRequest{Merchant: &merchant})
	require.Error(t, err)
	assertAppErrorCode(t, err, "NOT_FOUND")
}

func TestDeleteExpense_RemovesRecordAndObjects(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	ctx := context.Background()

	key := receipts.BuildKey("acct1", "ref-1", "receipt.jpg", ".jpg")
	f.provider.Put(storage.BucketReceipts, key, []byte("jpeg-bytes"), "image/jpeg")

	e := store.Expense{
		ID: "e1", AccountID: "acct1", Merchant: "A", AmountMinUnit: 100, Currency: "usd",
		Status: store.StatusPending, ReceiptKey: key, ReceiptStatus: store.ReceiptVerified,
		IncurredAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.repo.Create(ctx, &e))

	require.NoError(t, f.svc.DeleteExpense(ctx, ownerContext(), "e1"))

	_, err := f.repo.GetByID(ctx, "acct1", "e1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.provider.Stat(ctx, storage.BucketReceipts, key)
	assert.ErrorIs(t, err, storage.ErrNotFound, "receipt object should be cleaned up")

	deleted := f.bus.payloads("expense.deleted")
	require.Len(t, deleted, 1)
	var evt events.ExpenseDeletedEvent
	require.NoError(t, json.Unmarshal(deleted[0], &evt))
	assert.Equal(t, "e1", evt.ExpenseID)
}

func TestDeleteExpense_NotFound(t *testing.T) {
	f := newFixture(t, stubCategorizer{})

	err := f.svc.DeleteExpense(context.Background(), ownerContext(), "missing")
	require.Error(t, err)
	assertAppErrorCode(t, err, "NOT_FOUND")
	assert.Empty(t, f.bus.payloads("expense.deleted"))
}

func TestSuggestCategory(t *testing.T) {
	t.Run("returns the model suggestion", func(t *testing.T) {
		f := newFixture(t, stubCategorizer{suggestion: categorize.Suggestion{
			Category:   categorize.CategoryTransportation,
			Confidence: 0.93,
			Rationale:  "Transit passes are a qualified transportation expense.",
		}})

		suggestion, err := f.svc.SuggestCategory(context.Background(), &CategorizeRequest{
			Merchant:    "Metro Transit",
			Description: "Monthly bus pass",
		})
		require.NoError(t, err)
		assert.Equal(t, categorize.CategoryTransportation, suggestion.Category)
		assert.InDelta(t, 0.93, suggestion.Confidence, 0.0001)
	})

	t.Run("requires some input", func(t *testing.T) {
		f := newFixture(t, stubCategorizer{})

		_, err := f.svc.SuggestCategory(context.Background(), &CategorizeRequest{})
		require.Error(t, err)
		assertAppErrorCode(t, err, "INVALID_INPUT")
	})

	t.Run("hides provider failures", func(t *testing.T) {
		f := newFixture(t, stubCategorizer{err: errors.New("model exploded: quota exceeded for key sk-123")})

		_, err := f.svc.SuggestCategory(context.Background(), &CategorizeRequest{Merchant: "Metro Transit"})
		require.Error(t, err)
		assertAppErrorCode(t, err, "INTERNAL")
		assert.NotContains(t, publicMessage(t, err), "sk-123", "provider detail must not reach the client")
	})
}

func TestSearchExpenses(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	ctx := context.Background()

	require.NoError(t, f.index.Upsert(ctx, search.ExpenseDocument{ID: "e1", AccountID: "acct1", Merchant: "Metro Transit", IncurredAt: 100}))
	require.NoError(t, f.index.Upsert(ctx, search.ExpenseDocument{ID: "e2", AccountID: "acct2", Merchant: "Metro Transit", IncurredAt: 200}))

	results, err := f.svc.SearchExpenses(ctx, ownerContext(), "metro", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "e1", results[0].ID)

	empty, err := f.svc.SearchExpenses(ctx, ownerContext(), "nothing-matches", 10)
	require.NoError(t, err)
	assert.NotNil(t, empty, "JSON shape must be [] rather than null")
	assert.Empty(t, empty)
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorCode(code), appErr.Code)
}

// publicMessage is the string RespondError would show the client.
func publicMessage(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Message
}
