package expenses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/auth"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/categorize"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/search"
)

// newTestRouter mounts the handler exactly the way the API does. A nil
// security context simulates a request that slipped past auth.
func newTestRouter(f *fixture, sc *auth.SecurityContext) http.Handler {
	h := NewExpensesHandler(f.svc)

	r := chi.NewRouter()
	if sc != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithSecurityContext(req.Context(), *sc)))
			})
		})
	}
	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.CreateExpense)
		r.Get("/", h.ListExpenses)
		r.Post("/categorize", h.CategorizeExpense)
		r.Get("/search", h.SearchExpenses)
		r.Get("/{id}", h.GetExpense)
		r.Put("/{id}", h.UpdateExpense)
		r.Delete("/{id}", h.DeleteExpense)
	})
	return r
}

func authedRouter(f *fixture) http.Handler {
	sc := ownerContext()
	return newTestRouter(f, &sc)
}

const createBody = `{
	"merchant": "Metro Transit",
	"description": "Monthly bus pass",
	"category": "transportation",
	"amount_min_unit": 6500,
	"currency": "usd",
	"incurred_at": "2026-03-10T09:00:00Z"
}`

func TestHandler_CreateExpense(t *testing.T) {
	t.Run("201 and the stored expense", func(t *testing.T) {
		f := newFixture(t, stubCategorizer{})
		router := authedRouter(f)

		req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(createBody))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp ExpenseResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "acct1", resp.AccountID)
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("401 without a security context", func(t *testing.T) {
		f := newFixture(t, stubCategorizer{})
		router := newTestRouter(f, nil)

		req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(createBody))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	})

	t.Run("400 on malformed JSON", func(t *testing.T) {
		f := newFixture(t, stubCategorizer{})
		router := authedRouter(f)

		req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"merchant": `))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	})

	t.Run("400 on validation failure", func(t *testing.T) {
		f := newFixture(t, stubCategorizer{})
		router := authedRouter(f)

		body := strings.Replace(createBody, "6500", "-1", 1)
		req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_GetAndList(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	router := authedRouter(f)

	// Create through the API so the flow matches production.
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created ExpenseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	t.Run("get by id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/expenses/"+created.ID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"Metro Transit"`)
	})

	t.Run("404 for unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/expenses/does-not-exist", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "NOT_FOUND")
	})

	t.Run("list with status filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/expenses?status=pending", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var listed []ExpenseResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, created.ID, listed[0].ID)
	})

	t.Run("400 for unknown status filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/expenses?status=paid", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	router := authedRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created ExpenseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	t.Run("partial update", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/expenses/"+created.ID, strings.NewReader(`{"status":"approved"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var updated ExpenseResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, "approved", updated.Status)
		assert.Equal(t, "Metro Transit", updated.Merchant)
	})

	t.Run("delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/expenses/"+created.ID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)

		req = httptest.NewRequest(http.MethodGet, "/expenses/"+created.ID, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_Categorize(t *testing.T) {
	f := newFixture(t, stubCategorizer{suggestion: categorize.Suggestion{
		Category:   categorize.CategoryTransportation,
		Confidence: 0.93,
		Rationale:  "Transit passes are a qualified transportation expense.",
	}})
	router := authedRouter(f)

	body := `{"merchant":"Metro Transit","description":"Monthly bus pass"}`
	req := httptest.NewRequest(http.MethodPost, "/expenses/categorize", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transportation"`)
	assert.Contains(t, rec.Body.String(), `"confidence"`)
}

func TestHandler_Search(t *testing.T) {
	f := newFixture(t, stubCategorizer{})
	router := authedRouter(f)

	seed := search.ExpenseDocument{ID: "e1", AccountID: "acct1", Merchant: "Metro Transit", IncurredAt: time.Now().Unix()}
	require.NoError(t, f.index.Upsert(context.Background(), seed))

	t.Run("finds indexed expenses", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/expenses/search?q=metro", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"e1"`)
	})

	t.Run("400 for a bad limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/expenses/search?q=metro&limit=lots", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
