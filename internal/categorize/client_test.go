package categorize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/testutil"
)

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		parsed, ok := ParseCategory(string(c))
		assert.True(t, ok)
		assert.Equal(t, c, parsed)
	}

	for _, raw := range []string{"", "groceries", "Housing", "HOUSING", "misc"} {
		_, ok := ParseCategory(raw)
		assert.False(t, ok, "ParseCategory(%q)", raw)
	}
}

func TestClientCategorize(t *testing.T) {
	var gotAuth string
	var gotReq inferenceRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(inferenceResponse{
			Category:   "transportation",
			Confidence: 0.93,
			Rationale:  "Transit fare for an accessible route",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "expense-tagger-v2", testutil.NewTestLogger())

	suggestion, err := client.Categorize(context.Background(), Input{
		Merchant:    "Metro Transit",
		Description: "Monthly pass",
	})

	require.NoError(t, err)
	assert.Equal(t, CategoryTransportation, suggestion.Category)
	assert.InDelta(t, 0.93, suggestion.Confidence, 0.0001)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "expense-tagger-v2", gotReq.Model)
	assert.Equal(t, "Metro Transit", gotReq.Merchant)
	assert.Contains(t, gotReq.Categories, "transportation")
}

func TestClientCategorize_UnknownCategoryCoerced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(inferenceResponse{
			Category:   "groceries-and-sundries",
			Confidence: 0.8,
			Rationale:  "Weekly shop",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "m", testutil.NewTestLogger())

	suggestion, err := client.Categorize(context.Background(), Input{Merchant: "Corner Store"})

	require.NoError(t, err)
	assert.Equal(t, CategoryOther, suggestion.Category)
	assert.InDelta(t, 0.4, suggestion.Confidence, 0.0001)
}

func TestClientCategorize_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "m", testutil.NewTestLogger())

	_, err := client.Categorize(context.Background(), Input{Merchant: "Anywhere"})

	require.Error(t, err)
	// The upstream body must not ride along in our error text.
	assert.NotContains(t, err.Error(), "model overloaded")
}

func TestClientCategorize_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "test-key", "m", testutil.NewTestLogger())

	_, err := client.Categorize(context.Background(), Input{Merchant: "Anywhere"})

	assert.Error(t, err)
}
