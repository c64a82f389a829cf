package idempotency

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/auth"
	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/errors"
)

type IdempotencyStore interface {
	Lock(ctx context.Context, key string) (bool, error)
	GetResponse(ctx context.Context, key string) (*IdempotencyResponse, bool, error)
	SaveResponse(ctx context.Context, key string, resp IdempotencyResponse) error
	Delete(ctx context.Context, key string) error
}

type IdempotencyResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Hop-specific headers never belong in a replayed response.
var ignoredHeaders = map[string]bool{
	"Access-Control-Allow-Origin":      true,
	"Access-Control-Allow-Methods":     true,
	"Access-Control-Allow-Headers":     true,
	"Access-Control-Allow-Credentials": true,
	"Access-Control-Expose-Headers":    true,
	"Date":                             true,
	"Content-Length":                   true,
	"Connection":                       true,
}

// scopedKey namespaces the client-chosen key by account, so two
// accounts picking the same Idempotency-Key can never replay each
// other's responses. Mount this middleware behind auth.
func scopedKey(ctx context.Context, key string) string {
	if sc, err := auth.FromContext(ctx); err == nil {
		return sc.AccountID + ":" + key
	}
	return key
}

// Idempotency makes a retried submission safe: the first request with
// a given key runs, every later one replays the recorded response.
// Requests without an Idempotency-Key header pass straight through.
func Idempotency(store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			key = scopedKey(ctx, key)

			// SETNX decides who runs. Failing closed here matters:
			// an expense recorded twice is worse than a 500.
			acquired, err := store.Lock(ctx, key)
			if err != nil {
				errors.RespondError(w, r, errors.New(errors.ErrInternal, "Idempotency Service Unavailable", err))
				return
			}

			if !acquired {
				cached, found, err := store.GetResponse(ctx, key)
				if err != nil {
					errors.RespondError(w, r, errors.New(errors.ErrInternal, "Internal Cache Error", err))
					return
				}

				if found && cached != nil {
					replay(w, cached)
					return
				}

				// Locked but no response yet: the first request is
				// still in flight.
				w.Header().Set("Retry-After", "1")
				errors.RespondError(w, r, errors.New(errors.ErrConflict, "Request is currently being processed", nil))
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				status:         http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(recorder, r)

			// A 5xx (or shed load) must not be replayed; drop the
			// lock so the client's retry gets a fresh run.
			if recorder.status >= 500 || recorder.status == http.StatusTooManyRequests {
				slog.WarnContext(ctx, "Idempotency: Server error detected, deleting lock", "key", key)
				_ = store.Delete(context.Background(), key)
				return
			}

			resp := IdempotencyResponse{
				StatusCode: recorder.status,
				Headers:    filteredHeaders(recorder.Header()),
				Body:       recorder.body.Bytes(),
			}

			// Persist off the request context; the client may already
			// be gone.
			go persistResponse(store, key, resp)
		})
	}
}

func replay(w http.ResponseWriter, cached *IdempotencyResponse) {
	for name, values := range cached.Headers {
		if ignoredHeaders[name] {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set("X-Idempotency-Hit", "true")
	w.WriteHeader(cached.StatusCode)
	w.Write(cached.Body)
}

func filteredHeaders(h http.Header) http.Header {
	out := make(http.Header)
	for name, values := range h {
		if !ignoredHeaders[name] {
			out[name] = values
		}
	}
	return out
}

// persistResponse overwrites the processing lock with the finished
// response.
func persistResponse(store IdempotencyStore, key string, resp IdempotencyResponse) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.SaveResponse(ctx, key, resp); err != nil {
		slog.ErrorContext(ctx, "Failed to save idempotency response", "error", err)
	}
}

// responseRecorder tees the response so it can be persisted after it
// has been sent.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
