package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorCode is the machine-readable half of an AppError. Clients
// branch on it; the Message next to it is what they display.
type ErrorCode string

const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConflict     ErrorCode = "CONFLICT" // duplicate submission
	ErrInternal     ErrorCode = "INTERNAL" // DB died, NATS down
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"
)

// AppError splits what the account holder may see (Code, Message)
// from what only the logs may see (Internal, Stack). Receipt keys,
// provider responses and SQL all stay on the internal side.
type AppError struct {
	Code     ErrorCode
	Message  string
	Internal error
	Stack    string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// New captures the stack at the point of failure, not at the point
// where the error is finally logged.
func New(code ErrorCode, msg string, internal error) *AppError {
	return &AppError{
		Code:     code,
		Message:  msg,
		Internal: internal,
		Stack:    string(debug.Stack()),
	}
}

func statusFor(code ErrorCode) int {
	switch code {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrConflict:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the client-safe view of err and logs the rest.
// Anything that is not an AppError is treated as an internal fault.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		appErr = New(ErrInternal, "Unexpected system error", err)
	}

	status := statusFor(appErr.Code)

	logFields := []any{
		"req_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"code", appErr.Code,
		"user_msg", appErr.Message,
	}

	if status == http.StatusInternalServerError {
		logFields = append(logFields, "internal_err", appErr.Internal, "stack", appErr.Stack)
		slog.Error("Internal Server Error", logFields...)
	} else {
		if appErr.Internal != nil {
			logFields = append(logFields, "internal_details", appErr.Internal)
		}
		slog.Warn("Request Failed", logFields...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error_code": string(appErr.Code),
		"message":    appErr.Message,
		"request_id": reqID,
	})
}
