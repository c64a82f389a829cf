package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/mattjonesorg/ABLE-Expense-Tracker-sub000/internal/telemetry"
)

// NewMockDB returns a pgxmock pool that closes itself when the test
// ends.
func NewMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)

	t.Cleanup(mockPool.Close)

	return mockPool
}

// NewTestLogger logs to stdout through the same trace-aware handler
// the binaries use, so -v output matches production shape.
func NewTestLogger() *slog.Logger {
	return slog.New(telemetry.NewTraceHandler(slog.NewJSONHandler(os.Stdout, nil)))
}
