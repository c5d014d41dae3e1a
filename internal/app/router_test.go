package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medtrack/medtrack/internal/listing"
	"github.com/medtrack/medtrack/internal/notify"
	"github.com/medtrack/medtrack/internal/request"
	"github.com/medtrack/medtrack/internal/stock"
	_ "github.com/medtrack/medtrack/internal/testing/guard"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.Default()
	return NewRouter(RouterParams{
		Logger:              logger,
		Config:              &Config{AppEnv: "test"},
		ListingHandler:      listing.NewHandler(logger, nil),
		StockHandler:        stock.NewHandler(logger, nil),
		RequestHandler:      request.NewHandler(logger, nil),
		NotificationHandler: notify.NewHandler(logger, nil),
	})
}

func TestHealthz(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestSecurityHeadersApplied(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestInTestModeHonoursGuard(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())
}
