package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasepack/internal/platform/middleware"
	"leasepack/pkg/requestcontext"
	"leasepack/pkg/testutil"
)

type echoHandler struct{}

func (echoHandler) Register(r chi.Router) {
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline := r.Context().Deadline()
		w.Header().Set("X-Has-Deadline", map[bool]string{true: "yes", false: "no"}[hasDeadline])
		_, _ = w.Write([]byte(requestcontext.UserAgent(r.Context())))
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	return NewRouter(Deps{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		RequestTimeout: time.Second,
		HealthChecks:   checks,
		Handlers:       []Registrar{echoHandler{}},
	})
}

func TestRouterAppliesMiddleware(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set("User-Agent", "curl/8.5.0")
	rec := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "curl/8.5.0", rec.Body.String())
	assert.Equal(t, "yes", rec.Header().Get("X-Has-Deadline"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRouterRecoversPanics(t *testing.T) {
	rec := testutil.DoRequest(newTestRouter(nil), httptest.NewRequest(http.MethodGet, "/panic", nil))

	testutil.AssertStatusAndError(t, rec, http.StatusInternalServerError, "internal_error")
}

func TestHealthz(t *testing.T) {
	healthy := newTestRouter(map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	rec := testutil.DoRequest(healthy, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "status", "ok")

	degraded := newTestRouter(map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec = testutil.DoRequest(degraded, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(t, rec, "checks", map[string]any{"postgres": "ok", "redis": "connection refused"})
}

func TestMetricsEndpoint(t *testing.T) {
	rec := testutil.DoRequest(newTestRouter(nil), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	testutil.AssertStatusOK(t, rec)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
