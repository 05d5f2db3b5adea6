package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"leasepack/internal/platform/config"
	"leasepack/pkg/testutil"
)

// With nothing configured the app runs entirely in process.
func TestBuildInMemory(t *testing.T) {
	cfg := config.Config{
		Storage:     config.Storage{Bucket: "documents"},
		Fulfillment: config.DefaultFulfillment(),
	}
	a, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	router := a.Router()

	rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/cases", map[string]string{"jurisdiction": "england"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := testutil.UnmarshalResponse[map[string]any](t, rec)
	caseID, ok := (*created)["id"].(string)
	require.True(t, ok)

	rec = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/cases/"+caseID+"/compliance?product=notice_only"))
	testutil.AssertStatusOK(t, rec)
	testutil.AssertJSONContains(t, rec, "status", "needs_info")

	rec = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rec)

	rec = testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/payments", `{"type":"checkout.session.completed"}`))
	testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "bad_request")
}
