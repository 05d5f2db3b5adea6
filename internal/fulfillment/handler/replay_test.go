package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"leasepack/internal/fulfillment"
	"leasepack/internal/fulfillment/handler/mocks"
	"leasepack/pkg/domain"
	"leasepack/pkg/testutil"
)

func replayRouter(t *testing.T, svc Service) (chi.Router, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := New(svc, NewVerifier(testSecret, 5*time.Minute), slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithDeduper(NewRedisDeduper(client, time.Hour)))
	router := chi.NewRouter()
	h.Register(router)
	return router, mr
}

func deliver(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(body))
	req.Header.Set(SignatureHeader, Sign(testSecret, []byte(body), time.Now()))
	return testutil.DoRequest(router, req)
}

func completedEvent(t *testing.T, orderID domain.OrderID, caseID domain.CaseID) string {
	return testutil.MustMarshal(t, map[string]any{
		"id":   "evt_replay",
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_1",
				"payment_intent": "pi_1",
				"amount_total":   4999,
				"currency":       "gbp",
				"metadata": map[string]string{
					"order_id":     orderID.String(),
					"case_id":      caseID.String(),
					"product_type": "notice_only",
				},
			},
		},
	})
}

func TestFailedFulfillmentEventCanBeReplayed(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	orderID := domain.NewOrderID()
	router, mr := replayRouter(t, svc)

	testutil.Given(t, "generation fails on first delivery and succeeds on redelivery", func(t *testing.T) {
		first := svc.EXPECT().HandlePaymentCompleted(gomock.Any(), gomock.Any()).
			Return(&fulfillment.Result{Outcome: fulfillment.OutcomeFailed, OrderID: orderID, Reason: "render failed"}, nil)
		svc.EXPECT().HandlePaymentCompleted(gomock.Any(), gomock.Any()).
			Return(&fulfillment.Result{Outcome: fulfillment.OutcomeCompleted, OrderID: orderID}, nil).
			After(first)
	})

	body := completedEvent(t, orderID, domain.NewCaseID())

	testutil.When(t, "the same event is delivered twice", func(t *testing.T) {
		rec := deliver(t, router, body)
		assert.Equal(t, http.StatusOK, rec.Code)
		testutil.AssertJSONContains(t, rec, "result", "processed")
		assert.False(t, mr.Exists("webhook:event:evt_replay"))

		rec = deliver(t, router, body)
		assert.Equal(t, http.StatusOK, rec.Code)
		testutil.AssertJSONContains(t, rec, "result", "processed")
	})

	testutil.Then(t, "the event is remembered only after fulfillment completes", func(t *testing.T) {
		assert.True(t, mr.Exists("webhook:event:evt_replay"))

		rec := deliver(t, router, body)
		testutil.AssertJSONContains(t, rec, "result", "duplicate")
	})
}

func TestInProgressEventIsNotRemembered(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	orderID := domain.NewOrderID()
	router, mr := replayRouter(t, svc)

	svc.EXPECT().HandlePaymentCompleted(gomock.Any(), gomock.Any()).
		Return(&fulfillment.Result{Outcome: fulfillment.OutcomeInProgress, OrderID: orderID}, nil)

	rec := deliver(t, router, completedEvent(t, orderID, domain.NewCaseID()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mr.Exists("webhook:event:evt_replay"))
}
