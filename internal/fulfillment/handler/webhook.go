package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"leasepack/internal/fulfillment"
	"leasepack/internal/platform/middleware"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/platform/httputil"
)

const maxWebhookBody = 256 << 10

const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventAsyncPaymentFailed  = "checkout.session.async_payment_failed"
	eventPaymentIntentFailed = "payment_intent.payment_failed"
	webhookResultProcessed   = "processed"
	webhookResultIgnored     = "ignored"
	webhookResultDuplicate   = "duplicate"
	webhookResultRejected    = "rejected"
	webhookResultRetryable   = "retryable"
)

type paymentEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object paymentObject `json:"object"`
	} `json:"data"`
}

type paymentObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// reference prefers the payment intent, which is stable across sessions.
func (o paymentObject) reference() string {
	if o.PaymentIntent != "" {
		return o.PaymentIntent
	}
	return o.ID
}

type webhookResponse struct {
	Received bool                `json:"received"`
	Result   string              `json:"result"`
	Outcome  *fulfillment.Result `json:"fulfillment,omitempty"`
}

// handlePaymentWebhook verifies and dispatches a payment event. Any event it
// examined gets a 2xx; only bad signatures, bad bodies and failures that leave
// the order retryable get anything else, so the provider redelivers exactly
// when that can help.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unreadable body"))
		return
	}
	if err := h.verifier.Verify(r.Header.Get(SignatureHeader), payload); err != nil {
		h.logger.WarnContext(ctx, "payment webhook signature rejected",
			"request_id", requestID,
			"error", err,
		)
		h.metrics.IncWebhookEvent("", webhookResultRejected)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid signature"))
		return
	}

	var env paymentEnvelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Type == "" {
		h.metrics.IncWebhookEvent("", webhookResultRejected)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid event body"))
		return
	}

	switch env.Type {
	case eventCheckoutCompleted:
		h.paymentCompleted(w, r, env)
	case eventAsyncPaymentFailed, eventPaymentIntentFailed:
		h.paymentFailed(w, r, env)
	default:
		h.logger.InfoContext(ctx, "payment webhook event ignored",
			"request_id", requestID,
			"event_type", env.Type,
			"event_id", env.ID,
		)
		h.metrics.IncWebhookEvent("other", webhookResultIgnored)
		httputil.WriteJSON(w, http.StatusOK, webhookResponse{Received: true, Result: webhookResultIgnored})
	}
}

func (h *Handler) paymentCompleted(w http.ResponseWriter, r *http.Request, env paymentEnvelope) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	ev, err := paymentEventFrom(env)
	if err != nil {
		h.metrics.IncWebhookEvent(env.Type, webhookResultRejected)
		httputil.WriteError(w, err)
		return
	}

	if h.deduper != nil && env.ID != "" {
		seen, err := h.deduper.Seen(ctx, env.ID)
		if err != nil {
			h.logger.WarnContext(ctx, "webhook de-dup unavailable",
				"request_id", requestID,
				"error", err,
			)
		}
		if seen {
			h.metrics.IncWebhookEvent(env.Type, webhookResultDuplicate)
			httputil.WriteJSON(w, http.StatusOK, webhookResponse{Received: true, Result: webhookResultDuplicate})
			return
		}
	}

	result, err := h.svc.HandlePaymentCompleted(ctx, ev)
	if err != nil {
		h.metrics.IncWebhookEvent(env.Type, webhookResultRejected)
		h.writeServiceError(w, r, err, "payment completed")
		return
	}
	if result.Outcome == fulfillment.OutcomeFailed && result.Retryable {
		h.metrics.IncWebhookEvent(env.Type, webhookResultRetryable)
		h.logger.ErrorContext(ctx, "fulfillment failed, asking for redelivery",
			"request_id", requestID,
			"order_id", ev.OrderID,
			"reason", result.Reason,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, webhookResponse{Received: true, Result: webhookResultRetryable, Outcome: result})
		return
	}

	if h.deduper != nil && env.ID != "" && isSettled(result.Outcome) {
		if err := h.deduper.MarkProcessed(ctx, env.ID); err != nil {
			h.logger.WarnContext(ctx, "failed to record processed webhook event",
				"request_id", requestID,
				"event_id", env.ID,
				"error", err,
			)
		}
	}
	h.metrics.IncWebhookEvent(env.Type, webhookResultProcessed)
	httputil.WriteJSON(w, http.StatusOK, webhookResponse{Received: true, Result: webhookResultProcessed, Outcome: result})
}

func (h *Handler) paymentFailed(w http.ResponseWriter, r *http.Request, env paymentEnvelope) {
	ev, err := paymentEventFrom(env)
	if err != nil {
		h.metrics.IncWebhookEvent(env.Type, webhookResultRejected)
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.svc.HandlePaymentFailed(r.Context(), ev); err != nil {
		h.metrics.IncWebhookEvent(env.Type, webhookResultRejected)
		h.writeServiceError(w, r, err, "payment failed")
		return
	}
	h.metrics.IncWebhookEvent(env.Type, webhookResultProcessed)
	httputil.WriteJSON(w, http.StatusOK, webhookResponse{Received: true, Result: webhookResultProcessed})
}

// isSettled reports whether a redelivery of the event can only be a no-op.
// Failed orders stay replayable, so their events are not remembered.
func isSettled(outcome fulfillment.Outcome) bool {
	return outcome == fulfillment.OutcomeCompleted || outcome == fulfillment.OutcomeAlreadyCompleted
}

// paymentEventFrom reads the order reference out of the event metadata.
func paymentEventFrom(env paymentEnvelope) (fulfillment.PaymentEvent, error) {
	obj := env.Data.Object
	meta := obj.Metadata
	orderID, err := domain.ParseOrderID(meta["order_id"])
	if err != nil {
		return fulfillment.PaymentEvent{}, dErrors.WithDetails(dErrors.CodeValidation, "invalid event metadata", "metadata.order_id is missing or invalid")
	}
	ev := fulfillment.PaymentEvent{
		EventID:     env.ID,
		OrderID:     orderID,
		Reference:   obj.reference(),
		AmountMinor: obj.AmountTotal,
		Currency:    obj.Currency,
	}
	if ev.AmountMinor == 0 {
		ev.AmountMinor = obj.Amount
	}
	if raw := meta["case_id"]; raw != "" {
		if ev.CaseID, err = domain.ParseCaseID(raw); err != nil {
			return fulfillment.PaymentEvent{}, dErrors.WithDetails(dErrors.CodeValidation, "invalid event metadata", "metadata.case_id is invalid")
		}
	}
	if raw := meta["product_type"]; raw != "" {
		if ev.Product, err = domain.ParseProductType(raw); err != nil {
			return fulfillment.PaymentEvent{}, dErrors.WithDetails(dErrors.CodeValidation, "invalid event metadata", "metadata.product_type is invalid")
		}
	}
	return ev, nil
}
