// Package handler exposes the payment webhook and the order endpoints.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"leasepack/internal/compliance"
	"leasepack/internal/fulfillment"
	"leasepack/internal/fulfillment/metrics"
	"leasepack/internal/orders/models"
	"leasepack/internal/platform/middleware"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/platform/httputil"
)

// Service is the fulfillment surface the handler drives.
type Service interface {
	HandlePaymentCompleted(ctx context.Context, ev fulfillment.PaymentEvent) (*fulfillment.Result, error)
	HandlePaymentFailed(ctx context.Context, ev fulfillment.PaymentEvent) (*models.Order, error)
	CreateOrder(ctx context.Context, req fulfillment.CheckoutRequest) (*models.Order, error)
	Dashboard(ctx context.Context, orderID domain.OrderID) (*fulfillment.OrderView, error)
	Retry(ctx context.Context, orderID domain.OrderID) (*fulfillment.Result, error)
}

// Deduper short-circuits payment events that were already processed.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type Handler struct {
	svc      Service
	verifier *Verifier
	deduper  Deduper
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Handler)

func WithDeduper(d Deduper) Option {
	return func(h *Handler) {
		h.deduper = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func New(svc Service, verifier *Verifier, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{svc: svc, verifier: verifier, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/payments", h.handlePaymentWebhook)
	r.Post("/cases/{caseID}/orders", h.handleCreateOrder)
	r.Get("/orders/{orderID}", h.handleGetOrder)
	r.Post("/orders/{orderID}/retry", h.handleRetry)
}

type createOrderRequest struct {
	ProductType   string `json:"product_type"`
	Jurisdiction  string `json:"jurisdiction"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	AmountMinor   int64  `json:"amount"`
	Currency      string `json:"currency"`

	product      domain.ProductType
	jurisdiction domain.Jurisdiction
}

func (r *createOrderRequest) Validate() error {
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	r.CustomerName = strings.TrimSpace(r.CustomerName)

	c := dErrors.Collector{}
	product, err := domain.ParseProductType(r.ProductType)
	c.Add(err != nil, "product_type is invalid")
	r.product = product
	if r.Jurisdiction != "" {
		j, err := domain.ParseJurisdiction(r.Jurisdiction)
		c.Add(err != nil, "jurisdiction is invalid")
		r.jurisdiction = j
	}
	c.Add(r.AmountMinor < 0, "amount must not be negative")
	return c.Err("invalid checkout request")
}

type notReadyResponse struct {
	Error            string             `json:"error"`
	ErrorDescription string             `json:"error_description"`
	Summary          compliance.Summary `json:"summary"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[createOrderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	order, err := h.svc.CreateOrder(ctx, fulfillment.CheckoutRequest{
		CaseID:        caseID,
		Product:       req.product,
		Jurisdiction:  req.jurisdiction,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		AmountMinor:   req.AmountMinor,
		Currency:      req.Currency,
	})
	var notReady *fulfillment.NotReadyError
	if errors.As(err, &notReady) {
		h.logger.InfoContext(ctx, "checkout blocked",
			"request_id", requestID,
			"case_id", caseID,
			"blockers", len(notReady.Summary.Blockers),
		)
		httputil.WriteJSON(w, http.StatusConflict, notReadyResponse{
			Error:            string(dErrors.CodeInvalidState),
			ErrorDescription: "case has unresolved compliance blockers",
			Summary:          notReady.Summary,
		})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err, "create order")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := domain.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.svc.Dashboard(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err, "load order")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// handleRetry re-runs fulfillment for a failed order. Completed orders answer
// with already_completed.
func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	orderID, err := domain.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.svc.Retry(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err, "retry order")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	code, _ := dErrors.CodeOf(err)
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
