package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leasepack/internal/compliance"
	"leasepack/internal/orders/models"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/email"
	"leasepack/pkg/platform/sentinel"
	"leasepack/pkg/requestcontext"
)

// CheckoutRequest creates a pending order for a case.
type CheckoutRequest struct {
	CaseID        domain.CaseID
	Product       domain.ProductType
	Jurisdiction  domain.Jurisdiction
	CustomerEmail string
	CustomerName  string
	AmountMinor   int64
	Currency      string
}

// NotReadyError rejects checkout while the case evaluation has blockers.
type NotReadyError struct {
	Summary compliance.Summary
}

func (e *NotReadyError) Error() string {
	codes := make([]string, 0, len(e.Summary.Blockers))
	for _, b := range e.Summary.Blockers {
		codes = append(codes, b.Code)
	}
	return "case is not ready for checkout: " + strings.Join(codes, ", ")
}

// CreateOrder evaluates the case and records a pending order. A case that
// still needs information but has no blockers may check out.
func (s *Service) CreateOrder(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	if req.Product.IsSubscription() && !s.cfg.SubscriptionEnabled {
		return nil, dErrors.New(dErrors.CodeValidation, "subscription product is not enabled")
	}
	if req.CustomerEmail != "" && !email.IsPlausibleAddress(req.CustomerEmail) {
		return nil, dErrors.WithDetails(dErrors.CodeValidation, "invalid checkout request", "customer_email is not a valid address")
	}

	cf, err := s.cases.CaseFacts(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	jurisdiction := req.Jurisdiction
	if jurisdiction == "" {
		jurisdiction = cf.Jurisdiction
	}
	if jurisdiction == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "case has no jurisdiction")
	}

	if !req.Product.IsSubscription() {
		summary := s.evaluator.EvaluateCase(ctx, cf, req.Product, jurisdiction)
		if len(summary.Blockers) > 0 {
			return nil, &NotReadyError{Summary: summary}
		}
	}

	order, err := models.NewOrder(domain.NewOrderID(), req.CaseID, req.Product, jurisdiction, s.now())
	if err != nil {
		return nil, err
	}
	order.CustomerEmail = req.CustomerEmail
	order.CustomerName = req.CustomerName
	order.AmountMinor = req.AmountMinor
	if req.Currency != "" {
		order.Currency = strings.ToLower(req.Currency)
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "order already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create order")
	}
	s.logger.InfoContext(ctx, "order created",
		"request_id", requestcontext.RequestID(ctx),
		"order_id", order.ID,
		"case_id", order.CaseID,
		"product", order.Product,
	)
	return order, nil
}

// PaymentEvent is the verified content of a payment provider event.
type PaymentEvent struct {
	EventID     string
	OrderID     domain.OrderID
	CaseID      domain.CaseID
	Product     domain.ProductType
	Reference   string
	AmountMinor int64
	Currency    string
}

// HandlePaymentCompleted marks the order paid and fulfills it.
func (s *Service) HandlePaymentCompleted(ctx context.Context, ev PaymentEvent) (*Result, error) {
	if err := s.checkEventMatchesOrder(ctx, ev); err != nil {
		return nil, err
	}
	order, changed, err := s.orders.MarkPaid(ctx, ev.OrderID, ev.Reference, s.now())
	if err != nil {
		return nil, translateOrderErr(err, "mark order paid")
	}
	if changed {
		s.logger.InfoContext(ctx, "payment recorded",
			"request_id", requestcontext.RequestID(ctx),
			"order_id", order.ID,
			"event_id", ev.EventID,
		)
	}
	return s.Fulfill(ctx, ev.OrderID)
}

// HandlePaymentFailed records a failed payment. Paid orders are left alone so a
// late failure event cannot undo a success.
func (s *Service) HandlePaymentFailed(ctx context.Context, ev PaymentEvent) (*models.Order, error) {
	order, changed, err := s.orders.MarkPaymentFailed(ctx, ev.OrderID, s.now())
	if err != nil {
		return nil, translateOrderErr(err, "mark payment failed")
	}
	if !changed {
		s.logger.InfoContext(ctx, "payment failure ignored",
			"request_id", requestcontext.RequestID(ctx),
			"order_id", ev.OrderID,
			"payment_status", order.PaymentStatus,
		)
	}
	return order, nil
}

// checkEventMatchesOrder rejects events whose metadata contradicts the order.
func (s *Service) checkEventMatchesOrder(ctx context.Context, ev PaymentEvent) error {
	order, err := s.orders.FindByID(ctx, ev.OrderID)
	if err != nil {
		return translateOrderErr(err, "load order")
	}
	c := dErrors.Collector{}
	c.Add(!ev.CaseID.IsNil() && ev.CaseID != order.CaseID, "metadata.case_id does not match order")
	c.Add(ev.Product != "" && ev.Product != order.Product, "metadata.product_type does not match order")
	return c.Err("payment event does not match order")
}

// Retry re-enters the idempotent fulfillment path for an order.
func (s *Service) Retry(ctx context.Context, orderID domain.OrderID) (*Result, error) {
	return s.Fulfill(ctx, orderID)
}

// NextAction tells the dashboard what the customer can do about a failed order.
type NextAction struct {
	Action       string `json:"action"`
	SupportEmail string `json:"support_email,omitempty"`
	Message      string `json:"message"`
}

// OrderView is the dashboard projection of one order.
type OrderView struct {
	Order      *models.Order      `json:"order"`
	Documents  []*models.Document `json:"documents"`
	NextAction *NextAction        `json:"next_action,omitempty"`
}

// Dashboard returns an order with its documents. A failed order always carries
// a retry action so it cannot look complete.
func (s *Service) Dashboard(ctx context.Context, orderID domain.OrderID) (*OrderView, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, translateOrderErr(err, "load order")
	}
	docs, err := s.documents.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list documents")
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	view := &OrderView{Order: order, Documents: docs}
	switch order.FulfillmentStatus {
	case models.FulfillmentFailed:
		view.NextAction = &NextAction{
			Action:       "retry",
			SupportEmail: s.cfg.SupportEmail,
			Message:      fmt.Sprintf("We could not prepare your documents (%s). Retry, or contact support if it fails again.", order.FailureReason),
		}
	case models.FulfillmentPending:
		if order.PaymentStatus == models.PaymentFailed {
			view.NextAction = &NextAction{
				Action:       "pay",
				SupportEmail: s.cfg.SupportEmail,
				Message:      "Your payment did not go through. Try paying again.",
			}
		}
	}
	return view, nil
}

func translateOrderErr(err error, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "order not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, op)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
