package models

import (
	"time"

	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
)

// PaymentStatus tracks the provider's view of the checkout.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// CanTransitionTo reports whether a payment event may move the status. Paid
// never regresses, so a failure event delivered after success is ignored.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentPaid || next == PaymentFailed
	case PaymentFailed:
		return next == PaymentPaid
	}
	return false
}

// FulfillmentStatus is exactly pending|processing|completed|failed.
type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "pending"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentCompleted  FulfillmentStatus = "completed"
	FulfillmentFailed     FulfillmentStatus = "failed"
)

// CanTransitionTo encodes the single forward path. Completed is terminal.
func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	switch s {
	case FulfillmentPending, FulfillmentFailed:
		return next == FulfillmentProcessing
	case FulfillmentProcessing:
		return next == FulfillmentCompleted || next == FulfillmentFailed
	}
	return false
}

// Claimable reports whether a fulfillment run may start from this status.
func (s FulfillmentStatus) Claimable() bool {
	return s.CanTransitionTo(FulfillmentProcessing)
}

func (s FulfillmentStatus) IsTerminal() bool {
	return s == FulfillmentCompleted
}

// PackMetadata is recorded once the pack is fully persisted.
type PackMetadata struct {
	DocumentCount int                 `json:"document_count"`
	PackType      domain.ProductType  `json:"pack_type"`
	Jurisdiction  domain.Jurisdiction `json:"jurisdiction"`
}

// Order is one purchase of a product for a case.
//
// Invariants:
//   - FulfillmentStatus only moves along pending|failed -> processing -> completed|failed
//   - ProcessingStartedAt is set whenever FulfillmentStatus is processing
//   - Pack is only populated on completed orders
type Order struct {
	ID                  domain.OrderID      `json:"id"`
	CaseID              domain.CaseID       `json:"case_id"`
	Product             domain.ProductType  `json:"product_type"`
	Jurisdiction        domain.Jurisdiction `json:"jurisdiction"`
	PaymentStatus       PaymentStatus       `json:"payment_status"`
	FulfillmentStatus   FulfillmentStatus   `json:"fulfillment_status"`
	CustomerEmail       string              `json:"customer_email,omitempty"`
	CustomerName        string              `json:"customer_name,omitempty"`
	AmountMinor         int64               `json:"amount_minor"`
	Currency            string              `json:"currency"`
	PaymentReference    string              `json:"payment_reference,omitempty"`
	ProcessingStartedAt *time.Time          `json:"processing_started_at,omitempty"`
	FailureReason       string              `json:"failure_reason,omitempty"`
	Attempts            int                 `json:"attempts"`
	Pack                PackMetadata        `json:"pack"`
	PaidAt              *time.Time          `json:"paid_at,omitempty"`
	FulfilledAt         *time.Time          `json:"fulfilled_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewOrder builds a pending order at checkout.
func NewOrder(orderID domain.OrderID, caseID domain.CaseID, product domain.ProductType, jurisdiction domain.Jurisdiction, now time.Time) (*Order, error) {
	if orderID.IsNil() || caseID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "order and case ids are required")
	}
	if product == "" || jurisdiction == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "product and jurisdiction are required")
	}
	return &Order{
		ID:                orderID,
		CaseID:            caseID,
		Product:           product,
		Jurisdiction:      jurisdiction,
		PaymentStatus:     PaymentPending,
		FulfillmentStatus: FulfillmentPending,
		Currency:          "gbp",
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// MarkPaid records a successful payment. Repeated success events are no-ops
// and report false.
func (o *Order) MarkPaid(reference string, now time.Time) bool {
	if !o.PaymentStatus.CanTransitionTo(PaymentPaid) {
		return false
	}
	o.PaymentStatus = PaymentPaid
	if reference != "" {
		o.PaymentReference = reference
	}
	o.PaidAt = &now
	o.UpdatedAt = now
	return true
}

// MarkPaymentFailed records a failed payment unless the order is already paid.
func (o *Order) MarkPaymentFailed(now time.Time) bool {
	if !o.PaymentStatus.CanTransitionTo(PaymentFailed) {
		return false
	}
	o.PaymentStatus = PaymentFailed
	o.UpdatedAt = now
	return true
}

// CanClaim checks that a fulfillment run may start.
func (o *Order) CanClaim() error {
	if !o.FulfillmentStatus.Claimable() {
		return dErrors.New(dErrors.CodeInvalidState, "order fulfillment is "+string(o.FulfillmentStatus))
	}
	return nil
}

// ApplyClaim moves the order into processing. Call CanClaim first.
func (o *Order) ApplyClaim(now time.Time) {
	o.FulfillmentStatus = FulfillmentProcessing
	o.ProcessingStartedAt = &now
	o.FailureReason = ""
	o.Attempts++
	o.UpdatedAt = now
}

// Complete marks a processing order as done with its pack metadata.
func (o *Order) Complete(meta PackMetadata, now time.Time) error {
	if !o.FulfillmentStatus.CanTransitionTo(FulfillmentCompleted) {
		return dErrors.New(dErrors.CodeInvalidState, "cannot complete order in "+string(o.FulfillmentStatus))
	}
	o.FulfillmentStatus = FulfillmentCompleted
	o.Pack = meta
	o.FulfilledAt = &now
	o.FailureReason = ""
	o.UpdatedAt = now
	return nil
}

// Fail marks a processing order as failed so it becomes eligible for replay.
func (o *Order) Fail(reason string, now time.Time) error {
	if !o.FulfillmentStatus.CanTransitionTo(FulfillmentFailed) {
		return dErrors.New(dErrors.CodeInvalidState, "cannot fail order in "+string(o.FulfillmentStatus))
	}
	o.FulfillmentStatus = FulfillmentFailed
	o.FailureReason = reason
	o.UpdatedAt = now
	return nil
}

// IsStale reports whether the order has been processing longer than after.
func (o *Order) IsStale(now time.Time, after time.Duration) bool {
	return o.FulfillmentStatus == FulfillmentProcessing &&
		o.ProcessingStartedAt != nil &&
		now.Sub(*o.ProcessingStartedAt) > after
}
