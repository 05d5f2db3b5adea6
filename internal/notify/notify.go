// Package notify sends best-effort fulfillment emails. Failures are returned
// to the caller for logging and never change an order's outcome.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"

	"leasepack/pkg/email"
	"leasepack/pkg/platform/circuit"
)

var (
	// ErrCircuitOpen means recent sends failed and the relay is being rested.
	ErrCircuitOpen = errors.New("notification circuit open")
	// ErrNoRecipient means the order carries no usable address.
	ErrNoRecipient = errors.New("no recipient address")
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// FulfillmentNotice is what the orchestrator reports after a run.
type FulfillmentNotice struct {
	OrderID       string
	CaseID        string
	Email         string
	Name          string
	ProductName   string
	Completed     bool
	DocumentCount int
	FailureReason string
}

var bodies = template.Must(template.New("completed").Parse(`Dear {{.Greeting}},

Your {{.ProductName}} is ready. {{.DocumentCount}} document{{if ne .DocumentCount 1}}s are{{else}} is{{end}} available on your case dashboard.

Order reference: {{.OrderID}}
`))

func init() {
	template.Must(bodies.New("failed").Parse(`Dear {{.Greeting}},

We could not finish preparing your {{.ProductName}}. Your payment is safe and you can retry from your case dashboard, or contact {{.Support}} and quote order {{.OrderID}}.
`))
}

// Notifier renders fulfillment emails and sends them through a circuit breaker.
type Notifier struct {
	sender  Sender
	breaker *circuit.Breaker
	logger  *slog.Logger
	support string
}

type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(n *Notifier) {
		n.breaker = b
	}
}

// WithSupportAddress sets the contact shown in failure emails.
func WithSupportAddress(address string) Option {
	return func(n *Notifier) {
		n.support = address
	}
}

func New(sender Sender, opts ...Option) *Notifier {
	n := &Notifier{
		sender:  sender,
		breaker: circuit.New("notify"),
		logger:  slog.Default(),
		support: "support",
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// FulfillmentOutcome emails the customer about a completed or failed run.
func (n *Notifier) FulfillmentOutcome(ctx context.Context, notice FulfillmentNotice) error {
	if !email.IsPlausibleAddress(notice.Email) {
		return ErrNoRecipient
	}
	msg, err := n.render(notice)
	if err != nil {
		return err
	}
	if !n.breaker.Allow() {
		return ErrCircuitOpen
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		if _, change := n.breaker.RecordFailure(); change.Opened {
			n.logger.WarnContext(ctx, "notification circuit opened", "breaker", n.breaker.Name())
		}
		return fmt.Errorf("send notification: %w", err)
	}
	if _, change := n.breaker.RecordSuccess(); change.Closed {
		n.logger.InfoContext(ctx, "notification circuit closed", "breaker", n.breaker.Name())
	}
	return nil
}

func (n *Notifier) render(notice FulfillmentNotice) (Message, error) {
	data := struct {
		FulfillmentNotice
		Greeting string
		Support  string
	}{notice, email.GreetingName(notice.Name, notice.Email), n.support}

	name, subject := "completed", "Your documents are ready"
	if !notice.Completed {
		name, subject = "failed", "We could not prepare your documents"
	}
	var buf bytes.Buffer
	if err := bodies.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", name, err)
	}
	return Message{To: notice.Email, Subject: subject, Body: buf.String()}, nil
}
