package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasepack/internal/platform/config"
	"leasepack/pkg/platform/circuit"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestCompletedEmail(t *testing.T) {
	sender := &recordingSender{}
	n := New(sender)

	err := n.FulfillmentOutcome(context.Background(), FulfillmentNotice{
		OrderID:       "ord-1",
		Email:         "jane.smith@example.com",
		ProductName:   "notice only pack",
		Completed:     true,
		DocumentCount: 1,
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "jane.smith@example.com", msg.To)
	assert.Equal(t, "Your documents are ready", msg.Subject)
	assert.Contains(t, msg.Body, "Dear Jane,")
	assert.Contains(t, msg.Body, "1 document is available")
}

func TestFailedEmailOffersRetryAndSupport(t *testing.T) {
	sender := &recordingSender{}
	n := New(sender, WithSupportAddress("help@leasepack.example"))

	require.NoError(t, n.FulfillmentOutcome(context.Background(), FulfillmentNotice{
		OrderID: "ord-2", Email: "a@example.com", Name: "Bob Jones", ProductName: "complete pack",
	}))
	msg := sender.sent[0]
	assert.Contains(t, msg.Body, "Dear Bob,")
	assert.Contains(t, msg.Body, "retry")
	assert.Contains(t, msg.Body, "help@leasepack.example")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay down")}
	n := New(sender, WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2))))
	notice := FulfillmentNotice{Email: "a@example.com", Completed: true}

	assert.Error(t, n.FulfillmentOutcome(context.Background(), notice))
	assert.Error(t, n.FulfillmentOutcome(context.Background(), notice))
	assert.ErrorIs(t, n.FulfillmentOutcome(context.Background(), notice), ErrCircuitOpen)
}

func TestNoRecipient(t *testing.T) {
	n := New(&recordingSender{})
	assert.ErrorIs(t, n.FulfillmentOutcome(context.Background(), FulfillmentNotice{}), ErrNoRecipient)
}

func TestSMTPSenderFormatsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s := NewSMTPSender(config.SMTP{Host: "mail.example", Port: "587", From: "no-reply@leasepack.example", FromName: "LeasePack"})
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, s.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Body: "line1\nline2"}))
	assert.Equal(t, "mail.example:587", gotAddr)
	assert.Equal(t, "no-reply@leasepack.example", gotFrom)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(string(gotMsg), "To: a@example.com\r\nFrom: LeasePack <no-reply@leasepack.example>\r\n"))
	assert.True(t, strings.HasSuffix(string(gotMsg), "line1\r\nline2"))

	assert.Error(t, NewSMTPSender(config.SMTP{}).Send(context.Background(), Message{}))
}
