package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/testutil"
)

func newOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(domain.NewOrderID(), domain.NewCaseID(), domain.ProductNoticeOnly, domain.JurisdictionEngland, time.Now())
	require.NoError(t, err)
	return o
}

func TestFulfillmentTransitions(t *testing.T) {
	cases := []struct {
		from, to FulfillmentStatus
		ok       bool
	}{
		{FulfillmentPending, FulfillmentProcessing, true},
		{FulfillmentFailed, FulfillmentProcessing, true},
		{FulfillmentProcessing, FulfillmentCompleted, true},
		{FulfillmentProcessing, FulfillmentFailed, true},
		{FulfillmentPending, FulfillmentCompleted, false},
		{FulfillmentProcessing, FulfillmentProcessing, false},
		{FulfillmentCompleted, FulfillmentProcessing, false},
		{FulfillmentCompleted, FulfillmentFailed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, FulfillmentCompleted.IsTerminal())
}

func TestPaymentNeverRegresses(t *testing.T) {
	o := newOrder(t)
	now := time.Now()

	assert.True(t, o.MarkPaymentFailed(now))
	assert.Equal(t, PaymentFailed, o.PaymentStatus)

	assert.True(t, o.MarkPaid("cs_123", now))
	assert.Equal(t, "cs_123", o.PaymentReference)
	assert.NotNil(t, o.PaidAt)

	assert.False(t, o.MarkPaymentFailed(now))
	assert.False(t, o.MarkPaid("cs_456", now))
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "cs_123", o.PaymentReference)
}

func TestClaimCompleteFail(t *testing.T) {
	o := newOrder(t)
	now := time.Now()

	require.NoError(t, o.CanClaim())
	o.ApplyClaim(now)
	assert.Equal(t, FulfillmentProcessing, o.FulfillmentStatus)
	assert.Equal(t, 1, o.Attempts)
	assert.True(t, dErrors.HasCode(o.CanClaim(), dErrors.CodeInvalidState))

	require.NoError(t, o.Fail("upload failed", now))
	assert.Equal(t, "upload failed", o.FailureReason)

	require.NoError(t, o.CanClaim())
	o.ApplyClaim(now)
	assert.Empty(t, o.FailureReason)
	assert.Equal(t, 2, o.Attempts)

	meta := PackMetadata{DocumentCount: 1, PackType: domain.ProductNoticeOnly, Jurisdiction: domain.JurisdictionEngland}
	require.NoError(t, o.Complete(meta, now))
	assert.Equal(t, meta, o.Pack)

	assert.Error(t, o.CanClaim())
	assert.Error(t, o.Fail("late", now))
	assert.Error(t, o.Complete(meta, now))
}

func TestIsStale(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	testutil.Given(t, "an order claimed for processing", func(t *testing.T) {
		o := newOrder(t)
		o.ApplyClaim(start)

		testutil.When(t, "the claim is younger than the threshold", func(t *testing.T) {
			testutil.Then(t, "it is not stale", func(t *testing.T) {
				assert.False(t, o.IsStale(start.Add(10*time.Minute), 15*time.Minute))
			})
		})
		testutil.When(t, "the claim is older than the threshold", func(t *testing.T) {
			testutil.Then(t, "it is stale", func(t *testing.T) {
				assert.True(t, o.IsStale(start.Add(16*time.Minute), 15*time.Minute))
			})
		})
	})

	testutil.Given(t, "an order that already failed", func(t *testing.T) {
		o := newOrder(t)
		o.ApplyClaim(start)
		require.NoError(t, o.Fail("x", start))

		testutil.Then(t, "it is never stale", func(t *testing.T) {
			assert.False(t, o.IsStale(start.Add(time.Hour), 15*time.Minute))
		})
	})
}

func TestNewOrderRequiresIDs(t *testing.T) {
	_, err := NewOrder(domain.OrderID{}, domain.NewCaseID(), domain.ProductNoticeOnly, domain.JurisdictionEngland, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
