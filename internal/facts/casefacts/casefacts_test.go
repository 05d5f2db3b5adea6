package casefacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasepack/internal/facts"
	"leasepack/pkg/domain"
)

func mustStore(t *testing.T, raw string) *facts.Store {
	t.Helper()
	st, err := facts.FromJSON([]byte(raw))
	require.NoError(t, err)
	return st
}

func TestNormalizeFullCase(t *testing.T) {
	st := mustStore(t, `{
		"case.jurisdiction": "england",
		"landlord.full_name": "Jane Smith",
		"landlord.address_line1": "1 High St",
		"landlord.town": "Leeds",
		"landlord.postcode": "ls1 1aa",
		"tenants.1.full_name": "Bob Jones",
		"tenants.0.full_name": "Alice Jones",
		"tenants.0.email": "alice@example.com",
		"property.address_line1": "2 Low Rd",
		"property.postcode": "LS2 2BB",
		"tenancy.start_date": "01/02/2024",
		"tenancy.rent_amount": "£1,200.00",
		"tenancy.rent_frequency": "Monthly",
		"tenancy.deposit_protected": "no",
		"arrears.total_amount": 3000,
		"notice.route": "Section 8",
		"notice.grounds": ["Ground 8", "10", "ground_8", "11"],
		"notice.service_date": "2026-01-01"
	}`)

	c := Normalize(st)

	assert.Equal(t, domain.JurisdictionEngland, c.Jurisdiction)
	assert.Equal(t, "Jane Smith", c.Parties.Landlord.FullName)
	assert.Equal(t, "LS1 1AA", c.Parties.Landlord.Address.Postcode)
	require.Len(t, c.Parties.Tenants, 2)
	assert.Equal(t, "Alice Jones", c.Parties.Tenants[0].FullName)
	assert.Equal(t, "Alice Jones and Bob Jones", c.Parties.TenantNames())
	assert.Equal(t, "2 Low Rd, LS2 2BB", c.Property.String())

	require.NotNil(t, c.Tenancy.StartDate)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), *c.Tenancy.StartDate)
	assert.InDelta(t, 1200.0, c.Tenancy.RentAmount, 0.001)
	assert.Equal(t, "monthly", c.Tenancy.RentFrequency)
	assert.Equal(t, No, c.Deposit.Protected)
	assert.InDelta(t, 2.5, c.ArrearsMonths(), 0.001)

	assert.Equal(t, RouteSection8, c.Notice.Route)
	assert.Equal(t, []string{"8", "10", "11"}, c.Notice.Grounds)
	assert.True(t, c.Has(KeyNoticeServiceDate))
	assert.False(t, c.Has(KeyNoticeExpiryDate))
}

func TestNormalizeEmptyStore(t *testing.T) {
	c := Normalize(facts.NewStore())

	assert.Empty(t, c.Jurisdiction)
	assert.Nil(t, c.Tenancy.StartDate)
	assert.Equal(t, Unknown, c.Compliance.GasSafetyProvided)
	assert.False(t, c.Has(KeyTenancyStart))
	assert.Len(t, c.Evidence, len(facts.EvidenceKinds))
}

func TestSingleTenantFallback(t *testing.T) {
	c := Normalize(mustStore(t, `{"tenant.full_name":"Solo Tenant"}`))
	require.Len(t, c.Parties.Tenants, 1)
	assert.Equal(t, "Solo Tenant", c.Parties.TenantNames())
}

func TestMonthlyRent(t *testing.T) {
	assert.InDelta(t, 866.67, Tenancy{RentAmount: 200, RentFrequency: "weekly"}.MonthlyRent(), 0.01)
	assert.InDelta(t, 100.0, Tenancy{RentAmount: 1200, RentFrequency: "yearly"}.MonthlyRent(), 0.01)
}

func TestParseNoticeRoute(t *testing.T) {
	assert.Equal(t, RouteSection21, ParseNoticeRoute("Form 6A"))
	assert.Equal(t, RouteSection21, ParseNoticeRoute("s21"))
	assert.Equal(t, RouteNoticeToLeave, ParseNoticeRoute("notice-to-leave"))
	assert.Equal(t, RouteNone, ParseNoticeRoute("something else"))
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2026-01-15", "15/01/2026", "15 January 2026", "2026-01-15T10:00:00Z"} {
		d, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), d)
	}
	_, ok := ParseDate("next tuesday")
	assert.False(t, ok)
}
