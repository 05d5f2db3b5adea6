// Package casefacts projects the flat fact store into the typed case shape that
// compliance checks and pack generators read. The projection is one way.
package casefacts

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"leasepack/internal/facts"
	"leasepack/pkg/domain"
)

// YesNo is a tri-state answer; Unknown means the question was not answered.
type YesNo int

const (
	Unknown YesNo = iota
	Yes
	No
)

func (y YesNo) Known() bool { return y != Unknown }

func (y YesNo) String() string {
	switch y {
	case Yes:
		return "yes"
	case No:
		return "no"
	}
	return "unknown"
}

// NoticeRoute is the statutory basis of a possession notice.
type NoticeRoute string

const (
	RouteNone          NoticeRoute = ""
	RouteSection21     NoticeRoute = "section_21"
	RouteSection8      NoticeRoute = "section_8"
	RouteSection173    NoticeRoute = "section_173"
	RouteNoticeToLeave NoticeRoute = "notice_to_leave"
)

var routeAliases = map[string]NoticeRoute{
	"section_21": RouteSection21, "section21": RouteSection21, "s21": RouteSection21, "form_6a": RouteSection21, "no_fault": RouteSection21,
	"section_8": RouteSection8, "section8": RouteSection8, "s8": RouteSection8, "form_3": RouteSection8, "fault": RouteSection8,
	"section_173": RouteSection173, "section173": RouteSection173, "rhw16": RouteSection173, "rhw17": RouteSection173,
	"notice_to_leave": RouteNoticeToLeave, "ntl": RouteNoticeToLeave,
}

// ParseNoticeRoute accepts the spellings the questionnaire has used.
func ParseNoticeRoute(s string) NoticeRoute {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	return routeAliases[key]
}

type Address struct {
	Line1    string
	Line2    string
	Town     string
	County   string
	Postcode string
}

func (a Address) IsZero() bool {
	return a.Line1 == "" && a.Town == "" && a.Postcode == ""
}

// Lines returns the non-empty address lines in postal order.
func (a Address) Lines() []string {
	var out []string
	for _, l := range []string{a.Line1, a.Line2, a.Town, a.County, a.Postcode} {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func (a Address) String() string { return strings.Join(a.Lines(), ", ") }

type Party struct {
	FullName string
	Email    string
	Phone    string
	Address  Address
}

type Parties struct {
	Landlord  Party
	Agent     Party
	Tenants   []Party
	Guarantor Party
}

// TenantNames joins tenant names for document headings.
func (p Parties) TenantNames() string {
	names := make([]string, 0, len(p.Tenants))
	for _, t := range p.Tenants {
		names = append(names, t.FullName)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

type Tenancy struct {
	StartDate     *time.Time
	EndDate       *time.Time
	Type          string
	TermMonths    int
	RentAmount    float64
	RentFrequency string
	RentDueDay    int
}

// MonthlyRent converts the rent to a calendar-month equivalent.
func (t Tenancy) MonthlyRent() float64 {
	switch t.RentFrequency {
	case "weekly":
		return t.RentAmount * 52 / 12
	case "fortnightly":
		return t.RentAmount * 26 / 12
	case "four_weekly", "4_weekly":
		return t.RentAmount * 13 / 12
	case "quarterly":
		return t.RentAmount / 3
	case "yearly", "annually":
		return t.RentAmount / 12
	}
	return t.RentAmount
}

type Deposit struct {
	Amount              float64
	Protected           YesNo
	Scheme              string
	PrescribedInfoGiven YesNo
}

type Financials struct {
	ArrearsTotal     float64
	ArrearsAsOf      *time.Time
	ClaimAmount      float64
	InterestRate     float64
	ClaimDescription string
}

type Notice struct {
	Route         NoticeRoute
	Grounds       []string
	ServiceDate   *time.Time
	ExpiryDate    *time.Time
	ServiceMethod string
	Particulars   string
}

type Compliance struct {
	GasSafetyProvided      YesNo
	EPCProvided            YesNo
	HowToRentProvided      YesNo
	LicensingCompliant     YesNo
	RepairComplaintPending YesNo
}

// CaseFacts is the canonical, read-only view of one case.
type CaseFacts struct {
	Jurisdiction domain.Jurisdiction
	Parties      Parties
	Property     Address
	Tenancy      Tenancy
	Deposit      Deposit
	Financials   Financials
	Notice       Notice
	Compliance   Compliance
	Evidence     map[facts.EvidenceKind]bool
	CourtName    string
}

// ArrearsMonths is arrears expressed in months of rent, rounded down to 2dp.
func (c CaseFacts) ArrearsMonths() float64 {
	monthly := c.Tenancy.MonthlyRent()
	if monthly <= 0 {
		return 0
	}
	return math.Floor(c.Financials.ArrearsTotal/monthly*100) / 100
}

// Has reports whether the named canonical field carries an answer. Field names
// match the fact keys in keys.go.
func (c CaseFacts) Has(field string) bool {
	switch field {
	case KeyJurisdiction:
		return c.Jurisdiction != ""
	case KeyLandlordName:
		return c.Parties.Landlord.FullName != ""
	case KeyLandlordAddress:
		return !c.Parties.Landlord.Address.IsZero()
	case "tenants", KeySingleTenantName:
		return len(c.Parties.Tenants) > 0
	case KeyGuarantorName:
		return c.Parties.Guarantor.FullName != ""
	case KeyPropertyAddress:
		return !c.Property.IsZero()
	case KeyTenancyStart:
		return c.Tenancy.StartDate != nil
	case KeyTenancyEnd:
		return c.Tenancy.EndDate != nil
	case KeyRentAmount:
		return c.Tenancy.RentAmount > 0
	case KeyRentFrequency:
		return c.Tenancy.RentFrequency != ""
	case KeyDepositAmount:
		return c.Deposit.Amount > 0
	case KeyDepositProtected:
		return c.Deposit.Protected.Known()
	case KeyArrearsTotal:
		return c.Financials.ArrearsTotal > 0
	case KeyClaimAmount:
		return c.Financials.ClaimAmount > 0 || c.Financials.ArrearsTotal > 0
	case KeyNoticeRoute:
		return c.Notice.Route != RouteNone
	case KeyNoticeGrounds:
		return len(c.Notice.Grounds) > 0
	case KeyNoticeServiceDate:
		return c.Notice.ServiceDate != nil
	case KeyNoticeExpiryDate:
		return c.Notice.ExpiryDate != nil
	case KeyGasSafetyProvided:
		return c.Compliance.GasSafetyProvided.Known()
	case KeyEPCProvided:
		return c.Compliance.EPCProvided.Known()
	case KeyHowToRentProvided:
		return c.Compliance.HowToRentProvided.Known()
	}
	return false
}

// Normalize builds CaseFacts from a store. Absent or unparseable facts are left
// at their zero value; callers decide what is required.
func Normalize(store *facts.Store) CaseFacts {
	c := CaseFacts{
		Parties: Parties{
			Landlord:  party(store, "landlord"),
			Agent:     party(store, "agent"),
			Guarantor: party(store, "guarantor"),
			Tenants:   tenants(store),
		},
		Property: address(store, "property"),
		Tenancy: Tenancy{
			StartDate:     date(store, KeyTenancyStart),
			EndDate:       date(store, KeyTenancyEnd),
			Type:          token(store.Text(KeyTenancyType)),
			TermMonths:    integer(store, KeyTenancyTermMonths),
			RentAmount:    amount(store, KeyRentAmount),
			RentFrequency: token(store.Text(KeyRentFrequency)),
			RentDueDay:    integer(store, KeyRentDueDay),
		},
		Deposit: Deposit{
			Amount:              amount(store, KeyDepositAmount),
			Protected:           yesNo(store, KeyDepositProtected),
			Scheme:              store.Text(KeyDepositScheme),
			PrescribedInfoGiven: yesNo(store, KeyPrescribedInfoGiven),
		},
		Financials: Financials{
			ArrearsTotal:     amount(store, KeyArrearsTotal),
			ArrearsAsOf:      date(store, KeyArrearsAsOf),
			ClaimAmount:      amount(store, KeyClaimAmount),
			InterestRate:     amount(store, KeyClaimInterestRate),
			ClaimDescription: store.Text(KeyClaimDescription),
		},
		Notice: Notice{
			Route:         ParseNoticeRoute(store.Text(KeyNoticeRoute)),
			Grounds:       grounds(store.TextList(KeyNoticeGrounds)),
			ServiceDate:   date(store, KeyNoticeServiceDate),
			ExpiryDate:    date(store, KeyNoticeExpiryDate),
			ServiceMethod: store.Text(KeyNoticeServiceMethod),
			Particulars:   store.Text(KeyNoticeParticulars),
		},
		Compliance: Compliance{
			GasSafetyProvided:      yesNo(store, KeyGasSafetyProvided),
			EPCProvided:            yesNo(store, KeyEPCProvided),
			HowToRentProvided:      yesNo(store, KeyHowToRentProvided),
			LicensingCompliant:     yesNo(store, KeyLicensingCompliant),
			RepairComplaintPending: yesNo(store, KeyRetaliatoryRepairs),
		},
		Evidence:  facts.EvidenceFlags(store),
		CourtName: store.Text(KeyCourtName),
	}
	if j, err := domain.ParseJurisdiction(store.Text(KeyJurisdiction)); err == nil {
		c.Jurisdiction = j
	}
	return c
}

func party(store *facts.Store, prefix string) Party {
	return Party{
		FullName: store.Text(prefix + ".full_name"),
		Email:    store.Text(prefix + ".email"),
		Phone:    store.Text(prefix + ".phone"),
		Address:  address(store, prefix),
	}
}

func address(store *facts.Store, prefix string) Address {
	return Address{
		Line1:    store.Text(prefix + ".address_line1"),
		Line2:    store.Text(prefix + ".address_line2"),
		Town:     store.Text(prefix + ".town"),
		County:   store.Text(prefix + ".county"),
		Postcode: strings.ToUpper(store.Text(prefix + ".postcode")),
	}
}

// tenants reads tenants.<n>.* in index order, falling back to the single-tenant keys.
func tenants(store *facts.Store) []Party {
	indexes := map[int]bool{}
	for _, k := range store.WithPrefix(KeyTenantPrefix) {
		rest := strings.TrimPrefix(k, KeyTenantPrefix)
		idx, _, ok := strings.Cut(rest, ".")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(idx); err == nil && n >= 0 {
			indexes[n] = true
		}
	}
	ordered := make([]int, 0, len(indexes))
	for n := range indexes {
		ordered = append(ordered, n)
	}
	sort.Ints(ordered)

	var out []Party
	for _, n := range ordered {
		p := party(store, fmt.Sprintf("tenants.%d", n))
		if p.FullName != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		if p := party(store, "tenant"); p.FullName != "" {
			out = append(out, p)
		}
	}
	return out
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseDate accepts ISO dates and the UK day-first forms used on notices.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func date(store *facts.Store, key string) *time.Time {
	t, ok := ParseDate(store.Text(key))
	if !ok {
		return nil
	}
	return &t
}

func amount(store *facts.Store, key string) float64 {
	if n, ok := store.Number(key); ok {
		return n
	}
	text := strings.NewReplacer("£", "", ",", "", " ", "").Replace(store.Text(key))
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0
	}
	return n
}

func integer(store *facts.Store, key string) int {
	n, ok := store.Number(key)
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

func yesNo(store *facts.Store, key string) YesNo {
	v, ok := store.Truth(key)
	switch {
	case !ok:
		return Unknown
	case v:
		return Yes
	default:
		return No
	}
}

func token(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// grounds normalises "Ground 8", "8", "ground_8" to "8" and drops duplicates,
// keeping the answer order.
func grounds(raw []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range raw {
		g = strings.ToLower(strings.TrimSpace(g))
		g = strings.TrimPrefix(g, "ground")
		g = strings.Trim(g, " _-")
		g = strings.ToUpper(g)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}
