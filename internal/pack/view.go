package pack

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"leasepack/internal/facts"
	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
)

const dateLayout = "02/01/2006"

type docRef struct {
	Number int
	Title  string
}

type partyView struct {
	Name         string
	Email        string
	Address      string
	AddressLines []string
}

type groundView struct {
	Number    string
	Title     string
	Text      string
	Mandatory bool
}

type noticeView struct {
	Route         string
	Served        string
	Until         string
	Grounds       []groundView
	GroundList    string
	Particulars   string
	ServiceMethod string
}

type tenancyView struct {
	AgreementName string
	Start         string
	End           string
	TermMonths    int
	Rent          string
	RentFrequency string
	RentDueDay    int
	Deposit       string
	DepositScheme string
}

type claimView struct {
	Amount        string
	Arrears       string
	ArrearsAsOf   string
	ArrearsMonths string
	InterestRate  string
	Description   string
}

// view is the template model. Each document gets a copy with Document set.
type view struct {
	Document     docRef
	Pack         []docRef
	Jurisdiction string
	CourtName    string
	Landlord     partyView
	Agent        partyView
	Tenants      []partyView
	TenantNames  string
	Guarantor    partyView
	Property     partyView
	Tenancy      tenancyView
	Notice       noticeView
	Claim        claimView
	Evidence     []string
}

var jurisdictionNames = map[domain.Jurisdiction]string{
	domain.JurisdictionEngland:         "England",
	domain.JurisdictionWales:           "Wales",
	domain.JurisdictionScotland:        "Scotland",
	domain.JurisdictionNorthernIreland: "Northern Ireland",
}

var agreementNames = map[domain.Jurisdiction]string{
	domain.JurisdictionEngland:         "Assured Shorthold Tenancy Agreement",
	domain.JurisdictionWales:           "Standard Occupation Contract",
	domain.JurisdictionScotland:        "Private Residential Tenancy Agreement",
	domain.JurisdictionNorthernIreland: "Private Tenancy Agreement",
}

var evidenceLabels = map[facts.EvidenceKind]string{
	facts.EvidenceTenancyAgreement:  "Tenancy agreement",
	facts.EvidenceBankStatements:    "Bank statements",
	facts.EvidenceGasSafety:         "Gas safety certificate",
	facts.EvidenceEPC:               "Energy Performance Certificate",
	facts.EvidenceDepositProtection: "Deposit protection certificate",
	facts.EvidenceRentSchedule:      "Rent schedule",
	facts.EvidencePhotos:            "Photographs",
	facts.EvidenceHowToRent:         "How to Rent guide",
	facts.EvidenceOther:             "Other documents",
}

func newView(in Input, specs []Spec) view {
	cf := in.Facts
	v := view{
		Jurisdiction: jurisdictionNames[in.Jurisdiction],
		CourtName:    cf.CourtName,
		Landlord:     newParty(cf.Parties.Landlord),
		Agent:        newParty(cf.Parties.Agent),
		TenantNames:  cf.Parties.TenantNames(),
		Guarantor:    newParty(cf.Parties.Guarantor),
		Property:     partyView{Address: cf.Property.String(), AddressLines: cf.Property.Lines()},
		Tenancy: tenancyView{
			AgreementName: agreementNames[in.Jurisdiction],
			Start:         formatDate(cf.Tenancy.StartDate),
			End:           formatDate(cf.Tenancy.EndDate),
			TermMonths:    cf.Tenancy.TermMonths,
			Rent:          formatMoney(cf.Tenancy.RentAmount),
			RentFrequency: cf.Tenancy.RentFrequency,
			RentDueDay:    cf.Tenancy.RentDueDay,
			Deposit:       formatMoney(cf.Deposit.Amount),
			DepositScheme: cf.Deposit.Scheme,
		},
		Claim: claimView{
			Amount:       formatMoney(claimAmount(cf)),
			Arrears:      formatMoney(cf.Financials.ArrearsTotal),
			ArrearsAsOf:  formatDate(cf.Financials.ArrearsAsOf),
			InterestRate: strconv.FormatFloat(cf.Financials.InterestRate, 'f', -1, 64),
			Description:  cf.Financials.ClaimDescription,
		},
	}
	if months := cf.ArrearsMonths(); months > 0 {
		v.Claim.ArrearsMonths = strconv.FormatFloat(months, 'f', 2, 64)
	}
	for _, t := range cf.Parties.Tenants {
		v.Tenants = append(v.Tenants, newParty(t))
	}
	for _, kind := range facts.EvidenceKinds {
		if cf.Evidence[kind] {
			v.Evidence = append(v.Evidence, evidenceLabels[kind])
		}
	}
	v.Notice = newNotice(in)
	for i, s := range specs {
		v.Pack = append(v.Pack, docRef{Number: i + 1, Title: s.Title})
	}
	return v
}

func newParty(p casefacts.Party) partyView {
	return partyView{
		Name:         p.FullName,
		Email:        p.Email,
		Address:      p.Address.String(),
		AddressLines: p.Address.Lines(),
	}
}

func newNotice(in Input) noticeView {
	cf := in.Facts
	n := noticeView{
		Route:         string(cf.Notice.Route),
		Particulars:   cf.Notice.Particulars,
		ServiceMethod: cf.Notice.ServiceMethod,
		GroundList:    joinAnd(cf.Notice.Grounds),
	}
	if served, until, ok := noticeDates(in); ok {
		n.Served = served.Format(dateLayout)
		n.Until = until.Format(dateLayout)
	}
	for _, g := range cf.Notice.Grounds {
		gv := groundView{Number: g}
		if cf.Notice.Route == casefacts.RouteSection8 && in.Rules != nil {
			rule := in.Rules.Section8.Ground(g)
			gv.Title, gv.Text, gv.Mandatory = rule.Title, rule.Text, rule.Mandatory
		}
		n.Grounds = append(n.Grounds, gv)
	}
	if n.Particulars == "" && cf.Financials.ArrearsTotal > 0 {
		n.Particulars = "Rent arrears of " + formatMoney(cf.Financials.ArrearsTotal) + " are unpaid."
	}
	return n
}

// noticeDates returns the service date and the date the notice period ends.
// A stated end date is used when it is later than the statutory minimum.
func noticeDates(in Input) (served, until time.Time, ok bool) {
	cf := in.Facts
	if cf.Notice.ServiceDate == nil || in.Rules == nil {
		return time.Time{}, time.Time{}, false
	}
	served = *cf.Notice.ServiceDate
	switch cf.Notice.Route {
	case casefacts.RouteSection21:
		until = served.AddDate(0, in.Rules.Section21.MinNoticeMonths, 0)
		if start := cf.Tenancy.StartDate; start != nil {
			if earliest := start.AddDate(0, in.Rules.Section21.MinTenancyMonths, 0); earliest.After(until) {
				until = earliest
			}
		}
	case casefacts.RouteSection173:
		until = served.AddDate(0, in.Rules.Section173.MinNoticeMonths, 0)
	case casefacts.RouteSection8:
		until = served.AddDate(0, 0, in.Rules.Section8.MinNoticeDays(cf.Notice.Grounds))
	case casefacts.RouteNoticeToLeave:
		until = served.AddDate(0, 0, in.Rules.NoticeToLeave.MinNoticeDays)
	default:
		return time.Time{}, time.Time{}, false
	}
	if stated := cf.Notice.ExpiryDate; stated != nil && stated.After(until) {
		until = *stated
	}
	return served, until, true
}

func claimAmount(cf casefacts.CaseFacts) float64 {
	if cf.Financials.ClaimAmount > 0 {
		return cf.Financials.ClaimAmount
	}
	return cf.Financials.ArrearsTotal
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// formatMoney renders pounds with thousands separators, e.g. £1,500.00.
func formatMoney(amount float64) string {
	if amount <= 0 {
		return ""
	}
	return message.NewPrinter(language.BritishEnglish).Sprintf("£%.2f", amount)
}

// joinAnd renders "8, 10 and 11".
func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// fileName is stable per position and key.
func fileName(number int, key, ext string) string {
	return fmt.Sprintf("%02d-%s.%s", number, strings.ReplaceAll(key, "_", "-"), ext)
}

