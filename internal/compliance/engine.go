// Package compliance gates checkout on the answer set and judges uploaded
// notices. Problems are reported as blockers inside a Summary; the engine never
// fails on bad input.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"leasepack/internal/compliance/metrics"
	"leasepack/internal/facts"
	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
)

// DocumentInput is one uploaded file to validate against an expected class.
type DocumentInput struct {
	Expected DocClass
	FileName string
	MimeType string
	Data     []byte
}

type Engine struct {
	rules   *Rules
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock fixes "today" for validity checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithRules(r *Rules) Option {
	return func(e *Engine) {
		e.rules = r
	}
}

// NewEngine builds an engine over the embedded rules unless WithRules is given.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		now:    time.Now,
		logger: slog.Default(),
		tracer: otel.Tracer("leasepack/compliance"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules == nil {
		r, err := DefaultRules()
		if err != nil {
			return nil, err
		}
		e.rules = r
	}
	return e, nil
}

// Rules exposes the parsed table to generators that print ground text.
func (e *Engine) Rules() *Rules {
	return e.rules
}

// ValidateDocument extracts, classifies and checks an uploaded notice.
func (e *Engine) ValidateDocument(ctx context.Context, in DocumentInput, cf casefacts.CaseFacts) Summary {
	_, span := e.tracer.Start(ctx, "compliance.ValidateDocument",
		trace.WithAttributes(attribute.String("expected", string(in.Expected))))
	defer span.End()

	var s Summary
	prefix := in.Expected.CodePrefix()

	text, err := extractText(in.MimeType, in.FileName, in.Data)
	if err != nil {
		s.block(prefix+suffixUnreadable, "We could not read any text in this file. Upload a clear PDF or text copy of the notice.")
		return e.finish(ctx, "document", s)
	}

	detected := classify(text)
	s.DetectedClass = detected
	if detected != in.Expected {
		s.block(prefix+suffixWrongDocType, wrongTypeMessage(in.Expected, detected))
		return e.finish(ctx, "document", s)
	}

	lines := strings.Split(text, "\n")
	switch in.Expected {
	case ClassSection21:
		e.checkSection21Notice(&s, text, lines, cf)
	case ClassSection8:
		e.checkSection8Notice(&s, text, lines, cf)
	case ClassNoticeToLeave:
		e.checkNoticeToLeave(&s, text, lines)
	}
	return e.finish(ctx, "document", s)
}

func wrongTypeMessage(expected, detected DocClass) string {
	if detected == ClassUnknown {
		return fmt.Sprintf("This does not look like a %s notice. Upload the notice on the prescribed form.", expected.Label())
	}
	return fmt.Sprintf("This is a %s notice, not a %s notice. Upload the correct notice.", detected.Label(), expected.Label())
}

// Label is the human name of a class.
func (c DocClass) Label() string {
	switch c {
	case ClassSection21:
		return "Section 21 (Form 6A)"
	case ClassSection8:
		return "Section 8 (Form 3)"
	case ClassNoticeToLeave:
		return "Notice to Leave"
	}
	return "unrecognised"
}

func (e *Engine) checkSection21Notice(s *Summary, text string, lines []string, cf casefacts.CaseFacts) {
	const p = "S21-"
	if !hasSignature(lines) {
		s.block(p+"NO-SIGNATURE", "The notice is not signed by the landlord or agent.")
	}
	served, okServed := labelledDate(lines, "this notice was served on", "date of service", "date:")
	if !okServed && cf.Notice.ServiceDate != nil {
		served, okServed = *cf.Notice.ServiceDate, true
	}
	expiry, okExpiry := labelledDate(lines, "leave the below address after", "after:")
	if !okServed {
		s.block(p+"NO-SERVICE-DATE", "The notice does not show when it was served.")
	}
	if !okExpiry {
		s.block(p+"NO-EXPIRY-DATE", "The notice does not give the date the tenant must leave after.")
	}
	if okServed && okExpiry {
		e.section21Dates(s, served, expiry, cf)
	}
	e.section21Preconditions(s, cf)
}

// section21Dates applies the notice period, four-month and validity rules.
func (e *Engine) section21Dates(s *Summary, served, expiry time.Time, cf casefacts.CaseFacts) {
	r := e.rules.Section21
	if expiry.Before(served.AddDate(0, r.MinNoticeMonths, 0)) {
		s.block("S21-NOTICE-TOO-SHORT", fmt.Sprintf("A section 21 notice must give at least %d months' notice.", r.MinNoticeMonths))
	}
	if cf.Tenancy.StartDate == nil {
		s.ask(e.rules.Question(casefacts.KeyTenancyStart))
	} else if expiry.Before(cf.Tenancy.StartDate.AddDate(0, r.MinTenancyMonths, 0)) {
		s.block("S21-FOUR-MONTH-RULE", fmt.Sprintf("The notice cannot expire within the first %d months of the tenancy.", r.MinTenancyMonths))
	}

	lapse := served.AddDate(0, r.ValidityMonths, 0)
	today := e.now()
	switch {
	case today.After(lapse):
		s.block("S21-EXPIRED", fmt.Sprintf("The notice lapsed %d months after service; serve a new notice.", r.ValidityMonths))
	case lapse.Sub(today) <= time.Duration(r.ValidityWarningDays)*24*time.Hour:
		s.warn("S21-VALIDITY", fmt.Sprintf("The notice lapses on %s; court proceedings must start before then.", lapse.Format("02/01/2006")))
	}
}

// section21Preconditions blocks on landlord obligations answered "no" and asks
// about those not yet answered.
func (e *Engine) section21Preconditions(s *Summary, cf casefacts.CaseFacts) {
	checks := []struct {
		answer  casefacts.YesNo
		field   string
		code    string
		message string
	}{
		{cf.Deposit.Protected, casefacts.KeyDepositProtected, "S21-DEPOSIT-UNPROTECTED", "The deposit was not protected, so a section 21 notice cannot be relied on."},
		{cf.Compliance.GasSafetyProvided, casefacts.KeyGasSafetyProvided, "S21-GAS-SAFETY-MISSING", "A gas safety certificate must be given to the tenant before a section 21 notice."},
		{cf.Compliance.EPCProvided, casefacts.KeyEPCProvided, "S21-EPC-MISSING", "An Energy Performance Certificate must be given to the tenant before a section 21 notice."},
		{cf.Compliance.HowToRentProvided, casefacts.KeyHowToRentProvided, "S21-HOW-TO-RENT-MISSING", "The How to Rent guide must be given to the tenant before a section 21 notice."},
	}
	for _, c := range checks {
		switch c.answer {
		case casefacts.No:
			s.block(c.code, c.message)
		case casefacts.Unknown:
			s.ask(e.rules.Question(c.field))
		}
	}
	if cf.Compliance.GasSafetyProvided == casefacts.Yes && !cf.Evidence[facts.EvidenceGasSafety] {
		s.recommend("Upload the gas safety certificate so it is attached to your pack.")
	}
	if cf.Deposit.Protected == casefacts.Yes && !cf.Evidence[facts.EvidenceDepositProtection] {
		s.recommend("Upload the deposit protection certificate.")
	}
}

func (e *Engine) checkSection8Notice(s *Summary, text string, lines []string, cf casefacts.CaseFacts) {
	const p = "S8-"
	grounds := groundsIn(text)
	if len(grounds) == 0 {
		grounds = cf.Notice.Grounds
	}
	if len(grounds) == 0 {
		s.block(p+"NO-GROUNDS", "The notice does not state any ground for possession.")
	}
	if !containsAny(text, "full explanation", "particulars") {
		s.block(p+"NO-PARTICULARS", "The notice must explain why each ground is relied on.")
	}
	if !hasSignature(lines) {
		s.block(p+"NO-SIGNATURE", "The notice is not signed by the landlord or agent.")
	}

	served, okServed := labelledDate(lines, "this notice was served on", "date of service", "date:")
	if !okServed && cf.Notice.ServiceDate != nil {
		served, okServed = *cf.Notice.ServiceDate, true
	}
	earliest, okEarliest := labelledDate(lines, "will not begin earlier than", "earlier than")
	if !okServed {
		s.block(p+"NO-SERVICE-DATE", "The notice does not show when it was served.")
	}
	if !okEarliest {
		s.block(p+"NO-PROCEEDINGS-DATE", "The notice does not give the earliest date proceedings can begin.")
	}
	if okServed && okEarliest && len(grounds) > 0 {
		need := e.rules.Section8.MinNoticeDays(grounds)
		if daysBetween(served, earliest) < need {
			s.block(p+"NOTICE-TOO-SHORT", fmt.Sprintf("The grounds relied on need at least %d days' notice.", need))
		}
	}
	for _, g := range grounds {
		if g == "8" {
			e.ground8Arrears(s, p, cf)
		}
	}
}

// ground8Arrears checks the mandatory rent arrears threshold.
func (e *Engine) ground8Arrears(s *Summary, prefix string, cf casefacts.CaseFacts) {
	if cf.Financials.ArrearsTotal <= 0 {
		s.ask(e.rules.Question(casefacts.KeyArrearsTotal))
		return
	}
	if cf.Tenancy.RentAmount <= 0 {
		s.ask(e.rules.Question(casefacts.KeyRentAmount))
		return
	}
	r := e.rules.Section8
	var enough bool
	switch cf.Tenancy.RentFrequency {
	case "weekly", "fortnightly":
		weekly := cf.Tenancy.RentAmount
		if cf.Tenancy.RentFrequency == "fortnightly" {
			weekly /= 2
		}
		enough = cf.Financials.ArrearsTotal >= weekly*r.Ground8MinWeeks
	default:
		enough = cf.ArrearsMonths() >= r.Ground8MinMonths
	}
	if !enough {
		s.block(prefix+"GROUND8-ARREARS", "Ground 8 needs at least two months' (or eight weeks') rent unpaid.")
	}
}

func (e *Engine) checkNoticeToLeave(s *Summary, text string, lines []string) {
	const p = "NTL-"
	if len(groundsIn(text)) == 0 && !containsAny(text, "eviction ground") {
		s.block(p+"NO-GROUND", "The notice does not state an eviction ground.")
	}
	served, okServed := labelledDate(lines, "this notice was served on", "date of service", "date:")
	leave, okLeave := labelledDate(lines, "not before", "earlier than", "leave by", "after:")
	if !okServed || !okLeave {
		s.block(p+"NO-DATES", "The notice must show the service date and the date after which proceedings may start.")
		return
	}
	if need := e.rules.NoticeToLeave.MinNoticeDays; daysBetween(served, leave) < need {
		s.block(p+"NOTICE-TOO-SHORT", fmt.Sprintf("A Notice to Leave must give at least %d days' notice.", need))
	}
}

// EvaluateCase gates checkout: required answers become questions, failed legal
// preconditions become blockers, and an unavailable product is terminal.
func (e *Engine) EvaluateCase(ctx context.Context, cf casefacts.CaseFacts, product domain.ProductType, jurisdiction domain.Jurisdiction) Summary {
	_, span := e.tracer.Start(ctx, "compliance.EvaluateCase",
		trace.WithAttributes(
			attribute.String("product", string(product)),
			attribute.String("jurisdiction", string(jurisdiction)),
		))
	defer span.End()

	var s Summary
	rule, ok := e.rules.Product(product)
	if !ok || !rule.AvailableIn(jurisdiction) {
		s.block("CASE-"+suffixWrongDocType, fmt.Sprintf("%s is not available in %s.", product, jurisdiction))
		return e.finish(ctx, "case", s)
	}

	route := cf.Notice.Route
	for _, field := range rule.RequiredFor(route) {
		if !cf.Has(field) {
			s.ask(e.rules.Question(field))
		}
	}

	if route != casefacts.RouteNone && rule.RouteRequired != nil {
		if !e.rules.RouteAllowed(jurisdiction, route) {
			s.block("CASE-ROUTE-JURISDICTION", fmt.Sprintf("A %s notice cannot be used in %s.", route, jurisdiction))
		}
		switch route {
		case casefacts.RouteSection21:
			e.section21Preconditions(&s, cf)
			if cf.Notice.ServiceDate != nil && cf.Notice.ExpiryDate != nil {
				e.section21Dates(&s, *cf.Notice.ServiceDate, *cf.Notice.ExpiryDate, cf)
			}
			if cf.Compliance.LicensingCompliant == casefacts.No {
				s.warn("CASE-LICENSING", "An unlicensed property may prevent a section 21 notice being relied on.")
			}
		case casefacts.RouteSection8:
			for _, g := range cf.Notice.Grounds {
				if g == "8" {
					e.ground8Arrears(&s, "CASE-S8-", cf)
				}
			}
		}
	}

	if product == domain.ProductMoneyClaim && cf.Financials.ArrearsTotal > 0 && !cf.Evidence[facts.EvidenceRentSchedule] {
		s.recommend("Upload a rent schedule or bank statements showing the arrears.")
	}
	return e.finish(ctx, "case", s)
}

func (e *Engine) finish(ctx context.Context, kind string, s Summary) Summary {
	s.Finalize()
	e.metrics.ObserveEvaluation(kind, string(s.Status), s.TerminalBlocker)
	if s.TerminalBlocker {
		e.logger.InfoContext(ctx, "terminal compliance blocker",
			"kind", kind,
			"code", s.TerminalCode(),
		)
	}
	return s
}
