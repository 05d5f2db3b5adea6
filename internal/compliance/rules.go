package compliance

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// GroundRule describes one Schedule 2 possession ground.
type GroundRule struct {
	Title      string `yaml:"title"`
	NoticeDays int    `yaml:"notice_days"`
	Mandatory  bool   `yaml:"mandatory"`
	Text       string `yaml:"text"`
}

type Section8Rules struct {
	DefaultNoticeDays int                   `yaml:"default_notice_days"`
	Grounds           map[string]GroundRule `yaml:"grounds"`
	Ground8MinMonths  float64               `yaml:"ground_8_min_months"`
	Ground8MinWeeks   float64               `yaml:"ground_8_min_weeks"`
}

// Ground returns the rule for a ground, falling back to the default notice period.
func (r Section8Rules) Ground(g string) GroundRule {
	if rule, ok := r.Grounds[g]; ok {
		if rule.NoticeDays == 0 {
			rule.NoticeDays = r.DefaultNoticeDays
		}
		return rule
	}
	return GroundRule{Title: "Ground " + g, NoticeDays: r.DefaultNoticeDays}
}

// MinNoticeDays is the longest notice period among the listed grounds.
func (r Section8Rules) MinNoticeDays(grounds []string) int {
	days := 0
	for _, g := range grounds {
		if d := r.Ground(g).NoticeDays; d > days {
			days = d
		}
	}
	return days
}

type Section21Rules struct {
	MinNoticeMonths     int `yaml:"min_notice_months"`
	MinTenancyMonths    int `yaml:"min_tenancy_months"`
	ValidityMonths      int `yaml:"validity_months"`
	ValidityWarningDays int `yaml:"validity_warning_days"`
}

// Section173Rules covers the Welsh no-fault notice.
type Section173Rules struct {
	MinNoticeMonths int `yaml:"min_notice_months"`
}

type NoticeToLeaveRules struct {
	MinNoticeDays int `yaml:"min_notice_days"`
}

type ProductRule struct {
	Jurisdictions []string            `yaml:"jurisdictions"`
	Required      []string            `yaml:"required"`
	RouteRequired map[string][]string `yaml:"route_required"`
}

// AvailableIn reports whether the product is sold in j.
func (p ProductRule) AvailableIn(j domain.Jurisdiction) bool {
	for _, s := range p.Jurisdictions {
		if s == string(j) {
			return true
		}
	}
	return false
}

// RequiredFor returns the required fields for a notice route, base fields first.
func (p ProductRule) RequiredFor(route casefacts.NoticeRoute) []string {
	out := append([]string(nil), p.Required...)
	return append(out, p.RouteRequired[string(route)]...)
}

type QuestionRule struct {
	ID     string `yaml:"id"`
	Prompt string `yaml:"prompt"`
}

// Rules is the parsed rules table.
type Rules struct {
	Section8      Section8Rules           `yaml:"section_8"`
	Section21     Section21Rules          `yaml:"section_21"`
	Section173    Section173Rules         `yaml:"section_173"`
	NoticeToLeave NoticeToLeaveRules      `yaml:"notice_to_leave"`
	Products      map[string]ProductRule  `yaml:"products"`
	Routes        map[string][]string     `yaml:"routes"`
	Questions     map[string]QuestionRule `yaml:"questions"`
}

// DefaultRules parses the embedded table.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// ParseRules parses and sanity-checks a rules document.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if r.Section8.DefaultNoticeDays <= 0 {
		return nil, fmt.Errorf("rules: section_8.default_notice_days must be positive")
	}
	if r.Section21.MinNoticeMonths <= 0 || r.Section21.ValidityMonths <= 0 {
		return nil, fmt.Errorf("rules: section_21 periods must be positive")
	}
	if r.Section173.MinNoticeMonths <= 0 {
		return nil, fmt.Errorf("rules: section_173.min_notice_months must be positive")
	}
	if r.NoticeToLeave.MinNoticeDays <= 0 {
		return nil, fmt.Errorf("rules: notice_to_leave.min_notice_days must be positive")
	}
	if len(r.Products) == 0 {
		return nil, fmt.Errorf("rules: no products defined")
	}
	for name, p := range r.Products {
		if _, err := domain.ParseProductType(name); err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
		for _, j := range p.Jurisdictions {
			if _, err := domain.ParseJurisdiction(j); err != nil {
				return nil, fmt.Errorf("rules: product %s: %w", name, err)
			}
		}
	}
	return &r, nil
}

// Product returns the rule for a product type.
func (r *Rules) Product(p domain.ProductType) (ProductRule, bool) {
	rule, ok := r.Products[string(p)]
	return rule, ok
}

// RouteAllowed reports whether a notice route exists in a jurisdiction.
func (r *Rules) RouteAllowed(j domain.Jurisdiction, route casefacts.NoticeRoute) bool {
	for _, s := range r.Routes[string(j)] {
		if s == string(route) {
			return true
		}
	}
	return false
}

// Question returns the follow-up question for a missing field. Unlisted fields
// get a generic prompt keyed by the field name.
func (r *Rules) Question(field string) Question {
	if q, ok := r.Questions[field]; ok {
		return Question{ID: q.ID, Field: field, Prompt: q.Prompt}
	}
	return Question{ID: field, Field: field, Prompt: "Please provide " + field}
}

// GroundNumbers lists the configured grounds in a stable order.
func (r *Rules) GroundNumbers() []string {
	out := make([]string, 0, len(r.Section8.Grounds))
	for g := range r.Section8.Grounds {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
