package facts

import (
	"log/slog"
	"strings"
)

// Diagnostic records a write the mapper refused.
type Diagnostic struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Discard reasons.
const (
	ReasonInvalidPath     = "invalid destination path"
	ReasonNonScalarItem   = "array answer contains a non-scalar item"
	ReasonFieldMissing    = "object answer has no matching field"
	ReasonFieldNotScalar  = "matched field is an object or an array of objects"
	ReasonUnsupportedType = "unsupported answer type"
)

// defaultAliases lists, per trailing field key, the alternative keys tried in
// order when a structured answer lacks the exact key.
var defaultAliases = map[string][]string{
	"address_line1": {"line1", "address_line_1", "addressLine1", "street"},
	"address_line2": {"line2", "address_line_2", "addressLine2"},
	"town":          {"city", "town_city", "post_town", "locality"},
	"city":          {"town", "town_city", "post_town", "locality"},
	"postcode":      {"postal_code", "post_code", "postCode", "zip"},
	"county":        {"region", "state"},
	"country":       {"country_code", "nation"},
	"full_name":     {"name", "fullName"},
	"name":          {"full_name", "fullName"},
}

// Mapper applies answers to fact paths. Resolution for structured answers is:
// exact field key, then the alias list for that key in declared order, then skip.
type Mapper struct {
	logger  *slog.Logger
	aliases map[string][]string
}

type Option func(*Mapper)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// WithAliases replaces the alias table.
func WithAliases(aliases map[string][]string) Option {
	return func(m *Mapper) {
		m.aliases = aliases
	}
}

func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{logger: slog.Default(), aliases: defaultAliases}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply writes answer to every destination path and returns a new store; the
// input store is never modified. Refused writes are logged and returned.
func (m *Mapper) Apply(store *Store, paths []string, answer Answer) (*Store, []Diagnostic) {
	out := store.Clone()
	var diags []Diagnostic

	for _, path := range paths {
		path = strings.TrimSpace(path)
		if !validPath(path) {
			diags = append(diags, m.discard(path, ReasonInvalidPath))
			continue
		}

		switch a := answer.(type) {
		case AnswerScalar:
			out.set(path, a.Value)
		case AnswerArray:
			v, ok := valueFromAny(a.Items, true)
			if !ok {
				diags = append(diags, m.discard(path, ReasonNonScalarItem))
				continue
			}
			out.set(path, v)
		case AnswerObject:
			v, reason := m.resolveField(a.Fields, lastSegment(path))
			if reason != "" {
				diags = append(diags, m.discard(path, reason))
				continue
			}
			out.set(path, v)
		default:
			diags = append(diags, m.discard(path, ReasonUnsupportedType))
		}
	}
	return out, diags
}

// ApplyValue writes an already-flat value. Used for derived facts such as evidence flags.
func (m *Mapper) ApplyValue(store *Store, path string, v Value) (*Store, []Diagnostic) {
	return m.Apply(store, []string{path}, AnswerScalar{Value: v})
}

func (m *Mapper) resolveField(fields map[string]any, key string) (Value, string) {
	candidates := append([]string{key}, m.aliases[key]...)
	for _, k := range candidates {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		if v, ok := valueFromAny(raw, true); ok {
			return v, ""
		}
		return Value{}, ReasonFieldNotScalar
	}
	return Value{}, ReasonFieldMissing
}

func (m *Mapper) discard(path, reason string) Diagnostic {
	m.logger.Warn("fact write discarded", "path", path, "reason", reason)
	return Diagnostic{Path: path, Reason: reason}
}

func validPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" || strings.ContainsAny(seg, " \t\n") {
			return false
		}
	}
	return true
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}
