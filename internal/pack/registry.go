package pack

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"leasepack/internal/compliance"
	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
)

// Registry dispatches generation by product type.
type Registry struct {
	generators map[domain.ProductType]GeneratorFunc
	renderer   Renderer
	rules      *compliance.Rules
	logger     *slog.Logger
	tracer     trace.Tracer
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithRules sets the notice period table used for notice dates.
func WithRules(rules *compliance.Rules) Option {
	return func(r *Registry) {
		r.rules = rules
	}
}

// WithGenerator replaces or adds the generator for one product.
func WithGenerator(product domain.ProductType, fn GeneratorFunc) Option {
	return func(r *Registry) {
		r.generators[product] = fn
	}
}

func NewRegistry(renderer Renderer, opts ...Option) (*Registry, error) {
	r := &Registry{
		generators: defaultGenerators(),
		renderer:   renderer,
		logger:     slog.Default(),
		tracer:     otel.Tracer("leasepack/pack"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rules == nil {
		rules, err := compliance.DefaultRules()
		if err != nil {
			return nil, err
		}
		r.rules = rules
	}
	return r, nil
}

// Supports reports whether a generator is registered for the product.
func (r *Registry) Supports(product domain.ProductType) bool {
	_, ok := r.generators[product]
	return ok
}

// Generate plans and renders the pack. Identical inputs give identical
// document keys, titles, categories and order.
func (r *Registry) Generate(ctx context.Context, cf casefacts.CaseFacts, product domain.ProductType, jurisdiction domain.Jurisdiction) (*Pack, error) {
	ctx, span := r.tracer.Start(ctx, "pack.Generate", trace.WithAttributes(
		attribute.String("product", string(product)),
		attribute.String("jurisdiction", string(jurisdiction)),
	))
	defer span.End()

	generate, ok := r.generators[product]
	if !ok {
		err := unsupported(string(product))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unsupported product")
		return nil, err
	}

	in := Input{Facts: cf, Jurisdiction: jurisdiction, Rules: r.rules}
	specs, err := generate(in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan failed")
		return nil, err
	}

	base := newView(in, specs)
	p := &Pack{Product: product, Jurisdiction: jurisdiction, Documents: make([]Document, 0, len(specs))}
	for i, spec := range specs {
		v := base
		v.Document = base.Pack[i]

		data, err := r.renderer.Render(ctx, spec.Template, v)
		if err != nil {
			if !spec.Optional {
				span.RecordError(err)
				span.SetStatus(codes.Error, "render failed")
				return nil, &RenderError{Document: spec.Key, Err: err}
			}
			r.logger.WarnContext(ctx, "optional document not rendered",
				"document", spec.Key,
				"product", product,
				"error", err,
			)
			data = nil
		}
		p.Documents = append(p.Documents, Document{
			Number:   i + 1,
			Key:      spec.Key,
			Title:    spec.Title,
			Category: spec.Category,
			FileName: fileName(i+1, spec.Key, r.renderer.Extension()),
			MimeType: r.renderer.MimeType(),
			Data:     data,
			Optional: spec.Optional,
		})
	}
	span.SetAttributes(attribute.Int("documents", len(p.Documents)))
	return p, nil
}
