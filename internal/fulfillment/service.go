// Package fulfillment turns a paid order into a persisted pack exactly once.
//
// Payment events arrive at least once and possibly out of order. The order's
// fulfillment status is a small state machine whose pending|failed ->
// processing step is a single atomic claim in the order store; every caller
// that loses the claim returns without doing work. An optional Redis lock adds
// a second layer of serialisation in front of the claim.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"leasepack/internal/blobstore"
	"leasepack/internal/compliance"
	"leasepack/internal/events"
	"leasepack/internal/facts/casefacts"
	"leasepack/internal/fulfillment/metrics"
	"leasepack/internal/notify"
	"leasepack/internal/orders/models"
	"leasepack/internal/pack"
	"leasepack/internal/platform/config"
	"leasepack/pkg/domain"
	dErrors "leasepack/pkg/domain-errors"
	"leasepack/pkg/platform/sentinel"
	"leasepack/pkg/requestcontext"
)

// OrderStore persists orders. Claim must be atomic.
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id domain.OrderID) (*models.Order, error)
	ListByCase(ctx context.Context, caseID domain.CaseID) ([]*models.Order, error)
	MarkPaid(ctx context.Context, id domain.OrderID, reference string, now time.Time) (*models.Order, bool, error)
	MarkPaymentFailed(ctx context.Context, id domain.OrderID, now time.Time) (*models.Order, bool, error)
	Claim(ctx context.Context, id domain.OrderID, now time.Time) (*models.Order, error)
	Complete(ctx context.Context, id domain.OrderID, attempt int, meta models.PackMetadata, now time.Time) error
	Fail(ctx context.Context, id domain.OrderID, attempt int, reason string, now time.Time) error
	DemoteStale(ctx context.Context, cutoff time.Time, reason string, now time.Time) ([]domain.OrderID, error)
}

// DocumentStore is the document ledger.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	ListByOrder(ctx context.Context, id domain.OrderID) ([]*models.Document, error)
	ExistingFinalTypes(ctx context.Context, id domain.OrderID, docTypes []string) (map[string]bool, error)
}

// CaseReader loads the canonical facts for a case.
type CaseReader interface {
	CaseFacts(ctx context.Context, id domain.CaseID) (casefacts.CaseFacts, error)
}

type Generator interface {
	Generate(ctx context.Context, cf casefacts.CaseFacts, product domain.ProductType, jurisdiction domain.Jurisdiction) (*pack.Pack, error)
}

type Evaluator interface {
	EvaluateCase(ctx context.Context, cf casefacts.CaseFacts, product domain.ProductType, jurisdiction domain.Jurisdiction) compliance.Summary
}

type BlobStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (blobstore.Object, error)
	Bucket() string
}

type Notifier interface {
	FulfillmentOutcome(ctx context.Context, notice notify.FulfillmentNotice) error
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Locker takes a short-lived exclusive lock. acquired is false when another
// holder has it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// Outcome is the result of one Fulfill call.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAlreadyCompleted Outcome = "already_completed"
	OutcomeInProgress       Outcome = "in_progress"
	OutcomeFailed           Outcome = "failed"
)

// Result describes a Fulfill call. Retryable failures were caused by
// infrastructure and may succeed on redelivery; generation failures are not.
type Result struct {
	Outcome   Outcome        `json:"outcome"`
	OrderID   domain.OrderID `json:"order_id"`
	Documents int            `json:"documents"`
	Reason    string         `json:"reason,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

const staleReason = "stale processing"

var productNames = map[domain.ProductType]string{
	domain.ProductNoticeOnly:               "notice pack",
	domain.ProductCompletePack:             "complete eviction pack",
	domain.ProductMoneyClaim:               "money claim pack",
	domain.ProductTenancyAgreementStandard: "tenancy agreement",
	domain.ProductTenancyAgreementPremium:  "premium tenancy agreement",
	domain.ProductLandlordSubscription:     "landlord subscription",
}

// Service orchestrates fulfillment, payment events, checkout and the stale sweep.
type Service struct {
	orders    OrderStore
	documents DocumentStore
	cases     CaseReader
	generator Generator
	evaluator Evaluator
	blobs     BlobStore
	notifier  Notifier
	publisher Publisher
	locker    Locker
	cfg       config.Fulfillment
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLocker enables the order-scoped lock in front of the claim.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func New(
	orders OrderStore,
	documents DocumentStore,
	cases CaseReader,
	generator Generator,
	evaluator Evaluator,
	blobs BlobStore,
	cfg config.Fulfillment,
	opts ...Option,
) (*Service, error) {
	if orders == nil || documents == nil || cases == nil || generator == nil || evaluator == nil || blobs == nil {
		return nil, errors.New("fulfillment: all stores, the generator, the evaluator and the blob store are required")
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = 1
	}
	s := &Service{
		orders:    orders,
		documents: documents,
		cases:     cases,
		generator: generator,
		evaluator: evaluator,
		blobs:     blobs,
		cfg:       cfg,
		now:       time.Now,
		logger:    slog.Default(),
		tracer:    otel.Tracer("leasepack/fulfillment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func lockKey(id domain.OrderID) string {
	return "lock:order:" + id.String()
}

// Fulfill runs the pack for a paid order. Completed orders are a no-op, so
// replaying a payment event never creates new documents.
func (s *Service) Fulfill(ctx context.Context, orderID domain.OrderID) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.Fulfill", trace.WithAttributes(
		attribute.String("order_id", orderID.String()),
	))
	defer span.End()
	start := s.now()

	if s.locker != nil && s.cfg.LockTTL > 0 {
		release, acquired, err := s.locker.Acquire(ctx, lockKey(orderID), s.cfg.LockTTL)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "order lock unavailable, relying on claim",
				"request_id", requestcontext.RequestID(ctx),
				"order_id", orderID,
				"error", err,
			)
		case !acquired:
			return s.finish(ctx, span, start, &Result{Outcome: OutcomeInProgress, OrderID: orderID}), nil
		default:
			defer release()
		}
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, s.storeError(ctx, span, err, "load order")
	}
	if order.FulfillmentStatus.IsTerminal() {
		return s.finish(ctx, span, start, &Result{Outcome: OutcomeAlreadyCompleted, OrderID: orderID}), nil
	}
	if order.PaymentStatus != models.PaymentPaid {
		return nil, dErrors.New(dErrors.CodeInvalidState, "order is not paid")
	}

	claimed, err := s.orders.Claim(ctx, orderID, s.now())
	if errors.Is(err, sentinel.ErrInvalidState) {
		return s.finish(ctx, span, start, s.lostClaim(ctx, orderID)), nil
	}
	if err != nil {
		return nil, s.storeError(ctx, span, err, "claim order")
	}
	s.logger.InfoContext(ctx, "fulfillment started",
		"request_id", requestcontext.RequestID(ctx),
		"order_id", orderID,
		"product", claimed.Product,
		"attempt", claimed.Attempts,
	)

	result, err := s.run(ctx, claimed)
	if err != nil {
		return nil, s.storeError(ctx, span, err, "record fulfillment outcome")
	}
	s.afterRun(ctx, claimed, result)
	return s.finish(ctx, span, start, result), nil
}

// lostClaim reports why another caller owns the order.
func (s *Service) lostClaim(ctx context.Context, orderID domain.OrderID) *Result {
	current, err := s.orders.FindByID(ctx, orderID)
	if err == nil && current.FulfillmentStatus.IsTerminal() {
		return &Result{Outcome: OutcomeAlreadyCompleted, OrderID: orderID}
	}
	return &Result{Outcome: OutcomeInProgress, OrderID: orderID}
}

// run does the work for a claimed order and records completed or failed. It
// only returns an error when the outcome itself could not be recorded.
func (s *Service) run(ctx context.Context, order *models.Order) (*Result, error) {
	if order.Product.IsSubscription() {
		if !s.cfg.SubscriptionEnabled {
			return s.fail(ctx, order, "subscription product is not enabled", false)
		}
		return s.complete(ctx, order, 0, 0)
	}

	cf, err := s.cases.CaseFacts(ctx, order.CaseID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load case facts",
			"order_id", order.ID,
			"case_id", order.CaseID,
			"error", err,
		)
		return s.fail(ctx, order, "case facts unavailable", true)
	}

	p, err := s.generator.Generate(ctx, cf, order.Product, order.Jurisdiction)
	if err != nil {
		reason := generationReason(err)
		s.logger.WarnContext(ctx, "pack generation failed",
			"order_id", order.ID,
			"product", order.Product,
			"reason", reason,
		)
		return s.fail(ctx, order, reason, false)
	}

	summary := s.evaluator.EvaluateCase(ctx, cf, order.Product, order.Jurisdiction)
	uploaded, err := s.persist(ctx, order, p, summary)
	if err != nil {
		s.logger.ErrorContext(ctx, "document persistence failed",
			"order_id", order.ID,
			"uploaded", uploaded,
			"error", err,
		)
		return s.fail(ctx, order, "document upload failed: "+err.Error(), true)
	}
	return s.complete(ctx, order, len(p.Rendered()), uploaded)
}

// persist uploads every rendered document not already in the ledger and writes
// its ledger row. Each upload gets a fresh random path segment.
func (s *Service) persist(ctx context.Context, order *models.Order, p *pack.Pack, summary compliance.Summary) (int, error) {
	rendered := p.Rendered()
	keys := make([]string, 0, len(rendered))
	for _, d := range rendered {
		keys = append(keys, d.Key)
	}
	existing, err := s.documents.ExistingFinalTypes(ctx, order.ID, keys)
	if err != nil {
		return 0, fmt.Errorf("check existing documents: %w", err)
	}

	passed, notes := complianceMetadata(summary)
	var uploaded atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UploadConcurrency)
	for _, doc := range rendered {
		if existing[doc.Key] {
			s.logger.InfoContext(ctx, "document already in ledger, skipping",
				"order_id", order.ID,
				"document", doc.Key,
			)
			continue
		}
		g.Go(func() error {
			path := fmt.Sprintf("cases/%s/%s/%s", order.CaseID, uuid.NewString(), doc.FileName)
			obj, err := s.blobs.Put(gctx, path, doc.Data, doc.MimeType)
			if err != nil {
				return fmt.Errorf("upload %s: %w", doc.Key, err)
			}
			row := &models.Document{
				ID:               domain.NewDocumentID(),
				OrderID:          order.ID,
				CaseID:           order.CaseID,
				DocType:          doc.Key,
				Title:            doc.Title,
				Category:         string(doc.Category),
				Sequence:         doc.Number,
				FileName:         doc.FileName,
				MimeType:         doc.MimeType,
				StorageBucket:    obj.Bucket,
				StoragePath:      obj.Path,
				PublicURL:        obj.PublicURL,
				SizeBytes:        obj.Size,
				IsFinal:          true,
				CompliancePassed: passed,
				ComplianceNotes:  notes,
				CreatedAt:        s.now(),
			}
			if err := s.documents.Create(gctx, row); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return nil
				}
				return fmt.Errorf("record %s: %w", doc.Key, err)
			}
			uploaded.Add(1)
			return nil
		})
	}
	err = g.Wait()
	n := int(uploaded.Load())
	s.metrics.AddDocumentsUploaded(n)
	return n, err
}

func complianceMetadata(summary compliance.Summary) (bool, []string) {
	notes := make([]string, 0, len(summary.Blockers)+len(summary.Warnings))
	for _, b := range summary.Blockers {
		notes = append(notes, b.Code)
	}
	for _, w := range summary.Warnings {
		notes = append(notes, w.Code)
	}
	return len(summary.Blockers) == 0, notes
}

func generationReason(err error) string {
	var missing *pack.MissingFactError
	var render *pack.RenderError
	switch {
	case errors.As(err, &missing):
		return "missing required fact: " + missing.Fact
	case errors.As(err, &render):
		return "document failed to render: " + render.Document
	case errors.Is(err, pack.ErrUnsupported):
		return err.Error()
	}
	return "pack generation failed"
}

func (s *Service) complete(ctx context.Context, order *models.Order, documents, uploaded int) (*Result, error) {
	meta := models.PackMetadata{DocumentCount: documents, PackType: order.Product, Jurisdiction: order.Jurisdiction}
	if err := s.orders.Complete(ctx, order.ID, order.Attempts, meta, s.now()); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			// The sweeper demoted this run; a replay or newer attempt owns the order.
			return &Result{Outcome: OutcomeFailed, OrderID: order.ID, Documents: uploaded, Reason: staleReason, Retryable: true}, nil
		}
		return nil, err
	}
	order.Pack = meta
	return &Result{Outcome: OutcomeCompleted, OrderID: order.ID, Documents: uploaded}, nil
}

func (s *Service) fail(ctx context.Context, order *models.Order, reason string, retryable bool) (*Result, error) {
	if err := s.orders.Fail(ctx, order.ID, order.Attempts, reason, s.now()); err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
		return nil, err
	}
	return &Result{Outcome: OutcomeFailed, OrderID: order.ID, Reason: reason, Retryable: retryable}, nil
}

// afterRun sends the notification and domain event. Failures are only logged.
func (s *Service) afterRun(ctx context.Context, order *models.Order, result *Result) {
	if result.Outcome != OutcomeCompleted && result.Outcome != OutcomeFailed {
		return
	}
	completed := result.Outcome == OutcomeCompleted

	if s.notifier != nil && s.cfg.NotificationsEnabled {
		err := s.notifier.FulfillmentOutcome(ctx, notify.FulfillmentNotice{
			OrderID:       order.ID.String(),
			CaseID:        order.CaseID.String(),
			Email:         order.CustomerEmail,
			Name:          order.CustomerName,
			ProductName:   productNames[order.Product],
			Completed:     completed,
			DocumentCount: order.Pack.DocumentCount,
			FailureReason: result.Reason,
		})
		if err != nil {
			s.metrics.IncSideEffectFailure("notification")
			s.logger.WarnContext(ctx, "fulfillment notification failed",
				"order_id", order.ID,
				"error", err,
			)
		}
	}

	if s.publisher != nil {
		event := events.Event{
			Type:          events.TypeOrderFulfilled,
			OrderID:       order.ID.String(),
			CaseID:        order.CaseID.String(),
			Product:       string(order.Product),
			Jurisdiction:  string(order.Jurisdiction),
			DocumentCount: order.Pack.DocumentCount,
			OccurredAt:    s.now().UTC(),
		}
		if !completed {
			event.Type = events.TypeOrderFulfillmentFailed
			event.FailureReason = result.Reason
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.metrics.IncSideEffectFailure("event")
			s.logger.WarnContext(ctx, "fulfillment event not published",
				"order_id", order.ID,
				"event_type", event.Type,
				"error", err,
			)
		}
	}
}

func (s *Service) finish(ctx context.Context, span trace.Span, start time.Time, result *Result) *Result {
	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	if result.Outcome == OutcomeFailed {
		span.SetStatus(codes.Error, result.Reason)
	}
	s.metrics.ObserveRun(string(result.Outcome), s.now().Sub(start).Seconds())
	s.logger.InfoContext(ctx, "fulfillment finished",
		"request_id", requestcontext.RequestID(ctx),
		"order_id", result.OrderID,
		"outcome", result.Outcome,
		"documents", result.Documents,
		"reason", result.Reason,
	)
	return result
}

// storeError translates store sentinels into domain errors and records the span.
func (s *Service) storeError(ctx context.Context, span trace.Span, err error, op string) error {
	span.RecordError(err)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "order not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		span.SetStatus(codes.Error, op)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, op)
	}
	span.SetStatus(codes.Error, op)
	s.logger.ErrorContext(ctx, "fulfillment store error",
		"request_id", requestcontext.RequestID(ctx),
		"op", op,
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
