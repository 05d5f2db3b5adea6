//go:build integration

package order_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"leasepack/internal/orders/models"
	"leasepack/internal/orders/store/document"
	"leasepack/internal/orders/store/order"
	"leasepack/internal/platform/postgres"
	"leasepack/pkg/domain"
	"leasepack/pkg/platform/sentinel"
	"leasepack/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	orders   *order.PostgresStore
	docs     *document.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.postgres.DB))
	s.orders = order.NewPostgres(s.postgres.DB)
	s.docs = document.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "documents", "orders", "cases"))
}

func (s *PostgresStoreSuite) newOrder(ctx context.Context) *models.Order {
	caseID := domain.NewCaseID()
	_, err := s.postgres.DB.ExecContext(ctx, `INSERT INTO cases (id, jurisdiction) VALUES ($1, 'england')`, uuid.UUID(caseID))
	s.Require().NoError(err)

	o, err := models.NewOrder(domain.NewOrderID(), caseID, domain.ProductNoticeOnly, domain.JurisdictionEngland, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.orders.Create(ctx, o))
	return o
}

func (s *PostgresStoreSuite) TestLifecycle() {
	ctx := context.Background()
	o := s.newOrder(ctx)
	now := time.Now().UTC()

	s.ErrorIs(s.orders.Create(ctx, o), sentinel.ErrConflict)

	_, changed, err := s.orders.MarkPaid(ctx, o.ID, "cs_test", now)
	s.Require().NoError(err)
	s.True(changed)
	after, changed, err := s.orders.MarkPaymentFailed(ctx, o.ID, now)
	s.Require().NoError(err)
	s.False(changed)
	s.Equal(models.PaymentPaid, after.PaymentStatus)

	claimed, err := s.orders.Claim(ctx, o.ID, now)
	s.Require().NoError(err)
	s.Equal(models.FulfillmentProcessing, claimed.FulfillmentStatus)
	s.NotNil(claimed.ProcessingStartedAt)

	_, err = s.orders.Claim(ctx, o.ID, now)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	meta := models.PackMetadata{DocumentCount: 1, PackType: o.Product, Jurisdiction: o.Jurisdiction}
	s.Require().NoError(s.orders.Complete(ctx, o.ID, claimed.Attempts, meta, now))
	s.ErrorIs(s.orders.Fail(ctx, o.ID, claimed.Attempts, "late", now), sentinel.ErrInvalidState)

	done, err := s.orders.FindByID(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.FulfillmentCompleted, done.FulfillmentStatus)
	s.Equal(meta, done.Pack)
	s.Equal("cs_test", done.PaymentReference)

	_, err = s.orders.FindByID(ctx, domain.NewOrderID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestReclaimedOrderRejectsEarlierAttempt checks the attempts predicate on
// the settle queries.
func (s *PostgresStoreSuite) TestReclaimedOrderRejectsEarlierAttempt() {
	ctx := context.Background()
	o := s.newOrder(ctx)
	start := time.Now().UTC().Add(-time.Hour)

	first, err := s.orders.Claim(ctx, o.ID, start)
	s.Require().NoError(err)
	demoted, err := s.orders.DemoteStale(ctx, start.Add(time.Minute), "stale", start.Add(time.Minute))
	s.Require().NoError(err)
	s.Contains(demoted, o.ID)
	second, err := s.orders.Claim(ctx, o.ID, start.Add(2*time.Minute))
	s.Require().NoError(err)

	s.ErrorIs(s.orders.Fail(ctx, o.ID, first.Attempts, "late failure", start), sentinel.ErrInvalidState)
	s.ErrorIs(s.orders.Complete(ctx, o.ID, first.Attempts, models.PackMetadata{DocumentCount: 1}, start), sentinel.ErrInvalidState)

	current, err := s.orders.FindByID(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.FulfillmentProcessing, current.FulfillmentStatus)
	s.Equal(second.Attempts, current.Attempts)
}

// TestConcurrentClaim verifies the conditional UPDATE admits a single winner.
func (s *PostgresStoreSuite) TestConcurrentClaim() {
	ctx := context.Background()
	o := s.newOrder(ctx)
	const goroutines = 20

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.orders.Claim(ctx, o.ID, time.Now().UTC()); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *PostgresStoreSuite) TestDemoteStale() {
	ctx := context.Background()
	o := s.newOrder(ctx)
	now := time.Now().UTC()
	_, err := s.orders.Claim(ctx, o.ID, now.Add(-time.Hour))
	s.Require().NoError(err)

	ids, err := s.orders.DemoteStale(ctx, now.Add(-15*time.Minute), "stale processing", now)
	s.Require().NoError(err)
	s.Equal([]domain.OrderID{o.ID}, ids)

	got, err := s.orders.FindByID(ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(models.FulfillmentFailed, got.FulfillmentStatus)
}

func (s *PostgresStoreSuite) TestDocumentLedger() {
	ctx := context.Background()
	o := s.newOrder(ctx)
	doc := &models.Document{
		ID:               domain.NewDocumentID(),
		OrderID:          o.ID,
		CaseID:           o.CaseID,
		DocType:          "section_21_notice",
		Title:            "Form 6A",
		Category:         "notice",
		Sequence:         1,
		FileName:         "01-section-21-notice.html",
		MimeType:         "text/html",
		StorageBucket:    "documents",
		StoragePath:      "cases/" + o.CaseID.String() + "/x/01-section-21-notice.html",
		SizeBytes:        1024,
		IsFinal:          true,
		CompliancePassed: true,
		ComplianceNotes:  []string{"generated"},
		CreatedAt:        time.Now().UTC(),
	}
	s.Require().NoError(s.docs.Create(ctx, doc))

	dup := *doc
	dup.ID = domain.NewDocumentID()
	s.ErrorIs(s.docs.Create(ctx, &dup), sentinel.ErrConflict)

	docs, err := s.docs.ListByOrder(ctx, o.ID)
	s.Require().NoError(err)
	s.Require().Len(docs, 1)
	s.Equal([]string{"generated"}, docs[0].ComplianceNotes)
	s.Equal(doc.StoragePath, docs[0].StoragePath)

	existing, err := s.docs.ExistingFinalTypes(ctx, o.ID, []string{"section_21_notice", "n5b_claim"})
	s.Require().NoError(err)
	s.Equal(map[string]bool{"section_21_notice": true}, existing)
}
