package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"leasepack/internal/orders/models"
	"leasepack/pkg/domain"
	"leasepack/pkg/platform/sentinel"
	txcontext "leasepack/pkg/platform/tx"
)

// PostgresStore persists orders. State changes are single conditional UPDATEs
// so two webhook deliveries can never both claim the same order.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFor(ctx, s.db)
}

const orderColumns = `
	id, case_id, product_type, jurisdiction, payment_status, fulfillment_status,
	customer_email, customer_name, amount_minor, currency, payment_reference,
	processing_started_at, failure_reason, attempts,
	document_count, pack_type, pack_jurisdiction,
	paid_at, fulfilled_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o                          models.Order
		id, caseID                 uuid.UUID
		product, jurisdiction      string
		payment, fulfillment       string
		packType, packJurisdiction string
		started, paidAt, fulfilled sql.NullTime
	)
	err := row.Scan(
		&id, &caseID, &product, &jurisdiction, &payment, &fulfillment,
		&o.CustomerEmail, &o.CustomerName, &o.AmountMinor, &o.Currency, &o.PaymentReference,
		&started, &o.FailureReason, &o.Attempts,
		&o.Pack.DocumentCount, &packType, &packJurisdiction,
		&paidAt, &fulfilled, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ID = domain.OrderID(id)
	o.CaseID = domain.CaseID(caseID)
	o.Product = domain.ProductType(product)
	o.Jurisdiction = domain.Jurisdiction(jurisdiction)
	o.PaymentStatus = models.PaymentStatus(payment)
	o.FulfillmentStatus = models.FulfillmentStatus(fulfillment)
	o.Pack.PackType = domain.ProductType(packType)
	o.Pack.Jurisdiction = domain.Jurisdiction(packJurisdiction)
	o.ProcessingStartedAt = nullTime(started)
	o.PaidAt = nullTime(paidAt)
	o.FulfilledAt = nullTime(fulfilled)
	return &o, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (s *PostgresStore) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (
			id, case_id, product_type, jurisdiction, payment_status, fulfillment_status,
			customer_email, customer_name, amount_minor, currency, payment_reference,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(o.ID),
		uuid.UUID(o.CaseID),
		string(o.Product),
		string(o.Jurisdiction),
		string(o.PaymentStatus),
		string(o.FulfillmentStatus),
		o.CustomerEmail,
		o.CustomerName,
		o.AmountMinor,
		o.Currency,
		o.PaymentReference,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert order rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orderID domain.OrderID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orderID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID domain.CaseID) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE case_id = $1 ORDER BY created_at DESC`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(caseID))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return out, nil
}

// MarkPaid sets paid from pending or failed. A row that did not change is
// returned as-is with changed=false.
func (s *PostgresStore) MarkPaid(ctx context.Context, orderID domain.OrderID, reference string, now time.Time) (*models.Order, bool, error) {
	query := `
		UPDATE orders
		SET payment_status = 'paid',
			payment_reference = CASE WHEN $2 <> '' THEN $2 ELSE payment_reference END,
			paid_at = $3,
			updated_at = $3
		WHERE id = $1 AND payment_status IN ('pending', 'failed')
		RETURNING ` + orderColumns
	return s.conditionalPayment(ctx, orderID, query, uuid.UUID(orderID), reference, now)
}

// MarkPaymentFailed only moves pending orders; paid never regresses.
func (s *PostgresStore) MarkPaymentFailed(ctx context.Context, orderID domain.OrderID, now time.Time) (*models.Order, bool, error) {
	query := `
		UPDATE orders
		SET payment_status = 'failed', updated_at = $2
		WHERE id = $1 AND payment_status = 'pending'
		RETURNING ` + orderColumns
	return s.conditionalPayment(ctx, orderID, query, uuid.UUID(orderID), now)
}

func (s *PostgresStore) conditionalPayment(ctx context.Context, orderID domain.OrderID, query string, args ...any) (*models.Order, bool, error) {
	o, err := scanOrder(s.execer(ctx).QueryRowContext(ctx, query, args...))
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("update payment status: %w", err)
	}
	current, err := s.FindByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// Claim is the atomic pending|failed -> processing transition.
func (s *PostgresStore) Claim(ctx context.Context, orderID domain.OrderID, now time.Time) (*models.Order, error) {
	query := `
		UPDATE orders
		SET fulfillment_status = 'processing',
			processing_started_at = $2,
			failure_reason = '',
			attempts = attempts + 1,
			updated_at = $2
		WHERE id = $1 AND fulfillment_status IN ('pending', 'failed')
		RETURNING ` + orderColumns
	o, err := scanOrder(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orderID), now))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim order: %w", err)
	}
	if _, err := s.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	return nil, sentinel.ErrInvalidState
}

// Complete finishes the run holding claim attempt. The attempts predicate
// rejects a run that was demoted and reclaimed while it rendered.
func (s *PostgresStore) Complete(ctx context.Context, orderID domain.OrderID, attempt int, meta models.PackMetadata, now time.Time) error {
	query := `
		UPDATE orders
		SET fulfillment_status = 'completed',
			document_count = $3,
			pack_type = $4,
			pack_jurisdiction = $5,
			failure_reason = '',
			fulfilled_at = $6,
			updated_at = $6
		WHERE id = $1 AND fulfillment_status = 'processing' AND attempts = $2
	`
	return s.conditionalExec(ctx, orderID, "complete order", query,
		uuid.UUID(orderID), attempt, meta.DocumentCount, string(meta.PackType), string(meta.Jurisdiction), now)
}

func (s *PostgresStore) Fail(ctx context.Context, orderID domain.OrderID, attempt int, reason string, now time.Time) error {
	query := `
		UPDATE orders
		SET fulfillment_status = 'failed', failure_reason = $3, updated_at = $4
		WHERE id = $1 AND fulfillment_status = 'processing' AND attempts = $2
	`
	return s.conditionalExec(ctx, orderID, "fail order", query, uuid.UUID(orderID), attempt, reason, now)
}

func (s *PostgresStore) conditionalExec(ctx context.Context, orderID domain.OrderID, op, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows > 0 {
		return nil
	}
	if _, err := s.FindByID(ctx, orderID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

// DemoteStale fails every order processing since before cutoff and returns their ids.
func (s *PostgresStore) DemoteStale(ctx context.Context, cutoff time.Time, reason string, now time.Time) ([]domain.OrderID, error) {
	query := `
		UPDATE orders
		SET fulfillment_status = 'failed', failure_reason = $2, updated_at = $3
		WHERE fulfillment_status = 'processing' AND processing_started_at < $1
		RETURNING id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, cutoff, reason, now)
	if err != nil {
		return nil, fmt.Errorf("demote stale orders: %w", err)
	}
	defer rows.Close()

	var ids []domain.OrderID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale order: %w", err)
		}
		ids = append(ids, domain.OrderID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale orders: %w", err)
	}
	return ids, nil
}
