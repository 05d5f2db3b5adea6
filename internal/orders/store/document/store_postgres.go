package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"leasepack/internal/orders/models"
	"leasepack/pkg/domain"
	"leasepack/pkg/platform/sentinel"
	txcontext "leasepack/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore writes the document ledger. The partial unique index on
// (order_id, doc_type) WHERE is_final rejects a second final row.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFor(ctx, s.db)
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (
			id, order_id, case_id, doc_type, title, category, sequence, file_name, mime_type,
			storage_bucket, storage_path, public_url, size_bytes, is_final,
			compliance_passed, compliance_notes, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	notes := doc.ComplianceNotes
	if notes == nil {
		notes = []string{}
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.OrderID),
		uuid.UUID(doc.CaseID),
		doc.DocType,
		doc.Title,
		doc.Category,
		doc.Sequence,
		doc.FileName,
		doc.MimeType,
		doc.StorageBucket,
		doc.StoragePath,
		doc.PublicURL,
		doc.SizeBytes,
		doc.IsFinal,
		doc.CompliancePassed,
		pq.Array(notes),
		doc.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `
	id, order_id, case_id, doc_type, title, category, sequence, file_name, mime_type,
	storage_bucket, storage_path, public_url, size_bytes, is_final,
	compliance_passed, compliance_notes, created_at`

func (s *PostgresStore) ListByOrder(ctx context.Context, orderID domain.OrderID) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE order_id = $1 ORDER BY sequence, created_at`
	return s.query(ctx, query, uuid.UUID(orderID))
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID domain.CaseID) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE case_id = $1 ORDER BY created_at, sequence`
	return s.query(ctx, query, uuid.UUID(caseID))
}

// ExistingFinalTypes returns which of docTypes already have a final row for the order.
func (s *PostgresStore) ExistingFinalTypes(ctx context.Context, orderID domain.OrderID, docTypes []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(docTypes) == 0 {
		return out, nil
	}
	query := `
		SELECT doc_type FROM documents
		WHERE order_id = $1 AND is_final AND doc_type = ANY($2)
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(orderID), pq.Array(docTypes))
	if err != nil {
		return nil, fmt.Errorf("query existing documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan document type: %w", err)
		}
		out[t] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document types: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		var (
			d                   models.Document
			id, orderID, caseID uuid.UUID
		)
		if err := rows.Scan(
			&id, &orderID, &caseID, &d.DocType, &d.Title, &d.Category, &d.Sequence, &d.FileName, &d.MimeType,
			&d.StorageBucket, &d.StoragePath, &d.PublicURL, &d.SizeBytes, &d.IsFinal,
			&d.CompliancePassed, pq.Array(&d.ComplianceNotes), &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.ID = domain.DocumentID(id)
		d.OrderID = domain.OrderID(orderID)
		d.CaseID = domain.CaseID(caseID)
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
