package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"leasepack/internal/cases/models"
	"leasepack/internal/facts"
	"leasepack/pkg/domain"
	"leasepack/pkg/platform/sentinel"
	txcontext "leasepack/pkg/platform/tx"
)

// PostgresStore keeps the fact store and evidence records as JSONB columns
// of one row per case.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) txcontext.Querier {
	return txcontext.QuerierFor(ctx, s.db)
}

const caseColumns = `id, jurisdiction, facts, evidence, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Case) error {
	factsJSON, evidenceJSON, err := encode(c)
	if err != nil {
		return err
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		uuid.UUID(c.ID), string(c.Jurisdiction), string(factsJSON), string(evidenceJSON), c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.CaseID) (*models.Case, error) {
	return s.find(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)
}

// FindForUpdate locks the row until the surrounding transaction ends.
func (s *PostgresStore) FindForUpdate(ctx context.Context, id domain.CaseID) (*models.Case, error) {
	return s.find(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1 FOR UPDATE`, id)
}

func (s *PostgresStore) find(ctx context.Context, query string, id domain.CaseID) (*models.Case, error) {
	var (
		c                  models.Case
		rawID              uuid.UUID
		jurisdiction       string
		factsRaw, evidence []byte
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(id)).Scan(
		&rawID, &jurisdiction, &factsRaw, &evidence, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find case: %w", err)
	}
	c.ID = domain.CaseID(rawID)
	c.Jurisdiction = domain.Jurisdiction(jurisdiction)
	if c.Facts, err = facts.FromJSON(factsRaw); err != nil {
		return nil, fmt.Errorf("decode facts of case %s: %w", c.ID, err)
	}
	if err := json.Unmarshal(evidence, &c.Evidence); err != nil {
		return nil, fmt.Errorf("decode evidence of case %s: %w", c.ID, err)
	}
	if c.Evidence == nil {
		c.Evidence = []models.EvidenceFile{}
	}
	return &c, nil
}

// Save is an optimistic update on version.
func (s *PostgresStore) Save(ctx context.Context, c *models.Case) error {
	factsJSON, evidenceJSON, err := encode(c)
	if err != nil {
		return err
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE cases
		SET jurisdiction = $2, facts = $3, evidence = $4, version = version + 1, updated_at = $5
		WHERE id = $1 AND version = $6`,
		uuid.UUID(c.ID), string(c.Jurisdiction), string(factsJSON), string(evidenceJSON), c.UpdatedAt, c.Version,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.FindByID(ctx, c.ID); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	c.Version++
	return nil
}

func encode(c *models.Case) ([]byte, []byte, error) {
	store := c.Facts
	if store == nil {
		store = facts.NewStore()
	}
	factsJSON, err := json.Marshal(store)
	if err != nil {
		return nil, nil, fmt.Errorf("encode facts: %w", err)
	}
	evidence := c.Evidence
	if evidence == nil {
		evidence = []models.EvidenceFile{}
	}
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return nil, nil, fmt.Errorf("encode evidence: %w", err)
	}
	return factsJSON, evidenceJSON, nil
}
