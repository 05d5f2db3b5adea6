package document

import (
	"context"
	"sort"
	"sync"

	"leasepack/internal/orders/models"
	"leasepack/pkg/domain"
	"leasepack/pkg/platform/sentinel"
)

type finalKey struct {
	order   domain.OrderID
	docType string
}

// InMemory mirrors the ledger's one-final-document-per-type rule.
type InMemory struct {
	mu    sync.RWMutex
	docs  []*models.Document
	final map[finalKey]bool
}

func NewInMemory() *InMemory {
	return &InMemory{final: make(map[finalKey]bool)}
}

func (s *InMemory) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := finalKey{order: doc.OrderID, docType: doc.DocType}
	if doc.IsFinal && s.final[key] {
		return sentinel.ErrConflict
	}
	if doc.IsFinal {
		s.final[key] = true
	}
	c := *doc
	c.ComplianceNotes = append([]string(nil), doc.ComplianceNotes...)
	s.docs = append(s.docs, &c)
	return nil
}

func (s *InMemory) ListByOrder(_ context.Context, orderID domain.OrderID) ([]*models.Document, error) {
	return s.list(func(d *models.Document) bool { return d.OrderID == orderID }), nil
}

func (s *InMemory) ListByCase(_ context.Context, caseID domain.CaseID) ([]*models.Document, error) {
	return s.list(func(d *models.Document) bool { return d.CaseID == caseID }), nil
}

// ExistingFinalTypes returns which of docTypes already have a final row for the order.
func (s *InMemory) ExistingFinalTypes(_ context.Context, orderID domain.OrderID, docTypes []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for _, t := range docTypes {
		if s.final[finalKey{order: orderID, docType: t}] {
			out[t] = true
		}
	}
	return out, nil
}

func (s *InMemory) list(match func(*models.Document) bool) []*models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, d := range s.docs {
		if match(d) {
			c := *d
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
