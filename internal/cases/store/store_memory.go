package store

import (
	"context"
	"sync"

	"leasepack/internal/cases/models"
	"leasepack/pkg/domain"
	"leasepack/pkg/platform/sentinel"
)

// InMemory keeps cases in process. Save enforces the version check the
// postgres store does.
type InMemory struct {
	mu    sync.RWMutex
	cases map[domain.CaseID]*models.Case
}

func NewInMemory() *InMemory {
	return &InMemory{cases: make(map[domain.CaseID]*models.Case)}
}

func (s *InMemory) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return sentinel.ErrConflict
	}
	s.cases[c.ID] = c.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// FindForUpdate is FindByID; callers serialise through the sharded tx.
func (s *InMemory) FindForUpdate(ctx context.Context, id domain.CaseID) (*models.Case, error) {
	return s.FindByID(ctx, id)
}

// Save writes c if the stored version still equals c.Version, then bumps it.
func (s *InMemory) Save(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.cases[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != c.Version {
		return sentinel.ErrConflict
	}
	c.Version++
	s.cases[c.ID] = c.Clone()
	return nil
}
