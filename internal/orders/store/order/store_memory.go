package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"leasepack/internal/orders/models"
	"leasepack/pkg/domain"
	"leasepack/pkg/platform/sentinel"
)

// InMemory keeps orders in a map. Every state change is a compare-and-set
// under the mutex, which gives the same claim guarantee as the SQL store.
type InMemory struct {
	mu     sync.Mutex
	orders map[domain.OrderID]*models.Order
}

func NewInMemory() *InMemory {
	return &InMemory{orders: make(map[domain.OrderID]*models.Order)}
}

func (s *InMemory) Create(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.ID]; exists {
		return sentinel.ErrConflict
	}
	s.orders[o.ID] = clone(o)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orderID domain.OrderID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(o), nil
}

// ListByCase returns the case's orders, newest first.
func (s *InMemory) ListByCase(_ context.Context, caseID domain.CaseID) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Order
	for _, o := range s.orders {
		if o.CaseID == caseID {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) MarkPaid(_ context.Context, orderID domain.OrderID, reference string, now time.Time) (*models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, false, sentinel.ErrNotFound
	}
	changed := o.MarkPaid(reference, now)
	return clone(o), changed, nil
}

func (s *InMemory) MarkPaymentFailed(_ context.Context, orderID domain.OrderID, now time.Time) (*models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, false, sentinel.ErrNotFound
	}
	changed := o.MarkPaymentFailed(now)
	return clone(o), changed, nil
}

// Claim moves a pending or failed order into processing. Losing callers get
// sentinel.ErrInvalidState.
func (s *InMemory) Claim(_ context.Context, orderID domain.OrderID, now time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := o.CanClaim(); err != nil {
		return nil, sentinel.ErrInvalidState
	}
	o.ApplyClaim(now)
	return clone(o), nil
}

// Complete finishes the run that claimed attempt. A run whose claim was
// demoted and taken over by a newer attempt gets sentinel.ErrInvalidState.
func (s *InMemory) Complete(_ context.Context, orderID domain.OrderID, attempt int, meta models.PackMetadata, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if o.Attempts != attempt {
		return sentinel.ErrInvalidState
	}
	if err := o.Complete(meta, now); err != nil {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *InMemory) Fail(_ context.Context, orderID domain.OrderID, attempt int, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if o.Attempts != attempt {
		return sentinel.ErrInvalidState
	}
	if err := o.Fail(reason, now); err != nil {
		return sentinel.ErrInvalidState
	}
	return nil
}

// DemoteStale fails every order processing since before cutoff.
func (s *InMemory) DemoteStale(_ context.Context, cutoff time.Time, reason string, now time.Time) ([]domain.OrderID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var demoted []domain.OrderID
	for id, o := range s.orders {
		if o.FulfillmentStatus != models.FulfillmentProcessing || o.ProcessingStartedAt == nil {
			continue
		}
		if !o.ProcessingStartedAt.Before(cutoff) {
			continue
		}
		if err := o.Fail(reason, now); err == nil {
			demoted = append(demoted, id)
		}
	}
	return demoted, nil
}

func clone(o *models.Order) *models.Order {
	c := *o
	return &c
}
