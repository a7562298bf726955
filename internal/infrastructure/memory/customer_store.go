package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/customer"
)

type CustomerStore struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer
}

func NewCustomerStore() *CustomerStore {
	return &CustomerStore{customers: make(map[string]*domain.Customer)}
}

func (s *CustomerStore) Upsert(ctx context.Context, customerID string, now time.Time, fn func(c *domain.Customer)) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		c = domain.New(customerID, now)
		s.customers[customerID] = c
	}
	fn(c)
	c.UpdatedAt = now
	return nil
}

func (s *CustomerStore) Get(ctx context.Context, customerID string) (*domain.Customer, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *CustomerStore) Reset(ctx context.Context, now time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.customers {
		c.ResetCounters(now)
	}
	return nil
}

func (s *CustomerStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = make(map[string]*domain.Customer)
	return nil
}
