package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/seller"
)

type SellerStore struct {
	mu      sync.RWMutex
	entries map[domain.EntryKey]*domain.OrderEntry
}

func NewSellerStore() *SellerStore {
	return &SellerStore{entries: make(map[domain.EntryKey]*domain.OrderEntry)}
}

func (s *SellerStore) Insert(ctx context.Context, entries []domain.OrderEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range entries {
		e := entries[i]
		s.entries[e.Key()] = &e
	}
	return nil
}

func (s *SellerStore) UpdateOrder(ctx context.Context, customerID string, orderID int, fn func(e *domain.OrderEntry)) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if k.CustomerID == customerID && k.OrderID == orderID {
			fn(e)
			n++
		}
	}
	return n, nil
}

func (s *SellerStore) UpdateEntry(ctx context.Context, key domain.EntryKey, fn func(e *domain.OrderEntry)) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return domain.ErrNotFound
	}
	fn(e)
	return nil
}

func (s *SellerStore) ForSeller(ctx context.Context, sellerID string) ([]domain.OrderEntry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.OrderEntry, 0)
	for _, e := range s.entries {
		if e.SellerID == sellerID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CustomerID != b.CustomerID {
			return a.CustomerID < b.CustomerID
		}
		if a.OrderID != b.OrderID {
			return a.OrderID < b.OrderID
		}
		return a.ProductID < b.ProductID
	})
	return out, nil
}

func (s *SellerStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[domain.EntryKey]*domain.OrderEntry)
	return nil
}
