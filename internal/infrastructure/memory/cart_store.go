package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
)

type CartStore struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*domain.Cart)}
}

func (s *CartStore) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[customerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *CartStore) Update(ctx context.Context, customerID string, fn func(c *domain.Cart) error) error {
	return s.apply(ctx, customerID, false, fn)
}

func (s *CartStore) Upsert(ctx context.Context, customerID string, fn func(c *domain.Cart) error) error {
	return s.apply(ctx, customerID, true, fn)
}

// apply runs fn on a copy under the write lock and stores it only when fn succeeds.
func (s *CartStore) apply(ctx context.Context, customerID string, create bool, fn func(c *domain.Cart) error) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	var work *domain.Cart
	if cur, ok := s.carts[customerID]; ok {
		work = cur.Clone()
	} else if !create {
		return domain.ErrNotFound
	} else {
		c, err := domain.New(customerID)
		if err != nil {
			return err
		}
		work = c
	}
	if err := fn(work); err != nil {
		return err
	}
	s.carts[customerID] = work
	return nil
}

func (s *CartStore) UpdatePrices(ctx context.Context, sellerID, productID, version string, price float64) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.carts {
		n += c.ApplyPrice(sellerID, productID, version, price)
	}
	return n, nil
}

func (s *CartStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts = make(map[string]*domain.Cart)
	return nil
}

type replicaKey struct{ seller, product string }

type ReplicaStore struct {
	mu       sync.RWMutex
	replicas map[replicaKey]domain.ProductReplica
}

func NewReplicaStore() *ReplicaStore {
	return &ReplicaStore{replicas: make(map[replicaKey]domain.ProductReplica)}
}

func (s *ReplicaStore) Get(ctx context.Context, sellerID, productID string) (domain.ProductReplica, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.replicas[replicaKey{sellerID, productID}]
	if !ok {
		return domain.ProductReplica{}, domain.ErrReplicaNotFound
	}
	return r, nil
}

func (s *ReplicaStore) Upsert(ctx context.Context, r domain.ProductReplica) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	k := replicaKey{r.SellerID, r.ProductID}
	if prev, ok := s.replicas[k]; ok && r.CreatedAt.IsZero() {
		r.CreatedAt = prev.CreatedAt
	}
	s.replicas[k] = r
	return nil
}

func (s *ReplicaStore) UpdatePrice(ctx context.Context, sellerID, productID, version string, price float64) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	k := replicaKey{sellerID, productID}
	r, ok := s.replicas[k]
	if !ok || r.Version != version {
		return false, nil
	}
	r.Price = price
	s.replicas[k] = r
	return true, nil
}

func (s *ReplicaStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replicas = make(map[replicaKey]domain.ProductReplica)
	return nil
}
