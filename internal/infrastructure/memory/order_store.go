package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
)

// OrderStore keeps the order ledger in memory. Writes made through a Tx become visible
// only when the transaction function returns nil.
type OrderStore struct {
	mu       sync.RWMutex
	orders   map[domain.Key]*domain.Order
	items    map[domain.Key][]domain.Item
	history  map[domain.Key][]domain.History
	counters map[string]int
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:   make(map[domain.Key]*domain.Order),
		items:    make(map[domain.Key][]domain.Item),
		history:  make(map[domain.Key][]domain.History),
		counters: make(map[string]int),
	}
}

func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &orderTx{
		store:    s,
		orders:   make(map[domain.Key]*domain.Order),
		items:    make(map[domain.Key][]domain.Item),
		counters: make(map[string]int),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, o := range tx.orders {
		s.orders[k] = o
	}
	for k, it := range tx.items {
		s.items[k] = it
	}
	for _, h := range tx.history {
		k := domain.Key{CustomerID: h.CustomerID, OrderID: h.OrderID}
		s.history[k] = append(s.history[k], h)
	}
	for c, n := range tx.counters {
		s.counters[c] = n
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, key domain.Key) (*domain.Order, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (s *OrderStore) Items(ctx context.Context, key domain.Key) ([]domain.Item, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[key]; !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.Item(nil), s.items[key]...), nil
}

func (s *OrderStore) History(ctx context.Context, key domain.Key) ([]domain.History, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.History(nil), s.history[key]...), nil
}

func (s *OrderStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[domain.Key]*domain.Order)
	s.items = make(map[domain.Key][]domain.Item)
	s.history = make(map[domain.Key][]domain.History)
	s.counters = make(map[string]int)
	return nil
}

type orderTx struct {
	store    *OrderStore
	orders   map[domain.Key]*domain.Order
	items    map[domain.Key][]domain.Item
	history  []domain.History
	counters map[string]int
}

func (tx *orderTx) NextOrderID(ctx context.Context, customerID string) (int, error) {
	_ = ctx
	n, ok := tx.counters[customerID]
	if !ok {
		n = tx.store.counters[customerID]
	}
	n++
	tx.counters[customerID] = n
	return n, nil
}

func (tx *orderTx) Insert(ctx context.Context, o *domain.Order, items []domain.Item) error {
	_ = ctx
	k := o.Key()
	if _, ok := tx.store.orders[k]; ok {
		return domain.ErrConflict
	}
	if _, ok := tx.orders[k]; ok {
		return domain.ErrConflict
	}
	tx.orders[k] = o.Clone()
	tx.items[k] = append([]domain.Item(nil), items...)
	return nil
}

func (tx *orderTx) Get(ctx context.Context, key domain.Key) (*domain.Order, error) {
	_ = ctx
	if o, ok := tx.orders[key]; ok {
		return o.Clone(), nil
	}
	o, ok := tx.store.orders[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o.Clone(), nil
}

func (tx *orderTx) Update(ctx context.Context, o *domain.Order) error {
	_ = ctx
	k := o.Key()
	if _, ok := tx.orders[k]; !ok {
		if _, ok := tx.store.orders[k]; !ok {
			return domain.ErrNotFound
		}
	}
	tx.orders[k] = o.Clone()
	return nil
}

func (tx *orderTx) AppendHistory(ctx context.Context, h domain.History) error {
	_ = ctx
	tx.history = append(tx.history, h)
	return nil
}
