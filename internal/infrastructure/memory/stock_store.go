package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
)

// StockStore keeps stock rows in memory. InTx holds the write lock for the whole
// transaction, so reservations against the same key are serialized.
type StockStore struct {
	mu    sync.RWMutex
	items map[domain.Key]*domain.Item
}

func NewStockStore() *StockStore {
	return &StockStore{items: make(map[domain.Key]*domain.Item)}
}

func (s *StockStore) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &stockTx{store: s, staged: make(map[domain.Key]*domain.Item)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, it := range tx.staged {
		s.items[k] = it
	}
	return nil
}

func (s *StockStore) Get(ctx context.Context, key domain.Key) (*domain.Item, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return it.Clone(), nil
}

func (s *StockStore) Upsert(ctx context.Context, item *domain.Item) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Key()] = item.Clone()
	return nil
}

// All returns every row ordered by key.
func (s *StockStore) All(ctx context.Context) ([]domain.Item, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SellerID != out[j].SellerID {
			return out[i].SellerID < out[j].SellerID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (s *StockStore) Reset(ctx context.Context, qtyAvailable int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		it.QtyAvailable = qtyAvailable
		it.QtyReserved = 0
		it.OrderCount = 0
		it.Ytd = 0
	}
	return nil
}

func (s *StockStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[domain.Key]*domain.Item)
	return nil
}

type stockTx struct {
	store  *StockStore
	staged map[domain.Key]*domain.Item
}

func (tx *stockTx) Get(ctx context.Context, key domain.Key) (*domain.Item, error) {
	_ = ctx
	if it, ok := tx.staged[key]; ok {
		return it.Clone(), nil
	}
	it, ok := tx.store.items[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return it.Clone(), nil
}

func (tx *stockTx) GetMany(ctx context.Context, keys []domain.Key) (map[domain.Key]*domain.Item, error) {
	out := make(map[domain.Key]*domain.Item, len(keys))
	for _, k := range keys {
		it, err := tx.Get(ctx, k)
		if err != nil {
			continue
		}
		out[k] = it
	}
	return out, nil
}

func (tx *stockTx) Update(ctx context.Context, items ...*domain.Item) error {
	_ = ctx
	for _, it := range items {
		if _, ok := tx.store.items[it.Key()]; !ok {
			if _, staged := tx.staged[it.Key()]; !staged {
				return domain.ErrNotFound
			}
		}
		tx.staged[it.Key()] = it.Clone()
	}
	return nil
}
