package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
)

type paymentKey struct {
	customer string
	order    int
}

type PaymentStore struct {
	mu    sync.RWMutex
	lines map[paymentKey][]domain.Line
	cards map[paymentKey]domain.Card
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		lines: make(map[paymentKey][]domain.Line),
		cards: make(map[paymentKey]domain.Card),
	}
}

func (s *PaymentStore) Insert(ctx context.Context, lines []domain.Line, card *domain.Card) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range lines {
		if _, ok := s.lines[paymentKey{l.CustomerID, l.OrderID}]; ok {
			return domain.ErrConflict
		}
	}
	for _, l := range lines {
		k := paymentKey{l.CustomerID, l.OrderID}
		s.lines[k] = append(s.lines[k], l)
	}
	if card != nil {
		s.cards[paymentKey{card.CustomerID, card.OrderID}] = *card
	}
	return nil
}

func (s *PaymentStore) Lines(ctx context.Context, customerID string, orderID int) ([]domain.Line, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines, ok := s.lines[paymentKey{customerID, orderID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]domain.Line(nil), lines...), nil
}

func (s *PaymentStore) Card(ctx context.Context, customerID string, orderID int) (*domain.Card, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[paymentKey{customerID, orderID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *PaymentStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make(map[paymentKey][]domain.Line)
	s.cards = make(map[paymentKey]domain.Card)
	return nil
}
