package memory

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/paymentgw"
)

// IntentStore keeps provider intents by idempotency key.
type IntentStore struct {
	mu      sync.Mutex
	intents map[string]payment.Intent
}

func NewIntentStore() *IntentStore {
	return &IntentStore{intents: make(map[string]payment.Intent)}
}

func (s *IntentStore) PutIfAbsent(ctx context.Context, in payment.Intent) (payment.Intent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.intents[in.IdempotencyKey]; ok {
		return prev, nil
	}
	s.intents[in.IdempotencyKey] = in
	return in, nil
}

func (s *IntentStore) Get(ctx context.Context, key string) (payment.Intent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[key]
	if !ok {
		return payment.Intent{}, paymentgw.ErrIntentNotFound
	}
	return in, nil
}

func (s *IntentStore) Cleanup(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = make(map[string]payment.Intent)
	return nil
}
