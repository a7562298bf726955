package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/paymentgw"
	"github.com/redis/go-redis/v9"
)

const intentPrefix = "intent:"

// IntentStore keeps provider intents under SETNX so concurrent first requests for a key
// agree on one intent.
type IntentStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIntentStore expires intents after ttl; zero keeps them forever.
func NewIntentStore(client *redis.Client, ttl time.Duration) *IntentStore {
	return &IntentStore{client: client, ttl: ttl}
}

func (s *IntentStore) PutIfAbsent(ctx context.Context, in payment.Intent) (payment.Intent, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return payment.Intent{}, fmt.Errorf("redisstore: marshal intent: %w", err)
	}
	created, err := s.client.SetNX(ctx, intentPrefix+in.IdempotencyKey, b, s.ttl).Result()
	if err != nil {
		return payment.Intent{}, fmt.Errorf("redisstore: setnx intent: %w", err)
	}
	if created {
		return in, nil
	}
	return s.Get(ctx, in.IdempotencyKey)
}

func (s *IntentStore) Get(ctx context.Context, key string) (payment.Intent, error) {
	b, err := s.client.Get(ctx, intentPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return payment.Intent{}, paymentgw.ErrIntentNotFound
	}
	if err != nil {
		return payment.Intent{}, fmt.Errorf("redisstore: get intent: %w", err)
	}
	var in payment.Intent
	if err := json.Unmarshal(b, &in); err != nil {
		return payment.Intent{}, fmt.Errorf("redisstore: unmarshal intent: %w", err)
	}
	return in, nil
}

func (s *IntentStore) Cleanup(ctx context.Context) error {
	return deletePrefix(ctx, s.client, intentPrefix)
}
