package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

const (
	replicaPrefix = "replica:"
	maxCASRetries = 8
)

var errCASExhausted = errors.New("redisstore: too much contention on replica")

// ReplicaStore keeps cart product replicas as JSON strings, one key per (seller, product).
type ReplicaStore struct {
	client *redis.Client
}

func NewReplicaStore(client *redis.Client) *ReplicaStore {
	return &ReplicaStore{client: client}
}

func (s *ReplicaStore) Get(ctx context.Context, sellerID, productID string) (domain.ProductReplica, error) {
	return getReplica(ctx, s.client, replicaKey(sellerID, productID))
}

func (s *ReplicaStore) Upsert(ctx context.Context, r domain.ProductReplica) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redisstore: marshal replica: %w", err)
	}
	if err := s.client.Set(ctx, replicaKey(r.SellerID, r.ProductID), b, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set replica: %w", err)
	}
	return nil
}

// UpdatePrice is a WATCH-guarded compare-and-set on the replica's version.
func (s *ReplicaStore) UpdatePrice(ctx context.Context, sellerID, productID, version string, price float64) (bool, error) {
	key := replicaKey(sellerID, productID)
	applied := false

	txf := func(tx *redis.Tx) error {
		applied = false
		r, err := getReplica(ctx, tx, key)
		if errors.Is(err, domain.ErrReplicaNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if r.Version != version {
			return nil
		}
		r.Price = price
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}

	for i := 0; i < maxCASRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("redisstore: update price: %w", err)
		}
		return applied, nil
	}
	return false, errCASExhausted
}

func (s *ReplicaStore) Cleanup(ctx context.Context) error {
	return deletePrefix(ctx, s.client, replicaPrefix)
}

func replicaKey(sellerID, productID string) string {
	return replicaPrefix + sellerID + ":" + productID
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getReplica(ctx context.Context, c getter, key string) (domain.ProductReplica, error) {
	b, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ProductReplica{}, domain.ErrReplicaNotFound
	}
	if err != nil {
		return domain.ProductReplica{}, fmt.Errorf("redisstore: get replica: %w", err)
	}
	var r domain.ProductReplica
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.ProductReplica{}, fmt.Errorf("redisstore: unmarshal replica: %w", err)
	}
	return r, nil
}

func deletePrefix(ctx context.Context, c *redis.Client, prefix string) error {
	iter := c.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redisstore: scan %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redisstore: delete %s: %w", prefix, err)
	}
	return nil
}
