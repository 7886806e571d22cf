package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL keeps stale period keys from accumulating. A period is one
// month, so two months comfortably outlives any active counter.
const counterTTL = 62 * 24 * time.Hour

// RedisCounterStore keeps counters in Redis using INCR. Contention is
// scoped per (store, kind, period) key.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore constructs the store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func counterKey(storeID string, kind Kind, period string) string {
	return fmt.Sprintf("docseq:%s:%s:%s", storeID, kind, period)
}

// Next atomically increments and returns the counter value.
func (s *RedisCounterStore) Next(ctx context.Context, storeID string, kind Kind, period string) (int64, error) {
	key := counterKey(storeID, kind, period)
	value, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("sequence: incr %s: %w", key, err)
	}
	if value == 1 {
		_ = s.client.Expire(ctx, key, counterTTL).Err()
	}
	return value, nil
}
