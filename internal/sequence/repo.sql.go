package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCounterStore keeps counters in the doc_sequences table. The
// increment happens inside a single upsert so concurrent allocators for
// the same key serialise on the row, not on a global lock.
type PostgresCounterStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCounterStore constructs the store.
func NewPostgresCounterStore(pool *pgxpool.Pool) *PostgresCounterStore {
	return &PostgresCounterStore{pool: pool}
}

// Next atomically increments and returns the counter value.
func (s *PostgresCounterStore) Next(ctx context.Context, storeID string, kind Kind, period string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO doc_sequences (store_id, kind, period, value)
VALUES ($1, $2, $3, 1)
ON CONFLICT (store_id, kind, period)
DO UPDATE SET value = doc_sequences.value + 1
RETURNING value`, storeID, string(kind), period).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sequence: next value: %w", err)
	}
	return value, nil
}
