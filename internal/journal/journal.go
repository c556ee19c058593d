// Package journal persists settled spend counters to Redis so operators keep
// a durable per-account view of reported spend across banker restarts. It is
// write-behind only: the synchronization engine records into it after the
// ledger acknowledged a spend report, never on the bid/win hot path.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrKeyNotFound signals a counter that has never been written.
var ErrKeyNotFound = errors.New("journal: key not found")

// keyPrefix namespaces journal counters in the shared Redis keyspace.
const keyPrefix = "banker:spend:"

// store is the consumer interface for counter persistence.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Journal accumulates per-account spend counters with a rolling TTL.
type Journal struct {
	store store
	ttl   time.Duration
}

// New creates a journal over the given store. ttl bounds how long an idle
// account's counter survives (recommended: 48h).
func New(s store, ttl time.Duration) *Journal {
	return &Journal{store: s, ttl: ttl}
}

// RecordSpend adds settled spend micros to the account's counter.
func (j *Journal) RecordSpend(ctx context.Context, account string, micros int64) error {
	key := keyPrefix + account
	if err := j.store.IncrBy(ctx, key, micros); err != nil {
		return fmt.Errorf("journal INCRBY %s: %w", key, err)
	}

	// TTL only when the key has none yet (NX), so it is not reset on
	// every report.
	if err := j.store.Expire(ctx, key, j.ttl, true); err != nil {
		return fmt.Errorf("journal EXPIRE %s: %w", key, err)
	}
	return nil
}

// Spend returns the account's journaled spend in micros. Returns 0 for
// accounts that never reported.
func (j *Journal) Spend(ctx context.Context, account string) (int64, error) {
	key := keyPrefix + account
	data, err := j.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("journal GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("journal GET %s parse: %w", key, err)
	}
	return val, nil
}
