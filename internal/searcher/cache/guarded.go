package cache

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/resilience"
)

// GuardedStore passes calls to a Store through a circuit breaker. While the
// circuit is open, calls fail fast with resilience.ErrCircuitOpen, which the
// cache treats as a miss.
type GuardedStore struct {
	store   Store
	breaker *resilience.CircuitBreaker
}

func NewGuardedStore(store Store, breaker *resilience.CircuitBreaker) *GuardedStore {
	return &GuardedStore{store: store, breaker: breaker}
}

func (g *GuardedStore) Lookup(ctx context.Context, key string) (value string, found bool, err error) {
	err = g.breaker.Execute(func() error {
		var lookupErr error
		value, found, lookupErr = g.store.Lookup(ctx, key)
		return lookupErr
	})
	return value, found, err
}

func (g *GuardedStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return g.store.Set(ctx, key, value, ttl)
	})
}

// FlushByPattern bypasses the breaker. An explicit invalidation should reach
// the backend even when lookups have been failing.
func (g *GuardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.store.FlushByPattern(ctx, pattern)
}
