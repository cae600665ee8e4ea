package evidence

import (
	"context"

	"github.com/truthshield/triage/internal/resilience"
)

// GuardedStore wraps a Store with retry and circuit breaker protection.
// Evidence writes are the one pipeline step that must not silently fail,
// so transient backend errors are retried and a persistently failing
// backend trips the breaker instead of stalling every route call.
type GuardedStore struct {
	inner   Store
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig

	// OnResult is called after each Put attempt completes, success or not.
	// Used to feed degradation tracking and metrics.
	OnResult func(success bool)
}

// NewGuardedStore wraps inner with the given breaker. A nil breaker gets
// default thresholds.
func NewGuardedStore(inner Store, breaker *resilience.CircuitBreaker) *GuardedStore {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	return &GuardedStore{
		inner:   inner,
		breaker: breaker,
		retry:   resilience.DefaultRetryConfig(),
	}
}

func (s *GuardedStore) Put(ctx context.Context, record Record) error {
	err := s.breaker.Call(func() error {
		return resilience.RetryWithConfig(ctx, s.retry, func() error {
			return s.inner.Put(ctx, record)
		})
	})

	if s.OnResult != nil {
		s.OnResult(err == nil)
	}
	return err
}

func (s *GuardedStore) Get(ctx context.Context, hash string) (Record, bool, error) {
	return s.inner.Get(ctx, hash)
}

func (s *GuardedStore) Keys(ctx context.Context) ([]string, error) {
	return s.inner.Keys(ctx)
}

// Breaker exposes the underlying circuit breaker for health reporting
func (s *GuardedStore) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}
