package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerRegistry holds one circuit breaker per (kind, host): a
// persistently failing registry or Helm repo stops being hit every
// single reconcile instead of retrying it forever. This supplements
// spec §7's "failure is non-fatal" rule for C3 (see SPEC_FULL.md §4.3);
// it is not a change to any documented behavior, only a stronger form
// of the non-fatal guarantee.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry builds an empty registry; breakers are created
// lazily per key on first use.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (r *BreakerRegistry) breakerFor(kind SourceKind, host string) *gobreaker.CircuitBreaker {
	key := fmt.Sprintf("%s/%s", kind, host)

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}

	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	r.breakers[key] = b
	return b
}

// Do runs fetch through the breaker for (kind, host). When the breaker
// is open it returns gobreaker.ErrOpenState immediately without calling
// fetch, which the caller treats the same as any other transient
// discovery failure: log, count, return no candidates.
func (r *BreakerRegistry) Do(ctx context.Context, kind SourceKind, host string, fetch func(ctx context.Context) ([]string, error)) ([]string, error) {
	b := r.breakerFor(kind, host)
	result, err := b.Execute(func() (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}
