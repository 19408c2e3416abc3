package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ RateLimiter = (*LocalRateLimiter)(nil)

// LocalRateLimiter is an in-process token bucket per scope, used when no
// shared redis is configured. The bucket refills Limit tokens per Window.
type LocalRateLimiter struct {
	budget Budget

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocalRateLimiter(budget Budget) *LocalRateLimiter {
	return &LocalRateLimiter{
		budget:   budget.Normalize(),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *LocalRateLimiter) Allow(_ context.Context, scope string) (bool, error) {
	limiter, err := l.limiterFor(scope)
	if err != nil {
		return false, err
	}
	return limiter.Allow(), nil
}

func (l *LocalRateLimiter) Wait(ctx context.Context, scope string) error {
	limiter, err := l.limiterFor(scope)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return limiter.Wait(ctx)
}

func (l *LocalRateLimiter) limiterFor(scope string) (*rate.Limiter, error) {
	normalized := strings.ToLower(strings.TrimSpace(scope))
	if normalized == "" {
		return nil, fmt.Errorf("scope is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[normalized]
	if !ok {
		every := l.budget.Window / time.Duration(l.budget.Limit)
		limiter = rate.NewLimiter(rate.Every(every), l.budget.Limit)
		l.limiters[normalized] = limiter
	}
	return limiter, nil
}
