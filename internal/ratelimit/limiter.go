package ratelimit

import (
	"context"
	"time"
)

const (
	defaultLimit  = 5
	defaultWindow = time.Second
)

// RateLimiter controls relay delivery throughput per provider scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}

// Budget allows at most Limit deliveries per scope within any trailing Window.
type Budget struct {
	Limit  int
	Window time.Duration
}

// Normalize fills unset or invalid fields with the defaults (5 per second).
func (b Budget) Normalize() Budget {
	if b.Limit <= 0 {
		b.Limit = defaultLimit
	}
	if b.Window <= 0 {
		b.Window = defaultWindow
	}
	return b
}
