// Package kv defines the persisted key-value store used for settings and
// notification history. Values are JSON-encoded by every driver.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("kv: key not found")

// ErrMalformed is wrapped by Get when the stored value does not decode into
// dest.
var ErrMalformed = errors.New("kv: malformed value")

// Store is a JSON key-value store. Get decodes the stored value into dest.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Ping(ctx context.Context) error
	Close() error
}
