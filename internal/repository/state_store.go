package repository

import (
	"context"
	"time"
)

// StateStore holds short-lived pending state such as account link requests.
// Implementations: Redis (production) or in-memory (single instance, tests).
// Missing and expired keys read as nil with no error.
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Pop returns the value and deletes the key in one step, so a value is
	// consumed at most once.
	Pop(ctx context.Context, key string) ([]byte, error)
}
