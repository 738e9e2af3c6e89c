// Package cache stores resolved results for a limited time. Values are kept
// as JSON so every backend behaves the same.
package cache

import (
	"context"
	"time"

	"github.com/julianbeese/mietcheck/internal/domain"
)

var errMiss = domain.ErrCacheMiss

// Cache is a TTL key/value store for JSON-serializable values
type Cache interface {
	// Get decodes the value stored under key into dst, or returns
	// domain.ErrCacheMiss when the key is absent or expired
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Key helpers
func PostalCodeKey(plz string) string { return "plz:" + plz }
func URLKey(url string) string        { return "url:" + url }

// Noop never stores anything
type Noop struct{}

func (Noop) Get(context.Context, string, any) error {
	return errMiss
}

func (Noop) Set(context.Context, string, any, time.Duration) error {
	return nil
}
