package types

import (
	"context"
	"net/http"
	"time"
)

// HTTPClient is the knowledge fetcher's HTTP collaborator.
type HTTPClient interface {
	Get(ctx context.Context, url string, timeout time.Duration) (status int, headers http.Header, body []byte, err error)
}

// CacheStore is a key-value collaborator with atomic put and timestamped
// entries, used by the knowledge fetcher's on-disk cache.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, time.Time, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}
