package cart

import (
	"context"
	"errors"
)

// CartCache fronts the repository for reads. Defined here by the consumer;
// the Redis implementation lives in the cache subpackage.
type CartCache interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Set(ctx context.Context, sessionID string, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCacheMiss = errors.New("cache miss")
