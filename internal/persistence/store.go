package persistence

import (
	"context"
	"errors"
	"fmt"
)

// Store is a durable key/value store holding serialized carts.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var ErrNotFound = errors.New("key not found")

// DefaultKey is the storage key of a cart that is not bound to a session.
const DefaultKey = "cart"

// Key returns the storage key for a session's cart.
func Key(sessionID string) string {
	if sessionID == "" {
		return DefaultKey
	}
	return fmt.Sprintf("cart:%s", sessionID)
}
