package synclock

import (
	"context"
	"errors"
	"time"
)

// KeyWarehouseSync serializes warehouse syncs across every trigger and process.
const KeyWarehouseSync = "ordersync:lock:warehouse_sync"

var (
	ErrNotConfigured = errors.New("lock_not_configured")
	ErrEmptyKey      = errors.New("lock_key_empty")
	ErrInvalidTTL    = errors.New("lock_ttl_invalid")
)

// Locker hands out expiring, token-owned locks. Release is a no-op unless the token still
// owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
