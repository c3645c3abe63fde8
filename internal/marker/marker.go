// Package marker records "already done in this window" flags, such as the daily
// check-in reminder push, so repeated ticks do not repeat the side effect.
package marker

import (
	"context"
	"time"
)

// Store sets a key once. MarkOnce returns true for the caller that created the key
// and false while the key is still live.
type Store interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}
