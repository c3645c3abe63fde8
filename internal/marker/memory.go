package marker

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory keeps markers in process. Markers are lost on restart.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates an in-process store that purges expired markers every cleanup.
func NewMemory(cleanup time.Duration) *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanup)}
}

// MarkOnce relies on Add failing for an existing, unexpired key.
func (m *Memory) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := m.c.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
