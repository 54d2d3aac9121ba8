// Package dataset owns the published shelter snapshot and the refresh cycle
// that replaces it.
package dataset

import (
	"sync/atomic"
	"time"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
)

// Cache holds the current dataset snapshot. Publication is a single atomic
// pointer swap: a reader sees fully the old snapshot or fully the new one,
// never a mix, and RefreshedAt values observed through Current are
// monotonically non-decreasing.
type Cache struct {
	current atomic.Pointer[domain.Snapshot]
}

func NewCache() *Cache {
	return &Cache{}
}

// Current returns the published snapshot, or nil before the first publish.
// Callers borrow the snapshot and must not mutate it.
func (c *Cache) Current() *domain.Snapshot {
	return c.current.Load()
}

// Publish atomically replaces the current snapshot.
func (c *Cache) Publish(snap *domain.Snapshot) {
	c.current.Store(snap)
}

// RefreshedAt reports the current snapshot's stamp; false before the first
// publish.
func (c *Cache) RefreshedAt() (time.Time, bool) {
	snap := c.current.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.RefreshedAt, true
}
