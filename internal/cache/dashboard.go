package cache

import (
	"time"

	"calmledger/internal/core"
)

// DashboardSource computes a dashboard together with the ledger revision
// it reflects, atomically.
type DashboardSource interface {
	Revision() uint64
	DashboardAt(ref core.Date) (core.Dashboard, uint64)
}

type monthKey struct {
	revision uint64
	year     int
	month    time.Month
}

// DashboardCache memoises month dashboards per ledger revision. Any
// mutation bumps the revision, so a stale entry is never served.
type DashboardCache struct {
	source DashboardSource
	lru    *LRU[monthKey, core.Dashboard]
}

func NewDashboardCache(source DashboardSource, size int, ttl time.Duration) *DashboardCache {
	return &DashboardCache{
		source: source,
		lru:    NewLRU[monthKey, core.Dashboard](size, ttl),
	}
}

// Get returns the dashboard for ref's month and whether it came from cache.
// Computing at a newer revision evicts every entry of older revisions.
func (c *DashboardCache) Get(ref core.Date) (core.Dashboard, bool) {
	if d, ok := c.lru.Get(keyFor(c.source.Revision(), ref)); ok {
		return d, true
	}
	d, rev := c.source.DashboardAt(ref)
	c.lru.RemoveIf(func(k monthKey) bool { return k.revision < rev })
	c.lru.Put(keyFor(rev, ref), d)
	return d, false
}

// Len reports how many months are cached.
func (c *DashboardCache) Len() int {
	return c.lru.Len()
}

func (c *DashboardCache) Sweep() int {
	return c.lru.Sweep()
}

func keyFor(revision uint64, ref core.Date) monthKey {
	return monthKey{revision: revision, year: ref.Year(), month: ref.Month()}
}
