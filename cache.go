package pgsession

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sivaosorg/loggy"
)

// StatementCache is a bounded LRU mapping SQL text to a StatementHandle,
// guarded by a single mutex held across the full prepare round-trip
// (§4.4, §9 "cache lock granularity"). Capacity 0 disables caching
// entirely: every lookup misses and nothing is ever inserted, which is
// how pg_bouncer mode is expressed (§3).
type StatementCache struct {
	mu       sync.Mutex
	capacity int
	lru      *lru.Cache[string, *StatementHandle]
}

// StatementHandle is the cheaply cloneable value the cache stores: a
// server-side prepared statement name plus the metadata needed to
// validate and decode subsequent executions against it.
type StatementHandle struct {
	Name      string
	SQL       string
	ParamOIDs []uint32
	Fields    []FieldInfo
}

// Params reports the number of bind parameters the server expects for
// this prepared statement — used by the arity check in §4.6 step 4.
func (h *StatementHandle) Params() int {
	return len(h.ParamOIDs)
}

// ColumnNames returns the result-set column names in server order.
func (h *StatementHandle) ColumnNames() []string {
	names := make([]string, len(h.Fields))
	for i, f := range h.Fields {
		names[i] = f.Name
	}
	return names
}

func newStatementCache(capacity int) (*StatementCache, error) {
	if capacity <= 0 {
		return &StatementCache{capacity: 0}, nil
	}
	c, err := lru.New[string, *StatementHandle](capacity)
	if err != nil {
		return nil, newInvalidConnectionArguments("invalid statement_cache_size: %v", err)
	}
	return &StatementCache{capacity: capacity, lru: c}, nil
}

// Capacity returns the cache's configured capacity; 0 means caching is
// disabled (§8 testable property: "pg_bouncer=true ⇒ cache().capacity()
// == 0").
func (c *StatementCache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Len returns the number of entries currently cached.
func (c *StatementCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// get looks up sql under the cache lock. Callers hold the lock across
// the whole fetch_cached round-trip (see session.go's fetchCached), so
// get and put are unexported and always called with mu already held.
func (c *StatementCache) get(sql string) (*StatementHandle, bool) {
	if c.lru == nil {
		return nil, false
	}
	h, ok := c.lru.Get(sql)
	if ok {
		loggy.Tracef("pgsession | cache | hit sql=%q size=%d capacity=%d", truncateForLog(sql), c.lru.Len(), c.capacity)
	}
	return h, ok
}

func (c *StatementCache) put(sql string, h *StatementHandle) {
	if c.lru == nil {
		return
	}
	c.lru.Add(sql, h)
}

// Lock and Unlock expose the coarse cache mutex to fetchCached, which
// must hold it across the prepare round-trip, not just the map access
// (§4.4: "the mutex is held across the prepare round-trip").
func (c *StatementCache) Lock()   { c.mu.Lock() }
func (c *StatementCache) Unlock() { c.mu.Unlock() }

func truncateForLog(sql string) string {
	const max = 120
	if len(sql) <= max {
		return sql
	}
	return sql[:max] + "…"
}
