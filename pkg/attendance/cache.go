package attendance

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// ListKey is the cache key the attendance list is stored under
const ListKey = "attendance"

// QueryCache holds fetched results by logical key until invalidated.
// Concurrent loads of the same key share one call. A load that started before
// an invalidation never repopulates the key and is not joined by later loads.
type QueryCache struct {
	mu          sync.RWMutex
	entries     map[string][]types.AttendanceRecord
	generations map[string]uint64
	group       singleflight.Group
}

// NewQueryCache creates an empty cache
func NewQueryCache() *QueryCache {
	return &QueryCache{
		entries:     make(map[string][]types.AttendanceRecord),
		generations: make(map[string]uint64),
	}
}

// Get returns a copy of the cached value for key
func (c *QueryCache) Get(key string) ([]types.AttendanceRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	records, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return cloneRecords(records), true
}

// Set stores a copy of records under key
func (c *QueryCache) Set(key string, records []types.AttendanceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cloneRecords(records)
}

// Invalidate marks key stale so the next read reloads it
func (c *QueryCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.generations[key]++
	c.mu.Unlock()

	c.group.Forget(key)
}

func (c *QueryCache) generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[key]
}

// setIfCurrent stores records only when key was not invalidated since gen
func (c *QueryCache) setIfCurrent(key string, gen uint64, records []types.AttendanceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != gen {
		return
	}
	c.entries[key] = cloneRecords(records)
}

// Load returns the cached value or runs load once for all concurrent callers.
// Failed loads are not cached.
func (c *QueryCache) Load(key string, load func() ([]types.AttendanceRecord, error)) ([]types.AttendanceRecord, error) {
	if records, ok := c.Get(key); ok {
		return records, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		gen := c.generation(key)
		records, err := load()
		if err != nil {
			return nil, err
		}
		c.setIfCurrent(key, gen, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneRecords(v.([]types.AttendanceRecord)), nil
}

func cloneRecords(records []types.AttendanceRecord) []types.AttendanceRecord {
	if records == nil {
		return nil
	}
	out := make([]types.AttendanceRecord, len(records))
	copy(out, records)
	return out
}
