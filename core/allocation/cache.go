package allocation

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultCacheSize bounds the number of results kept by NewCache when a
// non-positive size is requested.
const DefaultCacheSize = 64

// Allocator is implemented by Engine and Cache.
type Allocator interface {
	Allocate(req Request) (*Result, error)
}

type cacheEntry struct {
	req Request
	res *Result
}

// Cache memoizes allocation results keyed on the full request. Any change
// to an input value produces a different key; Invalidate drops everything.
// It is safe for concurrent use.
type Cache struct {
	next    Allocator
	size    int
	mu      sync.Mutex
	entries map[uint64]cacheEntry
	order   []uint64
	hits    int
	misses  int
}

// NewCache wraps next with a FIFO bounded memo of size entries.
func NewCache(next Allocator, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{next: next, size: size, entries: make(map[uint64]cacheEntry)}
}

// Allocate returns the cached result for req or computes and stores it.
// Failed requests are not cached.
func (c *Cache) Allocate(req Request) (*Result, error) {
	key := requestKey(req)
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && sameRequest(e.req, req) {
		c.hits++
		c.mu.Unlock()
		return e.res, nil
	}
	c.misses++
	c.mu.Unlock()

	res, err := c.next.Allocate(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{req: cloneRequest(req), res: res}
	for len(c.order) > c.size {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	return res, nil
}

// Invalidate removes every cached result.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[uint64]cacheEntry)
	c.order = nil
	c.mu.Unlock()
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func requestKey(req Request) uint64 {
	d := xxhash.New()
	var buf [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = d.Write(buf[:])
	}
	putFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = d.Write(buf[:])
	}
	putInt(len(req.Vehicles))
	for _, v := range req.Vehicles {
		putInt(v.Index)
		putFloat(v.Capacity)
		putFloat(v.InitialCharge)
	}
	putInt(len(req.Resources))
	for _, r := range req.Resources {
		putInt(r.ID)
		putInt(r.Count)
		putFloat(r.UnitCapacity)
	}
	putInt(len(req.Rates))
	for _, r := range req.Rates {
		putFloat(r)
	}
	if req.DemandCeiling != nil {
		putInt(1)
		putFloat(*req.DemandCeiling)
	} else {
		putInt(0)
	}
	putInt(int(req.Mode))
	putInt(req.MaxConcurrent)
	if req.ExclusivePlug {
		putInt(1)
	} else {
		putInt(0)
	}
	return d.Sum64()
}

func sameRequest(a, b Request) bool {
	if len(a.Vehicles) != len(b.Vehicles) || len(a.Resources) != len(b.Resources) || len(a.Rates) != len(b.Rates) {
		return false
	}
	if a.Mode != b.Mode || a.MaxConcurrent != b.MaxConcurrent || a.ExclusivePlug != b.ExclusivePlug {
		return false
	}
	if (a.DemandCeiling == nil) != (b.DemandCeiling == nil) {
		return false
	}
	if a.DemandCeiling != nil && *a.DemandCeiling != *b.DemandCeiling {
		return false
	}
	for i := range a.Vehicles {
		if a.Vehicles[i] != b.Vehicles[i] {
			return false
		}
	}
	for i := range a.Resources {
		if a.Resources[i] != b.Resources[i] {
			return false
		}
	}
	for i := range a.Rates {
		if a.Rates[i] != b.Rates[i] {
			return false
		}
	}
	return true
}

func cloneRequest(req Request) Request {
	out := req
	out.Vehicles = append(out.Vehicles[:0:0], req.Vehicles...)
	out.Resources = append(out.Resources[:0:0], req.Resources...)
	out.Rates = append(out.Rates[:0:0], req.Rates...)
	if req.DemandCeiling != nil {
		v := *req.DemandCeiling
		out.DemandCeiling = &v
	}
	return out
}
