// Package mmapcache implements a bounded, process-local LRU of
// memory-mapped page files: an ordered map from page path to an opened
// read-only memory mapping, evicting the least-recently-used mapping on
// overflow. It maps real files via github.com/edsrzf/mmap-go rather than
// caching raw read buffers, so callers get zero-copy views directly into
// the file's bytes.
package mmapcache

import (
	"container/list"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
)

// DefaultCapacity is the maximum number of open mappings the cache
// retains at once.
const DefaultCapacity = 10

type entry struct {
	path string
	mm   mmap.MMap
	f    *os.File
}

// Cache is an LRU-bounded map from page path to an open, read-only
// memory mapping of that path. The zero value is not usable; construct
// with New.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List // front = most-recently-used
	items    map[string]*list.Element
}

// New returns a cache bounded to capacity entries. A non-positive
// capacity is replaced with DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the mapped bytes for path, opening and mapping the file on
// a cache miss. On overflow the least-recently-used mapping is closed and
// evicted, guaranteeing its file descriptor and mapping are released.
func (c *Cache) Get(path string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry).mm, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmapcache: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapcache: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("mmapcache: %s is empty", path)
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapcache: mmap %s: %w", path, err)
	}

	e := &entry{path: path, mm: mm, f: f}
	el := c.ll.PushFront(e)
	c.items[path] = el

	for c.ll.Len() > c.capacity {
		c.evictOldest()
	}

	return mm, nil
}

// Purge releases the cached mapping for path, if present. Callers that
// overwrite a page on disk MUST call this before any subsequent Get, or
// the next read observes the stale mapping; the cache never invalidates
// entries on its own.
func (c *Cache) Purge(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[path]; ok {
		c.closeEntry(el.Value.(*entry))
		c.ll.Remove(el)
		delete(c.items, path)
	}
}

// Len reports the number of open mappings currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Close releases every mapping held by the cache.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.ll.Front(); el != nil; el = el.Next() {
		c.closeEntry(el.Value.(*entry))
	}
	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

func (c *Cache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	e := el.Value.(*entry)
	c.closeEntry(e)
	c.ll.Remove(el)
	delete(c.items, e.path)
}

func (c *Cache) closeEntry(e *entry) {
	_ = e.mm.Unmap()
	_ = e.f.Close()
}
