package stream

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCacheCapacity bounds the artifact cache when no capacity is configured.
const DefaultCacheCapacity = 300

type cacheEntry struct {
	trackID  string
	artifact *Artifact
}

// ArtifactCache is a bounded LRU map from track identifier to authorization
// artifact.
//
// Get treats a pessimistically expired entry as absent and evicts it as a
// side effect. Put always overwrites and marks the key most recently used;
// inserting beyond capacity evicts the least recently used entry. Artifact
// construction dominates cost, so a single mutex is sufficient here.
type ArtifactCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	now      func() time.Time
}

// NewArtifactCache creates a cache bounded to the given capacity.
func NewArtifactCache(capacity int) *ArtifactCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &ArtifactCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the artifact for trackID if present and still valid.
//
// Expired entries are removed before reporting absence.
func (c *ArtifactCache) Get(trackID string) (*Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[trackID]
	if !ok {
		return nil, false
	}

	entry := el.Value.(*cacheEntry)
	if !entry.artifact.ValidAt(c.now()) {
		c.order.Remove(el)
		delete(c.entries, trackID)
		return nil, false
	}

	c.order.MoveToFront(el)
	return entry.artifact, true
}

// Put stores an artifact for trackID, replacing any previous entry and
// evicting the least recently used entry when over capacity.
func (c *ArtifactCache) Put(trackID string, artifact *Artifact) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[trackID]; ok {
		el.Value.(*cacheEntry).artifact = artifact
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{trackID: trackID, artifact: artifact})
	c.entries[trackID] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).trackID)
	}
}

// Len returns the number of cached entries, valid or not.
func (c *ArtifactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// ValidCount returns the number of entries still within their validity window.
func (c *ArtifactCache) ValidCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	valid := 0
	for el := c.order.Front(); el != nil; el = el.Next() {
		if el.Value.(*cacheEntry).artifact.ValidAt(now) {
			valid++
		}
	}
	return valid
}
