package configuration

import (
	"sync"
	"time"
)

type cacheEntry struct {
	configs  []*WorkflowConfiguration
	cachedAt time.Time
}

// InMemoryCandidateCache is a thread-safe CandidateCache. Records are copied
// on the way in and out so callers can never alias cached state.
type InMemoryCandidateCache struct {
	entries     map[string]map[string]cacheEntry // tenantID -> requestTypeID -> entry
	generations map[string]uint64                // tenantID -> invalidation count
	epoch       uint64                           // bumped by Invalidate
	config      CacheConfig
	mu          sync.RWMutex
}

// NewInMemoryCandidateCache creates an empty cache
func NewInMemoryCandidateCache(config CacheConfig) *InMemoryCandidateCache {
	return &InMemoryCandidateCache{
		entries:     make(map[string]map[string]cacheEntry),
		generations: make(map[string]uint64),
		config:      config,
	}
}

func (c *InMemoryCandidateCache) Get(tenantID, requestTypeID string) ([]*WorkflowConfiguration, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	generation := c.generation(tenantID)
	entry, ok := c.entries[tenantID][requestTypeID]
	if !ok {
		return nil, generation, false
	}
	if c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL {
		return nil, generation, false
	}
	return cloneAll(entry.configs), generation, true
}

func (c *InMemoryCandidateCache) Set(tenantID, requestTypeID string, generation uint64, configs []*WorkflowConfiguration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation(tenantID) {
		return
	}

	byType, ok := c.entries[tenantID]
	if !ok {
		byType = make(map[string]cacheEntry)
		c.entries[tenantID] = byType
	}
	byType[requestTypeID] = cacheEntry{configs: cloneAll(configs), cachedAt: time.Now()}
}

func (c *InMemoryCandidateCache) InvalidateTenant(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, tenantID)
	c.generations[tenantID]++
}

func (c *InMemoryCandidateCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]map[string]cacheEntry)
	c.epoch++
}

// generation must be called with mu held. Both counters only grow, so their
// sum changes whenever either is bumped.
func (c *InMemoryCandidateCache) generation(tenantID string) uint64 {
	return c.epoch + c.generations[tenantID]
}

func cloneAll(configs []*WorkflowConfiguration) []*WorkflowConfiguration {
	out := make([]*WorkflowConfiguration, len(configs))
	for i, cfg := range configs {
		out[i] = cfg.Clone()
	}
	return out
}
