package configuration

import "time"

// CandidateCache caches the eligible, priority-ordered configurations of a
// tenant for one request type. An empty request type id holds the candidates
// across every request type.
//
// Invalidation is local to the process. Replicas sharing one database each see
// only their own mutations, so the cache is meant for single-process deployments.
type CandidateCache interface {
	// Get returns the cached candidates, the tenant's current generation and
	// whether the entry was fresh. The generation is returned on a miss too.
	Get(tenantID, requestTypeID string) ([]*WorkflowConfiguration, uint64, bool)

	// Set stores candidates loaded at generation. The write is dropped when the
	// tenant was invalidated after that generation was read.
	Set(tenantID, requestTypeID string, generation uint64, configs []*WorkflowConfiguration)

	// InvalidateTenant drops every entry of a tenant and advances its generation
	InvalidateTenant(tenantID string)

	// Invalidate drops everything and advances every generation
	Invalidate()
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means entries live until invalidated by a mutation.
	TTL time.Duration
}

// DefaultCacheConfig returns a cache that relies on mutation invalidation only
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
