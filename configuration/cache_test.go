package configuration

import (
	"testing"
	"time"
)

func TestInMemoryCandidateCache(t *testing.T) {
	cache := NewInMemoryCandidateCache(DefaultCacheConfig())

	_, gen, ok := cache.Get(tenantA, "expense")
	if ok {
		t.Fatal("empty cache should miss")
	}

	configs := []*WorkflowConfiguration{storedConfiguration(tenantA, "c1", "expense", 1)}
	cache.Set(tenantA, "expense", gen, configs)

	got, _, ok := cache.Get(tenantA, "expense")
	if !ok || len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("Get() = %v, %v", got, ok)
	}

	// Neither the input nor the output aliases the cached entry
	configs[0].WorkflowName = "changed"
	got[0].Priority = 4
	again, _, _ := cache.Get(tenantA, "expense")
	if again[0].WorkflowName == "changed" || again[0].Priority == 4 {
		t.Error("cache entries must be copied")
	}

	if _, _, ok := cache.Get(tenantB, "expense"); ok {
		t.Error("entries are tenant-scoped")
	}
	if _, _, ok := cache.Get(tenantA, allRequestTypes); ok {
		t.Error("entries are request-type-scoped")
	}
}

func TestInMemoryCandidateCacheInvalidation(t *testing.T) {
	cache := NewInMemoryCandidateCache(DefaultCacheConfig())
	cache.Set(tenantA, "expense", 0, nil)
	cache.Set(tenantA, allRequestTypes, 0, nil)
	cache.Set(tenantB, "expense", 0, nil)

	cache.InvalidateTenant(tenantA)
	if _, _, ok := cache.Get(tenantA, "expense"); ok {
		t.Error("tenant entries should be dropped")
	}
	if _, _, ok := cache.Get(tenantA, allRequestTypes); ok {
		t.Error("tenant-wide entry should be dropped")
	}
	if _, _, ok := cache.Get(tenantB, "expense"); !ok {
		t.Error("other tenants must be unaffected")
	}

	cache.Invalidate()
	if _, _, ok := cache.Get(tenantB, "expense"); ok {
		t.Error("Invalidate should drop everything")
	}
}

// TestInMemoryCandidateCacheDropsStaleFill verifies a load that straddles an
// invalidation is never stored
func TestInMemoryCandidateCacheDropsStaleFill(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(c *InMemoryCandidateCache)
	}{
		{"tenant invalidation", func(c *InMemoryCandidateCache) { c.InvalidateTenant(tenantA) }},
		{"full invalidation", func(c *InMemoryCandidateCache) { c.Invalidate() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewInMemoryCandidateCache(DefaultCacheConfig())

			_, gen, _ := cache.Get(tenantA, "expense")
			tt.invalidate(cache)
			cache.Set(tenantA, "expense", gen, []*WorkflowConfiguration{storedConfiguration(tenantA, "c1", "expense", 1)})

			if _, _, ok := cache.Get(tenantA, "expense"); ok {
				t.Fatal("fill read before the invalidation must be dropped")
			}

			_, next, _ := cache.Get(tenantA, "expense")
			if next == gen {
				t.Fatal("invalidation must advance the generation")
			}
			cache.Set(tenantA, "expense", next, nil)
			if _, _, ok := cache.Get(tenantA, "expense"); !ok {
				t.Error("fill at the current generation should be stored")
			}
		})
	}

	cache := NewInMemoryCandidateCache(DefaultCacheConfig())
	_, gen, _ := cache.Get(tenantA, "expense")
	cache.InvalidateTenant(tenantB)
	cache.Set(tenantA, "expense", gen, nil)
	if _, _, ok := cache.Get(tenantA, "expense"); !ok {
		t.Error("invalidating another tenant must not drop the fill")
	}
}

func TestInMemoryCandidateCacheTTL(t *testing.T) {
	cache := NewInMemoryCandidateCache(CacheConfig{TTL: 20 * time.Millisecond})
	cache.Set(tenantA, "expense", 0, nil)

	if _, _, ok := cache.Get(tenantA, "expense"); !ok {
		t.Fatal("fresh entry should hit")
	}
	time.Sleep(40 * time.Millisecond)
	if _, _, ok := cache.Get(tenantA, "expense"); ok {
		t.Error("expired entry should miss")
	}
}
