package configuration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store persists configurations. Every lookup takes the tenant alongside the id
// and soft-deleted records are never returned.
type Store interface {
	// Get returns ErrNotFound when the tenant/id pair is absent or soft-deleted
	Get(ctx context.Context, tenantID, id string) (*WorkflowConfiguration, error)

	// ListByTenant returns every live configuration of a tenant
	ListByTenant(ctx context.Context, tenantID string) ([]*WorkflowConfiguration, error)

	// ListByRequestType returns every live configuration of a tenant for one request type
	ListByRequestType(ctx context.Context, tenantID, requestTypeID string) ([]*WorkflowConfiguration, error)

	// Save inserts a new configuration
	Save(ctx context.Context, cfg *WorkflowConfiguration) error

	// Mutate runs fn on a copy of the stored record and writes the copy back only
	// when fn succeeds. The read, fn and the write form one atomic unit.
	Mutate(ctx context.Context, tenantID, id string, fn func(*WorkflowConfiguration) error) (*WorkflowConfiguration, error)

	// SoftDelete marks the record deleted; it disappears from every read
	SoftDelete(ctx context.Context, tenantID, id, userID string) error
}

// InMemoryStore implements Store with per-tenant maps guarded by an RWMutex
type InMemoryStore struct {
	tenants map[string]map[string]*WorkflowConfiguration // tenantID -> id -> record
	mu      sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tenants: make(map[string]map[string]*WorkflowConfiguration),
	}
}

// Get returns a copy of the record
func (s *InMemoryStore) Get(ctx context.Context, tenantID, id string) (*WorkflowConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.lookup(tenantID, id)
	if !ok {
		return nil, fmt.Errorf("configuration %s: %w", id, ErrNotFound)
	}
	return cfg.Clone(), nil
}

// ListByTenant returns copies ordered by priority then creation time
func (s *InMemoryStore) ListByTenant(ctx context.Context, tenantID string) ([]*WorkflowConfiguration, error) {
	return s.list(ctx, tenantID, func(*WorkflowConfiguration) bool { return true })
}

// ListByRequestType returns copies ordered by priority then creation time
func (s *InMemoryStore) ListByRequestType(ctx context.Context, tenantID, requestTypeID string) ([]*WorkflowConfiguration, error) {
	return s.list(ctx, tenantID, func(c *WorkflowConfiguration) bool {
		return c.RequestTypeID == requestTypeID
	})
}

func (s *InMemoryStore) list(ctx context.Context, tenantID string, keep func(*WorkflowConfiguration) bool) ([]*WorkflowConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*WorkflowConfiguration
	for _, cfg := range s.tenants[tenantID] {
		if cfg.IsDeleted || !keep(cfg) {
			continue
		}
		out = append(out, cfg.Clone())
	}
	sortByPriority(out)
	return out, nil
}

// Save stores a copy of cfg. The id must be unique within the tenant.
func (s *InMemoryStore) Save(ctx context.Context, cfg *WorkflowConfiguration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.tenants[cfg.TenantID]
	if !ok {
		records = make(map[string]*WorkflowConfiguration)
		s.tenants[cfg.TenantID] = records
	}
	if _, exists := records[cfg.ID]; exists {
		return fmt.Errorf("configuration with ID %s already exists", cfg.ID)
	}
	records[cfg.ID] = cfg.Clone()
	return nil
}

// Mutate holds the write lock across read, fn and write
func (s *InMemoryStore) Mutate(ctx context.Context, tenantID, id string, fn func(*WorkflowConfiguration) error) (*WorkflowConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.lookup(tenantID, id)
	if !ok {
		return nil, fmt.Errorf("configuration %s: %w", id, ErrNotFound)
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	// A cancelled caller leaves the record untouched
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Identity cannot be moved by fn
	working.ID = current.ID
	working.TenantID = current.TenantID
	s.tenants[tenantID][id] = working
	return working.Clone(), nil
}

// SoftDelete stamps the deletion fields and keeps the record
func (s *InMemoryStore) SoftDelete(ctx context.Context, tenantID, id, userID string) error {
	_, err := s.Mutate(ctx, tenantID, id, func(cfg *WorkflowConfiguration) error {
		now := time.Now().UTC()
		cfg.IsDeleted = true
		cfg.IsActive = false
		cfg.DeletedAt = &now
		cfg.DeletedBy = userID
		return nil
	})
	return err
}

// lookup must be called with the lock held
func (s *InMemoryStore) lookup(tenantID, id string) (*WorkflowConfiguration, bool) {
	cfg, ok := s.tenants[tenantID][id]
	if !ok || cfg.IsDeleted {
		return nil, false
	}
	return cfg, true
}

// sortByPriority orders ascending by Priority with creation time and id as tie-breakers
func sortByPriority(configs []*WorkflowConfiguration) {
	sort.SliceStable(configs, func(i, j int) bool {
		a, b := configs[i], configs[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
