package configuration

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// RequestTypeChecker tells whether a request type exists for a tenant
type RequestTypeChecker interface {
	Exists(ctx context.Context, tenantID, requestTypeID string) (bool, error)
}

// StaticRequestTypes is an in-memory RequestTypeChecker
type StaticRequestTypes struct {
	known map[string]map[string]struct{} // tenantID -> request type ids
	mu    sync.RWMutex
}

// NewStaticRequestTypes creates an empty set
func NewStaticRequestTypes() *StaticRequestTypes {
	return &StaticRequestTypes{known: make(map[string]map[string]struct{})}
}

// Register makes request types known for a tenant
func (s *StaticRequestTypes) Register(tenantID string, requestTypeIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.known[tenantID]
	if !ok {
		ids = make(map[string]struct{})
		s.known[tenantID] = ids
	}
	for _, id := range requestTypeIDs {
		ids[id] = struct{}{}
	}
}

func (s *StaticRequestTypes) Exists(_ context.Context, tenantID, requestTypeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.known[tenantID][requestTypeID]
	return ok, nil
}

// PostgresRequestTypes looks request types up in the request_types table
type PostgresRequestTypes struct {
	db *sql.DB
}

// NewPostgresRequestTypes creates a checker over db
func NewPostgresRequestTypes(db *sql.DB) *PostgresRequestTypes {
	return &PostgresRequestTypes{db: db}
}

func (p *PostgresRequestTypes) Exists(ctx context.Context, tenantID, requestTypeID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM request_types WHERE tenant_id = $1 AND id = $2 AND is_active = TRUE)
	`, tenantID, requestTypeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check request type existence: %w", err)
	}
	return exists, nil
}
