package configuration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/approvals/internal/logger"
	"github.com/liamcoop/approvals/rules"
)

// CopySuffix is appended to the name of a cloned configuration
const CopySuffix = " (Copy)"

// allRequestTypes is the cache key for candidates across request types
const allRequestTypes = ""

// Manager owns the configuration lifecycle and tenant-scoped selection.
// Every public operation is a single Store call, so operations on the same id
// never interleave. Reads of a missing or deleted id return a nil result and
// a nil error; boolean mutations return false.
type Manager struct {
	store     Store
	validator *Validator
	deriver   *rules.Deriver
	cache     CandidateCache
	metrics   *Metrics
	now       func() time.Time
	newID     func() string
}

// Option customizes a Manager
type Option func(*Manager)

// WithCache caches selection candidates per tenant and request type
func WithCache(cache CandidateCache) Option {
	return func(m *Manager) { m.cache = cache }
}

// WithMetrics records lifecycle and evaluation metrics
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock overrides the time source used for audit stamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides how new configuration ids are minted
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// NewManager creates a Manager over store. requestTypes may be nil to accept
// every request type.
func NewManager(store Store, requestTypes RequestTypeChecker, opts ...Option) (*Manager, error) {
	deriver, err := rules.NewDeriver()
	if err != nil {
		return nil, fmt.Errorf("failed to create deriver: %w", err)
	}

	m := &Manager{
		store:     store,
		validator: NewValidator(requestTypes, deriver),
		deriver:   deriver,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create validates and stores a new Draft configuration at version 1.0
func (m *Manager) Create(ctx context.Context, tenantID, userID string, in CreateInput) (*WorkflowConfiguration, error) {
	cfg := newConfiguration(in)
	cfg.ID = m.newID()
	cfg.TenantID = tenantID
	cfg.CreatedAt = m.now()
	cfg.CreatedBy = userID

	if err := m.validator.Validate(ctx, cfg); err != nil {
		m.record("create", err)
		logger.Warn("configuration rejected", "tenant_id", tenantID, "request_type_id", cfg.RequestTypeID, "error", err)
		return nil, err
	}

	if err := m.store.Save(ctx, cfg); err != nil {
		m.record("create", err)
		logger.Error("failed to save configuration", "tenant_id", tenantID, "configuration_id", cfg.ID, "error", err)
		return nil, fmt.Errorf("failed to create configuration: %w", err)
	}

	m.invalidate(tenantID)
	m.record("create", nil)
	logger.Info("configuration created",
		"tenant_id", tenantID,
		"configuration_id", cfg.ID,
		"request_type_id", cfg.RequestTypeID,
		"user_id", userID,
	)
	return cfg, nil
}

// Update overwrites the supplied fields. The merged record is validated as a
// whole and nothing is written when it is invalid.
func (m *Manager) Update(ctx context.Context, tenantID, id, userID string, in UpdateInput) (*WorkflowConfiguration, error) {
	updated, err := m.store.Mutate(ctx, tenantID, id, func(cfg *WorkflowConfiguration) error {
		previousType := cfg.RequestTypeID
		in.apply(cfg)
		now := m.now()
		cfg.UpdatedAt = &now
		cfg.UpdatedBy = userID

		if cfg.RequestTypeID != previousType {
			return m.validator.Validate(ctx, cfg)
		}
		if problems := m.validator.Problems(cfg); len(problems) > 0 {
			return &ValidationError{Errors: problems}
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		m.record("update", err)
		return nil, nil
	}
	if err != nil {
		m.record("update", err)
		logger.Warn("configuration update failed", "tenant_id", tenantID, "configuration_id", id, "error", err)
		return nil, err
	}

	m.invalidate(tenantID)
	m.record("update", nil)
	logger.Info("configuration updated", "tenant_id", tenantID, "configuration_id", id, "user_id", userID)
	return updated, nil
}

// Get returns nil when the configuration does not exist for the tenant
func (m *Manager) Get(ctx context.Context, tenantID, id string) (*WorkflowConfiguration, error) {
	cfg, err := m.store.Get(ctx, tenantID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListByTenant returns every live configuration of the tenant
func (m *Manager) ListByTenant(ctx context.Context, tenantID string) ([]*WorkflowConfiguration, error) {
	return m.store.ListByTenant(ctx, tenantID)
}

// ListByRequestType returns every live configuration of the tenant for one request type
func (m *Manager) ListByRequestType(ctx context.Context, tenantID, requestTypeID string) ([]*WorkflowConfiguration, error) {
	return m.store.ListByRequestType(ctx, tenantID, requestTypeID)
}

// Activate sets IsActive. Status is left alone.
func (m *Manager) Activate(ctx context.Context, tenantID, id, userID string) (bool, error) {
	return m.mutate(ctx, "activate", tenantID, id, userID, func(cfg *WorkflowConfiguration) error {
		cfg.IsActive = true
		return nil
	})
}

// Deactivate clears IsActive. Status is left alone.
func (m *Manager) Deactivate(ctx context.Context, tenantID, id, userID string) (bool, error) {
	return m.mutate(ctx, "deactivate", tenantID, id, userID, func(cfg *WorkflowConfiguration) error {
		cfg.IsActive = false
		return nil
	})
}

// Publish moves a Draft to Published. Publishing an Archived configuration
// returns ErrInvalidTransition.
func (m *Manager) Publish(ctx context.Context, tenantID, id, userID string) (bool, error) {
	return m.mutate(ctx, "publish", tenantID, id, userID, func(cfg *WorkflowConfiguration) error {
		if cfg.Status == StatusArchived {
			return fmt.Errorf("%w: cannot publish %s configuration %s", ErrInvalidTransition, cfg.Status, cfg.ID)
		}
		cfg.Status = StatusPublished
		return nil
	})
}

// Archive moves a Draft or Published configuration to Archived and deactivates it
func (m *Manager) Archive(ctx context.Context, tenantID, id, userID string) (bool, error) {
	return m.mutate(ctx, "archive", tenantID, id, userID, func(cfg *WorkflowConfiguration) error {
		cfg.Status = StatusArchived
		cfg.IsActive = false
		return nil
	})
}

// Delete soft-deletes the configuration
func (m *Manager) Delete(ctx context.Context, tenantID, id, userID string) (bool, error) {
	err := m.store.SoftDelete(ctx, tenantID, id, userID)
	m.record("delete", err)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		logger.Error("failed to delete configuration", "tenant_id", tenantID, "configuration_id", id, "error", err)
		return false, err
	}

	m.invalidate(tenantID)
	logger.Info("configuration deleted", "tenant_id", tenantID, "configuration_id", id, "user_id", userID)
	return true, nil
}

// Clone copies the content of a configuration into a new inactive Draft at
// version 1.0 with its name suffixed by CopySuffix
func (m *Manager) Clone(ctx context.Context, tenantID, id, userID string) (*WorkflowConfiguration, error) {
	return m.copyOf(ctx, "clone", tenantID, id, userID, func(src, dst *WorkflowConfiguration) {
		dst.WorkflowName = src.WorkflowName + CopySuffix
		dst.Version = InitialVersion
	})
}

// CreateNewVersion copies a configuration into a new inactive Draft whose
// minor version is one above the source
func (m *Manager) CreateNewVersion(ctx context.Context, tenantID, id, userID string) (*WorkflowConfiguration, error) {
	return m.copyOf(ctx, "new_version", tenantID, id, userID, func(src, dst *WorkflowConfiguration) {
		dst.Version = NextMinorVersion(src.Version)
	})
}

func (m *Manager) copyOf(ctx context.Context, operation, tenantID, id, userID string, adjust func(src, dst *WorkflowConfiguration)) (*WorkflowConfiguration, error) {
	src, err := m.Get(ctx, tenantID, id)
	if err != nil || src == nil {
		m.record(operation, err)
		return nil, err
	}

	dst := src.Clone()
	dst.ID = m.newID()
	dst.Status = StatusDraft
	dst.IsActive = false
	dst.CreatedAt = m.now()
	dst.CreatedBy = userID
	dst.UpdatedAt = nil
	dst.UpdatedBy = ""
	adjust(src, dst)

	if err := m.store.Save(ctx, dst); err != nil {
		m.record(operation, err)
		logger.Error("failed to save configuration copy", "tenant_id", tenantID, "source_id", id, "error", err)
		return nil, fmt.Errorf("failed to %s configuration: %w", operation, err)
	}

	m.invalidate(tenantID)
	m.record(operation, nil)
	logger.Info("configuration copied",
		"operation", operation,
		"tenant_id", tenantID,
		"source_id", id,
		"configuration_id", dst.ID,
		"version", dst.Version,
	)
	return dst, nil
}

// SelectActiveConfiguration returns the first Published and active
// configuration, by ascending priority, whose start conditions match data.
// It returns nil when none qualifies.
func (m *Manager) SelectActiveConfiguration(ctx context.Context, tenantID, requestTypeID string, data map[string]any) (*WorkflowConfiguration, error) {
	start := time.Now()

	candidates, err := m.candidates(ctx, tenantID, requestTypeID)
	if err != nil {
		m.metrics.RecordSelection("error", time.Since(start))
		return nil, err
	}

	for _, cfg := range candidates {
		if rules.EvaluateConditions(cfg.StartConditions, m.deriver.Apply(cfg.DerivedFields, data)) {
			m.metrics.RecordSelection("matched", time.Since(start))
			logger.Debug("configuration selected",
				"tenant_id", tenantID,
				"request_type_id", requestTypeID,
				"configuration_id", cfg.ID,
				"priority", cfg.Priority,
			)
			return cfg, nil
		}
	}

	m.metrics.RecordSelection("no_match", time.Since(start))
	return nil, nil
}

// ListCompatible returns every Published and active configuration of the
// tenant, across request types, whose start conditions match data
func (m *Manager) ListCompatible(ctx context.Context, tenantID string, data map[string]any) ([]*WorkflowConfiguration, error) {
	candidates, err := m.candidates(ctx, tenantID, allRequestTypes)
	if err != nil {
		return nil, err
	}

	matches := make([]*WorkflowConfiguration, 0, len(candidates))
	for _, cfg := range candidates {
		if rules.EvaluateConditions(cfg.StartConditions, m.deriver.Apply(cfg.DerivedFields, data)) {
			matches = append(matches, cfg)
		}
	}
	return matches, nil
}

// EvaluateRules runs the rules of a configuration against data.
// It returns nil when the configuration does not exist for the tenant.
func (m *Manager) EvaluateRules(ctx context.Context, tenantID, id string, data map[string]any) (*rules.RuleEvaluationResult, error) {
	cfg, err := m.Get(ctx, tenantID, id)
	if err != nil || cfg == nil {
		return nil, err
	}

	start := time.Now()
	result := rules.EvaluateRules(cfg.EvaluationRules, m.deriver.Apply(cfg.DerivedFields, data))
	m.metrics.RecordRuleEvaluation(string(result.ResultAction), len(result.Errors), time.Since(start))

	if len(result.Errors) > 0 {
		logger.Warn("rule evaluation reported errors",
			"tenant_id", tenantID,
			"configuration_id", id,
			"errors", result.Errors,
		)
	}
	return &result, nil
}

// CheckStartConditions reports whether data satisfies the start conditions.
// A missing configuration yields false.
func (m *Manager) CheckStartConditions(ctx context.Context, tenantID, id string, data map[string]any) (bool, error) {
	return m.checkConditions(ctx, tenantID, id, data, func(cfg *WorkflowConfiguration) []rules.Condition {
		return cfg.StartConditions
	})
}

// CheckCompletionConditions reports whether data satisfies the completion conditions.
// A missing configuration yields false.
func (m *Manager) CheckCompletionConditions(ctx context.Context, tenantID, id string, data map[string]any) (bool, error) {
	return m.checkConditions(ctx, tenantID, id, data, func(cfg *WorkflowConfiguration) []rules.Condition {
		return cfg.CompletionConditions
	})
}

func (m *Manager) checkConditions(ctx context.Context, tenantID, id string, data map[string]any, pick func(*WorkflowConfiguration) []rules.Condition) (bool, error) {
	cfg, err := m.Get(ctx, tenantID, id)
	if err != nil || cfg == nil {
		return false, err
	}
	return rules.EvaluateConditions(pick(cfg), m.deriver.Apply(cfg.DerivedFields, data)), nil
}

// mutate applies fn atomically and stamps the update audit fields
func (m *Manager) mutate(ctx context.Context, operation, tenantID, id, userID string, fn func(*WorkflowConfiguration) error) (bool, error) {
	updated, err := m.store.Mutate(ctx, tenantID, id, func(cfg *WorkflowConfiguration) error {
		if err := fn(cfg); err != nil {
			return err
		}
		now := m.now()
		cfg.UpdatedAt = &now
		cfg.UpdatedBy = userID
		return nil
	})
	m.record(operation, err)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		logger.Warn("configuration transition failed", "operation", operation, "tenant_id", tenantID, "configuration_id", id, "error", err)
		return false, err
	}

	m.invalidate(tenantID)
	logger.Info("configuration transitioned",
		"operation", operation,
		"tenant_id", tenantID,
		"configuration_id", id,
		"status", string(updated.Status),
		"is_active", updated.IsActive,
	)
	return true, nil
}

// candidates returns the eligible configurations ordered by priority.
// An empty requestTypeID spans every request type.
func (m *Manager) candidates(ctx context.Context, tenantID, requestTypeID string) ([]*WorkflowConfiguration, error) {
	// The generation is read before the store so a mutation committed during
	// the load makes the Set below a no-op.
	var generation uint64
	if m.cache != nil {
		cached, gen, ok := m.cache.Get(tenantID, requestTypeID)
		if ok {
			return cached, nil
		}
		generation = gen
	}

	var (
		all []*WorkflowConfiguration
		err error
	)
	if requestTypeID == allRequestTypes {
		all, err = m.store.ListByTenant(ctx, tenantID)
	} else {
		all, err = m.store.ListByRequestType(ctx, tenantID, requestTypeID)
	}
	if err != nil {
		logger.Error("failed to load candidate configurations", "tenant_id", tenantID, "request_type_id", requestTypeID, "error", err)
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	eligible := make([]*WorkflowConfiguration, 0, len(all))
	for _, cfg := range all {
		if cfg.Eligible() {
			eligible = append(eligible, cfg)
		}
	}
	sortByPriority(eligible)

	if m.cache != nil {
		m.cache.Set(tenantID, requestTypeID, generation, eligible)
	}
	return eligible, nil
}

func (m *Manager) invalidate(tenantID string) {
	if m.cache != nil {
		m.cache.InvalidateTenant(tenantID)
	}
}

func (m *Manager) record(operation string, err error) {
	m.metrics.RecordOperation(operation, outcomeOf(err))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidConfiguration), errors.Is(err, ErrUnknownRequestType), errors.Is(err, ErrInvalidTransition):
		return "invalid"
	default:
		return "error"
	}
}
