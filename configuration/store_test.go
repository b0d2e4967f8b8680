package configuration

import (
	"context"
	"errors"
	"testing"
	"time"
)

func storedConfiguration(tenantID, id, requestType string, priority int) *WorkflowConfiguration {
	cfg := newConfiguration(validInput(requestType, priority))
	cfg.ID = id
	cfg.TenantID = tenantID
	cfg.CreatedAt = time.Now().UTC()
	cfg.CreatedBy = userID
	return cfg
}

func TestInMemoryStoreSaveAndGet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	cfg := storedConfiguration(tenantA, "c1", "expense", 1)
	if err := store.Save(ctx, cfg); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Save(ctx, cfg); err == nil {
		t.Error("saving a duplicate id should fail")
	}

	got, err := store.Get(ctx, tenantA, "c1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.WorkflowName != cfg.WorkflowName {
		t.Errorf("WorkflowName = %q", got.WorkflowName)
	}

	// Returned records are copies
	got.WorkflowName = "mutated"
	got.EvaluationRules[0].Action = "Mutated"
	again, _ := store.Get(ctx, tenantA, "c1")
	if again.WorkflowName == "mutated" || again.EvaluationRules[0].Action == "Mutated" {
		t.Error("callers must not be able to alias stored state")
	}

	if _, err := store.Get(ctx, tenantB, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant Get() should be ErrNotFound, got %v", err)
	}
}

func TestInMemoryStoreSameIDAcrossTenants(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.Save(ctx, storedConfiguration(tenantA, "shared", "expense", 1)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Save(ctx, storedConfiguration(tenantB, "shared", "expense", 2)); err != nil {
		t.Fatalf("ids are scoped per tenant, Save() failed: %v", err)
	}

	a, _ := store.Get(ctx, tenantA, "shared")
	b, _ := store.Get(ctx, tenantB, "shared")
	if a.Priority != 1 || b.Priority != 2 {
		t.Errorf("tenants should see their own records, got %d and %d", a.Priority, b.Priority)
	}
}

func TestInMemoryStoreLists(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for _, cfg := range []*WorkflowConfiguration{
		storedConfiguration(tenantA, "c3", "expense", 3),
		storedConfiguration(tenantA, "c1", "expense", 1),
		storedConfiguration(tenantA, "c2", "purchase", 2),
		storedConfiguration(tenantB, "c4", "expense", 1),
	} {
		if err := store.Save(ctx, cfg); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	all, err := store.ListByTenant(ctx, tenantA)
	if err != nil {
		t.Fatalf("ListByTenant() failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c1" || all[1].ID != "c2" || all[2].ID != "c3" {
		t.Errorf("expected c1, c2, c3 by priority, got %v", ids(all))
	}

	expense, _ := store.ListByRequestType(ctx, tenantA, "expense")
	if len(expense) != 2 || expense[0].ID != "c1" {
		t.Errorf("expected c1, c3, got %v", ids(expense))
	}
}

func TestInMemoryStoreMutate(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	_ = store.Save(ctx, storedConfiguration(tenantA, "c1", "expense", 1))

	updated, err := store.Mutate(ctx, tenantA, "c1", func(cfg *WorkflowConfiguration) error {
		cfg.Status = StatusPublished
		cfg.ID = "hijacked"
		cfg.TenantID = tenantB
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate() failed: %v", err)
	}
	if updated.Status != StatusPublished || updated.ID != "c1" || updated.TenantID != tenantA {
		t.Errorf("identity must survive mutation, got %s/%s", updated.TenantID, updated.ID)
	}

	boom := errors.New("boom")
	_, err = store.Mutate(ctx, tenantA, "c1", func(cfg *WorkflowConfiguration) error {
		cfg.Status = StatusArchived
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Mutate() should return fn's error, got %v", err)
	}
	stored, _ := store.Get(ctx, tenantA, "c1")
	if stored.Status != StatusPublished {
		t.Errorf("failed mutation must not be written, got %s", stored.Status)
	}

	if _, err := store.Mutate(ctx, tenantB, "c1", func(*WorkflowConfiguration) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant Mutate() should be ErrNotFound, got %v", err)
	}
}

func TestInMemoryStoreSoftDelete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	_ = store.Save(ctx, storedConfiguration(tenantA, "c1", "expense", 1))

	if err := store.SoftDelete(ctx, tenantA, "c1", "admin"); err != nil {
		t.Fatalf("SoftDelete() failed: %v", err)
	}
	if _, err := store.Get(ctx, tenantA, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("soft-deleted Get() should be ErrNotFound, got %v", err)
	}
	if list, _ := store.ListByTenant(ctx, tenantA); len(list) != 0 {
		t.Errorf("soft-deleted record listed: %v", ids(list))
	}
	if err := store.SoftDelete(ctx, tenantA, "c1", "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second SoftDelete() should be ErrNotFound, got %v", err)
	}

	// The record is kept, only hidden
	raw := store.tenants[tenantA]["c1"]
	if raw == nil || !raw.IsDeleted || raw.DeletedBy != "admin" || raw.DeletedAt == nil {
		t.Errorf("soft delete should keep a stamped record, got %+v", raw)
	}
}

func TestInMemoryStoreCancelledContext(t *testing.T) {
	store := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Save(ctx, storedConfiguration(tenantA, "c1", "expense", 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() with cancelled context = %v", err)
	}
	if _, err := store.ListByTenant(ctx, tenantA); !errors.Is(err, context.Canceled) {
		t.Errorf("ListByTenant() with cancelled context = %v", err)
	}
}

func ids(configs []*WorkflowConfiguration) []string {
	out := make([]string, len(configs))
	for i, c := range configs {
		out[i] = c.ID
	}
	return out
}
