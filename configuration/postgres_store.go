package configuration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for a duplicate key
const uniqueViolation = "23505"

const selectColumns = `
	id, tenant_id, request_type_id, workflow_name, description,
	workflow_definition, evaluation_rules, escalation_settings, notification_settings,
	start_conditions, completion_conditions, default_data, derived_fields,
	priority, is_active, requires_manual_approval, supports_parallel_approval,
	max_execution_time_hours, max_retry_count, status, version,
	created_at, created_by, updated_at, updated_by`

// PostgresStore implements Store backed by PostgreSQL. Rule, condition and
// settings payloads are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// Get retrieves a live configuration
func (s *PostgresStore) Get(ctx context.Context, tenantID, id string) (*WorkflowConfiguration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM workflow_configurations
		WHERE tenant_id = $1 AND id = $2 AND is_deleted = FALSE
	`, tenantID, id)

	cfg, err := scanConfiguration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("configuration %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	return cfg, nil
}

// ListByTenant returns every live configuration of the tenant
func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID string) ([]*WorkflowConfiguration, error) {
	return s.query(ctx, `
		SELECT `+selectColumns+`
		FROM workflow_configurations
		WHERE tenant_id = $1 AND is_deleted = FALSE
		ORDER BY priority ASC, created_at ASC, id ASC
	`, tenantID)
}

// ListByRequestType returns every live configuration of the tenant for one request type
func (s *PostgresStore) ListByRequestType(ctx context.Context, tenantID, requestTypeID string) ([]*WorkflowConfiguration, error) {
	return s.query(ctx, `
		SELECT `+selectColumns+`
		FROM workflow_configurations
		WHERE tenant_id = $1 AND request_type_id = $2 AND is_deleted = FALSE
		ORDER BY priority ASC, created_at ASC, id ASC
	`, tenantID, requestTypeID)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*WorkflowConfiguration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()

	var configs []*WorkflowConfiguration
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating configurations: %w", err)
	}

	return configs, nil
}

// Save inserts a new configuration
func (s *PostgresStore) Save(ctx context.Context, cfg *WorkflowConfiguration) error {
	enc, err := encodeConfiguration(cfg)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_configurations (
			id, tenant_id, request_type_id, workflow_name, description,
			workflow_definition, evaluation_rules, escalation_settings, notification_settings,
			start_conditions, completion_conditions, default_data, derived_fields,
			priority, is_active, requires_manual_approval, supports_parallel_approval,
			max_execution_time_hours, max_retry_count, status, version,
			created_at, created_by, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`, cfg.ID, cfg.TenantID, cfg.RequestTypeID, cfg.WorkflowName, cfg.Description,
		enc.workflowDefinition, enc.evaluationRules, enc.escalationSettings, enc.notificationSettings,
		enc.startConditions, enc.completionConditions, enc.defaultData, enc.derivedFields,
		cfg.Priority, cfg.IsActive, cfg.RequiresManualApproval, cfg.SupportsParallelApproval,
		nullInt(cfg.MaxExecutionTimeHours), cfg.MaxRetryCount, string(cfg.Status), cfg.Version,
		cfg.CreatedAt, cfg.CreatedBy, nullTime(cfg.UpdatedAt), cfg.UpdatedBy)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("configuration with ID %s already exists", cfg.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert configuration: %w", err)
	}
	return nil
}

// Mutate locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// result in the same transaction. Any error or a cancelled context rolls back.
func (s *PostgresStore) Mutate(ctx context.Context, tenantID, id string, fn func(*WorkflowConfiguration) error) (*WorkflowConfiguration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM workflow_configurations
		WHERE tenant_id = $1 AND id = $2 AND is_deleted = FALSE
		FOR UPDATE
	`, tenantID, id)

	current, err := scanConfiguration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("configuration %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock configuration: %w", err)
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.TenantID = current.TenantID

	enc, err := encodeConfiguration(working)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_configurations SET
			request_type_id = $3, workflow_name = $4, description = $5,
			workflow_definition = $6, evaluation_rules = $7, escalation_settings = $8,
			notification_settings = $9, start_conditions = $10, completion_conditions = $11,
			default_data = $12, derived_fields = $13, priority = $14, is_active = $15,
			requires_manual_approval = $16, supports_parallel_approval = $17,
			max_execution_time_hours = $18, max_retry_count = $19, status = $20, version = $21,
			updated_at = $22, updated_by = $23, is_deleted = $24, deleted_at = $25, deleted_by = $26
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, working.RequestTypeID, working.WorkflowName, working.Description,
		enc.workflowDefinition, enc.evaluationRules, enc.escalationSettings,
		enc.notificationSettings, enc.startConditions, enc.completionConditions,
		enc.defaultData, enc.derivedFields, working.Priority, working.IsActive,
		working.RequiresManualApproval, working.SupportsParallelApproval,
		nullInt(working.MaxExecutionTimeHours), working.MaxRetryCount, string(working.Status), working.Version,
		nullTime(working.UpdatedAt), working.UpdatedBy, working.IsDeleted, nullTime(working.DeletedAt), working.DeletedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to update configuration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit configuration update: %w", err)
	}
	return working, nil
}

// SoftDelete marks the row deleted
func (s *PostgresStore) SoftDelete(ctx context.Context, tenantID, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workflow_configurations
		SET is_deleted = TRUE, is_active = FALSE, deleted_at = $3, deleted_by = $4
		WHERE tenant_id = $1 AND id = $2 AND is_deleted = FALSE
	`, tenantID, id, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to delete configuration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("configuration %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanConfiguration(row rowScanner) (*WorkflowConfiguration, error) {
	var (
		cfg                                          WorkflowConfiguration
		workflowDefinition, escalation, notification []byte
		evaluationRules, startConditions, completion []byte
		defaultData, derivedFields                   []byte
		maxExecution                                 sql.NullInt64
		status                                       string
		updatedAt                                    sql.NullTime
	)

	err := row.Scan(
		&cfg.ID, &cfg.TenantID, &cfg.RequestTypeID, &cfg.WorkflowName, &cfg.Description,
		&workflowDefinition, &evaluationRules, &escalation, &notification,
		&startConditions, &completion, &defaultData, &derivedFields,
		&cfg.Priority, &cfg.IsActive, &cfg.RequiresManualApproval, &cfg.SupportsParallelApproval,
		&maxExecution, &cfg.MaxRetryCount, &status, &cfg.Version,
		&cfg.CreatedAt, &cfg.CreatedBy, &updatedAt, &cfg.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	cfg.Status = Status(status)
	cfg.WorkflowDefinition = rawOrNil(workflowDefinition)
	cfg.EscalationSettings = rawOrNil(escalation)
	cfg.NotificationSettings = rawOrNil(notification)
	cfg.DefaultData = rawOrNil(defaultData)
	if maxExecution.Valid {
		hours := int(maxExecution.Int64)
		cfg.MaxExecutionTimeHours = &hours
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		cfg.UpdatedAt = &t
	}

	if err := unmarshalColumn(evaluationRules, &cfg.EvaluationRules, "evaluation_rules"); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(startConditions, &cfg.StartConditions, "start_conditions"); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(completion, &cfg.CompletionConditions, "completion_conditions"); err != nil {
		return nil, err
	}
	if err := unmarshalColumn(derivedFields, &cfg.DerivedFields, "derived_fields"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// encodedConfiguration holds the JSONB column values of a configuration
type encodedConfiguration struct {
	workflowDefinition, escalationSettings, notificationSettings, defaultData any
	evaluationRules, startConditions, completionConditions, derivedFields     string
}

func encodeConfiguration(cfg *WorkflowConfiguration) (*encodedConfiguration, error) {
	enc := &encodedConfiguration{
		workflowDefinition:   nullJSON(cfg.WorkflowDefinition),
		escalationSettings:   nullJSON(cfg.EscalationSettings),
		notificationSettings: nullJSON(cfg.NotificationSettings),
		defaultData:          nullJSON(cfg.DefaultData),
	}

	var err error
	if enc.evaluationRules, err = marshalList(cfg.EvaluationRules); err != nil {
		return nil, fmt.Errorf("failed to encode evaluation rules: %w", err)
	}
	if enc.startConditions, err = marshalList(cfg.StartConditions); err != nil {
		return nil, fmt.Errorf("failed to encode start conditions: %w", err)
	}
	if enc.completionConditions, err = marshalList(cfg.CompletionConditions); err != nil {
		return nil, fmt.Errorf("failed to encode completion conditions: %w", err)
	}
	if enc.derivedFields, err = marshalList(cfg.DerivedFields); err != nil {
		return nil, fmt.Errorf("failed to encode derived fields: %w", err)
	}
	return enc, nil
}

// marshalList encodes nil slices as an empty JSON array. JSONB parameters are
// sent as text; lib/pq would encode []byte as bytea.
func marshalList[T any](items []T) (string, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalColumn(raw []byte, dest any, column string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", column, err)
	}
	return nil
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
