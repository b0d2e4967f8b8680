package configuration

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/liamcoop/approvals/rules"
)

// Status is the publication state of a configuration
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusPublished Status = "Published"
	StatusArchived  Status = "Archived"
)

// Valid reports whether s is one of the known states
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// InitialVersion is stamped on every new and cloned configuration
const InitialVersion = "1.0"

// WorkflowConfiguration is one tenant's rule set for one request type.
// IsActive is independent of Status; only Published and active records are
// eligible for automatic selection.
type WorkflowConfiguration struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenantId"`
	RequestTypeID string `json:"requestTypeId"`
	WorkflowName  string `json:"workflowName"`
	Description   string `json:"description,omitempty"`

	// Opaque to the engine; only well-formedness and shape are checked
	WorkflowDefinition   json.RawMessage `json:"workflowDefinition,omitempty"`
	EscalationSettings   json.RawMessage `json:"escalationSettings,omitempty"`
	NotificationSettings json.RawMessage `json:"notificationSettings,omitempty"`
	DefaultData          json.RawMessage `json:"defaultData,omitempty"`

	EvaluationRules      []rules.EvaluationRule `json:"evaluationRules"`
	StartConditions      []rules.Condition      `json:"startConditions"`
	CompletionConditions []rules.Condition      `json:"completionConditions"`
	DerivedFields        []rules.DerivedField   `json:"derivedFields,omitempty"`

	Priority                 int  `json:"priority"`
	IsActive                 bool `json:"isActive"`
	RequiresManualApproval   bool `json:"requiresManualApproval"`
	SupportsParallelApproval bool `json:"supportsParallelApproval"`
	MaxExecutionTimeHours    *int `json:"maxExecutionTimeHours,omitempty"`
	MaxRetryCount            int  `json:"maxRetryCount"`

	Status  Status `json:"status"`
	Version string `json:"version"`

	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	IsDeleted bool       `json:"-"`
	DeletedAt *time.Time `json:"-"`
	DeletedBy string     `json:"-"`
}

// Eligible reports whether the configuration may be picked by selection
func (c *WorkflowConfiguration) Eligible() bool {
	return !c.IsDeleted && c.IsActive && c.Status == StatusPublished
}

// Clone returns a deep copy. Rule and condition operands are shared; they are
// treated as immutable once decoded.
func (c *WorkflowConfiguration) Clone() *WorkflowConfiguration {
	if c == nil {
		return nil
	}
	out := *c
	out.WorkflowDefinition = cloneRaw(c.WorkflowDefinition)
	out.EscalationSettings = cloneRaw(c.EscalationSettings)
	out.NotificationSettings = cloneRaw(c.NotificationSettings)
	out.DefaultData = cloneRaw(c.DefaultData)
	out.EvaluationRules = cloneSlice(c.EvaluationRules)
	out.StartConditions = cloneSlice(c.StartConditions)
	out.CompletionConditions = cloneSlice(c.CompletionConditions)
	out.DerivedFields = cloneSlice(c.DerivedFields)
	out.MaxExecutionTimeHours = clonePtr(c.MaxExecutionTimeHours)
	out.UpdatedAt = clonePtr(c.UpdatedAt)
	out.DeletedAt = clonePtr(c.DeletedAt)
	return &out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CreateInput carries the content fields of a new configuration
type CreateInput struct {
	RequestTypeID            string                 `json:"requestTypeId"`
	WorkflowName             string                 `json:"workflowName"`
	Description              string                 `json:"description,omitempty"`
	WorkflowDefinition       json.RawMessage        `json:"workflowDefinition,omitempty"`
	EvaluationRules          []rules.EvaluationRule `json:"evaluationRules"`
	EscalationSettings       json.RawMessage        `json:"escalationSettings,omitempty"`
	NotificationSettings     json.RawMessage        `json:"notificationSettings,omitempty"`
	StartConditions          []rules.Condition      `json:"startConditions"`
	CompletionConditions     []rules.Condition      `json:"completionConditions"`
	DefaultData              json.RawMessage        `json:"defaultData,omitempty"`
	DerivedFields            []rules.DerivedField   `json:"derivedFields,omitempty"`
	Priority                 int                    `json:"priority"`
	IsActive                 bool                   `json:"isActive"`
	RequiresManualApproval   bool                   `json:"requiresManualApproval"`
	SupportsParallelApproval bool                   `json:"supportsParallelApproval"`
	MaxExecutionTimeHours    *int                   `json:"maxExecutionTimeHours,omitempty"`
	MaxRetryCount            int                    `json:"maxRetryCount"`
}

// UpdateInput is a partial update. Nil fields are left untouched.
type UpdateInput struct {
	RequestTypeID            *string                 `json:"requestTypeId,omitempty"`
	WorkflowName             *string                 `json:"workflowName,omitempty"`
	Description              *string                 `json:"description,omitempty"`
	WorkflowDefinition       *json.RawMessage        `json:"workflowDefinition,omitempty"`
	EvaluationRules          *[]rules.EvaluationRule `json:"evaluationRules,omitempty"`
	EscalationSettings       *json.RawMessage        `json:"escalationSettings,omitempty"`
	NotificationSettings     *json.RawMessage        `json:"notificationSettings,omitempty"`
	StartConditions          *[]rules.Condition      `json:"startConditions,omitempty"`
	CompletionConditions     *[]rules.Condition      `json:"completionConditions,omitempty"`
	DefaultData              *json.RawMessage        `json:"defaultData,omitempty"`
	DerivedFields            *[]rules.DerivedField   `json:"derivedFields,omitempty"`
	Priority                 *int                    `json:"priority,omitempty"`
	IsActive                 *bool                   `json:"isActive,omitempty"`
	RequiresManualApproval   *bool                   `json:"requiresManualApproval,omitempty"`
	SupportsParallelApproval *bool                   `json:"supportsParallelApproval,omitempty"`
	MaxExecutionTimeHours    *int                    `json:"maxExecutionTimeHours,omitempty"`
	MaxRetryCount            *int                    `json:"maxRetryCount,omitempty"`
}

// newConfiguration builds a Draft record from input. Identity and audit fields are set by the caller.
func newConfiguration(in CreateInput) *WorkflowConfiguration {
	return &WorkflowConfiguration{
		RequestTypeID:            in.RequestTypeID,
		WorkflowName:             in.WorkflowName,
		Description:              in.Description,
		WorkflowDefinition:       cloneRaw(in.WorkflowDefinition),
		EvaluationRules:          cloneSlice(in.EvaluationRules),
		EscalationSettings:       cloneRaw(in.EscalationSettings),
		NotificationSettings:     cloneRaw(in.NotificationSettings),
		StartConditions:          cloneSlice(in.StartConditions),
		CompletionConditions:     cloneSlice(in.CompletionConditions),
		DefaultData:              cloneRaw(in.DefaultData),
		DerivedFields:            cloneSlice(in.DerivedFields),
		Priority:                 in.Priority,
		IsActive:                 in.IsActive,
		RequiresManualApproval:   in.RequiresManualApproval,
		SupportsParallelApproval: in.SupportsParallelApproval,
		MaxExecutionTimeHours:    clonePtr(in.MaxExecutionTimeHours),
		MaxRetryCount:            in.MaxRetryCount,
		Status:                   StatusDraft,
		Version:                  InitialVersion,
	}
}

// apply overwrites the supplied fields of c
func (in UpdateInput) apply(c *WorkflowConfiguration) {
	if in.RequestTypeID != nil {
		c.RequestTypeID = *in.RequestTypeID
	}
	if in.WorkflowName != nil {
		c.WorkflowName = *in.WorkflowName
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.WorkflowDefinition != nil {
		c.WorkflowDefinition = cloneRaw(*in.WorkflowDefinition)
	}
	if in.EvaluationRules != nil {
		c.EvaluationRules = cloneSlice(*in.EvaluationRules)
	}
	if in.EscalationSettings != nil {
		c.EscalationSettings = cloneRaw(*in.EscalationSettings)
	}
	if in.NotificationSettings != nil {
		c.NotificationSettings = cloneRaw(*in.NotificationSettings)
	}
	if in.StartConditions != nil {
		c.StartConditions = cloneSlice(*in.StartConditions)
	}
	if in.CompletionConditions != nil {
		c.CompletionConditions = cloneSlice(*in.CompletionConditions)
	}
	if in.DefaultData != nil {
		c.DefaultData = cloneRaw(*in.DefaultData)
	}
	if in.DerivedFields != nil {
		c.DerivedFields = cloneSlice(*in.DerivedFields)
	}
	if in.Priority != nil {
		c.Priority = *in.Priority
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if in.RequiresManualApproval != nil {
		c.RequiresManualApproval = *in.RequiresManualApproval
	}
	if in.SupportsParallelApproval != nil {
		c.SupportsParallelApproval = *in.SupportsParallelApproval
	}
	if in.MaxExecutionTimeHours != nil {
		c.MaxExecutionTimeHours = clonePtr(in.MaxExecutionTimeHours)
	}
	if in.MaxRetryCount != nil {
		c.MaxRetryCount = *in.MaxRetryCount
	}
}

// NextMinorVersion bumps the minor part of a "Major.Minor" version.
// Anything that does not parse restarts the sequence from InitialVersion.
func NextMinorVersion(version string) string {
	major, minor, ok := parseVersion(version)
	if !ok {
		major, minor, _ = parseVersion(InitialVersion)
	}
	return fmt.Sprintf("%d.%d", major, minor+1)
}

func parseVersion(version string) (int, int, bool) {
	majorStr, minorStr, found := strings.Cut(strings.TrimSpace(version), ".")
	if !found {
		return 0, 0, false
	}
	major, err := strconv.Atoi(majorStr)
	if err != nil || major < 0 {
		return 0, 0, false
	}
	minor, err := strconv.Atoi(minorStr)
	if err != nil || minor < 0 {
		return 0, 0, false
	}
	return major, minor, true
}
