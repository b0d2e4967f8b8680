package rules

import "strings"

// Operator names a comparison applied between a payload field and a rule value
type Operator string

const (
	OpEquals             Operator = "Equals"
	OpNotEquals          Operator = "NotEquals"
	OpGreaterThan        Operator = "GreaterThan"
	OpLessThan           Operator = "LessThan"
	OpGreaterThanOrEqual Operator = "GreaterThanOrEqual"
	OpLessThanOrEqual    Operator = "LessThanOrEqual"
	OpContains           Operator = "Contains"
	OpNotContains        Operator = "NotContains"
	OpStartsWith         Operator = "StartsWith"
	OpEndsWith           Operator = "EndsWith"
	OpIsNull             Operator = "IsNull"
	OpIsNotNull          Operator = "IsNotNull"
	OpIn                 Operator = "In"
	OpNotIn              Operator = "NotIn"
	OpBetween            Operator = "Between"
	OpRegex              Operator = "Regex"
	OpIsEmpty            Operator = "IsEmpty"
	OpIsNotEmpty         Operator = "IsNotEmpty"
	OpHasValue           Operator = "HasValue"
)

// Action is the decision a matched rule asks the caller to take
type Action string

const (
	ActionHighPriorityApproval Action = "HighPriorityApproval"
	ActionAutoApprove          Action = "AutoApprove"
	ActionRequireApproval      Action = "RequireApproval"
	ActionEscalateApproval     Action = "EscalateApproval"
	ActionRejectRequest        Action = "RejectRequest"
	ActionRequestMoreInfo      Action = "RequestMoreInfo"
	ActionSetPriority          Action = "SetPriority"
	ActionAssignToSpecialist   Action = "AssignToSpecialist"
)

// LogicalOperator combines the conditions of one group
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Normalize maps anything other than a case-insensitive "OR" to AND
func (l LogicalOperator) Normalize() LogicalOperator {
	if strings.EqualFold(strings.TrimSpace(string(l)), string(LogicalOr)) {
		return LogicalOr
	}
	return LogicalAnd
}

// HighPriorityThreshold is the rule priority at which a match stops rule evaluation
const HighPriorityThreshold = 3

// EvaluationRule is a single field/operator/value triple with an action.
// Rules are evaluated active-only, ascending by Priority.
type EvaluationRule struct {
	Field       string   `json:"field"`
	Operator    Operator `json:"operator"`
	Value       any      `json:"value"`
	Action      Action   `json:"action"`
	Priority    int      `json:"priority"`
	IsActive    bool     `json:"isActive"`
	Description string   `json:"description,omitempty"`
}

// Condition is a boolean gate. Conditions sharing a GroupID form one group.
type Condition struct {
	Field           string          `json:"field"`
	Operator        Operator        `json:"operator"`
	Value           any             `json:"value"`
	LogicalOperator LogicalOperator `json:"logicalOperator"`
	GroupID         int             `json:"groupId"`
}

// RuleEvaluationResult is produced per EvaluateRules call and never persisted
type RuleEvaluationResult struct {
	IsValid        bool           `json:"isValid"`
	MatchedRules   []string       `json:"matchedRules"`
	ResultAction   Action         `json:"resultAction,omitempty"`
	EvaluationData map[string]any `json:"evaluationData"`
	Errors         []string       `json:"errors"`
}

// HasAction reports whether any rule produced an action
func (r *RuleEvaluationResult) HasAction() bool {
	return r.ResultAction != ""
}

// DerivedField computes a payload field from a CEL expression over the other fields
type DerivedField struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}
