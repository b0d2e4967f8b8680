package main

import (
	"github.com/liamcoop/approvals/configuration"
	"github.com/liamcoop/approvals/rules"
)

// API Request and Response Models with Swagger annotations

// DataRequest carries the request payload evaluated by selection, rules and conditions
type DataRequest struct {
	Data map[string]any `json:"data" binding:"required"`
} // @name DataRequest

// SelectRequest represents the request body for selecting the active configuration
type SelectRequest struct {
	RequestTypeID string         `json:"requestTypeId" example:"expense" binding:"required"`
	Data          map[string]any `json:"data"`
} // @name SelectRequest

// ConfigurationsListResponse represents the response for listing configurations
type ConfigurationsListResponse struct {
	Configurations []*configuration.WorkflowConfiguration `json:"configurations"`
} // @name ConfigurationsListResponse

// SelectResponse is returned by selection. Configuration is null when nothing matched.
type SelectResponse struct {
	Matched       bool                                 `json:"matched" example:"true"`
	Configuration *configuration.WorkflowConfiguration `json:"configuration"`
} // @name SelectResponse

// SuccessResponse reports the outcome of a state transition
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
} // @name SuccessResponse

// ConditionCheckResponse reports whether a condition list matched
type ConditionCheckResponse struct {
	Matched bool `json:"matched" example:"true"`
} // @name ConditionCheckResponse

// EvaluateRulesRequest evaluates ad-hoc rules, as used by the rule builder UI
type EvaluateRulesRequest struct {
	Rules []rules.EvaluationRule `json:"rules" binding:"required"`
	Data  map[string]any         `json:"data" binding:"required"`
} // @name EvaluateRulesRequest

// EvaluateRulesResponse wraps a rule evaluation result
type EvaluateRulesResponse struct {
	Result         rules.RuleEvaluationResult `json:"result"`
	EvaluationTime string                     `json:"evaluationTime" example:"120µs"`
} // @name EvaluateRulesResponse

// ValidateRulesRequest checks rules and conditions without storing them
type ValidateRulesRequest struct {
	Rules      []rules.EvaluationRule `json:"rules"`
	Conditions []rules.Condition      `json:"conditions"`
} // @name ValidateRulesRequest

// ItemValidation lists the problems found for one rule or condition
type ItemValidation struct {
	Index    int      `json:"index" example:"0"`
	Valid    bool     `json:"valid" example:"false"`
	Problems []string `json:"problems"`
} // @name ItemValidation

// ValidateRulesResponse represents the response for rule validation
type ValidateRulesResponse struct {
	Valid      bool             `json:"valid" example:"true"`
	Rules      []ItemValidation `json:"rules"`
	Conditions []ItemValidation `json:"conditions"`
} // @name ValidateRulesResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error    string   `json:"error" example:"invalid configuration"`
	Details  string   `json:"details,omitempty"`
	Problems []string `json:"problems,omitempty"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status" example:"healthy"`
	Storage string `json:"storage" example:"postgres"`
	Errors  int64  `json:"errors" example:"0"`
	Warns   int64  `json:"warnings" example:"0"`
	Err5xx  int64  `json:"errors5xx" example:"0"`
	Err4xx  int64  `json:"errors4xx" example:"0"`
} // @name HealthResponse
