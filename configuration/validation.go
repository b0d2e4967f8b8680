package configuration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/liamcoop/approvals/rules"
)

// Validation limits
const (
	MinPriority      = 1
	MaxPriority      = 4
	MinRulePriority  = 1
	MaxRulePriority  = 5
	MaxRetryCountCap = 10
)

// Validator checks a configuration before it is persisted
type Validator struct {
	requestTypes RequestTypeChecker
	deriver      *rules.Deriver
	validate     *validator.Validate
}

// NewValidator creates a Validator. A nil deriver disables derived field
// compilation checks; a nil checker accepts every request type.
func NewValidator(requestTypes RequestTypeChecker, deriver *rules.Deriver) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("notification_event", func(fl validator.FieldLevel) bool {
		_, ok := notificationEvents[fl.Field().String()]
		return ok
	})

	return &Validator{
		requestTypes: requestTypes,
		deriver:      deriver,
		validate:     v,
	}
}

// Validate returns ErrUnknownRequestType (wrapped) when the request type does
// not exist for the tenant, and a *ValidationError listing every problem otherwise.
func (v *Validator) Validate(ctx context.Context, cfg *WorkflowConfiguration) error {
	if v.requestTypes != nil && strings.TrimSpace(cfg.RequestTypeID) != "" {
		exists, err := v.requestTypes.Exists(ctx, cfg.TenantID, cfg.RequestTypeID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrUnknownRequestType, cfg.RequestTypeID)
		}
	}

	if problems := v.Problems(cfg); len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

// Problems lists every static problem of cfg. It never mutates cfg.
func (v *Validator) Problems(cfg *WorkflowConfiguration) []string {
	var problems []string

	if strings.TrimSpace(cfg.WorkflowName) == "" {
		problems = append(problems, "workflowName is required")
	}
	if strings.TrimSpace(cfg.RequestTypeID) == "" {
		problems = append(problems, "requestTypeId is required")
	}
	if !cfg.Status.Valid() {
		problems = append(problems, fmt.Sprintf("status %q is not one of Draft, Published, Archived", cfg.Status))
	}
	if _, _, ok := parseVersion(cfg.Version); !ok {
		problems = append(problems, fmt.Sprintf("version %q is not in Major.Minor form", cfg.Version))
	}
	if cfg.Priority < MinPriority || cfg.Priority > MaxPriority {
		problems = append(problems, fmt.Sprintf("priority must be between %d and %d, got %d", MinPriority, MaxPriority, cfg.Priority))
	}
	if cfg.MaxRetryCount < 0 || cfg.MaxRetryCount > MaxRetryCountCap {
		problems = append(problems, fmt.Sprintf("maxRetryCount must be between 0 and %d, got %d", MaxRetryCountCap, cfg.MaxRetryCount))
	}
	if cfg.MaxExecutionTimeHours != nil && *cfg.MaxExecutionTimeHours <= 0 {
		problems = append(problems, fmt.Sprintf("maxExecutionTimeHours must be positive, got %d", *cfg.MaxExecutionTimeHours))
	}

	for i, rule := range cfg.EvaluationRules {
		for _, p := range rules.RuleProblems(rule) {
			problems = append(problems, fmt.Sprintf("evaluationRules[%d]: %s", i, p))
		}
		for _, p := range rules.OperandProblems(rule.Operator, rule.Value) {
			problems = append(problems, fmt.Sprintf("evaluationRules[%d]: %s", i, p))
		}
		if rule.Priority < MinRulePriority || rule.Priority > MaxRulePriority {
			problems = append(problems, fmt.Sprintf("evaluationRules[%d]: priority must be between %d and %d, got %d", i, MinRulePriority, MaxRulePriority, rule.Priority))
		}
	}
	problems = append(problems, conditionProblems("startConditions", cfg.StartConditions)...)
	problems = append(problems, conditionProblems("completionConditions", cfg.CompletionConditions)...)

	problems = append(problems, jsonProblems("workflowDefinition", cfg.WorkflowDefinition)...)
	problems = append(problems, jsonProblems("defaultData", cfg.DefaultData)...)
	if p := jsonProblems("escalationSettings", cfg.EscalationSettings); len(p) > 0 {
		problems = append(problems, p...)
	} else {
		problems = append(problems, v.escalationProblems(cfg.EscalationSettings)...)
	}
	if p := jsonProblems("notificationSettings", cfg.NotificationSettings); len(p) > 0 {
		problems = append(problems, p...)
	} else {
		problems = append(problems, v.notificationProblems(cfg.NotificationSettings)...)
	}

	problems = append(problems, v.derivedFieldProblems(cfg.DerivedFields)...)
	return problems
}

func conditionProblems(list string, conditions []rules.Condition) []string {
	var problems []string
	for i, c := range conditions {
		for _, p := range append(rules.ConditionProblems(c), rules.OperandProblems(c.Operator, c.Value)...) {
			problems = append(problems, fmt.Sprintf("%s[%d]: %s", list, i, p))
		}
	}
	return problems
}

// isAbsent treats empty and JSON null payloads as not supplied
func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func jsonProblems(name string, raw json.RawMessage) []string {
	if isAbsent(raw) {
		return nil
	}
	if !json.Valid(raw) {
		return []string{fmt.Sprintf("%s is not valid JSON", name)}
	}
	return nil
}

func (v *Validator) escalationProblems(raw json.RawMessage) []string {
	if isAbsent(raw) {
		return nil
	}

	var settings EscalationSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return []string{fmt.Sprintf("escalationSettings has an invalid shape: %v", err)}
	}
	if !settings.Enabled {
		return nil
	}
	if len(settings.Levels) == 0 {
		return []string{"escalationSettings: enabled escalation needs at least one level"}
	}

	var problems []string
	for i, level := range settings.Levels {
		prefix := fmt.Sprintf("escalationSettings.levels[%d]", i)
		problems = append(problems, v.structProblems(prefix, level)...)
		if !level.hasTarget() {
			problems = append(problems, fmt.Sprintf("%s: at least one escalation user or role is required", prefix))
		}
	}

	levels := make([]int, len(settings.Levels))
	for i, level := range settings.Levels {
		levels[i] = level.Level
	}
	sort.Ints(levels)
	for i, level := range levels {
		if level != i+1 {
			problems = append(problems, fmt.Sprintf("escalationSettings: levels must be numbered contiguously from 1, got %v", levels))
			break
		}
	}
	return problems
}

func (v *Validator) notificationProblems(raw json.RawMessage) []string {
	if isAbsent(raw) {
		return nil
	}

	var settings NotificationSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return []string{fmt.Sprintf("notificationSettings has an invalid shape: %v", err)}
	}

	var problems []string
	if !settings.anyChannel() {
		problems = append(problems, "notificationSettings: at least one notification channel must be enabled")
	}
	problems = append(problems, v.structProblems("notificationSettings", settings)...)
	return problems
}

func (v *Validator) derivedFieldProblems(fields []rules.DerivedField) []string {
	var problems []string
	seen := make(map[string]bool, len(fields))
	for i, field := range fields {
		if seen[field.Name] {
			problems = append(problems, fmt.Sprintf("derivedFields[%d]: duplicate derived field %q", i, field.Name))
		}
		seen[field.Name] = true

		if v.deriver == nil {
			if !rules.IsSupportedField(field.Name) {
				problems = append(problems, fmt.Sprintf("derivedFields[%d]: derived field %q is not a supported field", i, field.Name))
			}
			continue
		}
		for _, p := range v.deriver.Validate(field) {
			problems = append(problems, fmt.Sprintf("derivedFields[%d]: %s", i, p))
		}
	}
	return problems
}

// structProblems runs the struct tags of s and renders each failure with prefix
func (v *Validator) structProblems(prefix string, s any) []string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{fmt.Sprintf("%s: %v", prefix, err)}
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s.%s: %s", prefix, fieldPath(fe), describe(fe)))
	}
	return problems
}

// fieldPath drops the root struct name from the error namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, found := strings.Cut(ns, "."); found {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "required":
		return "must not be empty"
	case "notification_event":
		return fmt.Sprintf("unsupported notification event %q", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
