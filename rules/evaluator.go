package rules

import (
	"fmt"
	"sort"
)

// EvaluateRules runs the active rules in ascending priority order against data.
//
// Every match appends a trace entry and overwrites ResultAction, so the last
// match before the stop wins. Evaluation stops right after the first match whose
// priority is at least HighPriorityThreshold. A rule that fails to evaluate
// records an error and evaluation moves on to the next rule.
func EvaluateRules(rules []EvaluationRule, data map[string]any) RuleEvaluationResult {
	result := RuleEvaluationResult{
		MatchedRules:   []string{},
		EvaluationData: make(map[string]any),
		Errors:         []string{},
	}

	for _, rule := range orderActive(rules) {
		matched, err := evaluateRule(rule, data)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("rule %s %s: %v", rule.Field, rule.Operator, err))
			continue
		}
		if !matched {
			continue
		}

		result.MatchedRules = append(result.MatchedRules, traceEntry(rule))
		result.ResultAction = rule.Action
		result.EvaluationData["Rule_"+rule.Field] = map[string]any{
			"field":      rule.Field,
			"operator":   string(rule.Operator),
			"value":      rule.Value,
			"fieldValue": data[rule.Field],
			"action":     string(rule.Action),
			"priority":   rule.Priority,
		}

		if rule.Priority >= HighPriorityThreshold {
			break
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// orderActive drops inactive rules and stable-sorts the rest by priority
func orderActive(rules []EvaluationRule) []EvaluationRule {
	active := make([]EvaluationRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})
	return active
}

// evaluateRule treats the rule as a single implicit condition. Panics from
// operand handling are turned into errors.
func evaluateRule(rule EvaluationRule, data map[string]any) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("panic during evaluation: %v", r)
		}
	}()

	fieldValue, exists := data[rule.Field]
	if !exists {
		return false, nil
	}
	return compare(ValueOf(fieldValue), rule.Value, rule.Operator)
}

func traceEntry(rule EvaluationRule) string {
	return fmt.Sprintf("%s %s %s -> %s", rule.Field, rule.Operator, ValueOf(rule.Value).String(), rule.Action)
}
