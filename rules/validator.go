package rules

import (
	"fmt"
	"strings"
)

// ValidateRule reports whether a rule is well-formed. It never mutates the rule.
func ValidateRule(rule EvaluationRule) bool {
	return len(RuleProblems(rule)) == 0
}

// ValidateCondition reports whether a condition is well-formed. It never mutates the condition.
func ValidateCondition(c Condition) bool {
	return len(ConditionProblems(c)) == 0
}

// RuleProblems lists every reason a rule fails validation
func RuleProblems(rule EvaluationRule) []string {
	problems := fieldOperatorProblems(rule.Field, rule.Operator)

	switch {
	case strings.TrimSpace(string(rule.Action)) == "":
		problems = append(problems, "action is required")
	case !IsSupportedAction(rule.Action):
		problems = append(problems, fmt.Sprintf("unsupported action %q", rule.Action))
	}
	return problems
}

// ConditionProblems lists every reason a condition fails validation
func ConditionProblems(c Condition) []string {
	problems := fieldOperatorProblems(c.Field, c.Operator)

	logical := strings.ToUpper(strings.TrimSpace(string(c.LogicalOperator)))
	if logical != string(LogicalAnd) && logical != string(LogicalOr) {
		problems = append(problems, fmt.Sprintf("logical operator must be AND or OR, got %q", c.LogicalOperator))
	}
	if c.GroupID < 0 {
		problems = append(problems, fmt.Sprintf("group id must be >= 0, got %d", c.GroupID))
	}
	return problems
}

// OperandProblems lists reasons value cannot serve as the operand of op. Only
// list, range and pattern operands are checked; a null operand never is.
func OperandProblems(op Operator, value any) []string {
	resolved, ok := ParseOperator(string(op))
	if !ok || value == nil {
		return nil
	}

	var err error
	switch resolved {
	case OpIn, OpNotIn:
		_, err = decodeList(value)
	case OpBetween:
		_, _, err = betweenBounds(value)
	case OpRegex:
		if pattern := ValueOf(value); !pattern.IsNull() {
			_, err = compilePattern(pattern.String())
		}
	}
	if err != nil {
		return []string{fmt.Sprintf("%s operand: %v", resolved, err)}
	}
	return nil
}

func fieldOperatorProblems(field string, op Operator) []string {
	var problems []string

	switch {
	case strings.TrimSpace(field) == "":
		problems = append(problems, "field is required")
	case !IsSupportedField(field):
		problems = append(problems, fmt.Sprintf("unsupported field %q", field))
	}

	switch {
	case strings.TrimSpace(string(op)) == "":
		problems = append(problems, "operator is required")
	case !IsSupportedOperator(string(op)):
		problems = append(problems, fmt.Sprintf("unsupported operator %q", op))
	}
	return problems
}
