package rules

import "strings"

// Process-wide allow-lists. Keys are lower-cased for case-insensitive lookup
// where the contract asks for it.
var (
	operatorsByName = indexOperators(
		OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterThanOrEqual,
		OpLessThanOrEqual, OpContains, OpNotContains, OpStartsWith, OpEndsWith,
		OpIsNull, OpIsNotNull, OpIn, OpNotIn, OpBetween, OpRegex,
		OpIsEmpty, OpIsNotEmpty, OpHasValue,
	)

	supportedFields = map[string]struct{}{
		"Amount":        {},
		"Priority":      {},
		"RequestType":   {},
		"Department":    {},
		"SubmittedBy":   {},
		"SubmittedDate": {},
		"Category":      {},
		"Status":        {},
		"UrgencyLevel":  {},
		"BusinessUnit":  {},
		"CostCenter":    {},
		"Project":       {},
		"Vendor":        {},
		"Currency":      {},
		"Country":       {},
		"Region":        {},
		"Tags":          {},
	}

	supportedActions = map[Action]struct{}{
		ActionHighPriorityApproval: {},
		ActionAutoApprove:          {},
		ActionRequireApproval:      {},
		ActionEscalateApproval:     {},
		ActionRejectRequest:        {},
		ActionRequestMoreInfo:      {},
		ActionSetPriority:          {},
		ActionAssignToSpecialist:   {},
	}
)

func indexOperators(ops ...Operator) map[string]Operator {
	m := make(map[string]Operator, len(ops))
	for _, op := range ops {
		m[strings.ToLower(string(op))] = op
	}
	return m
}

// ParseOperator resolves an operator name case-insensitively
func ParseOperator(name string) (Operator, bool) {
	op, ok := operatorsByName[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

// IsSupportedOperator reports whether name is a known operator (case-insensitive)
func IsSupportedOperator(name string) bool {
	_, ok := ParseOperator(name)
	return ok
}

// IsSupportedField reports whether a payload field may be referenced by rules
func IsSupportedField(name string) bool {
	_, ok := supportedFields[name]
	return ok
}

// IsSupportedAction reports whether a rule action is known
func IsSupportedAction(action Action) bool {
	_, ok := supportedActions[action]
	return ok
}

// SupportedOperators returns the operator allow-list
func SupportedOperators() []Operator {
	ops := make([]Operator, 0, len(operatorsByName))
	for _, op := range operatorsByName {
		ops = append(ops, op)
	}
	return ops
}

// SupportedFields returns the field allow-list
func SupportedFields() []string {
	fields := make([]string, 0, len(supportedFields))
	for f := range supportedFields {
		fields = append(fields, f)
	}
	return fields
}
