package rules

// conditionGroup holds the conditions sharing one GroupID, in insertion order
type conditionGroup struct {
	id         int
	combinator LogicalOperator
	conditions []Condition
}

// groupConditions buckets conditions by GroupID. Groups keep first-seen order and
// take their combinator from the first condition encountered in the group.
func groupConditions(conditions []Condition) []*conditionGroup {
	var groups []*conditionGroup
	byID := make(map[int]*conditionGroup)

	for _, c := range conditions {
		g, ok := byID[c.GroupID]
		if !ok {
			g = &conditionGroup{id: c.GroupID, combinator: c.LogicalOperator.Normalize()}
			byID[c.GroupID] = g
			groups = append(groups, g)
		}
		g.conditions = append(g.conditions, c)
	}
	return groups
}

// EvaluateCondition evaluates one condition against data. A field missing from
// data is false for every operator.
func EvaluateCondition(c Condition, data map[string]any) bool {
	fieldValue, exists := data[c.Field]
	if !exists {
		return false
	}
	matched, _ := compare(ValueOf(fieldValue), c.Value, c.Operator)
	return matched
}

// EvaluateConditions reports whether data satisfies the condition list.
// Each group is combined with its own AND/OR; groups are OR-ed together.
// An empty list always applies.
func EvaluateConditions(conditions []Condition, data map[string]any) bool {
	if len(conditions) == 0 {
		return true
	}

	for _, g := range groupConditions(conditions) {
		if g.evaluate(data) {
			return true
		}
	}
	return false
}

func (g *conditionGroup) evaluate(data map[string]any) bool {
	if g.combinator == LogicalOr {
		for _, c := range g.conditions {
			if EvaluateCondition(c, data) {
				return true
			}
		}
		return false
	}

	for _, c := range g.conditions {
		if !EvaluateCondition(c, data) {
			return false
		}
	}
	return true
}
