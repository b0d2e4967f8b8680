package rules

import "testing"

func TestEvaluateConditionsEmpty(t *testing.T) {
	if !EvaluateConditions(nil, map[string]any{"Amount": 1}) {
		t.Error("nil condition list should apply")
	}
	if !EvaluateConditions([]Condition{}, nil) {
		t.Error("empty condition list should apply to nil data")
	}
}

// TestEvaluateConditionsGroupCombinator verifies the first condition of a group
// decides how the whole group is combined
func TestEvaluateConditionsGroupCombinator(t *testing.T) {
	data := map[string]any{"Amount": 5000, "Department": "HR"}

	orFirst := []Condition{
		{Field: "Amount", Operator: OpGreaterThan, Value: 1000, LogicalOperator: LogicalOr, GroupID: 1},
		{Field: "Department", Operator: OpEquals, Value: "IT", LogicalOperator: LogicalAnd, GroupID: 1},
	}
	if !EvaluateConditions(orFirst, data) {
		t.Error("group led by OR should match when one condition matches")
	}

	andFirst := []Condition{
		{Field: "Amount", Operator: OpGreaterThan, Value: 1000, LogicalOperator: LogicalAnd, GroupID: 1},
		{Field: "Department", Operator: OpEquals, Value: "IT", LogicalOperator: LogicalOr, GroupID: 1},
	}
	if EvaluateConditions(andFirst, data) {
		t.Error("group led by AND should fail when one condition fails")
	}
}

func TestEvaluateConditionsCombinatorNormalization(t *testing.T) {
	data := map[string]any{"Amount": 5000, "Department": "HR"}

	testCases := []struct {
		name    string
		logical LogicalOperator
		want    bool
	}{
		{"lower-case or", "or", true},
		{"mixed-case or", "Or", true},
		{"empty defaults to and", "", false},
		{"garbage defaults to and", "XOR", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conditions := []Condition{
				{Field: "Amount", Operator: OpGreaterThan, Value: 1000, LogicalOperator: tc.logical},
				{Field: "Department", Operator: OpEquals, Value: "IT", LogicalOperator: tc.logical},
			}
			if got := EvaluateConditions(conditions, data); got != tc.want {
				t.Errorf("EvaluateConditions() = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestEvaluateConditionsAcrossGroups verifies groups are always OR-ed together
func TestEvaluateConditionsAcrossGroups(t *testing.T) {
	conditions := []Condition{
		{Field: "Amount", Operator: OpGreaterThan, Value: 100000, LogicalOperator: LogicalAnd, GroupID: 0},
		{Field: "Department", Operator: OpEquals, Value: "HR", LogicalOperator: LogicalAnd, GroupID: 0},
		{Field: "Category", Operator: OpIn, Value: `["Travel","Training"]`, LogicalOperator: LogicalAnd, GroupID: 2},
	}

	if !EvaluateConditions(conditions, map[string]any{"Amount": 50, "Department": "HR", "Category": "Travel"}) {
		t.Error("second group matches so the list should match")
	}
	if EvaluateConditions(conditions, map[string]any{"Amount": 50, "Department": "HR", "Category": "Hardware"}) {
		t.Error("no group matches so the list should not match")
	}
}

func TestEvaluateConditionsSingleGroupMember(t *testing.T) {
	data := map[string]any{"Amount": 10}
	for _, logical := range []LogicalOperator{LogicalAnd, LogicalOr} {
		c := []Condition{{Field: "Amount", Operator: OpLessThan, Value: 20, LogicalOperator: logical}}
		if !EvaluateConditions(c, data) {
			t.Errorf("single condition group with %s should match", logical)
		}
	}
}

func TestEvaluateConditionMissingField(t *testing.T) {
	testCases := []Operator{OpIsNull, OpIsEmpty, OpNotEquals, OpNotIn, OpNotContains}
	for _, op := range testCases {
		c := Condition{Field: "Vendor", Operator: op, Value: `["Acme"]`}
		if EvaluateCondition(c, map[string]any{"Amount": 1}) {
			t.Errorf("missing field with %s should be false", op)
		}
	}

	// Present but null is not the same as missing
	c := Condition{Field: "Vendor", Operator: OpIsNull}
	if !EvaluateCondition(c, map[string]any{"Vendor": nil}) {
		t.Error("explicit null with IsNull should be true")
	}
}

func TestGroupConditionsOrder(t *testing.T) {
	conditions := []Condition{
		{Field: "Amount", GroupID: 3},
		{Field: "Vendor", GroupID: 1},
		{Field: "Region", GroupID: 3},
	}
	groups := groupConditions(conditions)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].id != 3 || groups[1].id != 1 {
		t.Errorf("groups should keep first-seen order, got %d then %d", groups[0].id, groups[1].id)
	}
	if groups[0].conditions[1].Field != "Region" {
		t.Errorf("conditions should keep insertion order within a group")
	}
}
