package rules

import (
	"encoding/json"
	"testing"
	"time"
)

// TestCompareNumeric verifies numeric coercion for ordering and equality operators
func TestCompareNumeric(t *testing.T) {
	testCases := []struct {
		name  string
		field any
		rule  any
		op    Operator
		want  bool
	}{
		{"int greater than int", 1500, 1000, OpGreaterThan, true},
		{"float less than string number", 12.5, "13", OpLessThan, true},
		{"string numbers equal", "1000.00", "1000", OpEquals, true},
		{"json number equals int", json.Number("42"), 42, OpEquals, true},
		{"greater or equal on boundary", 1000, 1000, OpGreaterThanOrEqual, true},
		{"less or equal on boundary", 1000, 1000.0, OpLessThanOrEqual, true},
		{"less or equal above", 1000.01, 1000, OpLessThanOrEqual, false},
		{"not equals numeric", 5, "5.0", OpNotEquals, false},
		{"padded string number", " 7 ", 6, OpGreaterThan, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.field, tc.rule, tc.op); got != tc.want {
				t.Errorf("Compare(%v, %v, %s) = %v, want %v", tc.field, tc.rule, tc.op, got, tc.want)
			}
		})
	}
}

// TestCompareDates verifies calendar-date equality and instant ordering
func TestCompareDates(t *testing.T) {
	testCases := []struct {
		name  string
		field any
		rule  any
		op    Operator
		want  bool
	}{
		{"same day different time", "2024-03-01T08:00:00Z", "2024-03-01T22:30:00Z", OpEquals, true},
		{"date only equals timestamp", "2024-03-01", "2024-03-01T12:00:00Z", OpEquals, true},
		{"different days", "2024-03-01", "2024-03-02", OpEquals, false},
		{"later instant greater", "2024-03-01T10:00:00Z", "2024-03-01T09:00:00Z", OpGreaterThan, true},
		{"earlier instant less", "2024-02-28", "2024-03-01", OpLessThan, true},
		{"time value against string", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "2024-04-30", OpGreaterThanOrEqual, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.field, tc.rule, tc.op); got != tc.want {
				t.Errorf("Compare(%v, %v, %s) = %v, want %v", tc.field, tc.rule, tc.op, got, tc.want)
			}
		})
	}
}

// TestCompareStringFallback pins the string fallback: only Equals is defined,
// ordering on two plain strings is always false
func TestCompareStringFallback(t *testing.T) {
	if !Compare("Finance", "finance", OpEquals) {
		t.Error("Equals fallback should be case-insensitive")
	}
	if Compare("Finance", "finance", OpNotEquals) {
		t.Error("NotEquals should negate the case-insensitive fallback")
	}

	ordering := []Operator{OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual}
	pairs := [][2]string{{"b", "a"}, {"a", "b"}, {"same", "same"}, {"Zeta", "alpha"}}
	for _, op := range ordering {
		for _, p := range pairs {
			if Compare(p[0], p[1], op) {
				t.Errorf("Compare(%q, %q, %s) = true, want false for non-numeric non-date strings", p[0], p[1], op)
			}
		}
	}
}

// TestCompareStringOperators verifies substring operators on string forms
func TestCompareStringOperators(t *testing.T) {
	testCases := []struct {
		name  string
		field any
		rule  any
		op    Operator
		want  bool
	}{
		{"contains", "Capital Expenditure", "Expend", OpContains, true},
		{"contains is case sensitive", "Capital Expenditure", "expend", OpContains, false},
		{"not contains", "Travel", "Capital", OpNotContains, true},
		{"starts with", "PRJ-001", "PRJ-", OpStartsWith, true},
		{"ends with", "invoice.pdf", ".pdf", OpEndsWith, true},
		{"number string form", 15000, "500", OpEndsWith, false},
		{"number string form match", 1500, "15", OpStartsWith, true},
		{"null field contains", nil, "x", OpContains, false},
		{"null field not contains", nil, "x", OpNotContains, false},
		{"null operand", "abc", nil, OpStartsWith, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.field, tc.rule, tc.op); got != tc.want {
				t.Errorf("Compare(%v, %v, %s) = %v, want %v", tc.field, tc.rule, tc.op, got, tc.want)
			}
		})
	}
}

// TestCompareNullAndEmpty verifies the null and emptiness checks
func TestCompareNullAndEmpty(t *testing.T) {
	testCases := []struct {
		name  string
		field any
		op    Operator
		want  bool
	}{
		{"is null on nil", nil, OpIsNull, true},
		{"is null on value", "x", OpIsNull, false},
		{"is not null on value", 0, OpIsNotNull, true},
		{"is empty on nil", nil, OpIsEmpty, true},
		{"is empty on empty string", "", OpIsEmpty, true},
		{"is empty on text", "x", OpIsEmpty, false},
		{"is not empty on text", "x", OpIsNotEmpty, true},
		{"is not empty on nil", nil, OpIsNotEmpty, false},
		{"has value on text", "x", OpHasValue, true},
		{"has value on blank", "   ", OpHasValue, false},
		{"has value on nil", nil, OpHasValue, false},
		{"equals on nil field", nil, OpEquals, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.field, "", tc.op); got != tc.want {
				t.Errorf("Compare(%v, _, %s) = %v, want %v", tc.field, tc.op, got, tc.want)
			}
		})
	}
}

// TestCompareMembership verifies In/NotIn over JSON-encoded lists
func TestCompareMembership(t *testing.T) {
	testCases := []struct {
		name  string
		field any
		rule  any
		op    Operator
		want  bool
	}{
		{"in string list", "IT", `["HR","IT"]`, OpIn, true},
		{"missing from list", "Legal", `["HR","IT"]`, OpIn, false},
		{"in numeric list", 2, `[1,2,3]`, OpIn, true},
		{"in decoded slice", "HR", []any{"HR", "IT"}, OpIn, true},
		{"not in list", "Legal", `["HR","IT"]`, OpNotIn, true},
		{"not in when present", "HR", `["HR","IT"]`, OpNotIn, false},
		{"malformed in", "HR", `["HR",`, OpIn, false},
		{"malformed not in", "HR", `not json`, OpNotIn, false},
		{"null operand in", "HR", nil, OpIn, false},
		{"null operand not in", "HR", nil, OpNotIn, false},
		{"null field in", nil, `["HR"]`, OpIn, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.field, tc.rule, tc.op); got != tc.want {
				t.Errorf("Compare(%v, %v, %s) = %v, want %v", tc.field, tc.rule, tc.op, got, tc.want)
			}
		})
	}
}

// TestCompareBetween verifies inclusive numeric ranges
func TestCompareBetween(t *testing.T) {
	testCases := []struct {
		name  string
		field any
		rule  any
		want  bool
	}{
		{"inside", 500, `[100, 1000]`, true},
		{"lower bound", 100, `[100, 1000]`, true},
		{"upper bound", "1000", `[100, 1000]`, true},
		{"outside", 1001, `[100, 1000]`, false},
		{"three elements", 500, `[1, 2, 3]`, false},
		{"one element", 500, `[1]`, false},
		{"non numeric bound", 500, `["low", 1000]`, false},
		{"non numeric field", "abc", `[1, 2]`, false},
		{"malformed", 5, `[1, 2`, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.field, tc.rule, OpBetween); got != tc.want {
				t.Errorf("Compare(%v, %v, Between) = %v, want %v", tc.field, tc.rule, got, tc.want)
			}
		})
	}
}

// TestCompareRegex verifies pattern matching never fails the caller
func TestCompareRegex(t *testing.T) {
	if !Compare("PO-2024-0042", `^PO-\d{4}-\d+$`, OpRegex) {
		t.Error("pattern should match")
	}
	if Compare("INV-1", `^PO-`, OpRegex) {
		t.Error("pattern should not match")
	}
	if Compare("anything", `([unclosed`, OpRegex) {
		t.Error("invalid pattern should yield false")
	}
	if Compare(nil, `.*`, OpRegex) {
		t.Error("null field should yield false")
	}
}

// TestCompareOperatorCase verifies operator names resolve case-insensitively
func TestCompareOperatorCase(t *testing.T) {
	if !Compare(10, 5, Operator("greaterthan")) {
		t.Error("lower-cased operator should resolve")
	}
	if Compare(10, 5, Operator("Bogus")) {
		t.Error("unknown operator should yield false")
	}
}

// TestCompareStrictReportsOperandErrors verifies the error-reporting form used by the rule evaluator
func TestCompareStrictReportsOperandErrors(t *testing.T) {
	if _, err := compare(ValueOf("HR"), `{bad`, OpIn); err == nil {
		t.Error("malformed In operand should report an error")
	}
	if _, err := compare(ValueOf(5), `[1,2,3]`, OpBetween); err == nil {
		t.Error("three element Between operand should report an error")
	}
	if _, err := compare(ValueOf("x"), `(`, OpRegex); err == nil {
		t.Error("invalid pattern should report an error")
	}
	if _, err := compare(ValueOf("x"), "x", Operator("Nope")); err == nil {
		t.Error("unknown operator should report an error")
	}
	if _, err := compare(ValueOf("HR"), `["HR"]`, OpIn); err != nil {
		t.Errorf("well-formed operand should not report an error, got %v", err)
	}
}

// TestCompilePatternReusesCompiled verifies a pattern compiles once and keeps its failure
func TestCompilePatternReusesCompiled(t *testing.T) {
	first, err := compilePattern(`^CC-\d+$`)
	if err != nil {
		t.Fatalf("compilePattern() failed: %v", err)
	}
	second, _ := compilePattern(`^CC-\d+$`)
	if first != second {
		t.Error("expected the compiled pattern to be reused")
	}

	for i := 0; i < 2; i++ {
		if _, err := compilePattern(`(?P<open`); err == nil {
			t.Errorf("call %d: invalid pattern should keep failing", i)
		}
	}
	if !Compare("CC-17", `^CC-\d+$`, OpRegex) {
		t.Error("cached pattern should still match")
	}
}
