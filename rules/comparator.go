package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

/*
 * Operator comparison.
 *
 * Ordering and equality operators try, in order: numeric comparison when both
 * sides parse as decimals, date comparison when both parse as date-times
 * (calendar date for Equals, instant for ordering), then a case-insensitive
 * string fallback that only defines Equals. GreaterThan and friends on two
 * plain strings are always false.
 *
 * A null field value is false for every operator except the null and
 * emptiness checks. Operand decode failures never escape Compare; they are
 * reported by compare so the rule evaluator can record them.
 */

// Compare applies op to a field value and a rule value. It never fails:
// unknown operators, malformed operands and invalid patterns yield false.
func Compare(fieldValue, ruleValue any, op Operator) bool {
	matched, _ := compare(ValueOf(fieldValue), ruleValue, op)
	return matched
}

// compare is the error-reporting form of Compare
func compare(field Value, ruleValue any, op Operator) (bool, error) {
	resolved, ok := ParseOperator(string(op))
	if !ok {
		return false, fmt.Errorf("unsupported operator %q", op)
	}

	switch resolved {
	case OpIsNull:
		return field.IsNull(), nil
	case OpIsNotNull:
		return !field.IsNull(), nil
	case OpIsEmpty:
		return isEmpty(field), nil
	case OpIsNotEmpty:
		return !isEmpty(field), nil
	case OpHasValue:
		return !field.IsNull() && strings.TrimSpace(field.String()) != "", nil
	}

	if field.IsNull() {
		return false, nil
	}

	operand := ValueOf(ruleValue)

	switch resolved {
	case OpEquals:
		return equalValues(field, operand), nil
	case OpNotEquals:
		return !equalValues(field, operand), nil
	case OpGreaterThan:
		c, ok := orderValues(field, operand)
		return ok && c > 0, nil
	case OpLessThan:
		c, ok := orderValues(field, operand)
		return ok && c < 0, nil
	case OpGreaterThanOrEqual:
		c, ok := orderValues(field, operand)
		return ok && c >= 0, nil
	case OpLessThanOrEqual:
		c, ok := orderValues(field, operand)
		return ok && c <= 0, nil
	case OpContains:
		return !operand.IsNull() && strings.Contains(field.String(), operand.String()), nil
	case OpNotContains:
		return !operand.IsNull() && !strings.Contains(field.String(), operand.String()), nil
	case OpStartsWith:
		return !operand.IsNull() && strings.HasPrefix(field.String(), operand.String()), nil
	case OpEndsWith:
		return !operand.IsNull() && strings.HasSuffix(field.String(), operand.String()), nil
	case OpIn:
		return membership(field, ruleValue, false)
	case OpNotIn:
		return membership(field, ruleValue, true)
	case OpBetween:
		return between(field, ruleValue)
	case OpRegex:
		return matchPattern(field, operand)
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

func isEmpty(v Value) bool {
	return v.IsNull() || v.String() == ""
}

func equalValues(a, b Value) bool {
	if x, ok := a.AsNumber(); ok {
		if y, ok := b.AsNumber(); ok {
			return x == y
		}
	}
	if x, ok := a.AsDateTime(); ok {
		if y, ok := b.AsDateTime(); ok {
			return sameCalendarDate(x, y)
		}
	}
	return strings.EqualFold(a.String(), b.String())
}

// orderValues returns a three-way comparison and false when the pair has no ordering
func orderValues(a, b Value) (int, bool) {
	if x, ok := a.AsNumber(); ok {
		if y, ok := b.AsNumber(); ok {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if x, ok := a.AsDateTime(); ok {
		if y, ok := b.AsDateTime(); ok {
			return x.Compare(y), true
		}
	}
	return 0, false
}

func membership(field Value, ruleValue any, negate bool) (bool, error) {
	if ruleValue == nil {
		return false, nil
	}
	items, err := decodeList(ruleValue)
	if err != nil {
		return false, err
	}
	needle := field.String()
	found := false
	for _, item := range items {
		if item.String() == needle {
			found = true
			break
		}
	}
	if negate {
		return !found, nil
	}
	return found, nil
}

func between(field Value, ruleValue any) (bool, error) {
	if ruleValue == nil {
		return false, nil
	}
	low, high, err := betweenBounds(ruleValue)
	if err != nil {
		return false, err
	}
	x, ok := field.AsNumber()
	if !ok {
		return false, nil
	}
	return x >= low && x <= high, nil
}

func betweenBounds(ruleValue any) (float64, float64, error) {
	bounds, err := decodeList(ruleValue)
	if err != nil {
		return 0, 0, err
	}
	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("between operand needs exactly 2 elements, got %d", len(bounds))
	}
	low, okLow := bounds[0].AsNumber()
	high, okHigh := bounds[1].AsNumber()
	if !okLow || !okHigh {
		return 0, 0, fmt.Errorf("between bounds must be numeric")
	}
	return low, high, nil
}

func matchPattern(field, pattern Value) (bool, error) {
	if pattern.IsNull() {
		return false, nil
	}
	re, err := compilePattern(pattern.String())
	if err != nil {
		return false, err
	}
	return re.MatchString(field.String()), nil
}

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// patterns holds compiled Regex operands, failures included
var patterns = struct {
	mu sync.RWMutex
	m  map[string]compiledPattern
}{m: make(map[string]compiledPattern)}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	patterns.mu.RLock()
	entry, ok := patterns.m[pattern]
	patterns.mu.RUnlock()
	if ok {
		return entry.re, entry.err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		err = fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	patterns.mu.Lock()
	patterns.m[pattern] = compiledPattern{re: re, err: err}
	patterns.mu.Unlock()

	return re, err
}

// decodeList turns a JSON-encoded list operand into values. Operands that were
// already decoded into a slice are accepted as-is.
func decodeList(operand any) ([]Value, error) {
	var raw []any
	switch v := operand.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return nil, fmt.Errorf("operand is not a JSON list: %w", err)
		}
	case json.RawMessage:
		if err := json.Unmarshal(v, &raw); err != nil {
			return nil, fmt.Errorf("operand is not a JSON list: %w", err)
		}
	case []byte:
		if err := json.Unmarshal(v, &raw); err != nil {
			return nil, fmt.Errorf("operand is not a JSON list: %w", err)
		}
	case []any:
		raw = v
	case []string:
		raw = make([]any, len(v))
		for i, s := range v {
			raw[i] = s
		}
	case []float64:
		raw = make([]any, len(v))
		for i, f := range v {
			raw[i] = f
		}
	case []int:
		raw = make([]any, len(v))
		for i, n := range v {
			raw[i] = n
		}
	default:
		return nil, fmt.Errorf("operand of type %T is not a list", operand)
	}

	values := make([]Value, len(raw))
	for i, item := range raw {
		values[i] = ValueOf(item)
	}
	return values, nil
}
