package rules

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Kind tags the dynamic type carried by a Value
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Value is a loosely-typed payload or operand value. Every coercion on it is total:
// it either succeeds or reports ok=false, it never panics.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	t    time.Time
}

// Null is the absent value
var Null = Value{kind: KindNull}

// ValueOf wraps a value decoded from JSON or supplied by Go callers
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null
	case Value:
		return x
	case bool:
		return Value{kind: KindBool, b: x}
	case string:
		return Value{kind: KindString, str: x}
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Value{kind: KindNumber, num: f}
		}
		return Value{kind: KindString, str: x.String()}
	case time.Time:
		return Value{kind: KindDateTime, t: x}
	case *time.Time:
		if x == nil {
			return Null
		}
		return Value{kind: KindDateTime, t: *x}
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Value{kind: KindNumber, num: cast.ToFloat64(x)}
	case []byte:
		return Value{kind: KindString, str: string(x)}
	case json.RawMessage:
		return Value{kind: KindString, str: string(x)}
	default:
		if s, err := cast.ToStringE(x); err == nil {
			return Value{kind: KindString, str: s}
		}
		if raw, err := json.Marshal(x); err == nil {
			return Value{kind: KindString, str: string(raw)}
		}
		return Null
	}
}

// Kind returns the tag of the value
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is absent
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// String returns the string form used by the string-based operators.
// Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDateTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// AsNumber coerces to a decimal number. Strings are parsed after trimming;
// booleans and dates never coerce.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		return parseDecimal(v.str)
	default:
		return 0, false
	}
}

// AsDateTime coerces to an instant. Only date values and date-like strings coerce.
func (v Value) AsDateTime() (time.Time, bool) {
	switch v.kind {
	case KindDateTime:
		return v.t, true
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return time.Time{}, false
		}
		t, err := cast.StringToDate(s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// Native returns the value as a plain Go value (nil, float64, string, bool, time.Time)
func (v Value) Native() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindDateTime:
		return v.t
	default:
		return nil
	}
}

func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// sameCalendarDate compares two instants by their UTC calendar date
func sameCalendarDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
