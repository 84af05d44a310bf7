package record

import (
	"math"
	"strconv"
	"strings"
)

// Row maps column name -> value. Values are nil, int64, float64, bool or string.
type Row map[string]any

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Values returns the row's values in the given column order.
func (r Row) Values(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = r[c]
	}
	return out
}

// Normalize folds Go numeric kinds into int64/float64 so rows compare and
// serialize consistently. Unknown kinds are returned unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// AsNumber reports v as a float64 when it is numeric or a numeric string.
// Booleans are not numbers.
func AsNumber(v any) (float64, bool) {
	switch x := Normalize(v).(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		return parseNumber(x)
	default:
		return 0, false
	}
}

func asInt(v any) (int64, bool) {
	switch x := Normalize(v).(type) {
	case int64:
		return x, true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func parseNumber(s string) (float64, bool) {
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

// String renders a value the way lexical comparison sees it.
func String(v any) string {
	switch x := Normalize(v).(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpGt Op = ">"
	OpLt Op = "<"
	OpGe Op = ">="
	OpLe Op = "<="
)

// Compare3 orders two non-null values: numerically when both sides coerce to
// numbers, lexically otherwise.
func Compare3(a, b any) int {
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			}
			return 0
		}
	}
	if af, ok := AsNumber(a); ok {
		if bf, ok := AsNumber(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(String(a), String(b))
}

// Match evaluates `got op want`. NULL only equals NULL; ordered comparisons
// involving NULL are false.
func Match(got any, op Op, want any) bool {
	got, want = Normalize(got), Normalize(want)
	if got == nil || want == nil {
		switch op {
		case OpEq:
			return got == nil && want == nil
		case OpNe:
			return (got == nil) != (want == nil)
		default:
			return false
		}
	}
	c := Compare3(got, want)
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	case OpLt:
		return c < 0
	case OpGe:
		return c >= 0
	case OpLe:
		return c <= 0
	default:
		return false
	}
}

func Equal(a, b any) bool { return Match(a, OpEq, b) }

// Key returns the equality key used by hash indexes. Two non-null values have
// the same key exactly when Equal reports true for them.
func Key(v any) (string, bool) {
	v = Normalize(v)
	if v == nil {
		return "", false
	}
	if i, ok := asInt(v); ok {
		return "n:" + strconv.FormatInt(i, 10), true
	}
	if f, ok := AsNumber(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return "n:" + strconv.FormatInt(int64(f), 10), true
		}
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return "s:" + String(v), true
}
