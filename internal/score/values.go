package score

import (
	"bytes"
	"math"

	"github.com/ppiankov/callreward/internal/model"
)

// Kind is the runtime type category of a literal value
type Kind int

const (
	KindUnknown Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindDict
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindBytes:   "bytes",
	KindList:    "list",
	KindDict:    "dict",
}

func (k Kind) String() string {
	return kindNames[k]
}

// KindOf returns the category of v. Integers and floats are distinct
// categories, and booleans are never numbers.
func KindOf(v any) Kind {
	switch model.NormalizeValue(v).(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case string:
		return KindString
	case []byte:
		return KindBytes
	case []any:
		return KindList
	case map[string]any:
		return KindDict
	}
	return KindUnknown
}

// Equal reports deep equality of two literal values. Numbers compare by
// value, and booleans count as 0 and 1 (True == 1 == 1.0).
func Equal(a, b any) bool {
	a, b = model.NormalizeValue(a), model.NormalizeValue(b)

	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		switch y := b.(type) {
		case bool:
			return x == y
		case int64:
			return boolInt(x) == y
		case float64:
			return float64(boolInt(x)) == y
		}
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return intEqualsFloat(x, y)
		case bool:
			return x == boolInt(y)
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return x == y
		case int64:
			return intEqualsFloat(y, x)
		case bool:
			return x == float64(boolInt(y))
		}
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, found := y[k]
			if !found || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intEqualsFloat(i int64, f float64) bool {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return false
	}
	return int64(f) == i
}

// numericDistance returns |a - b| for two numbers of the same category
func numericDistance(a, b any) float64 {
	switch x := a.(type) {
	case int64:
		y := b.(int64)
		if x == y {
			return 0
		}
		return math.Abs(float64(x) - float64(y))
	case float64:
		return math.Abs(x - b.(float64))
	}
	return math.NaN()
}
