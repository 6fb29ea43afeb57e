package syntax

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotLiteral is returned by Literal for expressions that are not
// constant displays.
var ErrNotLiteral = errors.New("not a literal")

// Literal evaluates a constant expression to a Go value.
//
//	string            -> string
//	bytes             -> []byte
//	int               -> int64 (values outside int64 are rejected)
//	float             -> float64
//	True / False      -> bool
//	None              -> nil
//	list, tuple, set  -> []any
//	dict              -> map[string]any (non-string keys use their repr)
//
// Unary + and - are accepted directly in front of a number. set() is the
// empty set. Everything else returns ErrNotLiteral.
func Literal(e Expr) (any, error) {
	switch x := e.(type) {
	case *Constant:
		return constantValue(x, "")

	case *UnaryOp:
		c, ok := x.X.(*Constant)
		if !ok || (x.Op != "-" && x.Op != "+") || (c.Kind != ConstInt && c.Kind != ConstFloat) {
			return nil, ErrNotLiteral
		}
		return constantValue(c, x.Op)

	case *List:
		return sequence(x.Elts)

	case *Tuple:
		return sequence(x.Elts)

	case *Set:
		return set(x.Elts)

	case *Dict:
		return dict(x)

	case *Call:
		if name, ok := x.Func.(*Name); ok && name.ID == "set" && len(x.Args) == 0 && len(x.Keywords) == 0 {
			return []any{}, nil
		}
	}

	return nil, ErrNotLiteral
}

func constantValue(c *Constant, sign string) (any, error) {
	switch c.Kind {
	case ConstString:
		return c.Text, nil
	case ConstBytes:
		return []byte(c.Text), nil
	case ConstTrue:
		return true, nil
	case ConstFalse:
		return false, nil
	case ConstNone:
		return nil, nil

	case ConstInt:
		text := c.Text
		if sign == "-" {
			text = "-" + text
		}
		if len(strings.Trim(text, "-0_")) == 0 {
			return int64(0), nil
		}
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, ErrNotLiteral
		}
		return n, nil

	case ConstFloat:
		f, err := strconv.ParseFloat(strings.ReplaceAll(c.Text, "_", ""), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, ErrNotLiteral
		}
		if sign == "-" {
			f = -f
		}
		return f, nil
	}

	return nil, ErrNotLiteral
}

func sequence(elts []Expr) ([]any, error) {
	out := make([]any, 0, len(elts))
	for _, elt := range elts {
		v, err := Literal(elt)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func set(elts []Expr) ([]any, error) {
	out := make([]any, 0, len(elts))
	seen := make(map[string]bool, len(elts))
	for _, elt := range elts {
		v, err := Literal(elt)
		if err != nil {
			return nil, err
		}
		key, ok := hashKey(v)
		if !ok {
			return nil, fmt.Errorf("unhashable set element: %w", ErrNotLiteral)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out, nil
}

func dict(d *Dict) (map[string]any, error) {
	out := make(map[string]any, len(d.Keys))
	for i, k := range d.Keys {
		if k == nil {
			return nil, ErrNotLiteral
		}
		key, err := Literal(k)
		if err != nil {
			return nil, err
		}
		name, ok := keyString(key)
		if !ok {
			return nil, fmt.Errorf("unsupported dict key: %w", ErrNotLiteral)
		}
		v, err := Literal(d.Values[i])
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// hashKey gives equal numbers (1, 1.0, True) the same key, as set
// membership does.
func hashKey(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "none", true
	case bool:
		if x {
			return "num:1", true
		}
		return "num:0", true
	case int64:
		return "num:" + strconv.FormatInt(x, 10), true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<63 {
			return "num:" + strconv.FormatInt(int64(x), 10), true
		}
		return "num:" + strconv.FormatFloat(x, 'g', -1, 64), true
	case string:
		return "str:" + x, true
	case []byte:
		return "bytes:" + string(x), true
	}
	return "", false
}

// keyString renders a scalar dict key the way repr would
func keyString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case nil:
		return "None", true
	case bool:
		if x {
			return "True", true
		}
		return "False", true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return FloatRepr(x), true
	}
	return "", false
}

// FloatRepr formats f the way Python's repr does for floats
func FloatRepr(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
