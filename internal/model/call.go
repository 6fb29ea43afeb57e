package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Arguments maps keyword names to literal values.
// Values are one of: string, int64, float64, bool, nil, []byte, []any, map[string]any.
type Arguments map[string]any

// CallRecord is a single function invocation extracted from generated code
type CallRecord struct {
	Function  string    `json:"function"`  // Plain identifier, never a dotted path
	Arguments Arguments `json:"arguments"` // Keyword arguments that evaluated to literals
}

// ExpectedCall is a call taken from ground truth. It has the same shape as CallRecord.
type ExpectedCall = CallRecord

// GroundTruth is the reference a response is scored against
type GroundTruth struct {
	ExpectedCalls []ExpectedCall `json:"expected_calls"`
}

// UnmarshalJSON decodes expected_calls. Entries that are not call objects
// are kept as empty calls, which never match but still count toward the
// number of expected calls.
func (g *GroundTruth) UnmarshalJSON(data []byte) error {
	var raw struct {
		ExpectedCalls []json.RawMessage `json:"expected_calls"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	g.ExpectedCalls = nil
	if raw.ExpectedCalls == nil {
		return nil
	}

	g.ExpectedCalls = make([]ExpectedCall, 0, len(raw.ExpectedCalls))
	for _, item := range raw.ExpectedCalls {
		var call ExpectedCall
		if err := json.Unmarshal(item, &call); err != nil {
			call = ExpectedCall{}
		}
		g.ExpectedCalls = append(g.ExpectedCalls, call)
	}
	return nil
}

// UnmarshalJSON decodes a call keeping the distinction between integer and
// float literals ("1" stays int64, "1.0" becomes float64).
func (c *CallRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Function  string          `json:"function"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Function = raw.Function
	c.Arguments = nil

	if len(raw.Arguments) == 0 || string(raw.Arguments) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Arguments))
	dec.UseNumber()

	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	c.Arguments = NormalizeArguments(args)

	return nil
}

// MarshalJSON encodes a call with sorted argument keys. Integral floats keep
// a trailing ".0" so that they decode back as floats.
func (c CallRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	name, err := json.Marshal(c.Function)
	if err != nil {
		return nil, err
	}

	buf.WriteString(`{"function":`)
	buf.Write(name)
	buf.WriteString(`,"arguments":`)
	if err := encodeValue(&buf, map[string]any(c.Arguments)); err != nil {
		return nil, err
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// NormalizeArguments converts decoded JSON/YAML values into the literal value set
func NormalizeArguments(args map[string]any) Arguments {
	if args == nil {
		return Arguments{}
	}
	out := make(Arguments, len(args))
	for k, v := range args {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeValue maps the numeric and container types produced by decoders
// onto int64, float64, []any and map[string]any.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(val.String(), 10, 64); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val > math.MaxInt64 {
			return float64(val)
		}
		return int64(val)
	case float32:
		return float64(val)
	case Arguments:
		return map[string]any(NormalizeArguments(val))
	case map[string]any:
		return map[string]any(NormalizeArguments(val))
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = NormalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	default:
		return v
	}
}

// Encodable reports whether every value of args survives a JSON round trip
// unchanged. Bytes and non-finite floats do not.
func Encodable(args Arguments) bool {
	for _, v := range args {
		if !encodableValue(v) {
			return false
		}
	}
	return true
}

func encodableValue(v any) bool {
	switch val := v.(type) {
	case []byte:
		return false
	case float64:
		return !math.IsInf(val, 0) && !math.IsNaN(val)
	case []any:
		for _, item := range val {
			if !encodableValue(item) {
				return false
			}
		}
	case map[string]any:
		for _, item := range val {
			if !encodableValue(item) {
				return false
			}
		}
	}
	return true
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return fmt.Errorf("unsupported float value: %v", val)
		}
		s := strconv.FormatFloat(val, 'g', -1, 64)
		if !bytes.ContainsAny([]byte(s), ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		normalized := NormalizeValue(v)
		switch normalized.(type) {
		case float64, int64, map[string]any, []any:
			return encodeValue(buf, normalized)
		}
		data, err := json.Marshal(normalized)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return nil
}
