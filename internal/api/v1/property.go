package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the textual form every Date value takes once encoded.
const DateLayout = "2006-01-02 15:04:05.000"

// ErrUnsupportedValue is returned when a Go value has no Value representation.
var ErrUnsupportedValue = errors.New("unsupported property value")

// ValueKind enumerates the closed set of property value shapes.
type ValueKind uint8

const (
	ValueInvalid ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueDate
	ValueList
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueDate:
		return "date"
	case ValueList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a single property value. The zero Value is invalid.
type Value struct {
	kind ValueKind
	str  string
	num  decimal.Decimal
	b    bool
	t    time.Time
	list []Value
}

func String(s string) Value               { return Value{kind: ValueString, str: s} }
func Number(d decimal.Decimal) Value      { return Value{kind: ValueNumber, num: d} }
func Int(i int64) Value                   { return Number(decimal.NewFromInt(i)) }
func Float(f float64) Value               { return Number(decimal.NewFromFloat(f)) }
func Bool(b bool) Value                   { return Value{kind: ValueBool, b: b} }
func Date(t time.Time) Value              { return Value{kind: ValueDate, t: t} }
func List(items ...Value) Value           { return Value{kind: ValueList, list: append([]Value(nil), items...)} }
func (v Value) Kind() ValueKind           { return v.kind }
func (v Value) IsValid() bool             { return v.kind != ValueInvalid }
func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == ValueBool }
func (v Value) AsDate() (time.Time, bool) { return v.t, v.kind == ValueDate }

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == ValueString
}

func (v Value) AsNumber() (decimal.Decimal, bool) {
	return v.num, v.kind == ValueNumber
}

// AsList returns a copy of the list items.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != ValueList {
		return nil, false
	}
	return append([]Value(nil), v.list...), true
}

// Interface converts the value into plain Go types: string, int64 or float64,
// bool, the formatted date string, or []any.
func (v Value) Interface() any {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		if v.num.IsInteger() && v.num.Cmp(decimal.NewFromInt(math.MaxInt64)) <= 0 &&
			v.num.Cmp(decimal.NewFromInt(math.MinInt64)) >= 0 {
			return v.num.IntPart()
		}
		return v.num.InexactFloat64()
	case ValueBool:
		return v.b
	case ValueDate:
		return v.t.Format(DateLayout)
	case ValueList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// ValueOf converts a dynamically typed Go value. Nested objects, nil and
// other shapes fail with ErrUnsupportedValue.
func ValueOf(x any) (Value, error) {
	switch val := x.(type) {
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(int64(val)), nil
	case int8:
		return Int(int64(val)), nil
	case int16:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return Number(decimal.NewFromUint64(uint64(val))), nil
	case uint8:
		return Int(int64(val)), nil
	case uint16:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return Number(decimal.NewFromUint64(val)), nil
	case float32:
		return Float(float64(val)), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return Value{}, fmt.Errorf("%w: non-finite number", ErrUnsupportedValue)
		}
		return Float(val), nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return Number(d), nil
	case decimal.Decimal:
		return Number(val), nil
	case time.Time:
		return Date(val), nil
	case []string:
		items := make([]Value, len(val))
		for i, s := range val {
			items[i] = String(s)
		}
		return Value{kind: ValueList, list: items}, nil
	case []any:
		items := make([]Value, len(val))
		for i, raw := range val {
			item, err := ValueOf(raw)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return Value{kind: ValueList, list: items}, nil
	case nil:
		return Value{}, fmt.Errorf("%w: null", ErrUnsupportedValue)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return []byte(v.num.String()), nil
	case ValueBool:
		return json.Marshal(v.b)
	case ValueDate:
		return json.Marshal(v.t.Format(DateLayout))
	case ValueList:
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("%w: invalid value", ErrUnsupportedValue)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Properties is an insertion-ordered document of property values.
// A key is present at most once. Read methods are safe on a nil receiver.
type Properties struct {
	keys []string
	vals map[string]Value
}

func NewProperties() *Properties {
	return &Properties{vals: make(map[string]Value)}
}

// PropertiesFrom converts a plain map. Keys are inserted in sorted order.
func PropertiesFrom(m map[string]any) (*Properties, error) {
	p := NewProperties()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := ValueOf(m[k])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		p.Set(k, v)
	}
	return p, nil
}

// Set inserts or replaces key. A replaced key keeps its position.
func (p *Properties) Set(key string, v Value) {
	if p.vals == nil {
		p.vals = make(map[string]Value)
	}
	if _, exists := p.vals[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = v
}

func (p *Properties) Get(key string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.vals[key]
	return v, ok
}

func (p *Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// GetString returns the value under key when it is a string.
func (p *Properties) GetString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Delete removes key and reports whether it was present.
func (p *Properties) Delete(key string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.vals[key]; !ok {
		return false
	}
	delete(p.vals, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	return true
}

func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Range calls fn for each entry in order until fn returns false.
func (p *Properties) Range(fn func(key string, v Value) bool) {
	if p == nil {
		return
	}
	for _, k := range p.keys {
		if !fn(k, p.vals[k]) {
			return
		}
	}
}

// Clone returns an independent copy. Cloning nil yields an empty document.
func (p *Properties) Clone() *Properties {
	out := NewProperties()
	p.Range(func(k string, v Value) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Merge copies every entry of src into p; src wins on collisions.
func (p *Properties) Merge(src *Properties) {
	src.Range(func(k string, v Value) bool {
		p.Set(k, v)
		return true
	})
}

// Map returns the document as plain Go values (see Value.Interface).
func (p *Properties) Map() map[string]any {
	out := make(map[string]any, p.Len())
	p.Range(func(k string, v Value) bool {
		out[k] = v.Interface()
		return true
	})
	return out
}

func (p *Properties) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := p.vals[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the input.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties must be a JSON object")
	}

	out := NewProperties()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := ValueOf(raw)
		if err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = *out
	return nil
}
