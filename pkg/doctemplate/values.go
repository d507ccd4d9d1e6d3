package doctemplate

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Value is a node of the data context a template is rendered against.
// It defines a display form and truthiness.
type Value interface {
	String() string
	Truth() bool
}

// LookupHook can be implemented by custom Values to take part in variable
// path resolution. Returning false means the key is absent.
type LookupHook interface {
	OnLookup(key string) (Value, bool)
}

// NullValue is an explicit null. It is present, unlike a missing key.
type NullValue struct{}

func (NullValue) String() string { return "" }
func (NullValue) Truth() bool    { return false }

// BoolValue wraps a boolean.
type BoolValue bool

func (b BoolValue) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b BoolValue) Truth() bool { return bool(b) }

// IntValue wraps an integer number.
type IntValue int64

func (i IntValue) String() string { return strconv.FormatInt(int64(i), 10) }
func (i IntValue) Truth() bool    { return true }

// FloatValue wraps a floating point number. Integral floats render without
// a fractional part.
type FloatValue float64

func (f FloatValue) String() string {
	v := float64(f)
	if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
func (f FloatValue) Truth() bool { return true }

// StringValue wraps a string.
type StringValue string

func (s StringValue) String() string { return string(s) }
func (s StringValue) Truth() bool    { return len(s) > 0 }

// ListValue is an ordered sequence of values.
type ListValue []Value

func (l ListValue) String() string {
	if len(l) == 0 || l[0] == nil {
		return ""
	}
	return l[0].String()
}
func (l ListValue) Truth() bool { return len(l) > 0 }

// DictValue is a string-keyed mapping of values.
type DictValue map[string]Value

func (d DictValue) String() string { return "true" }
func (d DictValue) Truth() bool    { return true }

// OnLookup implements LookupHook.
func (d DictValue) OnLookup(key string) (Value, bool) {
	v, ok := d[key]
	return v, ok
}

// Keys returns the mapping keys in sorted order.
func (d DictValue) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Context is the root mapping a template is rendered against.
type Context = DictValue

var (
	_ Value      = NullValue{}
	_ Value      = DictValue{}
	_ LookupHook = DictValue{}
)

// NewContextFromAny converts a map[string]any into a Context.
// Nested maps and slices become DictValue and ListValue.
func NewContextFromAny(m map[string]any) Context {
	ctx := Context{}
	for k, v := range m {
		ctx[k] = FromGo(v)
	}
	return ctx
}

// FromGo converts a Go value to a Value.
func FromGo(v any) Value {
	if v == nil {
		return NullValue{}
	}
	switch t := v.(type) {
	case Value:
		return t
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int8:
		return IntValue(int64(t))
	case int16:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case uint:
		return IntValue(int64(t))
	case uint8:
		return IntValue(int64(t))
	case uint16:
		return IntValue(int64(t))
	case uint32:
		return IntValue(int64(t))
	case uint64:
		return IntValue(int64(t))
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case []byte:
		return StringValue(string(t))
	case map[string]any:
		return NewContextFromAny(t)
	case []any:
		out := make(ListValue, 0, len(t))
		for _, item := range t {
			out = append(out, FromGo(item))
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make(ListValue, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, FromGo(rv.Index(i).Interface()))
		}
		return out
	case reflect.Map:
		out := DictValue{}
		it := rv.MapRange()
		for it.Next() {
			out[fmt.Sprint(it.Key().Interface())] = FromGo(it.Value().Interface())
		}
		return out
	case reflect.Struct:
		out := DictValue{}
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			name := f.Name
			if tag := f.Tag.Get("yaml"); tag != "" && tag != "-" {
				if j := strings.IndexByte(tag, ','); j >= 0 {
					tag = tag[:j]
				}
				if tag != "" {
					name = tag
				}
			}
			out[name] = FromGo(rv.Field(i).Interface())
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NullValue{}
		}
		return FromGo(rv.Elem().Interface())
	}
	return StringValue(fmt.Sprintf("%v", v))
}

// ToGo converts a Value back into plain Go data.
func ToGo(v Value) any {
	switch t := v.(type) {
	case nil, NullValue:
		return nil
	case StringValue:
		return string(t)
	case IntValue:
		return int64(t)
	case FloatValue:
		return float64(t)
	case BoolValue:
		return bool(t)
	case ListValue:
		out := make([]any, 0, len(t))
		for _, it := range t {
			out = append(out, ToGo(it))
		}
		return out
	case DictValue:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = ToGo(vv)
		}
		return out
	default:
		return v.String()
	}
}
