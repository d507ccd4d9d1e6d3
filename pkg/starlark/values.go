package starlark

import (
	"github.com/neurodesk/doctemplate/pkg/doctemplate"
	"go.starlark.net/starlark"
)

// ConvertToStarlark converts a template value to a Starlark value.
func ConvertToStarlark(val doctemplate.Value) starlark.Value {
	switch v := val.(type) {
	case nil, doctemplate.NullValue:
		return starlark.None
	case doctemplate.StringValue:
		return starlark.String(string(v))
	case doctemplate.IntValue:
		return starlark.MakeInt64(int64(v))
	case doctemplate.FloatValue:
		return starlark.Float(float64(v))
	case doctemplate.BoolValue:
		return starlark.Bool(bool(v))
	case doctemplate.ListValue:
		items := make([]starlark.Value, len(v))
		for i, item := range v {
			items[i] = ConvertToStarlark(item)
		}
		return starlark.NewList(items)
	case doctemplate.DictValue:
		dict := starlark.NewDict(len(v))
		for _, key := range v.Keys() {
			_ = dict.SetKey(starlark.String(key), ConvertToStarlark(v[key]))
		}
		return dict
	case Wrapper:
		return v.Value
	default:
		return starlark.String(val.String())
	}
}

// ConvertFromStarlark converts a Starlark value to a template value.
// Tuples and sets become lists; other unknown values become their string
// form.
func ConvertFromStarlark(val starlark.Value) doctemplate.Value {
	if val == nil || val == starlark.None {
		return doctemplate.NullValue{}
	}
	switch v := val.(type) {
	case starlark.String:
		return doctemplate.StringValue(string(v))
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return doctemplate.IntValue(i)
		}
		return doctemplate.StringValue(v.String())
	case starlark.Float:
		return doctemplate.FloatValue(float64(v))
	case starlark.Bool:
		return doctemplate.BoolValue(bool(v))
	case *starlark.Dict:
		dict := make(doctemplate.DictValue, v.Len())
		for _, item := range v.Items() {
			key := item[0].String()
			if s, ok := item[0].(starlark.String); ok {
				key = string(s)
			}
			dict[key] = ConvertFromStarlark(item[1])
		}
		return dict
	case starlark.Iterable:
		var items doctemplate.ListValue
		iter := v.Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			items = append(items, ConvertFromStarlark(x))
		}
		if items == nil {
			items = doctemplate.ListValue{}
		}
		return items
	case starlark.HasAttrs:
		return Wrapper{Value: v}
	default:
		return doctemplate.StringValue(val.String())
	}
}

// Wrapper exposes a Starlark value with attributes, such as a struct or a
// module, to templates: $obj.field$ resolves through its attributes.
type Wrapper struct {
	Value starlark.Value
}

func (w Wrapper) String() string {
	if w.Value == nil {
		return ""
	}
	return w.Value.String()
}

func (w Wrapper) Truth() bool {
	return w.Value != nil && bool(w.Value.Truth())
}

// OnLookup implements doctemplate.LookupHook.
func (w Wrapper) OnLookup(key string) (doctemplate.Value, bool) {
	attrs, ok := w.Value.(starlark.HasAttrs)
	if !ok {
		return nil, false
	}
	v, err := attrs.Attr(key)
	if err != nil || v == nil {
		return nil, false
	}
	return ConvertFromStarlark(v), true
}

var (
	_ doctemplate.Value      = Wrapper{}
	_ doctemplate.LookupHook = Wrapper{}
)

// WrapContext converts a template context into Starlark globals.
func WrapContext(ctx doctemplate.Context) starlark.StringDict {
	wrapped := make(starlark.StringDict, len(ctx))
	for key, value := range ctx {
		wrapped[key] = ConvertToStarlark(value)
	}
	return wrapped
}
