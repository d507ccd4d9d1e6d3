package doctemplate

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Filter is one of the fixed value transformations written as /name after a
// variable.
type Filter int

const (
	FilterUppercase Filter = iota
	FilterLowercase
	FilterLength
	FilterAlpha
	FilterPairs
	FilterReverse
)

var filterNames = map[string]Filter{
	"uppercase": FilterUppercase,
	"lowercase": FilterLowercase,
	"length":    FilterLength,
	"alpha":     FilterAlpha,
	"pairs":     FilterPairs,
	"reverse":   FilterReverse,
}

func (f Filter) String() string {
	switch f {
	case FilterUppercase:
		return "uppercase"
	case FilterLowercase:
		return "lowercase"
	case FilterLength:
		return "length"
	case FilterAlpha:
		return "alpha"
	case FilterPairs:
		return "pairs"
	case FilterReverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// LookupFilter returns the filter with the given name.
func LookupFilter(name string) (Filter, bool) {
	f, ok := filterNames[name]
	return f, ok
}

// Apply runs the filter on v. A nil v stands for an absent value.
func (f Filter) Apply(v Value) Value {
	switch f {
	case FilterUppercase:
		return mapStrings(v, strings.ToUpper)
	case FilterLowercase:
		return mapStrings(v, strings.ToLower)
	case FilterLength:
		return IntValue(valueLength(v))
	case FilterAlpha:
		return toAlpha(v)
	case FilterPairs:
		return toPairs(v)
	case FilterReverse:
		return reverseValue(v)
	}
	return v
}

func applyFilters(v Value, filters []Filter) Value {
	for _, f := range filters {
		v = f.Apply(v)
	}
	return v
}

func mapStrings(v Value, fn func(string) string) Value {
	switch t := v.(type) {
	case StringValue:
		return StringValue(fn(string(t)))
	case ListValue:
		out := make(ListValue, len(t))
		for i, item := range t {
			out[i] = mapStrings(item, fn)
		}
		return out
	}
	return v
}

func valueLength(v Value) int {
	switch t := v.(type) {
	case nil, NullValue:
		return 0
	case ListValue:
		return len(t)
	case DictValue:
		return len(t)
	case StringValue:
		return utf8.RuneCountInString(string(t))
	}
	return utf8.RuneCountInString(textOf(v))
}

func reverseValue(v Value) Value {
	switch t := v.(type) {
	case ListValue:
		out := make(ListValue, len(t))
		for i, item := range t {
			out[len(t)-1-i] = item
		}
		return out
	case StringValue:
		rs := []rune(string(t))
		for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
			rs[i], rs[j] = rs[j], rs[i]
		}
		return StringValue(string(rs))
	}
	return v
}

func toPairs(v Value) Value {
	switch t := v.(type) {
	case DictValue:
		out := make(ListValue, 0, len(t))
		for _, k := range t.Keys() {
			out = append(out, DictValue{"key": StringValue(k), "value": t[k]})
		}
		return out
	case ListValue:
		out := make(ListValue, 0, len(t))
		for i, item := range t {
			out = append(out, DictValue{"key": StringValue(strconv.Itoa(i + 1)), "value": item})
		}
		return out
	}
	return v
}

func toAlpha(v Value) Value {
	switch t := v.(type) {
	case IntValue:
		if t >= 0 {
			return StringValue(AlphaLabel(int64(t)))
		}
	case FloatValue:
		f := float64(t)
		if f >= 0 && f == math.Trunc(f) && f < math.MaxInt64 {
			return StringValue(AlphaLabel(int64(f)))
		}
	case StringValue:
		if n, err := strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64); err == nil && n >= 0 {
			return StringValue(AlphaLabel(n))
		}
	case ListValue:
		out := make(ListValue, len(t))
		for i, item := range t {
			out[i] = toAlpha(item)
		}
		return out
	}
	return v
}

// AlphaLabel returns the alphabetic enumeration label for n: 0 is "a",
// 25 is "z", 26 is "aa". It is the bijective base-26 numeral of n+1.
func AlphaLabel(n int64) string {
	var buf [16]byte
	i := len(buf)
	for m := n + 1; m > 0; m = (m - 1) / 26 {
		i--
		buf[i] = byte('a' + (m-1)%26)
	}
	return string(buf[i:])
}
