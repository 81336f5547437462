// Package model binds raw input data into an immutable, validated tree that
// templates can be expanded against.
//
// A bound tree holds scalars (string, number, bool, time), ordered
// sequences and mappings with unique string keys. It never contains cycles.
package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindList
	KindMap
)

var kindNames = [...]string{
	KindNull:   "null",
	KindString: "string",
	KindNumber: "number",
	KindBool:   "bool",
	KindTime:   "date",
	KindList:   "list",
	KindMap:    "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a node of a bound data tree. The zero Value is null.
type Value struct {
	kind  Kind
	str   string
	num   float64
	isInt bool
	b     bool
	t     time.Time
	list  []Value
	keys  []string
	m     map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value {
	v := Value{kind: KindNumber, num: f}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		v.isInt = true
	}
	return v
}

// Int returns an integral numeric value.
func Int(i int64) Value { return Value{kind: KindNumber, num: float64(i), isInt: true} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Time returns a date value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// List returns a sequence value.
func List(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

// Entry is a named member of a mapping value.
type Entry struct {
	Key   string
	Value Value
}

// Map returns a mapping value preserving entry order. Later duplicates
// replace earlier ones; use Bind to reject duplicates instead.
func Map(entries ...Entry) Value {
	v := Value{kind: KindMap, m: make(map[string]Value, len(entries))}
	for _, e := range entries {
		if _, ok := v.m[e.Key]; !ok {
			v.keys = append(v.keys, e.Key)
		}
		v.m[e.Key] = e.Value
	}
	return v
}

// Kind returns the value type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Float returns the numeric payload.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// IsInt reports whether v is a number without a fractional part.
func (v Value) IsInt() bool { return v.kind == KindNumber && v.isInt }

// BoolValue returns the boolean payload.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// TimeValue returns the date payload.
func (v Value) TimeValue() (time.Time, bool) { return v.t, v.kind == KindTime }

// Len returns the number of items of a list or entries of a map.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.keys)
	}
	return 0
}

// Index returns the i-th list item.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}, false
	}
	return v.list[i], true
}

// Items returns a copy of the list items.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return append([]Value(nil), v.list...)
}

// Keys returns the mapping keys in order.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	return append([]string(nil), v.keys...)
}

// Get returns the member named key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	m, ok := v.m[key]
	return m, ok
}

// Lookup follows a parsed path from v.
func (v Value) Lookup(p Path) (Value, bool) {
	cur := v
	for _, seg := range p {
		var ok bool
		if seg.IsIndex {
			cur, ok = cur.Index(seg.Index)
		} else {
			cur, ok = cur.Get(seg.Key)
		}
		if !ok {
			return Value{}, false
		}
	}
	return cur, true
}

// With returns a copy of a mapping value with key set. A non-map receiver
// is treated as an empty map.
func (v Value) With(key string, val Value) Value {
	out := Value{kind: KindMap, m: make(map[string]Value, len(v.keys)+1)}
	if v.kind == KindMap {
		out.keys = append(out.keys, v.keys...)
		for k, m := range v.m {
			out.m[k] = m
		}
	}
	if _, ok := out.m[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.m[key] = val
	return out
}

// Truthy reports whether v counts as true in a condition.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString:
		return v.str != ""
	case KindNumber:
		return v.num != 0
	case KindBool:
		return v.b
	case KindTime:
		return !v.t.IsZero()
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return len(v.keys) > 0
	}
	return false
}

// Text returns the textual form of a scalar. Lists and maps have none.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindNull:
		return "", true
	case KindString:
		return v.str, true
	case KindNumber:
		return formatNumber(v.num, v.isInt), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	case KindTime:
		return v.t.Format(time.RFC3339), true
	}
	return "", false
}

func (v Value) String() string {
	if s, ok := v.Text(); ok {
		return s
	}
	var sb strings.Builder
	v.writeDebug(&sb)
	return sb.String()
}

func (v Value) writeDebug(sb *strings.Builder) {
	switch v.kind {
	case KindList:
		sb.WriteByte('[')
		for i, it := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			it.writeDebug(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			m := v.m[k]
			m.writeDebug(sb)
		}
		sb.WriteByte('}')
	case KindString:
		sb.WriteString(strconv.Quote(v.str))
	default:
		s, _ := v.Text()
		sb.WriteString(s)
	}
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindTime:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.keys) != len(o.keys) {
			return false
		}
		for k, m := range v.m {
			om, ok := o.m[k]
			if !ok || !m.Equal(om) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts v back into plain Go values: map[string]any, []any,
// string, float64 or int64, bool, time.Time and nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if v.isInt {
			return int64(v.num)
		}
		return v.num
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindList:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = it.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, m := range v.m {
			out[k] = m.Interface()
		}
		return out
	}
	return nil
}

func formatNumber(f float64, isInt bool) string {
	if isInt {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
