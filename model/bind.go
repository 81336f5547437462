package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxDepth bounds the nesting of a bound tree.
const DefaultMaxDepth = 256

// ErrInvalid is matched by every InvalidError.
var ErrInvalid = errors.New("invalid model")

// InvalidError reports why raw data could not be bound and where.
type InvalidError struct {
	Path   string
	Reason string
}

func (e *InvalidError) Error() string {
	if e.Path == "" {
		return "invalid model: " + e.Reason
	}
	return fmt.Sprintf("invalid model at %s: %s", e.Path, e.Reason)
}

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

// Field is one member of an ordered raw mapping.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered raw mapping. Unlike a Go map it can carry duplicate
// names, which Bind rejects. The JSON and YAML loaders produce Fields.
type Fields []Field

// Option configures Bind.
type Option func(*binder)

// WithSchema validates scalar kinds against s while binding.
func WithSchema(s Schema) Option {
	return func(b *binder) { b.schema = s }
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(b *binder) {
		if n > 0 {
			b.maxDepth = n
		}
	}
}

type visitKey struct {
	typ reflect.Type
	ptr uintptr
	len int
}

type binder struct {
	schema   Schema
	maxDepth int
	visiting map[visitKey]struct{}
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	numberType = reflect.TypeOf(json.Number(""))
	fieldsType = reflect.TypeOf(Fields(nil))
	valueType  = reflect.TypeOf(Value{})
	bytesType  = reflect.TypeOf([]byte(nil))
)

// Bind validates raw and converts it into a Value tree. raw may be built
// from maps with string keys, slices, arrays, pointers, structs (honouring
// `report` and then `json` field tags), Fields, strings, numbers, bools,
// json.Number and time.Time. Strings and keys are normalised to NFC.
//
// Bind never mutates raw. Shared subtrees are allowed; a reference back to
// an ancestor is reported as a cycle.
func Bind(raw any, opts ...Option) (Value, error) {
	b := &binder{maxDepth: DefaultMaxDepth, visiting: make(map[visitKey]struct{})}
	for _, opt := range opts {
		opt(b)
	}
	if b.schema != nil {
		if err := b.schema.validate(); err != nil {
			return Value{}, err
		}
	}
	return b.bind(reflect.ValueOf(raw), nil, 0)
}

func (b *binder) fail(p Path, format string, args ...any) error {
	return &InvalidError{Path: p.String(), Reason: fmt.Sprintf(format, args...)}
}

func (b *binder) enter(p Path, key visitKey) error {
	if _, ok := b.visiting[key]; ok {
		return b.fail(p, "reference cycle")
	}
	b.visiting[key] = struct{}{}
	return nil
}

func (b *binder) leave(key visitKey) { delete(b.visiting, key) }

func (b *binder) bind(rv reflect.Value, p Path, depth int) (Value, error) {
	if depth > b.maxDepth {
		return Value{}, b.fail(p, "nesting deeper than %d levels", b.maxDepth)
	}
	v, err := b.bindValue(rv, p, depth)
	if err != nil {
		return Value{}, err
	}
	if err := b.check(p, v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func (b *binder) bindValue(rv reflect.Value, p Path, depth int) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	switch rv.Type() {
	case valueType:
		v := rv.Interface().(Value)
		if b.schema != nil {
			if err := b.checkTree(p, v); err != nil {
				return Value{}, err
			}
		}
		return v, nil
	case timeType:
		return Time(rv.Interface().(time.Time)), nil
	case numberType:
		return b.bindNumber(p, rv.Interface().(json.Number))
	case fieldsType:
		return b.bindFields(rv, p, depth)
	case bytesType:
		return String(norm.NFC.String(string(rv.Bytes()))), nil
	}
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return b.bindValue(rv.Elem(), p, depth)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		key := visitKey{typ: rv.Type(), ptr: rv.Pointer()}
		if err := b.enter(p, key); err != nil {
			return Value{}, err
		}
		defer b.leave(key)
		return b.bindValue(rv.Elem(), p, depth)
	case reflect.Map:
		return b.bindMap(rv, p, depth)
	case reflect.Slice:
		if rv.IsNil() {
			return List(), nil
		}
		if rv.Len() > 0 {
			key := visitKey{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len()}
			if err := b.enter(p, key); err != nil {
				return Value{}, err
			}
			defer b.leave(key)
		}
		return b.bindList(rv, p, depth)
	case reflect.Array:
		return b.bindList(rv, p, depth)
	case reflect.Struct:
		return b.bindStruct(rv, p, depth)
	case reflect.String:
		return String(norm.NFC.String(rv.String())), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Number(float64(u)), nil
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, b.fail(p, "number is not finite")
		}
		return Number(f), nil
	}
	return Value{}, b.fail(p, "unsupported type %s", rv.Type())
}

func (b *binder) bindNumber(p Path, n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, b.fail(p, "bad number %q", n.String())
	}
	return Number(f), nil
}

func (b *binder) bindMap(rv reflect.Value, p Path, depth int) (Value, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return Value{}, b.fail(p, "mapping keys must be strings, got %s", rv.Type().Key())
	}
	if rv.IsNil() {
		return Map(), nil
	}
	key := visitKey{typ: rv.Type(), ptr: rv.Pointer()}
	if err := b.enter(p, key); err != nil {
		return Value{}, err
	}
	defer b.leave(key)

	type kv struct {
		norm string
		key  reflect.Value
	}
	keys := make([]kv, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		keys = append(keys, kv{norm: norm.NFC.String(iter.Key().String()), key: iter.Key()})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].norm < keys[j].norm })

	out := Value{kind: KindMap, m: make(map[string]Value, len(keys)), keys: make([]string, 0, len(keys))}
	for i, k := range keys {
		if i > 0 && keys[i-1].norm == k.norm {
			return Value{}, b.fail(p, "duplicate key %q", k.norm)
		}
		child, err := b.bind(rv.MapIndex(k.key), p.child(k.norm), depth+1)
		if err != nil {
			return Value{}, err
		}
		out.keys = append(out.keys, k.norm)
		out.m[k.norm] = child
	}
	return out, nil
}

func (b *binder) bindFields(rv reflect.Value, p Path, depth int) (Value, error) {
	fields := rv.Interface().(Fields)
	if len(fields) > 0 {
		key := visitKey{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len()}
		if err := b.enter(p, key); err != nil {
			return Value{}, err
		}
		defer b.leave(key)
	}
	out := Value{kind: KindMap, m: make(map[string]Value, len(fields)), keys: make([]string, 0, len(fields))}
	for _, f := range fields {
		name := norm.NFC.String(f.Name)
		if _, dup := out.m[name]; dup {
			return Value{}, b.fail(p, "duplicate key %q", name)
		}
		child, err := b.bind(reflect.ValueOf(f.Value), p.child(name), depth+1)
		if err != nil {
			return Value{}, err
		}
		out.keys = append(out.keys, name)
		out.m[name] = child
	}
	return out, nil
}

func (b *binder) bindList(rv reflect.Value, p Path, depth int) (Value, error) {
	out := Value{kind: KindList, list: make([]Value, rv.Len())}
	for i := 0; i < rv.Len(); i++ {
		child, err := b.bind(rv.Index(i), p.index(i), depth+1)
		if err != nil {
			return Value{}, err
		}
		out.list[i] = child
	}
	return out, nil
}

func (b *binder) bindStruct(rv reflect.Value, p Path, depth int) (Value, error) {
	t := rv.Type()
	out := Value{kind: KindMap, m: make(map[string]Value)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, skip := fieldName(sf)
		if skip {
			continue
		}
		if _, dup := out.m[name]; dup {
			return Value{}, b.fail(p, "duplicate key %q", name)
		}
		child, err := b.bind(rv.Field(i), p.child(name), depth+1)
		if err != nil {
			return Value{}, err
		}
		out.keys = append(out.keys, name)
		out.m[name] = child
	}
	return out, nil
}

func fieldName(sf reflect.StructField) (string, bool) {
	for _, tag := range []string{"report", "json"} {
		v, ok := sf.Tag.Lookup(tag)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(v, ",")
		if name == "-" {
			return "", true
		}
		if name != "" {
			return norm.NFC.String(name), false
		}
	}
	return sf.Name, false
}
