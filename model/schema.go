package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema declares the expected kind of nodes by pattern. A pattern is a
// path with list indexes erased: items[].total matches items[0].total,
// items[1].total and so on. Nodes not named by the schema are unchecked and
// null never violates a declaration.
type Schema map[string]Kind

// ParseKind maps a kind name to a Kind. Accepted names are those printed by
// Kind.String plus the aliases "str", "text", "int", "float", "boolean",
// "time", "datetime", "array", "sequence", "object" and "mapping".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null":
		return KindNull, nil
	case "string", "str", "text":
		return KindString, nil
	case "number", "int", "integer", "float":
		return KindNumber, nil
	case "bool", "boolean":
		return KindBool, nil
	case "date", "time", "datetime":
		return KindTime, nil
	case "list", "array", "sequence":
		return KindList, nil
	case "map", "object", "mapping":
		return KindMap, nil
	}
	return 0, fmt.Errorf("model: unknown kind %q", s)
}

// LoadSchemaYAML reads a schema from a flat YAML mapping of pattern to kind
// name:
//
//	customer.name: string
//	items[].total: number
//	issued: date
func LoadSchemaYAML(data []byte) (Schema, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("model: parse schema: %w", err)
	}
	s := make(Schema, len(raw))
	for pattern, name := range raw {
		k, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("model: schema %s: %w", pattern, err)
		}
		s[pattern] = k
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s Schema) validate() error {
	for pattern := range s {
		if _, err := ParsePath(strings.ReplaceAll(pattern, "[]", "[0]")); err != nil {
			return fmt.Errorf("model: schema pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (b *binder) check(p Path, v Value) error {
	if b.schema == nil || len(p) == 0 || v.IsNull() {
		return nil
	}
	want, ok := b.schema[p.pattern()]
	if !ok || want == v.Kind() {
		return nil
	}
	return b.fail(p, "expected %s, got %s", want, v.Kind())
}

// checkTree validates an already bound subtree.
func (b *binder) checkTree(p Path, v Value) error {
	if err := b.check(p, v); err != nil {
		return err
	}
	switch v.kind {
	case KindList:
		for i, it := range v.list {
			if err := b.checkTree(p.index(i), it); err != nil {
				return err
			}
		}
	case KindMap:
		for _, k := range v.keys {
			if err := b.checkTree(p.child(k), v.m[k]); err != nil {
				return err
			}
		}
	}
	return nil
}
