package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadJSON decodes a JSON document into raw data suitable for Bind. Objects
// become Fields so that member order and duplicate names survive until
// binding; numbers become json.Number.
func LoadJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := decodeJSON(dec)
	if err != nil {
		return nil, fmt.Errorf("model: parse json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("model: parse json: trailing data after document")
	}
	return v, nil
}

func decodeJSON(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			fields := Fields{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				name, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", kt)
				}
				val, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				fields = append(fields, Field{Name: name, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return fields, nil
		case '[':
			items := []any{}
			for dec.More() {
				val, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return items, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	default:
		return t, nil
	}
}

// LoadYAML decodes a YAML document into raw data suitable for Bind.
// Mappings become Fields, preserving duplicates for Bind to reject. Aliases
// are expanded; an alias that refers to one of its own ancestors is
// reported as an InvalidError.
func LoadYAML(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("model: parse yaml: %w", err)
	}
	c := &yamlConverter{active: make(map[*yaml.Node]bool)}
	return c.convert(&doc, nil)
}

type yamlConverter struct {
	active map[*yaml.Node]bool
}

func (c *yamlConverter) convert(n *yaml.Node, p Path) (any, error) {
	if c.active[n] {
		return nil, &InvalidError{Path: p.String(), Reason: "reference cycle"}
	}
	c.active[n] = true
	defer delete(c.active, n)

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return c.convert(n.Content[0], p)
	case yaml.AliasNode:
		return c.convert(n.Alias, p)
	case yaml.MappingNode:
		fields := make(Fields, 0, len(n.Content)/2)
		var merged Fields
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
				m, err := c.merge(v, p)
				if err != nil {
					return nil, err
				}
				merged = append(merged, m...)
				continue
			}
			if k.Kind != yaml.ScalarNode {
				return nil, &InvalidError{Path: p.String(), Reason: fmt.Sprintf("non-scalar key at line %d", k.Line)}
			}
			val, err := c.convert(v, p.child(k.Value))
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: k.Value, Value: val})
		}
		return withMerged(fields, merged), nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for i, it := range n.Content {
			val, err := c.convert(it, p.index(i))
			if err != nil {
				return nil, err
			}
			items = append(items, val)
		}
		return items, nil
	case yaml.ScalarNode:
		return scalarYAML(n)
	}
	return nil, &InvalidError{Path: p.String(), Reason: fmt.Sprintf("unsupported yaml node kind %d", n.Kind)}
}

func (c *yamlConverter) merge(n *yaml.Node, p Path) (Fields, error) {
	val, err := c.convert(n, p)
	if err != nil {
		return nil, err
	}
	switch m := val.(type) {
	case Fields:
		return m, nil
	case []any:
		var out Fields
		for _, it := range m {
			f, ok := it.(Fields)
			if !ok {
				return nil, &InvalidError{Path: p.String(), Reason: "merge of non-mapping"}
			}
			out = append(out, f...)
		}
		return out, nil
	}
	return nil, &InvalidError{Path: p.String(), Reason: "merge of non-mapping"}
}

// withMerged appends merged members that are not set explicitly. Explicit
// keys win and the first merged source wins among merges.
func withMerged(fields, merged Fields) Fields {
	if len(merged) == 0 {
		return fields
	}
	seen := make(map[string]bool, len(fields)+len(merged))
	for _, f := range fields {
		seen[f.Name] = true
	}
	for _, f := range merged {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		fields = append(fields, f)
	}
	return fields
}

func scalarYAML(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			var u uint64
			if uerr := n.Decode(&u); uerr != nil {
				return nil, err
			}
			return u, nil
		}
		return i, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, err
		}
		return t, nil
	}
	return n.Value, nil
}
