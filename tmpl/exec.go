package tmpl

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/language"

	"pkt.systems/report/model"
)

// DefaultMaxIncludeDepth bounds include nesting.
const DefaultMaxIncludeDepth = 32

// Policy selects how references to unbound names are handled.
type Policy uint8

const (
	// PolicyFail reports an UndefinedError. It is the zero value.
	PolicyFail Policy = iota
	// PolicyDefault substitutes ExecOptions.Default.
	PolicyDefault
)

func (p Policy) String() string {
	if p == PolicyDefault {
		return "default"
	}
	return "fail"
}

// ParsePolicy parses "fail" or "default".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return PolicyFail, nil
	case "default":
		return PolicyDefault, nil
	}
	return PolicyFail, fmt.Errorf("tmpl: unknown undefined policy %q", s)
}

// IncludeFunc resolves an included template by name.
type IncludeFunc func(name string) (*Template, error)

// ExecOptions configures execution.
type ExecOptions struct {
	Policy   Policy
	Default  string
	Includes IncludeFunc
	// MaxIncludeDepth defaults to DefaultMaxIncludeDepth.
	MaxIncludeDepth int
	// Locale drives the title pipe.
	Locale language.Tag
}

type state struct {
	tmpl   *Template
	opts   ExecOptions
	root   model.Value
	scopes []map[string]model.Value
	stack  []string
	w      io.Writer
}

// Execute expands the template against data and writes the markup to w.
// Substituted values are escaped for markup unless piped through raw.
func (t *Template) Execute(w io.Writer, data model.Value, opts ExecOptions) error {
	if opts.MaxIncludeDepth <= 0 {
		opts.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	s := &state{tmpl: t, opts: opts, root: data, w: w, stack: []string{t.name}}
	return s.walk(t.nodes)
}

// ExecuteString is Execute into a string.
func (t *Template) ExecuteString(data model.Value, opts ExecOptions) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data, opts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (s *state) write(str string) error {
	_, err := io.WriteString(s.w, str)
	return err
}

func (s *state) walk(nodes []node) error {
	for _, n := range nodes {
		var err error
		switch n := n.(type) {
		case textNode:
			err = s.write(n.text)
		case *outputNode:
			err = s.output(n)
		case *ifNode:
			err = s.cond(n)
		case *forNode:
			err = s.loop(n)
		case *includeNode:
			err = s.include(n)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *state) execErr(pos Pos, err error, format string, args ...any) error {
	return &ExecError{Template: s.tmpl.name, Pos: pos, Msg: fmt.Sprintf(format, args...), Err: err}
}

// lookup resolves a reference against loop scopes, innermost first, then
// the root model.
func (s *state) lookup(p model.Path) (model.Value, bool) {
	head := p[0].Key
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][head]; ok {
			return v.Lookup(p[1:])
		}
	}
	return s.root.Lookup(p)
}

// eval resolves an operand. Unbound references follow the policy unless
// tolerant is set, in which case they evaluate to null.
func (s *state) eval(pos Pos, op operand, tolerant bool) (model.Value, error) {
	if op.lit != nil {
		return *op.lit, nil
	}
	if v, ok := s.lookup(op.path); ok {
		return v, nil
	}
	if tolerant {
		return model.Null(), nil
	}
	if s.opts.Policy == PolicyDefault {
		return model.String(s.opts.Default), nil
	}
	return model.Value{}, &UndefinedError{Template: s.tmpl.name, Pos: pos, Name: op.raw}
}

func (s *state) output(n *outputNode) error {
	v, err := s.eval(n.pos, n.value, n.tolerant)
	if err != nil {
		return err
	}
	for _, p := range n.pipes {
		v, err = pipes[p.name].apply(s, v, p.args)
		if err != nil {
			return s.execErr(n.pos, err, "pipe %s", p.name)
		}
	}
	text, ok := v.Text()
	if !ok {
		return s.execErr(n.pos, nil, "cannot print %s %s", v.Kind(), n.value.raw)
	}
	if !n.raw {
		text = html.EscapeString(text)
	}
	return s.write(text)
}

func (s *state) test(pos Pos, c condition) (bool, error) {
	var result bool
	switch {
	case c.defined:
		_, result = s.lookup(c.left.path)
	case c.op == "":
		v, err := s.eval(pos, c.left, false)
		if err != nil {
			return false, err
		}
		result = v.Truthy()
	default:
		l, err := s.eval(pos, c.left, false)
		if err != nil {
			return false, err
		}
		r, err := s.eval(pos, c.right, false)
		if err != nil {
			return false, err
		}
		result = equal(l, r)
		if c.op == "!=" {
			result = !result
		}
	}
	if c.negate {
		result = !result
	}
	return result, nil
}

func equal(a, b model.Value) bool {
	af, aok := a.Float()
	bf, bok := b.Float()
	if aok && bok {
		return af == bf
	}
	at, aText := a.Text()
	bt, bText := b.Text()
	if aText && bText {
		return at == bt
	}
	return a.Equal(b)
}

func (s *state) cond(n *ifNode) error {
	for _, b := range n.branches {
		ok, err := s.test(b.pos, b.cond)
		if err != nil {
			return err
		}
		if ok {
			return s.walk(b.body)
		}
	}
	return s.walk(n.elseBody)
}

func (s *state) loop(n *forNode) error {
	src, ok := s.lookup(n.source.path)
	if !ok && s.opts.Policy == PolicyFail {
		return &UndefinedError{Template: s.tmpl.name, Pos: n.pos, Name: n.source.raw}
	}
	type entry struct {
		index model.Value
		item  model.Value
	}
	var entries []entry
	switch src.Kind() {
	case model.KindList:
		for i, it := range src.Items() {
			entries = append(entries, entry{index: model.Int(int64(i)), item: it})
		}
	case model.KindMap:
		for _, k := range src.Keys() {
			v, _ := src.Get(k)
			entries = append(entries, entry{index: model.String(k), item: v})
		}
	case model.KindNull:
	default:
		return s.execErr(n.pos, nil, "cannot iterate over %s %s", src.Kind(), n.source.raw)
	}
	if len(entries) == 0 {
		return s.walk(n.elseBody)
	}
	for i, e := range entries {
		scope := map[string]model.Value{
			n.itemVar: e.item,
			"loop": model.Map(
				model.Entry{Key: "index", Value: model.Int(int64(i))},
				model.Entry{Key: "number", Value: model.Int(int64(i + 1))},
				model.Entry{Key: "first", Value: model.Bool(i == 0)},
				model.Entry{Key: "last", Value: model.Bool(i == len(entries)-1)},
				model.Entry{Key: "length", Value: model.Int(int64(len(entries)))},
			),
		}
		if n.indexVar != "" {
			scope[n.indexVar] = e.index
		}
		s.scopes = append(s.scopes, scope)
		err := s.walk(n.body)
		s.scopes = s.scopes[:len(s.scopes)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *state) include(n *includeNode) error {
	if s.opts.Includes == nil {
		return s.execErr(n.pos, nil, "include %q: no include resolver configured", n.name)
	}
	for _, active := range s.stack {
		if active == n.name {
			return s.execErr(n.pos, nil, "include cycle %s -> %s", strings.Join(s.stack, " -> "), n.name)
		}
	}
	if len(s.stack) > s.opts.MaxIncludeDepth {
		return s.execErr(n.pos, nil, "include depth exceeds %d", s.opts.MaxIncludeDepth)
	}
	t, err := s.opts.Includes(n.name)
	if err != nil {
		return s.execErr(n.pos, err, "include %q", n.name)
	}
	child := &state{
		tmpl:   t,
		opts:   s.opts,
		root:   s.root,
		scopes: s.scopes,
		stack:  append(append([]string(nil), s.stack...), n.name),
		w:      s.w,
	}
	return child.walk(t.nodes)
}
