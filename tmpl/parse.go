package tmpl

import (
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/report/model"
)

// Template is a parsed template. It is immutable and safe for concurrent
// execution.
type Template struct {
	name  string
	nodes []node
}

// Name returns the name the template was parsed under.
func (t *Template) Name() string { return t.name }

type node interface {
	position() Pos
}

type textNode struct {
	text string
}

func (textNode) position() Pos { return Pos{} }

// operand is a literal or a reference into the data model.
type operand struct {
	raw  string
	lit  *model.Value
	path model.Path
}

type pipe struct {
	name string
	args []model.Value
}

type outputNode struct {
	pos      Pos
	value    operand
	pipes    []pipe
	raw      bool
	tolerant bool // a default pipe handles undefined references
}

func (n *outputNode) position() Pos { return n.pos }

type condition struct {
	negate  bool
	defined bool
	left    operand
	op      string
	right   operand
}

type branch struct {
	pos  Pos
	cond condition
	body []node
}

type ifNode struct {
	pos      Pos
	branches []branch
	elseBody []node
}

func (n *ifNode) position() Pos { return n.pos }

type forNode struct {
	pos      Pos
	indexVar string
	itemVar  string
	source   operand
	body     []node
	elseBody []node
}

func (n *forNode) position() Pos { return n.pos }

type includeNode struct {
	pos  Pos
	name string
}

func (n *includeNode) position() Pos { return n.pos }

// Parse parses template source. The source must be valid UTF-8 text.
func Parse(name string, src []byte) (*Template, error) {
	if pos, err := ValidateSource(src); err != nil {
		return nil, &SyntaxError{Template: name, Pos: pos, Msg: err.Error(), Err: err}
	}
	toks, err := lex(name, string(src))
	if err != nil {
		return nil, err
	}
	p := &parser{name: name, toks: toks}
	nodes, stop, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if stop != nil {
		return nil, p.errorf(stop.pos, "unexpected %s", stop.typ)
	}
	return &Template{name: name, nodes: nodes}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(name, src string) *Template {
	t, err := Parse(name, []byte(src))
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	name string
	toks []token
	i    int
}

func (p *parser) errorf(pos Pos, format string, args ...any) error {
	return &SyntaxError{Template: p.name, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// parseBody parses nodes until a block-structural token ({{elsif}},
// {{else}}, {{end}}) or the end of input. The structural token, if any, is
// consumed and returned.
func (p *parser) parseBody() ([]node, *token, error) {
	var nodes []node
	for p.i < len(p.toks) {
		tok := p.toks[p.i]
		p.i++
		switch tok.typ {
		case tokText:
			nodes = append(nodes, textNode{text: tok.val})
		case tokOutput:
			n, err := p.parseOutput(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		case tokIf, tokUnless:
			n, err := p.parseIf(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		case tokFor:
			n, err := p.parseFor(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		case tokInclude:
			n, err := p.parseInclude(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		case tokElsif, tokElse, tokEnd:
			t := tok
			return nodes, &t, nil
		}
	}
	return nodes, nil, nil
}

func (p *parser) parseIf(open token) (*ifNode, error) {
	keyword := "if"
	if open.typ == tokUnless {
		keyword = "unless"
	}
	cond, err := p.parseCondition(open.pos, open.val)
	if err != nil {
		return nil, err
	}
	if open.typ == tokUnless {
		cond.negate = !cond.negate
	}
	n := &ifNode{pos: open.pos}
	cur := branch{pos: open.pos, cond: cond}
	for {
		body, stop, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		if stop == nil {
			return nil, p.errorf(open.pos, "unclosed {{%s}}", keyword)
		}
		switch stop.typ {
		case tokEnd:
			if stop.val != "" {
				return nil, p.errorf(stop.pos, "unexpected arguments to {{end}}")
			}
			cur.body = body
			n.branches = append(n.branches, cur)
			return n, nil
		case tokElsif:
			if open.typ == tokUnless {
				return nil, p.errorf(stop.pos, "{{elsif}} is not allowed in {{unless}}")
			}
			cur.body = body
			n.branches = append(n.branches, cur)
			c, err := p.parseCondition(stop.pos, stop.val)
			if err != nil {
				return nil, err
			}
			cur = branch{pos: stop.pos, cond: c}
		case tokElse:
			if stop.val != "" {
				return nil, p.errorf(stop.pos, "unexpected arguments to {{else}}")
			}
			cur.body = body
			n.branches = append(n.branches, cur)
			elseBody, end, err := p.parseBody()
			if err != nil {
				return nil, err
			}
			if end == nil {
				return nil, p.errorf(open.pos, "unclosed {{%s}}", keyword)
			}
			if end.typ != tokEnd {
				return nil, p.errorf(end.pos, "unexpected %s after {{else}}", end.typ)
			}
			n.elseBody = elseBody
			return n, nil
		}
	}
}

func (p *parser) parseFor(open token) (*forNode, error) {
	args, err := splitArgs(open.val)
	if err != nil {
		return nil, p.errorf(open.pos, "for: %v", err)
	}
	n := &forNode{pos: open.pos}
	switch {
	case len(args) == 3 && args[1] == "in":
		n.itemVar = args[0]
		n.source, err = p.parseOperand(open.pos, args[2])
	case len(args) == 5 && args[1] == "," && args[3] == "in":
		n.indexVar = args[0]
		n.itemVar = args[2]
		n.source, err = p.parseOperand(open.pos, args[4])
	default:
		return nil, p.errorf(open.pos, "for: expected \"item in path\" or \"index, item in path\", got %q", open.val)
	}
	if err != nil {
		return nil, err
	}
	if n.source.lit != nil {
		return nil, p.errorf(open.pos, "for: cannot iterate over literal %s", n.source.raw)
	}
	for _, v := range []string{n.indexVar, n.itemVar} {
		if v != "" && !isIdent(v) {
			return nil, p.errorf(open.pos, "for: bad variable name %q", v)
		}
	}
	if n.indexVar != "" && n.indexVar == n.itemVar {
		return nil, p.errorf(open.pos, "for: index and item share the name %q", n.itemVar)
	}
	body, stop, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if stop == nil {
		return nil, p.errorf(open.pos, "unclosed {{for}}")
	}
	n.body = body
	switch stop.typ {
	case tokEnd:
		return n, nil
	case tokElse:
		elseBody, end, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		if end == nil {
			return nil, p.errorf(open.pos, "unclosed {{for}}")
		}
		if end.typ != tokEnd {
			return nil, p.errorf(end.pos, "unexpected %s after {{else}}", end.typ)
		}
		n.elseBody = elseBody
		return n, nil
	}
	return nil, p.errorf(stop.pos, "unexpected %s in {{for}}", stop.typ)
}

func (p *parser) parseInclude(tok token) (*includeNode, error) {
	args, err := splitArgs(tok.val)
	if err != nil || len(args) != 1 || !strings.HasPrefix(args[0], `"`) {
		return nil, p.errorf(tok.pos, "include: expected a quoted template name")
	}
	name, err := strconv.Unquote(args[0])
	if err != nil || strings.TrimSpace(name) == "" {
		return nil, p.errorf(tok.pos, "include: bad template name %s", args[0])
	}
	return &includeNode{pos: tok.pos, name: name}, nil
}

func (p *parser) parseOutput(tok token) (*outputNode, error) {
	args, err := splitArgs(tok.val)
	if err != nil {
		return nil, p.errorf(tok.pos, "%v", err)
	}
	segments := splitPipes(args)
	if len(segments[0]) != 1 {
		return nil, p.errorf(tok.pos, "expected a single value, got %q", tok.val)
	}
	val, err := p.parseOperand(tok.pos, segments[0][0])
	if err != nil {
		return nil, err
	}
	n := &outputNode{pos: tok.pos, value: val}
	for _, seg := range segments[1:] {
		if len(seg) == 0 {
			return nil, p.errorf(tok.pos, "empty pipe")
		}
		pp, err := p.parsePipe(tok.pos, seg)
		if err != nil {
			return nil, err
		}
		switch pp.name {
		case "raw":
			n.raw = true
			continue
		case "default":
			n.tolerant = true
		}
		n.pipes = append(n.pipes, pp)
	}
	return n, nil
}

func splitPipes(args []string) [][]string {
	segs := [][]string{nil}
	for _, a := range args {
		if a == "|" {
			segs = append(segs, nil)
			continue
		}
		segs[len(segs)-1] = append(segs[len(segs)-1], a)
	}
	return segs
}

func (p *parser) parsePipe(pos Pos, seg []string) (pipe, error) {
	name := seg[0]
	spec, ok := pipes[name]
	if !ok {
		return pipe{}, p.errorf(pos, "unknown pipe %q", name)
	}
	if len(seg)-1 != spec.args {
		return pipe{}, p.errorf(pos, "pipe %q takes %d argument(s), got %d", name, spec.args, len(seg)-1)
	}
	pp := pipe{name: name}
	for _, a := range seg[1:] {
		op, err := p.parseOperand(pos, a)
		if err != nil {
			return pipe{}, err
		}
		if op.lit == nil {
			return pipe{}, p.errorf(pos, "pipe %q: argument %s must be a literal", name, a)
		}
		pp.args = append(pp.args, *op.lit)
	}
	if spec.check != nil {
		if err := spec.check(pp.args); err != nil {
			return pipe{}, p.errorf(pos, "pipe %q: %v", name, err)
		}
	}
	return pp, nil
}

func (p *parser) parseCondition(pos Pos, s string) (condition, error) {
	args, err := splitArgs(s)
	if err != nil {
		return condition{}, p.errorf(pos, "%v", err)
	}
	var c condition
	if len(args) > 0 && args[0] == "not" {
		c.negate = true
		args = args[1:]
	}
	if len(args) > 0 && args[0] == "defined" {
		c.defined = true
		args = args[1:]
		if len(args) != 1 {
			return condition{}, p.errorf(pos, "defined: expected one reference")
		}
	}
	switch len(args) {
	case 1:
		c.left, err = p.parseOperand(pos, args[0])
	case 3:
		if c.defined || (args[1] != "==" && args[1] != "!=") {
			return condition{}, p.errorf(pos, "bad condition %q", s)
		}
		c.op = args[1]
		c.left, err = p.parseOperand(pos, args[0])
		if err == nil {
			c.right, err = p.parseOperand(pos, args[2])
		}
	default:
		return condition{}, p.errorf(pos, "bad condition %q", s)
	}
	if err != nil {
		return condition{}, err
	}
	if c.defined && c.left.lit != nil {
		return condition{}, p.errorf(pos, "defined: %s is not a reference", c.left.raw)
	}
	return c, nil
}

func (p *parser) parseOperand(pos Pos, s string) (operand, error) {
	op := operand{raw: s}
	switch {
	case strings.HasPrefix(s, `"`):
		str, err := strconv.Unquote(s)
		if err != nil {
			return operand{}, p.errorf(pos, "bad string literal %s", s)
		}
		v := model.String(str)
		op.lit = &v
	case s == "true" || s == "false":
		v := model.Bool(s == "true")
		op.lit = &v
	case s != "" && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9')):
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			v := model.Int(i)
			op.lit = &v
			break
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return operand{}, p.errorf(pos, "bad number %q", s)
		}
		v := model.Number(f)
		op.lit = &v
	default:
		path, err := model.ParsePath(s)
		if err != nil || path[0].IsIndex {
			return operand{}, p.errorf(pos, "bad reference %q", s)
		}
		op.path = path
	}
	return op, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
