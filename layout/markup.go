package layout

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

type elemKind uint8

const (
	elemRoot elemKind = iota + 1
	elemBlock
	elemInline
	elemVoid
)

var elements = map[string]elemKind{
	"report": elemRoot, "html": elemRoot, "body": elemRoot,
	"header": elemBlock, "footer": elemBlock,
	"h1": elemBlock, "h2": elemBlock, "h3": elemBlock,
	"p": elemBlock, "div": elemBlock,
	"table": elemBlock, "thead": elemBlock, "tbody": elemBlock,
	"tr": elemBlock, "th": elemBlock, "td": elemBlock,
	"ul": elemBlock, "ol": elemBlock, "li": elemBlock,
	"span": elemInline, "b": elemInline, "strong": elemInline, "i": elemInline, "em": elemInline,
	"br": elemVoid, "hr": elemVoid, "img": elemVoid,
	"pagebreak": elemVoid, "spacer": elemVoid, "page": elemVoid,
}

var commonAttrs = []string{"font", "size", "color", "align", "class"}

var extraAttrs = map[string][]string{
	"img":    {"src", "width", "height"},
	"spacer": {"height"},
	"table":  {"widths"},
	"page":   {"orientation", "margin", "margin-top", "margin-right", "margin-bottom", "margin-left"},
}

// allowedParents constrains where structural elements may appear. The
// empty string stands for the top level.
var allowedParents = map[string][]string{
	"thead":  {"table"},
	"tbody":  {"table"},
	"tr":     {"table", "thead", "tbody"},
	"td":     {"tr"},
	"th":     {"tr"},
	"li":     {"ul", "ol"},
	"header": {""},
	"footer": {""},
	"page":   {""},
}

// Elements that hold only other elements.
var structural = map[string]bool{"table": true, "thead": true, "tbody": true, "tr": true, "ul": true, "ol": true}

type node struct {
	tag   string // "" for text
	attrs map[string]string
	kids  []*node
	text  string
	pos   Pos
}

func (n *node) attr(key string) (string, bool) {
	v, ok := n.attrs[key]
	return v, ok
}

type cursor struct {
	line, col int
}

func (c *cursor) advance(raw []byte) {
	for _, r := range string(raw) {
		if r == '\n' {
			c.line++
			c.col = 1
			continue
		}
		c.col++
	}
}

// parseMarkup parses well formed markup into a tree rooted at an implicit
// top-level node. Every element must be closed or self-closed and properly
// nested; void elements may be written as <br> or <br/>.
func parseMarkup(src string) (*node, error) {
	top := &node{tag: "", pos: Pos{Line: 1, Column: 1}}
	stack := []*node{top}
	z := html.NewTokenizer(strings.NewReader(src))
	cur := cursor{line: 1, col: 1}
	for {
		pos := Pos{Line: cur.line, Column: cur.col}
		tt := z.Next()
		raw := z.Raw()
		cur.advance(raw)
		parent := stack[len(stack)-1]
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if len(stack) > 1 {
					open := stack[len(stack)-1]
					return nil, &MarkupError{Pos: open.pos, Msg: fmt.Sprintf("unclosed <%s>", open.tag)}
				}
				return top, nil
			}
			return nil, &MarkupError{Pos: pos, Msg: z.Err().Error()}
		case html.TextToken:
			text := string(z.Text())
			if structural[parent.tag] && strings.TrimSpace(text) != "" {
				return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("text is not allowed directly inside <%s>", parent.tag)}
			}
			parent.kids = append(parent.kids, &node{text: text, pos: pos})
		case html.StartTagToken, html.SelfClosingTagToken:
			n, err := newElement(z, pos, stack)
			if err != nil {
				return nil, err
			}
			parent.kids = append(parent.kids, n)
			if tt == html.StartTagToken && elements[n.tag] != elemVoid {
				stack = append(stack, n)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if len(stack) == 1 || parent.tag != tag {
				if len(stack) == 1 {
					return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("unexpected </%s>", tag)}
				}
				return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("</%s> closes <%s> opened at %s", tag, parent.tag, parent.pos)}
			}
			stack = stack[:len(stack)-1]
		case html.CommentToken, html.DoctypeToken:
		}
	}
}

func newElement(z *html.Tokenizer, pos Pos, stack []*node) (*node, error) {
	name, hasAttr := z.TagName()
	n := &node{tag: string(name), pos: pos}
	kind, ok := elements[n.tag]
	if !ok {
		return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("unknown element <%s>", n.tag)}
	}
	parent := stack[len(stack)-1]
	if structural[parent.tag] && !allowedChild(parent.tag, n.tag) {
		return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("<%s> is not allowed inside <%s>", n.tag, parent.tag)}
	}
	if parents, ok := allowedParents[n.tag]; ok {
		where := effectiveParent(stack)
		if !contains(parents, where) {
			if where == "" {
				where = "the top level"
			} else {
				where = "<" + where + ">"
			}
			return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("<%s> is not allowed in %s", n.tag, where)}
		}
	}
	if kind == elemRoot && effectiveParent(stack) != "" {
		return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("<%s> must be the outermost element", n.tag)}
	}
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		key := string(k)
		if !attrAllowed(n.tag, key) {
			return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("unknown attribute %q on <%s>", key, n.tag)}
		}
		if n.attrs == nil {
			n.attrs = make(map[string]string)
		}
		if _, dup := n.attrs[key]; dup {
			return nil, &MarkupError{Pos: pos, Msg: fmt.Sprintf("duplicate attribute %q on <%s>", key, n.tag)}
		}
		n.attrs[key] = string(v)
	}
	return n, nil
}

// effectiveParent skips root wrappers, which are transparent.
func effectiveParent(stack []*node) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if elements[stack[i].tag] != elemRoot {
			return stack[i].tag
		}
	}
	return ""
}

func allowedChild(parent, child string) bool {
	switch parent {
	case "table":
		return child == "thead" || child == "tbody" || child == "tr"
	case "thead", "tbody":
		return child == "tr"
	case "tr":
		return child == "td" || child == "th"
	case "ul", "ol":
		return child == "li"
	}
	return true
}

func attrAllowed(tag, key string) bool {
	return contains(commonAttrs, key) || contains(extraAttrs[tag], key)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ElementNames lists the markup elements layout understands.
func ElementNames() []string {
	names := make([]string, 0, len(elements))
	for name := range elements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
