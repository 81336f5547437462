package layout

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

type style struct {
	font  Font
	color Color
	align string
}

func (s *state) baseStyle() style {
	return style{
		font:  Font{Family: s.defaultFamily, Size: s.cfg.FontSize},
		color: s.palette.Text,
		align: "left",
	}
}

func (s *state) lineHeight(size float64) float64 {
	return size * s.cfg.LineHeight
}

// derive applies an element's own styling and attributes to the inherited
// style.
func (s *state) derive(n *node, st style) (style, error) {
	switch n.tag {
	case "b", "strong", "th":
		st.font.Bold = true
	case "i", "em":
		st.font.Italic = true
	case "h1", "h2", "h3":
		lvl := int(n.tag[1] - '1')
		st.font.Bold = true
		st.font.Size = s.cfg.FontSize * s.cfg.HeadingScale[lvl]
		st.color = s.palette.Heading[lvl]
	}
	if v, ok := n.attr("class"); ok {
		for _, c := range strings.Fields(v) {
			switch c {
			case "muted":
				st.color = s.palette.Muted
			case "bold":
				st.font.Bold = true
			case "italic":
				st.font.Italic = true
			case "left", "center", "right":
				st.align = c
			}
		}
	}
	if v, ok := n.attr("font"); ok {
		fam, err := s.family(v, n.pos)
		if err != nil {
			return st, err
		}
		st.font.Family = fam
	}
	if v, ok := n.attr("size"); ok {
		size, err := ParseLength(v)
		if err != nil || size <= 0 {
			return st, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("bad size %q on <%s>", v, n.tag)}
		}
		st.font.Size = size
	}
	if v, ok := n.attr("color"); ok {
		c, err := ParseColor(v)
		if err != nil {
			return st, &MarkupError{Pos: n.pos, Msg: err.Error()}
		}
		st.color = c
	}
	if v, ok := n.attr("align"); ok {
		switch v {
		case "left", "center", "right":
			st.align = v
		default:
			return st, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("bad align %q on <%s>", v, n.tag)}
		}
	}
	return st, nil
}

// piece is a word, a collapsed space or a forced break.
type piece struct {
	text  string
	st    style
	space bool
	brk   bool
}

// inline collects the pieces of inline content, collapsing whitespace.
func (s *state) inline(nodes []*node, st style, out []piece) ([]piece, error) {
	for _, n := range nodes {
		switch {
		case n.tag == "":
			out = appendText(out, n.text, st)
		case n.tag == "br":
			out = append(out, piece{st: st, brk: true})
		default:
			child, err := s.derive(n, st)
			if err != nil {
				return nil, err
			}
			if out, err = s.inline(n.kids, child, out); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func appendText(out []piece, text string, st style) []piece {
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		if unicode.IsSpace(r) {
			text = text[size:]
			if len(out) > 0 && out[len(out)-1].space {
				continue
			}
			out = append(out, piece{text: " ", st: st, space: true})
			continue
		}
		end := strings.IndexFunc(text, unicode.IsSpace)
		if end < 0 {
			end = len(text)
		}
		word := text[:end]
		text = text[end:]
		if n := len(out); n > 0 && !out[n-1].space && !out[n-1].brk && out[n-1].st == st {
			out[n-1].text += word
			continue
		}
		out = append(out, piece{text: word, st: st})
	}
	return out
}

type segment struct {
	text  string
	st    style
	x     float64
	width float64
}

type line struct {
	segs   []segment
	width  float64
	height float64
	size   float64
}

// wrap breaks pieces into lines no wider than width. Words wider than a
// line are split between runes.
func (s *state) wrap(pieces []piece, width float64, base style) []line {
	var lines []line
	cur := line{}
	pendingSpace := false
	var spaceSt style

	flush := func() {
		lines = append(lines, cur)
		cur = line{}
		pendingSpace = false
	}
	place := func(text string, st style, w float64) {
		if n := len(cur.segs); n > 0 && cur.segs[n-1].st == st {
			cur.segs[n-1].text += text
			cur.segs[n-1].width += w
		} else {
			cur.segs = append(cur.segs, segment{text: text, st: st, x: cur.width, width: w})
		}
		cur.width += w
		cur.size = math.Max(cur.size, st.font.Size)
	}

	for _, p := range pieces {
		switch {
		case p.brk:
			if len(cur.segs) == 0 {
				cur.size = p.st.font.Size
			}
			flush()
			continue
		case p.space:
			if len(cur.segs) > 0 {
				pendingSpace = true
				spaceSt = p.st
			}
			continue
		}
		w := s.metrics.Width(p.st.font, p.text)
		spaceW := 0.0
		if pendingSpace {
			spaceW = s.metrics.Width(spaceSt.font, " ")
		}
		if len(cur.segs) > 0 && cur.width+spaceW+w > width {
			flush()
			spaceW = 0
		}
		if pendingSpace && len(cur.segs) > 0 {
			place(" ", spaceSt, spaceW)
			pendingSpace = false
		}
		if w <= width-cur.width {
			place(p.text, p.st, w)
			continue
		}
		rest := p.text
		for rest != "" {
			head := s.fit(p.st.font, rest, width-cur.width)
			if head == "" {
				if len(cur.segs) > 0 {
					flush()
					continue
				}
				_, size := utf8.DecodeRuneInString(rest)
				head = rest[:size]
			}
			place(head, p.st, s.metrics.Width(p.st.font, head))
			rest = rest[len(head):]
			if rest != "" {
				flush()
			}
		}
	}
	if len(cur.segs) > 0 {
		lines = append(lines, cur)
	}
	for i := range lines {
		if lines[i].size == 0 {
			lines[i].size = base.font.Size
		}
		lines[i].height = s.lineHeight(lines[i].size)
	}
	return lines
}

// fit returns the longest prefix of text no wider than width.
func (s *state) fit(f Font, text string, width float64) string {
	end := 0
	for i := range text {
		if i == 0 {
			continue
		}
		if s.metrics.Width(f, text[:i]) > width {
			return text[:end]
		}
		end = i
	}
	if s.metrics.Width(f, text) <= width {
		return text
	}
	return text[:end]
}

// lineUnit positions a line's segments within [x, x+width].
func (s *state) lineUnit(l line, x, width float64, align string) unit {
	shift := 0.0
	switch align {
	case "center":
		shift = (width - l.width) / 2
	case "right":
		shift = width - l.width
	}
	if shift < 0 {
		shift = 0
	}
	baseline := (l.height-l.size)/2 + 0.8*l.size
	u := unit{h: l.height, what: "line"}
	for _, seg := range l.segs {
		u.items = append(u.items, &Text{
			Box:      Box{X: x + shift + seg.x, Y: 0, W: seg.width, H: l.height},
			Baseline: baseline,
			Text:     seg.text,
			Font:     seg.st.font,
			Color:    seg.st.color,
		})
	}
	return u
}
