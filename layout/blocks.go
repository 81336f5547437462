package layout

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pkt.systems/report/resource"
)

// unit is an atomic piece of content: it is placed whole on one page.
// Item coordinates are absolute in x and relative to the unit top in y.
type unit struct {
	h     float64
	items []Item
	what  string
	pos   Pos
	// keep holds the unit on the same page as the next one.
	keep bool
	// gap is block spacing, dropped at the top of a page.
	gap bool
	// spacer ends the page when it does not fit.
	spacer    bool
	pageBreak bool
	isHead    bool
	// head is repeated above this row when it starts a page.
	head *tableHead
}

type tableHead struct {
	units []unit
	h     float64
}

// stack places units one below the other, returning the items and the
// total height.
func stack(units []unit) ([]Item, float64) {
	var items []Item
	y := 0.0
	for _, u := range units {
		if u.pageBreak {
			continue
		}
		for _, it := range u.items {
			items = append(items, it.shifted(0, y))
		}
		y += u.h
	}
	return items, y
}

func (s *state) gapUnit(st style) unit {
	return unit{h: st.font.Size * 0.5, gap: true, what: "gap"}
}

// container lays out a sequence of block and inline nodes. Runs of inline
// content form anonymous paragraphs; blocks are separated by a gap.
func (s *state) container(nodes []*node, st style, x, width float64) ([]unit, error) {
	var out []unit
	var group []*node
	add := func(units []unit) {
		if len(units) == 0 {
			return
		}
		if n := len(out); n > 0 && !out[n-1].pageBreak && !units[0].pageBreak {
			out = append(out, s.gapUnit(st))
		}
		out = append(out, units...)
	}
	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		pos := group[0].pos
		pieces, err := s.inline(group, st, nil)
		group = group[:0]
		if err != nil {
			return err
		}
		if err := s.cover(pieces, pos); err != nil {
			return err
		}
		var units []unit
		for _, l := range s.wrap(pieces, width, st) {
			units = append(units, s.lineUnit(l, x, width, st.align))
		}
		add(units)
		return nil
	}
	for _, n := range nodes {
		if n.tag == "" || n.tag == "br" || elements[n.tag] == elemInline {
			group = append(group, n)
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		units, err := s.block(n, st, x, width)
		if err != nil {
			return nil, err
		}
		add(units)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *state) block(n *node, st style, x, width float64) ([]unit, error) {
	st, err := s.derive(n, st)
	if err != nil {
		return nil, err
	}
	switch n.tag {
	case "p", "div", "h1", "h2", "h3":
		units, err := s.container(n.kids, st, x, width)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(n.tag, "h") && len(units) > 0 {
			units[len(units)-1].keep = true
		}
		for i := range units {
			if units[i].pos.Line == 0 {
				units[i].pos = n.pos
			}
		}
		return units, nil
	case "hr":
		h := st.font.Size
		return []unit{{h: h, what: "rule", pos: n.pos, items: []Item{
			&Rule{Box: Box{X: x, Y: h / 2, W: width}, Width: 0.75, Color: s.palette.Rule},
		}}}, nil
	case "spacer":
		h := s.lineHeight(st.font.Size)
		if v, ok := n.attr("height"); ok {
			if h, err = ParseLength(v); err != nil {
				return nil, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("bad spacer height %q", v)}
			}
		}
		return []unit{{h: h, spacer: true, what: "spacer", pos: n.pos}}, nil
	case "pagebreak":
		return []unit{{pageBreak: true, what: "page break", pos: n.pos}}, nil
	case "img":
		u, err := s.image(n, st, x, width)
		if err != nil {
			return nil, err
		}
		return []unit{u}, nil
	case "ul", "ol":
		return s.list(n, st, x, width)
	case "table":
		return s.table(n, st, x, width)
	}
	return nil, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("unexpected <%s>", n.tag)}
}

func (s *state) list(n *node, st style, x, width float64) ([]unit, error) {
	indent := 1.5 * st.font.Size
	if width-indent <= 0 {
		return nil, &MarkupError{Pos: n.pos, Msg: "list nesting leaves no room for content"}
	}
	var out []unit
	num := 0
	for _, li := range n.kids {
		if li.tag != "li" {
			continue
		}
		num++
		lst, err := s.derive(li, st)
		if err != nil {
			return nil, err
		}
		units, err := s.container(li.kids, lst, x+indent, width-indent)
		if err != nil {
			return nil, err
		}
		if len(units) == 0 {
			units = []unit{{h: s.lineHeight(lst.font.Size)}}
		}
		marker := "•"
		if n.tag == "ol" {
			marker = strconv.Itoa(num) + "."
		}
		first := 0
		for first < len(units)-1 && units[first].pageBreak {
			first++
		}
		u := &units[first]
		baseline := (u.h-lst.font.Size)/2 + 0.8*lst.font.Size
		for _, it := range u.items {
			if t, ok := it.(*Text); ok {
				baseline = t.Baseline
				break
			}
		}
		mw := s.metrics.Width(lst.font, marker)
		mx := math.Max(x, x+indent-mw-0.4*lst.font.Size)
		u.items = append(u.items, &Text{
			Box:      Box{X: mx, W: mw, H: u.h},
			Baseline: baseline,
			Text:     marker,
			Font:     lst.font,
			Color:    lst.color,
		})
		for i := range units {
			units[i].what = "list item " + strconv.Itoa(num)
			units[i].pos = li.pos
		}
		out = append(out, units...)
	}
	return out, nil
}

type tableRow struct {
	tr   *node
	head bool
}

func (s *state) table(n *node, st style, x, width float64) ([]unit, error) {
	var rows []tableRow
	for _, k := range n.kids {
		switch k.tag {
		case "thead", "tbody":
			for _, tr := range k.kids {
				if tr.tag == "tr" {
					rows = append(rows, tableRow{tr: tr, head: k.tag == "thead"})
				}
			}
		case "tr":
			rows = append(rows, tableRow{tr: k})
		}
	}
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(cells(r.tr)))
	}
	if cols == 0 {
		return nil, nil
	}
	colW, err := columnWidths(n, cols, width)
	if err != nil {
		return nil, err
	}
	pad := 0.2 * st.font.Size
	var head *tableHead
	for _, r := range rows {
		if r.head {
			head = &tableHead{}
			break
		}
	}

	var out []unit
	for idx, r := range rows {
		rst, err := s.derive(r.tr, st)
		if err != nil {
			return nil, err
		}
		if r.head {
			rst.font.Bold = true
			rst.color = s.palette.TableHeaderText
		}
		var content []Item
		rowH := s.lineHeight(rst.font.Size)
		cx := x
		for i, c := range cells(r.tr) {
			cst, err := s.derive(c, rst)
			if err != nil {
				return nil, err
			}
			inner := colW[i] - 2*pad
			if inner <= 0 {
				return nil, &MarkupError{Pos: c.pos, Msg: fmt.Sprintf("column %d is too narrow", i+1)}
			}
			units, err := s.container(c.kids, cst, cx+pad, inner)
			if err != nil {
				return nil, err
			}
			items, h := stack(units)
			for _, it := range items {
				content = append(content, it.shifted(0, pad))
			}
			rowH = math.Max(rowH, h)
			cx += colW[i]
		}
		rowH += 2 * pad

		var items []Item
		if r.head {
			items = append(items, &Fill{Box: Box{X: x, W: width, H: rowH}, Color: s.palette.TableHeaderFill})
		}
		items = append(items, content...)
		rule := func(b Box) { items = append(items, &Rule{Box: b, Width: 0.5, Color: s.palette.Rule}) }
		rule(Box{X: x, W: width})
		rule(Box{X: x, Y: rowH, W: width})
		vx := x
		rule(Box{X: vx, H: rowH})
		for _, w := range colW {
			vx += w
			rule(Box{X: math.Min(vx, x+width), H: rowH})
		}

		u := unit{h: rowH, items: items, what: "table row " + strconv.Itoa(idx+1), pos: r.tr.pos}
		if r.head {
			u.keep, u.isHead = true, true
			head.units = append(head.units, u)
			head.h += rowH
		} else {
			u.head = head
		}
		out = append(out, u)
	}
	return out, nil
}

func cells(tr *node) []*node {
	var out []*node
	for _, c := range tr.kids {
		if c.tag == "td" || c.tag == "th" {
			out = append(out, c)
		}
	}
	return out
}

// columnWidths splits width by the relative weights in the widths
// attribute, or evenly.
func columnWidths(n *node, cols int, width float64) ([]float64, error) {
	weights := make([]float64, cols)
	for i := range weights {
		weights[i] = 1
	}
	if v, ok := n.attr("widths"); ok {
		parts := strings.Split(v, ",")
		if len(parts) != cols {
			return nil, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("widths lists %d columns, table has %d", len(parts), cols)}
		}
		for i, p := range parts {
			w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil || w <= 0 || math.IsInf(w, 0) {
				return nil, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("bad column width %q", p)}
			}
			weights[i] = w
		}
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	out := make([]float64, cols)
	for i, w := range weights {
		out[i] = width * w / total
	}
	return out, nil
}

// pxToPt converts image pixels at 96 dpi to points.
const pxToPt = 0.75

func (s *state) image(n *node, st style, x, width float64) (unit, error) {
	src, _ := n.attr("src")
	src = strings.TrimSpace(src)
	if src == "" {
		return unit{}, &MarkupError{Pos: n.pos, Msg: "<img> needs a src"}
	}
	res, err := s.embedImage(src, n.pos)
	if err != nil {
		return unit{}, err
	}
	w, h := float64(res.Width)*pxToPt, float64(res.Height)*pxToPt
	wa, hasW := n.attr("width")
	ha, hasH := n.attr("height")
	var aw, ah float64
	if hasW {
		if aw, err = ParseLength(wa); err != nil {
			return unit{}, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("bad image width %q", wa)}
		}
	}
	if hasH {
		if ah, err = ParseLength(ha); err != nil {
			return unit{}, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("bad image height %q", ha)}
		}
	}
	switch {
	case hasW && hasH:
		w, h = aw, ah
	case hasW:
		h, w = h*aw/w, aw
	case hasH:
		w, h = w*ah/h, ah
	}
	if w <= 0 || h <= 0 {
		return unit{}, &MarkupError{Pos: n.pos, Msg: fmt.Sprintf("image %q has no area", src)}
	}
	if scale := math.Min(width/w, s.maxHeight/h); scale < 1 {
		w, h = math.Min(w*scale, width), math.Min(h*scale, s.maxHeight)
	}
	shift := 0.0
	switch st.align {
	case "center":
		shift = (width - w) / 2
	case "right":
		shift = width - w
	}
	return unit{
		h:     h,
		what:  "image " + src,
		pos:   n.pos,
		items: []Item{&Image{Box: Box{X: x + shift, W: w, H: h}, Name: src}},
	}, nil
}

func (s *state) embedImage(src string, pos Pos) (*ImageResource, error) {
	if res, ok := s.doc.Images[src]; ok {
		return res, nil
	}
	h, err := s.r.provider.Resolve(s.ctx, src, resource.KindImage)
	if err != nil {
		return nil, s.resourceErr(src, resource.KindImage, pos, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(h.Bytes()))
	if err != nil {
		return nil, &UnresolvedError{Name: src, Kind: resource.KindImage, Pos: pos, Err: fmt.Errorf("decode: %w", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &UnresolvedError{Name: src, Kind: resource.KindImage, Pos: pos, Err: fmt.Errorf("empty image")}
	}
	res := &ImageResource{Name: src, Format: format, Data: h.Bytes(), Width: cfg.Width, Height: cfg.Height}
	s.doc.Images[src] = res
	return res, nil
}
