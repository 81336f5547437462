// Package plaintext writes laid out documents as monospace text, one
// character cell per CellAdvance of the base font size, with pages
// separated by form feeds.
//
// Lay the document out with NewMetrics so text lands on cell boundaries.
// Rules become box drawing characters, images a bracketed placeholder and
// fills are dropped. With ANSI enabled, bold and coloured runs carry SGR
// escapes for terminals.
package plaintext

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"pkt.systems/report/layout"
	"pkt.systems/report/output"
)

// Config holds text rendering settings.
type Config struct {
	// Encoding is utf-8 (default), iso-8859-1 or windows-1252.
	Encoding string
	// ANSI adds SGR escapes for bold and coloured text.
	ANSI bool
}

// RenderRequest contains inputs for text rendering.
type RenderRequest struct {
	Writer   io.Writer
	Document *layout.Document
	Config   Config
}

type ruleSet struct {
	horizontal, vertical, cross rune
	tail                        string
}

var (
	unicodeRules = ruleSet{'─', '│', '┼', "…"}
	asciiRules   = ruleSet{'-', '|', '+', ""}
)

// Render draws every page of the document on a character grid.
func Render(req RenderRequest) error {
	if req.Writer == nil {
		return fmt.Errorf("plaintext render: writer is nil")
	}
	doc := req.Document
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("plaintext render: %w", err)
	}
	enc, err := LookupEncoding(req.Config.Encoding)
	if err != nil {
		return err
	}
	rules := unicodeRules
	if !enc.UTF8() {
		rules = asciiRules
	}
	size, lh := doc.FontSize, doc.LineHeight
	if size <= 0 {
		size = 12
	}
	if lh <= 0 {
		lh = 1.4
	}
	cellW, rowH := CellAdvance*size, size*lh

	var b strings.Builder
	for i, page := range doc.Pages {
		ps := doc.PageSize(page)
		cols := int(math.Floor(ps.Width/cellW + 1e-6))
		rows := int(math.Ceil(ps.Height/rowH - 1e-6))
		if cols < 1 || rows < 1 {
			return fmt.Errorf("plaintext render: page %d: %gx%g holds no %gpt cells", page.Number, ps.Width, ps.Height, cellW)
		}
		g := newGrid(cols, rows, cellW, rowH, rules)
		for _, it := range page.Items {
			g.draw(it)
		}
		if i > 0 {
			b.WriteByte('\f')
		}
		g.writeTo(&b, req.Config.ANSI)
	}
	data := enc.encode(b.String())
	n, err := req.Writer.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("plaintext render: output: %w", err)
	}
	return nil
}

type cellStyle struct {
	bold  bool
	color layout.Color
	set   bool
}

type cell struct {
	r  rune
	st cellStyle
	// cont marks the second cell of a wide rune.
	cont bool
	rule bool
}

type grid struct {
	cols, rows  int
	cellW, rowH float64
	rules       ruleSet
	cells       [][]cell
}

func newGrid(cols, rows int, cellW, rowH float64, rules ruleSet) *grid {
	cells := make([][]cell, rows)
	for i := range cells {
		cells[i] = make([]cell, cols)
	}
	return &grid{cols: cols, rows: rows, cellW: cellW, rowH: rowH, rules: rules, cells: cells}
}

func (g *grid) col(x float64) int {
	return clamp(int(math.Round(x/g.cellW)), 0, g.cols-1)
}

func (g *grid) row(y float64) int {
	return clamp(int(math.Floor(y/g.rowH)), 0, g.rows-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (g *grid) draw(it layout.Item) {
	switch it := it.(type) {
	case *layout.Text:
		st := cellStyle{bold: it.Font.Bold, color: it.Color, set: true}
		g.text(g.row(it.Y+it.H/2), g.col(it.X), it.Text, st)
	case *layout.Image:
		g.text(g.row(it.Y), g.col(it.X), "[image "+it.Name+"]", cellStyle{})
	case *layout.Rule:
		if math.Abs(it.H) <= math.Abs(it.W) {
			g.hline(g.row(it.Y+it.H/2), g.col(it.X), g.col(it.X+it.W))
		} else {
			g.vline(g.col(it.X+it.W/2), g.row(it.Y), g.row(it.Y+it.H))
		}
	}
}

// text writes s from col, clipped at the right edge. Text replaces rules but
// never other text.
func (g *grid) text(row, col int, s string, st cellStyle) {
	room := g.cols - col
	if room <= 0 {
		return
	}
	if runewidth.StringWidth(s) > room {
		s = truncate.StringWithTail(s, uint(room), g.rules.tail)
	}
	line := g.cells[row]
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > g.cols {
			break
		}
		if line[col].r != 0 && !line[col].rule {
			col += w
			continue
		}
		line[col] = cell{r: r, st: st}
		if w == 2 {
			line[col+1] = cell{cont: true, st: st}
		}
		col += w
	}
}

func (g *grid) hline(row, c0, c1 int) {
	if c1 < c0 {
		c0, c1 = c1, c0
	}
	line := g.cells[row]
	for c := c0; c < c1 || c == c0; c++ {
		g.mark(&line[c], g.rules.horizontal, g.rules.vertical)
	}
}

func (g *grid) vline(col, r0, r1 int) {
	if r1 < r0 {
		r0, r1 = r1, r0
	}
	for r := r0; r <= r1; r++ {
		g.mark(&g.cells[r][col], g.rules.vertical, g.rules.horizontal)
	}
}

func (g *grid) mark(c *cell, ch, crossing rune) {
	switch {
	case c.r == 0 && !c.cont:
		*c = cell{r: ch, rule: true}
	case c.rule && c.r == crossing:
		c.r = g.rules.cross
	}
}

// writeTo appends the grid without trailing blanks: spaces at line ends and
// empty rows at the page end are dropped.
func (g *grid) writeTo(b *strings.Builder, ansi bool) {
	last := -1
	for r, line := range g.cells {
		for _, c := range line {
			if c.r != 0 {
				last = r
				break
			}
		}
	}
	for r := 0; r <= last; r++ {
		line := g.cells[r]
		end := len(line)
		for end > 0 && line[end-1].r == 0 {
			end--
		}
		var cur cellStyle
		for _, c := range line[:end] {
			if c.cont {
				continue
			}
			if ansi && c.st != cur {
				b.WriteString(sgr(c.st))
				cur = c.st
			}
			if c.r == 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(c.r)
		}
		if ansi && cur.set {
			b.WriteString("\x1b[0m")
		}
		b.WriteByte('\n')
	}
}

func sgr(st cellStyle) string {
	if !st.set {
		return "\x1b[0m"
	}
	codes := []string{"0"}
	if st.bold {
		codes = append(codes, "1")
	}
	codes = append(codes, "38", "2",
		strconv.Itoa(st.color[0]), strconv.Itoa(st.color[1]), strconv.Itoa(st.color[2]))
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

// Serializer writes documents as plain text.
type Serializer struct {
	Config Config
}

var _ output.Serializer = Serializer{}

func (Serializer) Format() string { return "text" }

func (s Serializer) ContentType() string {
	enc, err := LookupEncoding(s.Config.Encoding)
	if err != nil {
		return "text/plain"
	}
	return "text/plain; charset=" + enc.Name()
}

func (s Serializer) Serialize(w io.Writer, doc *layout.Document) error {
	return Render(RenderRequest{Writer: w, Document: doc, Config: s.Config})
}
