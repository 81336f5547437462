package pdf

import (
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"pkt.systems/report/layout"
)

// pdfStyle is the graphics state last sent to fpdf.
type pdfStyle struct {
	fontFamily string
	fontStyle  string
	size       float64
	text       [3]int
	draw       [3]int
	fill       [3]int
	lineWidth  float64
}

type styler struct {
	pdf *fpdf.Fpdf
	cur pdfStyle
	set struct{ font, text, draw, fill, line bool }
}

func newStyler(pdf *fpdf.Fpdf) *styler {
	return &styler{pdf: pdf}
}

func (s *styler) font(f layout.Font) {
	style := fontStyle(f)
	if s.set.font && s.cur.fontFamily == f.Family && s.cur.fontStyle == style && s.cur.size == f.Size {
		return
	}
	s.pdf.SetFont(f.Family, style, f.Size)
	s.cur.fontFamily, s.cur.fontStyle, s.cur.size = f.Family, style, f.Size
	s.set.font = true
}

func (s *styler) textColor(c [3]int) {
	if s.set.text && s.cur.text == c {
		return
	}
	s.pdf.SetTextColor(c[0], c[1], c[2])
	s.cur.text = c
	s.set.text = true
}

func (s *styler) drawColor(c [3]int) {
	if s.set.draw && s.cur.draw == c {
		return
	}
	s.pdf.SetDrawColor(c[0], c[1], c[2])
	s.cur.draw = c
	s.set.draw = true
}

func (s *styler) fillColor(c [3]int) {
	if s.set.fill && s.cur.fill == c {
		return
	}
	s.pdf.SetFillColor(c[0], c[1], c[2])
	s.cur.fill = c
	s.set.fill = true
}

func (s *styler) lineWidth(w float64) {
	if s.set.line && s.cur.lineWidth == w {
		return
	}
	s.pdf.SetLineWidth(w)
	s.cur.lineWidth = w
	s.set.line = true
}

// fontStyle drops styles the symbolic core fonts do not have.
func fontStyle(f layout.Font) string {
	switch f.Family {
	case "Symbol", "ZapfDingbats":
		return ""
	}
	return f.Style()
}

// coreText encodes s as Windows-1252 for the standard fonts, replacing what
// the code page cannot hold with '?'.
func coreText(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

// textFor returns s in the encoding fpdf expects for family.
func textFor(family, s string) string {
	if layout.IsCoreFont(family) {
		return coreText(s)
	}
	return s
}
