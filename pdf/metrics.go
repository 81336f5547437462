package pdf

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/encoding/charmap"

	"pkt.systems/report/layout"
)

// Metrics measures text with the same font tables the PDF renderer uses, so
// lines break where the glyphs actually end. A Metrics is not safe for
// concurrent use; layout creates one per render.
type Metrics struct {
	pdf *fpdf.Fpdf
	st  *styler
	// faces holds the parsed regular face of each TrueType family.
	faces map[string]*sfnt.Font
	buf   sfnt.Buffer
}

var (
	_ layout.Metrics  = (*Metrics)(nil)
	_ layout.Coverage = (*Metrics)(nil)
)

// NewMetrics returns an empty Metrics knowing only the core fonts.
func NewMetrics() *Metrics {
	pdf := newFpdf(layout.Size{Width: 595.28, Height: 841.89})
	return &Metrics{pdf: pdf, st: newStyler(pdf), faces: make(map[string]*sfnt.Font)}
}

// LayoutMetrics adapts NewMetrics for layout.WithMetrics.
func LayoutMetrics() layout.Metrics { return NewMetrics() }

// LoadFont registers TrueType data as family/style.
func (m *Metrics) LoadFont(family, style string, ttf []byte) (err error) {
	defer recoverFpdf("pdf font "+family, &err)
	m.pdf.AddUTF8FontFromBytes(family, style, ttf)
	if err := m.pdf.Error(); err != nil {
		m.pdf.ClearError()
		return fmt.Errorf("pdf font %s: %w", family, err)
	}
	// Select the face once so broken tables fail here and not mid-layout.
	m.pdf.SetFont(family, style, 12)
	m.st.set.font = false
	if err := m.pdf.Error(); err != nil {
		m.pdf.ClearError()
		return fmt.Errorf("pdf font %s: %w", family, err)
	}
	// Families sfnt cannot parse report no missing glyphs.
	if style == "" {
		if face, err := sfnt.Parse(ttf); err == nil {
			m.faces[family] = face
		}
	}
	return nil
}

// Width returns the advance width of s in points. Unknown fonts fall back
// to half an em per rune.
func (m *Metrics) Width(f layout.Font, s string) float64 {
	if s == "" {
		return 0
	}
	m.st.font(f)
	if err := m.pdf.Error(); err != nil {
		m.pdf.ClearError()
		m.st.set.font = false
		return float64(utf8.RuneCountInString(s)) * 0.5 * f.Size
	}
	return m.pdf.GetStringWidth(textFor(f.Family, s))
}

// Missing returns the runes of s family cannot draw. The core text fonts
// hold Windows-1252; a TrueType family holds what its regular face has
// glyphs for. Symbol, ZapfDingbats and unknown families report nothing.
func (m *Metrics) Missing(family, s string) []rune {
	var out []rune
	switch {
	case family == "Symbol" || family == "ZapfDingbats":
		return nil
	case layout.IsCoreFont(family):
		for _, r := range s {
			if r < utf8.RuneSelf || skipCoverage(r) || containsRune(out, r) {
				continue
			}
			if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
				out = append(out, r)
			}
		}
	default:
		face := m.faces[family]
		if face == nil {
			return nil
		}
		for _, r := range s {
			if skipCoverage(r) || containsRune(out, r) {
				continue
			}
			if idx, err := face.GlyphIndex(&m.buf, r); err != nil || idx == 0 {
				out = append(out, r)
			}
		}
	}
	return out
}

func skipCoverage(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}

func containsRune(rs []rune, r rune) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}
