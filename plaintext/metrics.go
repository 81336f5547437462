package plaintext

import (
	"github.com/mattn/go-runewidth"

	"pkt.systems/report/layout"
)

// CellAdvance is the width of one character cell as a fraction of the font
// size.
const CellAdvance = 0.6

// Metrics measures text in fixed character cells. East Asian wide runes
// take two cells.
type Metrics struct {
	// Cell is the cell width in points. Zero derives it from each font's
	// size, which breaks the grid when sizes vary; use NewMetrics.
	Cell float64
}

var _ layout.Metrics = Metrics{}

// NewMetrics returns metrics whose cells match a document with the given
// base font size.
func NewMetrics(fontSize float64) Metrics {
	return Metrics{Cell: CellAdvance * fontSize}
}

func (Metrics) LoadFont(string, string, []byte) error { return nil }

func (m Metrics) Width(f layout.Font, s string) float64 {
	cell := m.Cell
	if cell <= 0 {
		cell = CellAdvance * f.Size
	}
	return float64(runewidth.StringWidth(s)) * cell
}
