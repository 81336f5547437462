package layout

import "unicode/utf8"

// Metrics measures text. Layout asks it for every width it needs, so the
// serializer's metrics decide where lines break.
type Metrics interface {
	// LoadFont makes TrueType data available as family/style.
	LoadFont(family, style string, ttf []byte) error
	// Width returns the advance width of s in points.
	Width(f Font, s string) float64
}

// Coverage is implemented by metrics whose fonts cannot draw every rune.
// Layout uses it to move words off core fonts and to warn about text that
// would not show.
type Coverage interface {
	// Missing returns the distinct runes of s that family has no glyph for.
	// Space and control runes never count as missing.
	Missing(family, s string) []rune
}

// FixedMetrics gives every rune the same advance of Advance*size points.
// It is what layout uses when no Metrics is configured.
type FixedMetrics struct {
	Advance float64
}

func (m FixedMetrics) LoadFont(string, string, []byte) error { return nil }

func (m FixedMetrics) Width(f Font, s string) float64 {
	adv := m.Advance
	if adv <= 0 {
		adv = 0.5
	}
	return float64(utf8.RuneCountInString(s)) * adv * f.Size
}

func isCoreFont(name string) bool {
	switch name {
	case "Courier", "Helvetica", "Times", "Symbol", "ZapfDingbats":
		return true
	default:
		return false
	}
}

// IsCoreFont reports whether name is one of the standard PDF fonts, which
// need no font resource.
func IsCoreFont(name string) bool { return isCoreFont(name) }
