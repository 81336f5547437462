package layout

import (
	"sort"
	"strings"
)

// Palette is the set of colours a Theme contributes to a document.
type Palette struct {
	Text            Color
	Heading         [3]Color
	Muted           Color
	Rule            Color
	TableHeaderFill Color
	TableHeaderText Color
}

// Theme provides named colours for laid out content.
type Theme interface {
	Name() string
	Palette() Palette
}

type theme struct {
	name    string
	palette Palette
}

func (t theme) Name() string     { return t.name }
func (t theme) Palette() Palette { return t.palette }

// NewTheme returns a Theme from a Palette definition.
func NewTheme(name string, p Palette) Theme {
	return theme{name: name, palette: p}
}

var builtinThemes = map[string]Theme{
	"default": theme{name: "default", palette: Palette{
		Text:            Color{33, 37, 41},
		Heading:         [3]Color{{13, 71, 161}, {21, 101, 192}, {30, 136, 229}},
		Muted:           Color{108, 117, 125},
		Rule:            Color{173, 181, 189},
		TableHeaderFill: Color{227, 236, 250},
		TableHeaderText: Color{13, 71, 161},
	}},
	"boring": theme{name: "boring", palette: Palette{
		Text:            Color{0, 0, 0},
		Heading:         [3]Color{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}},
		Muted:           Color{0, 0, 0},
		Rule:            Color{0, 0, 0},
		TableHeaderFill: Color{255, 255, 255},
		TableHeaderText: Color{0, 0, 0},
	}},
	"slate": theme{name: "slate", palette: Palette{
		Text:            Color{45, 55, 72},
		Heading:         [3]Color{{26, 32, 44}, {45, 55, 72}, {74, 85, 104}},
		Muted:           Color{113, 128, 150},
		Rule:            Color{203, 213, 224},
		TableHeaderFill: Color{237, 242, 247},
		TableHeaderText: Color{26, 32, 44},
	}},
	"ocean": theme{name: "ocean", palette: Palette{
		Text:            Color{16, 42, 67},
		Heading:         [3]Color{{0, 105, 148}, {0, 128, 160}, {0, 150, 170}},
		Muted:           Color{72, 101, 129},
		Rule:            Color{159, 179, 200},
		TableHeaderFill: Color{224, 242, 247},
		TableHeaderText: Color{0, 105, 148},
	}},
}

// AvailableThemes returns the names of built-in themes.
func AvailableThemes() []string {
	names := make([]string, 0, len(builtinThemes))
	for name := range builtinThemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThemeByName returns a built-in theme by name.
func ThemeByName(name string) (Theme, bool) {
	if name == "" {
		return builtinThemes["default"], true
	}
	normalized := strings.ToLower(strings.TrimSpace(name))
	theme, ok := builtinThemes[normalized]
	return theme, ok
}

// DefaultTheme returns the default built-in theme.
func DefaultTheme() Theme {
	return builtinThemes["default"]
}
