package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Size is a page size in points.
type Size struct {
	Width  float64
	Height float64
}

// Landscape returns s with the longer side horizontal.
func (s Size) Landscape() Size {
	if s.Height > s.Width {
		return Size{Width: s.Height, Height: s.Width}
	}
	return s
}

// Portrait returns s with the longer side vertical.
func (s Size) Portrait() Size {
	if s.Width > s.Height {
		return Size{Width: s.Height, Height: s.Width}
	}
	return s
}

// Orient applies an orientation name ("portrait" or "landscape").
func (s Size) Orient(orientation string) (Size, error) {
	switch strings.ToLower(strings.TrimSpace(orientation)) {
	case "", "portrait":
		return s.Portrait(), nil
	case "landscape":
		return s.Landscape(), nil
	}
	return s, fmt.Errorf("unknown orientation %q", orientation)
}

// Margins are page margins in points.
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformMargins returns margins of m on every side.
func UniformMargins(m float64) Margins {
	return Margins{Top: m, Right: m, Bottom: m, Left: m}
}

var pageSizes = map[string]Size{
	"a3":     {Width: 841.89, Height: 1190.55},
	"a4":     {Width: 595.28, Height: 841.89},
	"a5":     {Width: 419.53, Height: 595.28},
	"letter": {Width: 612, Height: 792},
	"legal":  {Width: 612, Height: 1008},
}

// PageSizeByName returns a named page size in portrait orientation.
func PageSizeByName(name string) (Size, bool) {
	s, ok := pageSizes[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// ParsePageSize accepts a named size (A3, A4, A5, Letter, Legal) or
// "WIDTHxHEIGHT" with optional units, e.g. "210mmx297mm" or "400x600".
func ParsePageSize(s string) (Size, error) {
	if size, ok := PageSizeByName(s); ok {
		return size, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("unknown page size %q", s)
	}
	width, err := ParseLength(w)
	if err != nil {
		return Size{}, fmt.Errorf("page size %q: %w", s, err)
	}
	height, err := ParseLength(h)
	if err != nil {
		return Size{}, fmt.Errorf("page size %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("page size %q: dimensions must be positive", s)
	}
	return Size{Width: width, Height: height}, nil
}

var unitPoints = []struct {
	suffix string
	scale  float64
}{
	{"pt", 1},
	{"mm", 72 / 25.4},
	{"cm", 72 / 2.54},
	{"in", 72},
	{"px", 0.75},
}

// ParseLength parses a length with an optional unit (pt, mm, cm, in, px)
// and returns it in points. A bare number is points.
func ParseLength(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	scale := 1.0
	for _, u := range unitPoints {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			scale = u.scale
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad length %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative length %q", s)
	}
	return v * scale, nil
}

// ParseMargins parses one to four lengths in CSS order: all, vertical
// horizontal, top horizontal bottom, or top right bottom left.
func ParseMargins(s string) (Margins, error) {
	fields := strings.Fields(s)
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := ParseLength(f)
		if err != nil {
			return Margins{}, err
		}
		vals[i] = v
	}
	switch len(vals) {
	case 1:
		return UniformMargins(vals[0]), nil
	case 2:
		return Margins{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}, nil
	case 3:
		return Margins{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[1]}, nil
	case 4:
		return Margins{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}, nil
	}
	return Margins{}, fmt.Errorf("bad margins %q", s)
}

// PageConfig is the page geometry and base typography of one layout.
type PageConfig struct {
	Size    Size
	Margins Margins
	// NoMargins makes the overlay apply zero Margins, which it otherwise
	// reads as unset.
	NoMargins bool
	// DefaultFont is the family used for text without a font attribute and
	// the fallback for unresolvable fonts.
	DefaultFont string
	FontSize    float64
	LineHeight  float64
	// HeadingScale multiplies FontSize for h1..h3.
	HeadingScale [3]float64
	Theme        Theme
	// UnicodeFont is the family that takes over words a core font cannot
	// encode, when the metrics report coverage. Empty disables it.
	UnicodeFont string
	// StrictResources disables the DefaultFont fallback.
	StrictResources bool
}

// DefaultPageConfig returns A4 portrait with 36pt margins and 12pt Helvetica.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:         pageSizes["a4"],
		Margins:      UniformMargins(36),
		DefaultFont:  "Helvetica",
		FontSize:     12,
		LineHeight:   1.4,
		HeadingScale: [3]float64{1.9, 1.6, 1.3},
		Theme:        DefaultTheme(),
	}
}

// BodyWidth is the width between the left and right margins.
func (c PageConfig) BodyWidth() float64 {
	return c.Size.Width - c.Margins.Left - c.Margins.Right
}

// BodyHeight is the height between the top and bottom margins.
func (c PageConfig) BodyHeight() float64 {
	return c.Size.Height - c.Margins.Top - c.Margins.Bottom
}

// Validate reports geometry that leaves no room for content.
func (c PageConfig) Validate() error {
	if c.Size.Width <= 0 || c.Size.Height <= 0 {
		return fmt.Errorf("layout: page size %gx%g must be positive", c.Size.Width, c.Size.Height)
	}
	m := c.Margins
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return fmt.Errorf("layout: margins must not be negative")
	}
	if c.BodyWidth() <= 0 || c.BodyHeight() <= 0 {
		return fmt.Errorf("layout: margins leave no body area on a %gx%g page", c.Size.Width, c.Size.Height)
	}
	if c.FontSize <= 0 {
		return fmt.Errorf("layout: font size must be positive")
	}
	if c.LineHeight <= 0 {
		return fmt.Errorf("layout: line height must be positive")
	}
	return nil
}

func applyPageConfig(dst *PageConfig, src PageConfig) {
	if src.Size.Width > 0 && src.Size.Height > 0 {
		dst.Size = src.Size
	}
	switch {
	case src.NoMargins:
		dst.Margins = Margins{}
		dst.NoMargins = true
	case src.Margins != (Margins{}):
		dst.Margins = src.Margins
	}
	if src.DefaultFont != "" {
		dst.DefaultFont = src.DefaultFont
	}
	if src.FontSize > 0 {
		dst.FontSize = src.FontSize
	}
	if src.LineHeight > 0 {
		dst.LineHeight = src.LineHeight
	}
	for i, s := range src.HeadingScale {
		if s > 0 {
			dst.HeadingScale[i] = s
		}
	}
	if src.Theme != nil {
		dst.Theme = src.Theme
	}
	if src.UnicodeFont != "" {
		dst.UnicodeFont = src.UnicodeFont
	}
	if src.StrictResources {
		dst.StrictResources = true
	}
}
