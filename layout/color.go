package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGB triple with components in 0..255.
type Color [3]int

var namedColors = map[string]int{
	"black":          0,
	"red":            1,
	"green":          2,
	"yellow":         3,
	"blue":           4,
	"magenta":        5,
	"cyan":           6,
	"silver":         7,
	"gray":           8,
	"grey":           8,
	"bright-red":     9,
	"bright-green":   10,
	"bright-yellow":  11,
	"bright-blue":    12,
	"bright-magenta": 13,
	"bright-cyan":    14,
	"white":          15,
}

// ParseColor parses "#rgb", "#rrggbb", a named colour or "xterm(N)" with N in
// 0..255.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if idx, ok := namedColors[s]; ok {
		return ansiColor(idx), nil
	}
	if strings.HasPrefix(s, "xterm(") && strings.HasSuffix(s, ")") {
		n, err := strconv.Atoi(s[len("xterm(") : len(s)-1])
		if err != nil || n < 0 || n > 255 {
			return Color{}, fmt.Errorf("bad xterm colour %q", s)
		}
		return xtermColor(n), nil
	}
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			v, err := strconv.ParseUint(hex, 16, 32)
			if err == nil {
				return Color{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, nil
			}
		}
	}
	return Color{}, fmt.Errorf("unknown colour %q", s)
}

func ansiColor(idx int) Color {
	colors := [16]Color{
		{0, 0, 0},
		{205, 0, 0},
		{0, 205, 0},
		{205, 205, 0},
		{59, 156, 255},
		{205, 0, 205},
		{0, 205, 205},
		{229, 229, 229},
		{127, 127, 127},
		{255, 0, 0},
		{0, 255, 0},
		{255, 255, 0},
		{92, 92, 255},
		{255, 0, 255},
		{0, 255, 255},
		{255, 255, 255},
	}
	if idx < 0 || idx >= len(colors) {
		return colors[7]
	}
	return colors[idx]
}

func xtermColor(idx int) Color {
	switch {
	case idx < 16:
		return ansiColor(idx)
	case idx >= 16 && idx <= 231:
		idx -= 16
		r := idx / 36
		g := (idx / 6) % 6
		b := idx % 6
		return Color{
			colorLevel(r),
			colorLevel(g),
			colorLevel(b),
		}
	case idx >= 232 && idx <= 255:
		v := 8 + (idx-232)*10
		return Color{v, v, v}
	default:
		return ansiColor(7)
	}
}

func colorLevel(v int) int {
	if v == 0 {
		return 0
	}
	return 55 + v*40
}
