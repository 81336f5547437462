package layout

import (
	"math"
	"testing"
)

func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12", 12},
		{"12pt", 12},
		{"1in", 72},
		{"2.54cm", 72},
		{"25.4 mm", 72},
		{"16px", 12},
		{" 0 ", 0},
	}
	for _, tc := range cases {
		got, err := ParseLength(tc.in)
		if err != nil {
			t.Fatalf("ParseLength(%q): %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("ParseLength(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "cm", "-1pt", "1ft", "NaN", "Inf"} {
		if _, err := ParseLength(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParsePageSize(t *testing.T) {
	got, err := ParsePageSize("letter")
	if err != nil || got != (Size{Width: 612, Height: 792}) {
		t.Fatalf("letter: %v %v", got, err)
	}
	got, err = ParsePageSize("100mm x 50mm")
	if err != nil {
		t.Fatalf("explicit size: %v", err)
	}
	if math.Abs(got.Width-283.4646) > 1e-3 || math.Abs(got.Height-141.7323) > 1e-3 {
		t.Fatalf("unexpected explicit size %v", got)
	}
	for _, bad := range []string{"", "B5", "0x10", "10x", "axb"} {
		if _, err := ParsePageSize(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestOrientation(t *testing.T) {
	a4, _ := PageSizeByName("A4")
	land, err := a4.Orient("landscape")
	if err != nil || land.Width != a4.Height || land.Height != a4.Width {
		t.Fatalf("landscape: %v %v", land, err)
	}
	if back, _ := land.Orient("portrait"); back != a4 {
		t.Fatalf("portrait: %v", back)
	}
	if _, err := a4.Orient("diagonal"); err == nil {
		t.Fatalf("expected error for unknown orientation")
	}
}

func TestParseMargins(t *testing.T) {
	cases := []struct {
		in   string
		want Margins
	}{
		{"10", Margins{10, 10, 10, 10}},
		{"10 20", Margins{10, 20, 10, 20}},
		{"10 20 30", Margins{10, 20, 30, 20}},
		{"10 20 30 40", Margins{10, 20, 30, 40}},
	}
	for _, tc := range cases {
		got, err := ParseMargins(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("ParseMargins(%q) = %v, %v", tc.in, got, err)
		}
	}
	if _, err := ParseMargins("1 2 3 4 5"); err == nil {
		t.Fatalf("expected error for five margins")
	}
}

func TestPageConfigValidate(t *testing.T) {
	cfg := DefaultPageConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.Margins = UniformMargins(300)
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected margins wider than the page to fail")
	}
	cfg = DefaultPageConfig()
	cfg.FontSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero font size to fail")
	}
}
