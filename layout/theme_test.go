package layout

import "testing"

func TestThemeByName(t *testing.T) {
	expected := []string{"boring", "default", "ocean", "slate"}
	for _, name := range expected {
		if _, ok := ThemeByName(name); !ok {
			t.Fatalf("expected theme %q to be available", name)
		}
	}
	available := AvailableThemes()
	if len(available) != len(expected) {
		t.Fatalf("expected %d themes, got %v", len(expected), available)
	}
	for i, name := range expected {
		if available[i] != name {
			t.Fatalf("expected sorted theme list %v, got %v", expected, available)
		}
	}
	if th, ok := ThemeByName("  Ocean "); !ok || th.Name() != "ocean" {
		t.Fatalf("expected case-insensitive lookup, got %v %v", th, ok)
	}
	if th, ok := ThemeByName(""); !ok || th.Name() != "default" {
		t.Fatalf("expected empty name to select default")
	}
	if _, ok := ThemeByName("neon"); ok {
		t.Fatalf("expected unknown theme to be rejected")
	}
}

func TestNewTheme(t *testing.T) {
	p := Palette{Text: Color{1, 2, 3}}
	th := NewTheme("custom", p)
	if th.Name() != "custom" || th.Palette() != p {
		t.Fatalf("unexpected theme %v", th)
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want Color
	}{
		{"#ff8000", Color{255, 128, 0}},
		{"#F80", Color{255, 136, 0}},
		{"red", Color{205, 0, 0}},
		{" White ", Color{255, 255, 255}},
		{"xterm(196)", Color{255, 0, 0}},
		{"xterm(244)", Color{128, 128, 128}},
	}
	for _, tc := range cases {
		got, err := ParseColor(tc.in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "#12", "#gggggg", "xterm(256)", "xterm(x)", "chartreuse"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
