package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/report/layout"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	a4, _ := layout.PageSizeByName("A4")
	assert.Equal(t, a4, cfg.PageSize)
	assert.Equal(t, "Helvetica", cfg.DefaultFont)
	assert.Equal(t, "fail", cfg.UndefinedPolicy)
	assert.Equal(t, FormatPDF, cfg.Format)
	assert.Zero(t, cfg.Timeout)
	assert.True(t, cfg.Compress)
}

func TestApplyConfigOverlaysNonZero(t *testing.T) {
	dst := DefaultConfig()
	applyConfig(&dst, Config{
		FontSize:            10,
		Title:               "Q1",
		TemplateSearchPaths: []string{"a", "b"},
		Timeout:             time.Second,
	})
	assert.Equal(t, 10.0, dst.FontSize)
	assert.Equal(t, "Q1", dst.Title)
	assert.Equal(t, []string{"a", "b"}, dst.TemplateSearchPaths)
	assert.Equal(t, time.Second, dst.Timeout)
	assert.Equal(t, "Helvetica", dst.DefaultFont)
	assert.Equal(t, 1.4, dst.LineHeight)
	assert.False(t, dst.Compress, "booleans are copied as given")
}

func TestPageConfigOrientation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Orientation = "landscape"
	cfg.Theme = "slate"
	pc, err := cfg.pageConfig()
	require.NoError(t, err)
	assert.Greater(t, pc.Size.Width, pc.Size.Height)

	cfg.Theme = "nope"
	_, err = cfg.pageConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available:")
}

func TestConfigFromViperFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(`
template_search_paths: [templates, shared]
page_size: letter
orientation: landscape
margins: 2cm 1cm
font_size: 11pt
line_height: 1.3
undefined_policy: default
undefined_default: "-"
timeout: 5s
format: text
output_encoding: latin1
theme: ocean
title: Quarterly
date: 2024-01-02T03:04:05Z
compress: false
`)), 0o644))

	v := NewViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := ConfigFromViper(v)
	require.NoError(t, err)

	letter, _ := layout.PageSizeByName("letter")
	assert.Equal(t, []string{"templates", "shared"}, cfg.TemplateSearchPaths)
	assert.Equal(t, letter, cfg.PageSize)
	assert.Equal(t, "landscape", cfg.Orientation)
	assert.InDelta(t, 56.693, cfg.Margins.Top, 0.01)
	assert.InDelta(t, 28.346, cfg.Margins.Right, 0.01)
	assert.Equal(t, cfg.Margins.Top, cfg.Margins.Bottom)
	assert.Equal(t, cfg.Margins.Right, cfg.Margins.Left)
	assert.Equal(t, 11.0, cfg.FontSize)
	assert.Equal(t, 1.3, cfg.LineHeight)
	assert.Equal(t, "default", cfg.UndefinedPolicy)
	assert.Equal(t, "-", cfg.UndefinedDefault)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, "latin1", cfg.OutputEncoding)
	assert.Equal(t, "ocean", cfg.Theme)
	assert.Equal(t, "Quarterly", cfg.Title)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), cfg.Date.UTC())
	assert.False(t, cfg.Compress)
	assert.Equal(t, "Helvetica", cfg.DefaultFont, "unset keys keep defaults")
}

func TestConfigFromViperMarginMap(t *testing.T) {
	v := NewViper()
	v.Set("margins", map[string]any{"top": "1in", "right": 10, "bottom": "20pt", "left": "5mm"})
	v.Set("page_size", "100mmx200mm")
	cfg, err := ConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 72.0, cfg.Margins.Top)
	assert.Equal(t, 10.0, cfg.Margins.Right)
	assert.Equal(t, 20.0, cfg.Margins.Bottom)
	assert.InDelta(t, 14.173, cfg.Margins.Left, 0.001)
	assert.InDelta(t, 283.46, cfg.PageSize.Width, 0.01)
	assert.InDelta(t, 566.93, cfg.PageSize.Height, 0.01)

	v.Set("margins", map[string]any{"middle": "1in"})
	_, err = ConfigFromViper(v)
	require.Error(t, err)
}

func TestZeroMargins(t *testing.T) {
	v := NewViper()
	v.Set("margins", "0")
	cfg, err := ConfigFromViper(v)
	require.NoError(t, err)
	assert.True(t, cfg.NoMargins)
	pc, err := cfg.pageConfig()
	require.NoError(t, err)
	assert.Equal(t, layout.Margins{}, pc.Margins)
	assert.True(t, pc.NoMargins)

	cfg, err = ConfigFromViper(NewViper())
	require.NoError(t, err)
	assert.False(t, cfg.NoMargins, "unset margins keep the default")

	dst := DefaultConfig()
	applyConfig(&dst, Config{})
	assert.Equal(t, layout.UniformMargins(36), dst.Margins, "zero Margins read as unset")
	applyConfig(&dst, Config{NoMargins: true})
	pc, err = dst.pageConfig()
	require.NoError(t, err)
	assert.Equal(t, layout.Margins{}, pc.Margins)
}

func TestPDFConfigFromColours(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, BuiltinUnicodeFont, cfg.UnicodeFont)
	pc := cfg.pdfConfig()
	assert.False(t, pc.IgnoreColors)
	assert.False(t, pc.BackgroundEnabled)
	assert.True(t, pc.Uncompressed == !cfg.Compress)

	cfg.IgnoreColors = true
	cfg.TextColor = "#336699"
	cfg.Background = "white"
	pc = cfg.pdfConfig()
	assert.True(t, pc.IgnoreColors)
	assert.Equal(t, [3]int{0x33, 0x66, 0x99}, pc.TextRGB)
	assert.True(t, pc.BackgroundEnabled)
	assert.Equal(t, [3]int{255, 255, 255}, pc.BackgroundRGB)
}

func TestConfigFromViperEnv(t *testing.T) {
	t.Setenv("REPORT_PAGE_SIZE", "A5")
	t.Setenv("REPORT_FORMAT", "text")
	t.Setenv("REPORT_TEMPLATE_SEARCH_PATHS", "one,two")
	t.Setenv("REPORT_STRICT_RESOURCES", "true")

	cfg, err := ConfigFromViper(NewViper())
	require.NoError(t, err)
	a5, _ := layout.PageSizeByName("A5")
	assert.Equal(t, a5, cfg.PageSize)
	assert.Equal(t, FormatText, cfg.Format)
	assert.Equal(t, []string{"one", "two"}, cfg.TemplateSearchPaths)
	assert.True(t, cfg.StrictResources)
	assert.True(t, cfg.Compress, "defaults survive")
}

func TestConfigFromViperRejectsInvalid(t *testing.T) {
	for key, value := range map[string]any{
		"page_size":        "B9",
		"undefined_policy": "shrug",
		"format":           "docx",
		"timeout":          "soon",
		"font_size":        "big",
		"background":       "paisley",
		"text_color":       "#12",
	} {
		t.Run(key, func(t *testing.T) {
			v := NewViper()
			v.Set(key, value)
			_, err := ConfigFromViper(v)
			require.Error(t, err)
		})
	}
}

func TestParseLength(t *testing.T) {
	v, err := ParseLength("2cm")
	require.NoError(t, err)
	assert.InDelta(t, 56.693, v, 0.01)
	_, err = ParseLength("2 furlongs")
	require.Error(t, err)
}
