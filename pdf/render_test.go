package pdf

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/font/gofont/goregular"

	"pkt.systems/report/layout"
	"pkt.systems/report/output"
	"pkt.systems/report/resource"
)

func layoutDoc(t *testing.T, markup string, files map[string][]byte) *layout.Document {
	t.Helper()
	r := layout.NewRenderer(resource.New(resource.Memory("test", files)), layout.WithMetrics(LayoutMetrics))
	doc, _, err := r.Layout(context.Background(), markup, layout.PageConfig{})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return doc
}

func render(t *testing.T, doc *layout.Document, cfg Config) []byte {
	t.Helper()
	var out bytes.Buffer
	if err := Render(RenderRequest{Writer: &out, Document: doc, Config: cfg}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF")) {
		t.Fatalf("unexpected pdf header: %q", out.Bytes()[:8])
	}
	return out.Bytes()
}

func encodeImage(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
		img.Set(x, 1, color.RGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := enc(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestRenderPDFWithCoreFonts(t *testing.T) {
	doc := layoutDoc(t, "<h1>Title</h1><p>Hello café</p>", nil)
	out := render(t, doc, Config{Uncompressed: true, Title: "Greeting"})
	if !bytes.Contains(out, []byte("caf\xe9")) {
		t.Fatalf("expected cp1252 text in content stream")
	}
	if !bytes.Contains(out, []byte("/BaseFont /Helvetica-Bold")) {
		t.Fatalf("expected bold core font for heading")
	}
}

func layoutWarnings(t *testing.T, markup string, files map[string][]byte, cfg layout.PageConfig) (*layout.Document, []layout.Warning) {
	t.Helper()
	r := layout.NewRenderer(resource.New(resource.Memory("test", files)), layout.WithMetrics(LayoutMetrics))
	doc, warnings, err := r.Layout(context.Background(), markup, cfg)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return doc, warnings
}

func TestRenderPDFWarnsAboutUnencodableRunes(t *testing.T) {
	doc, warnings := layoutWarnings(t, "<p>Emoji 😀 becomes a question mark.</p>", nil, layout.PageConfig{})
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if w := warnings[0]; w.Resource != "Helvetica" || !strings.Contains(w.Message, "😀") || !strings.Contains(w.Message, "drawn as ?") {
		t.Fatalf("unexpected warning %q", w)
	}
	out := render(t, doc, Config{Uncompressed: true})
	if !bytes.Contains(out, []byte("Emoji ?")) {
		t.Fatalf("expected replacement character in output")
	}
}

func TestUnicodeFontTakesOverCoreFont(t *testing.T) {
	files := map[string][]byte{"fonts/go.ttf": goregular.TTF}
	doc, warnings := layoutWarnings(t, "<p>Hello 世界 Ζωή</p>", files, layout.PageConfig{UnicodeFont: "go"})

	var greek, latin bool
	for _, it := range doc.Pages[0].Items {
		txt, ok := it.(*layout.Text)
		if !ok {
			continue
		}
		if strings.Contains(txt.Text, "Ζωή") {
			greek = txt.Font.Family == "go"
		}
		if strings.Contains(txt.Text, "Hello") {
			latin = txt.Font.Family == "Helvetica"
		}
	}
	if !greek || !latin {
		t.Fatalf("expected Greek in go and Latin in Helvetica: %+v", doc.Pages[0].Items)
	}
	want := []layout.Warning{
		{Resource: "Helvetica", Message: "text the font cannot encode set in go"},
		{Resource: "Helvetica", Message: `no glyph for "世界", drawn as ?`},
	}
	if len(warnings) != len(want) {
		t.Fatalf("expected %v, got %v", want, warnings)
	}
	for i := range want {
		if warnings[i] != want[i] {
			t.Fatalf("warning %d: expected %q, got %q", i, want[i], warnings[i])
		}
	}
	out := render(t, doc, Config{})
	if !bytes.Contains(out, []byte("/FontFile2")) {
		t.Fatalf("expected the Unicode font embedded")
	}
}

func TestRenderPageFormats(t *testing.T) {
	markup := `<p>portrait</p><page orientation="landscape"/><p>landscape</p>`
	doc := layoutDoc(t, markup, nil)
	out := render(t, doc, Config{Uncompressed: true})
	if !bytes.Contains(out, []byte("/MediaBox [0 0 595.28 841.89]")) {
		t.Fatalf("expected A4 portrait as the document size")
	}
	if n := bytes.Count(out, []byte("/MediaBox [0 0 841.89 595.28]")); n != 1 {
		t.Fatalf("expected one landscape page, got %d", n)
	}
}

func TestRenderColourOptions(t *testing.T) {
	doc := layoutDoc(t, `<p color="red">alert</p>`, nil)
	plain := render(t, doc, Config{Uncompressed: true})

	out := render(t, doc, Config{
		Uncompressed:      true,
		IgnoreColors:      true,
		TextRGB:           [3]int{0, 0, 255},
		BackgroundEnabled: true,
		BackgroundRGB:     [3]int{255, 251, 230},
	})
	if !bytes.Contains(out, []byte("1.000 0.984 0.902 rg")) {
		t.Fatalf("expected background fill colour")
	}
	if !bytes.Contains(out, []byte("0.00 841.89 595.28 -841.89 re f")) {
		t.Fatalf("expected full page background rectangle")
	}
	if n := bytes.Count(out, []byte("re f")); n != 1 {
		t.Fatalf("expected only the background filled, got %d fills", n)
	}
	if !bytes.Contains(out, []byte("0.000 0.000 1.000 rg")) {
		t.Fatalf("expected text drawn in the configured colour")
	}
	red := []byte("0.804 0.000 0.000 rg")
	if !bytes.Contains(plain, red) || bytes.Contains(out, red) {
		t.Fatalf("expected the red text colour only without IgnoreColors")
	}
}

func TestRenderIsReproducible(t *testing.T) {
	markup := "<h2>Totals</h2><table><thead><tr><th>Item</th><th>Qty</th></tr></thead>" +
		"<tr><td>Widget</td><td>3</td></tr></table>"
	a := render(t, layoutDoc(t, markup, nil), Config{})
	b := render(t, layoutDoc(t, markup, nil), Config{})
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical output for identical documents")
	}
	if !bytes.Contains(a, []byte("D:20000101000000")) {
		t.Fatalf("expected fixed default creation date")
	}
}

func TestRenderUsesConfiguredDate(t *testing.T) {
	doc := layoutDoc(t, "<p>dated</p>", nil)
	doc.Meta.Date = time.Date(2021, 2, 3, 4, 5, 6, 0, time.UTC)
	out := render(t, doc, Config{})
	if !bytes.Contains(out, []byte("D:20210203040506")) {
		t.Fatalf("expected document date in metadata")
	}
	out = render(t, doc, Config{Date: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)})
	if !bytes.Contains(out, []byte("D:20240506070809")) {
		t.Fatalf("expected config date to win over document date")
	}
}

func TestRenderImages(t *testing.T) {
	pngData := encodeImage(t, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
	bmpData := encodeImage(t, func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) })
	files := map[string][]byte{
		"images/logo.png": pngData,
		"images/scan.bmp": bmpData,
	}
	doc := layoutDoc(t, `<p><img src="logo.png"/></p><p><img src="scan.bmp" width="40"/></p>`, files)
	if len(doc.Images) != 2 {
		t.Fatalf("expected two embedded images, got %d", len(doc.Images))
	}
	out := render(t, doc, Config{})
	if n := bytes.Count(out, []byte("/Subtype /Image")); n != 2 {
		t.Fatalf("expected 2 image objects, got %d", n)
	}
}

func TestRenderEmbeddedFont(t *testing.T) {
	files := map[string][]byte{"fonts/Go.ttf": goregular.TTF}
	doc := layoutDoc(t, `<p font="Go">Grüße from an embedded font</p>`, files)
	if len(doc.Fonts) == 0 {
		t.Fatalf("expected embedded font faces")
	}
	out := render(t, doc, Config{})
	if !bytes.Contains(out, []byte("/FontFile2")) {
		t.Fatalf("expected embedded TrueType font program")
	}
}

func TestRenderRejectsInvalidInput(t *testing.T) {
	if err := Render(RenderRequest{Document: layoutDoc(t, "<p>x</p>", nil)}); err == nil {
		t.Fatalf("expected error for nil writer")
	}
	var out bytes.Buffer
	err := Render(RenderRequest{Writer: &out, Document: &layout.Document{Size: layout.Size{Width: 10, Height: 10}}})
	if err == nil || !strings.Contains(err.Error(), "no pages") {
		t.Fatalf("expected no pages error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected nothing written on failure")
	}
}

func TestRenderBadImageData(t *testing.T) {
	doc := &layout.Document{
		Size: layout.Size{Width: 100, Height: 100},
		Pages: []*layout.Page{{Number: 1, Items: []layout.Item{
			&layout.Image{Box: layout.Box{X: 10, Y: 10, W: 10, H: 10}, Name: "x.gif"},
		}}},
		Images: map[string]*layout.ImageResource{"x.gif": {Name: "x.gif", Format: "gif", Data: []byte("GIF89a")}},
	}
	var out bytes.Buffer
	if err := Render(RenderRequest{Writer: &out, Document: doc}); err == nil {
		t.Fatalf("expected error for truncated image")
	}
}

func TestMetricsCoreFonts(t *testing.T) {
	m := NewMetrics()
	f := layout.Font{Family: "Helvetica", Size: 10}
	if w := m.Width(f, "M"); math.Abs(w-8.33) > 0.01 {
		t.Fatalf("expected Helvetica M width 8.33, got %v", w)
	}
	if a, b := m.Width(f, "e"), m.Width(f, "é"); math.Abs(a-b) > 1e-9 {
		t.Fatalf("expected é measured as one cp1252 glyph: %v vs %v", a, b)
	}
	bold := m.Width(layout.Font{Family: "Helvetica", Bold: true, Size: 10}, "Report")
	if regular := m.Width(f, "Report"); bold <= regular {
		t.Fatalf("expected bold wider than regular: %v <= %v", bold, regular)
	}
	if w := m.Width(f, ""); w != 0 {
		t.Fatalf("expected zero width for empty string, got %v", w)
	}
}

func TestMetricsEmbeddedFonts(t *testing.T) {
	m := NewMetrics()
	if err := m.LoadFont("Go", "", goregular.TTF); err != nil {
		t.Fatalf("load font: %v", err)
	}
	if w := m.Width(layout.Font{Family: "Go", Size: 12}, "Grüße"); w <= 0 {
		t.Fatalf("expected positive width, got %v", w)
	}
	if err := m.LoadFont("Broken", "", []byte("not a font")); err == nil {
		t.Fatalf("expected error for invalid font data")
	}
	if w := m.Width(layout.Font{Family: "Unknown", Size: 10}, "abcd"); w != 20 {
		t.Fatalf("expected fallback width 20, got %v", w)
	}
	if w := m.Width(layout.Font{Family: "Helvetica", Size: 10}, "M"); math.Abs(w-8.33) > 0.01 {
		t.Fatalf("metrics unusable after errors: %v", w)
	}
}

func TestMetricsMissing(t *testing.T) {
	m := NewMetrics()
	if got := m.Missing("Helvetica", "café € Ζ Ζ\t"); string(got) != "Ζ" {
		t.Fatalf("expected only Ζ missing from Helvetica, got %q", string(got))
	}
	if got := m.Missing("ZapfDingbats", "Ζ"); got != nil {
		t.Fatalf("expected symbol fonts to report nothing, got %q", string(got))
	}
	if err := m.LoadFont("Go", "", goregular.TTF); err != nil {
		t.Fatalf("load font: %v", err)
	}
	if got := m.Missing("Go", "Ζωή Grüße 世"); string(got) != "世" {
		t.Fatalf("expected only 世 missing from Go, got %q", string(got))
	}
	if got := m.Missing("Unknown", "世"); got != nil {
		t.Fatalf("expected unknown families to report nothing, got %q", string(got))
	}
}

func TestSerializerWithOutput(t *testing.T) {
	dest := output.Memory()
	art, err := output.Write(layoutDoc(t, "<p>x</p>", nil), Serializer{}, dest)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if art.ContentType != "application/pdf" || art.Format != "pdf" {
		t.Fatalf("unexpected artifact %+v", art)
	}
	if !bytes.HasPrefix(dest.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf bytes in memory destination")
	}
}
