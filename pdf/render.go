package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"sort"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pkt.systems/report/layout"
	"pkt.systems/report/output"
)

// RenderRequest contains inputs for PDF rendering.
type RenderRequest struct {
	Writer   io.Writer
	Document *layout.Document
	Config   Config
}

// Render draws a laid out document as PDF.
func Render(req RenderRequest) (err error) {
	if req.Writer == nil {
		return fmt.Errorf("pdf render: writer is nil")
	}
	doc := req.Document
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("pdf render: %w", err)
	}
	cfg := DefaultConfig()
	applyConfig(&cfg, req.Config)
	defer recoverFpdf("pdf render", &err)

	pdf := newFpdf(doc.Size)
	pdf.SetCompression(!cfg.Uncompressed)
	setMetadata(pdf, cfg, doc.Meta)
	for _, f := range doc.Fonts {
		pdf.AddUTF8FontFromBytes(f.Family, f.Style, f.Data)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf render: font setup failed: %w", err)
	}
	if err := registerImages(pdf, doc.Images); err != nil {
		return err
	}

	st := newStyler(pdf)
	for _, page := range doc.Pages {
		size := doc.PageSize(page)
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})
		if cfg.BackgroundEnabled {
			st.fillColor(cfg.BackgroundRGB)
			pdf.Rect(0, 0, size.Width, size.Height, "F")
		}
		for _, it := range page.Items {
			drawItem(pdf, st, cfg, it)
		}
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("pdf render: page %d: %w", page.Number, err)
		}
	}
	if err := pdf.Output(req.Writer); err != nil {
		return fmt.Errorf("pdf render: output: %w", err)
	}
	return nil
}

func newFpdf(size layout.Size) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	return pdf
}

func setMetadata(pdf *fpdf.Fpdf, cfg Config, meta layout.Meta) {
	title, author, subject := cfg.Title, cfg.Author, cfg.Subject
	if title == "" {
		title = meta.Title
	}
	if author == "" {
		author = meta.Author
	}
	if subject == "" {
		subject = meta.Subject
	}
	date := cfg.Date
	if date.IsZero() {
		date = meta.Date
	}
	if date.IsZero() {
		date = defaultDate
	}
	date = date.UTC()
	pdf.SetCreationDate(date)
	pdf.SetModificationDate(date)
	pdf.SetCatalogSort(true)
	pdf.SetProducer(producer, true)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	if author != "" {
		pdf.SetAuthor(author, true)
	}
	if subject != "" {
		pdf.SetSubject(subject, true)
	}
	if cfg.Creator != "" {
		pdf.SetCreator(cfg.Creator, true)
	}
}

func drawItem(pdf *fpdf.Fpdf, st *styler, cfg Config, it layout.Item) {
	switch it := it.(type) {
	case *layout.Text:
		st.font(it.Font)
		c := [3]int(it.Color)
		if cfg.IgnoreColors {
			c = cfg.TextRGB
		}
		st.textColor(c)
		pdf.Text(it.X, it.Baseline, textFor(it.Font.Family, it.Text))
	case *layout.Rule:
		c := [3]int(it.Color)
		if cfg.IgnoreColors {
			c = cfg.TextRGB
		}
		st.drawColor(c)
		st.lineWidth(it.Width)
		pdf.Line(it.X, it.Y, it.X+it.W, it.Y+it.H)
	case *layout.Fill:
		if cfg.IgnoreColors {
			return
		}
		st.fillColor([3]int(it.Color))
		pdf.Rect(it.X, it.Y, it.W, it.H, "F")
	case *layout.Image:
		pdf.ImageOptions(it.Name, it.X, it.Y, it.W, it.H, false, fpdf.ImageOptions{}, 0, "")
	}
}

// registerImages hands every image to fpdf in name order. JPEG data is
// embedded as is; everything else is decoded and written as 8-bit PNG, which
// fpdf always accepts.
func registerImages(pdf *fpdf.Fpdf, images map[string]*layout.ImageResource) error {
	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		img := images[name]
		data, kind := img.Data, "JPG"
		if img.Format != "jpeg" {
			var err error
			if data, err = transcodePNG(img.Data); err != nil {
				return fmt.Errorf("pdf render: image %q: %w", name, err)
			}
			kind = "PNG"
		}
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: kind}, bytes.NewReader(data))
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("pdf render: load image %q: %w", name, err)
		}
	}
	return nil
}

func transcodePNG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recoverFpdf turns a panic inside fpdf, which it raises on some malformed
// font and image data, into an error.
func recoverFpdf(prefix string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: %v", prefix, r)
	}
}

// Serializer writes documents as PDF.
type Serializer struct {
	Config Config
}

var _ output.Serializer = Serializer{}

func (Serializer) Format() string      { return "pdf" }
func (Serializer) ContentType() string { return "application/pdf" }

func (s Serializer) Serialize(w io.Writer, doc *layout.Document) error {
	return Render(RenderRequest{Writer: w, Document: doc, Config: s.Config})
}
