package layout

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Font selects a face and size.
type Font struct {
	Family string
	Bold   bool
	Italic bool
	Size   float64
}

// Style returns the face style in the "B", "I", "BI" notation.
func (f Font) Style() string {
	switch {
	case f.Bold && f.Italic:
		return "BI"
	case f.Bold:
		return "B"
	case f.Italic:
		return "I"
	}
	return ""
}

// Box is a rectangle in page coordinates: origin top left, points.
type Box struct {
	X float64
	Y float64
	W float64
	H float64
}

func (b Box) within(page Size) bool {
	const slack = 0.01
	return b.X >= -slack && b.Y >= -slack && b.W >= 0 && b.H >= 0 &&
		b.X+b.W <= page.Width+slack && b.Y+b.H <= page.Height+slack
}

func (b Box) shift(dx, dy float64) Box {
	return Box{X: b.X + dx, Y: b.Y + dy, W: b.W, H: b.H}
}

// Item is a positioned element on a page. It is one of *Text, *Rule, *Fill
// or *Image.
type Item interface {
	Bounds() Box
	shifted(dx, dy float64) Item
}

// Text is a run of text in one font. Box is the line box; Baseline is the
// y coordinate the glyphs sit on.
type Text struct {
	Box
	Baseline float64
	Text     string
	Font     Font
	Color    Color
}

// Rule is a straight line from (X, Y) to (X+W, Y+H).
type Rule struct {
	Box
	Width float64
	Color Color
}

// Fill is a filled rectangle.
type Fill struct {
	Box
	Color Color
}

// Image places a document image resource.
type Image struct {
	Box
	Name string
}

func (t *Text) Bounds() Box  { return t.Box }
func (r *Rule) Bounds() Box  { return r.Box }
func (f *Fill) Bounds() Box  { return f.Box }
func (i *Image) Bounds() Box { return i.Box }

func (t *Text) shifted(dx, dy float64) Item {
	c := *t
	c.Box = t.Box.shift(dx, dy)
	c.Baseline += dy
	return &c
}

func (r *Rule) shifted(dx, dy float64) Item {
	c := *r
	c.Box = r.Box.shift(dx, dy)
	return &c
}

func (f *Fill) shifted(dx, dy float64) Item {
	c := *f
	c.Box = f.Box.shift(dx, dy)
	return &c
}

func (i *Image) shifted(dx, dy float64) Item {
	c := *i
	c.Box = i.Box.shift(dx, dy)
	return &c
}

// Page is one laid out page. Size and Margins are the page's own
// geometry; a zero Size means the document's.
type Page struct {
	// Number is 1-based.
	Number  int
	Size    Size
	Margins Margins
	Items   []Item
}

// PageSize returns the size of p, falling back to the document size.
func (d *Document) PageSize(p *Page) Size {
	if p != nil && p.Size.Width > 0 && p.Size.Height > 0 {
		return p.Size
	}
	return d.Size
}

// FontFace is TrueType data for one family and style.
type FontFace struct {
	Family string
	Style  string
	Data   []byte
}

// ImageResource is an image embedded in the document.
type ImageResource struct {
	Name string
	// Format is the decoder name: png, jpeg, gif, bmp, tiff or webp.
	Format string
	Data   []byte
	// Pixel dimensions.
	Width  int
	Height int
}

// Meta is document metadata carried to the serializer.
type Meta struct {
	Title   string
	Author  string
	Subject string
	Date    time.Time
}

// Document is a complete paginated document. It holds every byte the
// serializers need. Size and Margins are those of the first page.
type Document struct {
	Size       Size
	Margins    Margins
	FontSize   float64
	LineHeight float64
	Pages      []*Page
	Fonts      []FontFace
	Images     map[string]*ImageResource
	Meta       Meta
}

// Validate checks the document is structurally sound: at least one page,
// every item on its page, every image and TrueType family present.
func (d *Document) Validate() error {
	if d == nil {
		return errors.New("layout: nil document")
	}
	if d.Size.Width <= 0 || d.Size.Height <= 0 {
		return fmt.Errorf("layout: document page size %gx%g", d.Size.Width, d.Size.Height)
	}
	if len(d.Pages) == 0 {
		return errors.New("layout: document has no pages")
	}
	families := map[string]bool{}
	for _, f := range d.Fonts {
		if len(f.Data) == 0 {
			return fmt.Errorf("layout: font %s %q has no data", f.Family, f.Style)
		}
		families[f.Family] = true
	}
	for i, p := range d.Pages {
		if p == nil {
			return fmt.Errorf("layout: page %d is nil", i+1)
		}
		if p.Number != i+1 {
			return fmt.Errorf("layout: page %d numbered %d", i+1, p.Number)
		}
		size := d.PageSize(p)
		for _, it := range p.Items {
			b := it.Bounds()
			if math.IsNaN(b.X+b.Y+b.W+b.H) || !b.within(size) {
				return fmt.Errorf("layout: page %d: item at %.2f,%.2f size %.2fx%.2f is off the page", p.Number, b.X, b.Y, b.W, b.H)
			}
			switch it := it.(type) {
			case *Image:
				if _, ok := d.Images[it.Name]; !ok {
					return fmt.Errorf("layout: page %d: image %q not embedded", p.Number, it.Name)
				}
			case *Text:
				if !isCoreFont(it.Font.Family) && !families[it.Font.Family] {
					return fmt.Errorf("layout: page %d: font %q not embedded", p.Number, it.Font.Family)
				}
			}
		}
	}
	return nil
}

// Warning is a non-fatal condition recorded during layout.
type Warning struct {
	Resource string
	Message  string
}

func (w Warning) String() string {
	if w.Resource == "" {
		return w.Message
	}
	return w.Resource + ": " + w.Message
}
