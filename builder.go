package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"pkt.systems/report/layout"
	"pkt.systems/report/model"
	"pkt.systems/report/output"
)

// ErrNoTemplate is returned by Builder renders when no template was set.
var ErrNoTemplate = errors.New("report: no template set")

// Data keys the builder injects for the page settings it was given.
const (
	PageSizeKey        = "pageSize"
	PageOrientationKey = "pageOrientation"
)

// Builder assembles one render call step by step:
//
//	pdf, err := report.NewBuilder(engine).
//		WithTemplate("invoice").
//		WithData("invoiceNumber", "INV-001").
//		Landscape().
//		RenderBytes(ctx)
//
// A Builder is not safe for concurrent use. It may be rendered any number
// of times.
type Builder struct {
	engine      *Engine
	template    string
	data        model.Fields
	schema      model.Schema
	pageSize    string
	orientation string
	err         error
}

// NewBuilder returns a Builder rendering through e.
func NewBuilder(e *Engine) *Builder {
	return &Builder{engine: e}
}

// WithTemplate sets the template reference, "name[@version][#locale]".
func (b *Builder) WithTemplate(name string) *Builder {
	b.template = name
	return b
}

// WithData binds key to value, replacing an earlier value for key.
func (b *Builder) WithData(key string, value any) *Builder {
	for i := range b.data {
		if b.data[i].Name == key {
			b.data[i].Value = value
			return b
		}
	}
	b.data = append(b.data, model.Field{Name: key, Value: value})
	return b
}

// WithDataMap binds every entry of m, in key order.
func (b *Builder) WithDataMap(m map[string]any) *Builder {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WithData(k, m[k])
	}
	return b
}

// WithSchema validates scalar kinds while binding.
func (b *Builder) WithSchema(s model.Schema) *Builder {
	b.schema = s
	return b
}

// ClearData drops every bound value. Template and page settings stay.
func (b *Builder) ClearData() *Builder {
	b.data = nil
	return b
}

// WithOrientation sets "portrait" or "landscape". Anything else fails the
// next render.
func (b *Builder) WithOrientation(orientation string) *Builder {
	o := strings.ToLower(strings.TrimSpace(orientation))
	if o != "portrait" && o != "landscape" {
		b.err = fmt.Errorf("report: unknown orientation %q (use portrait or landscape)", orientation)
		return b
	}
	b.orientation = o
	return b
}

// Landscape is WithOrientation("landscape").
func (b *Builder) Landscape() *Builder { return b.WithOrientation("landscape") }

// Portrait is WithOrientation("portrait").
func (b *Builder) Portrait() *Builder { return b.WithOrientation("portrait") }

// WithPageSize sets a named page size such as A4, A3, A5, Letter or Legal,
// or explicit dimensions like "210mmx297mm".
func (b *Builder) WithPageSize(size string) *Builder {
	if _, err := layout.ParsePageSize(size); err != nil {
		b.err = fmt.Errorf("report: %w", err)
		return b
	}
	b.pageSize = strings.TrimSpace(size)
	return b
}

// Request returns the render request the builder describes. Page settings
// are also bound as pageSize and pageOrientation unless the data already
// has those keys.
func (b *Builder) Request() (Request, error) {
	if b.err != nil {
		return Request{}, b.err
	}
	if strings.TrimSpace(b.template) == "" {
		return Request{}, ErrNoTemplate
	}
	data := append(model.Fields(nil), b.data...)
	inject := func(key, value string) {
		if value == "" {
			return
		}
		for _, f := range data {
			if f.Name == key {
				return
			}
		}
		data = append(data, model.Field{Name: key, Value: value})
	}
	inject(PageSizeKey, b.pageSize)
	inject(PageOrientationKey, b.orientation)
	return Request{
		Template:    b.template,
		Data:        data,
		Schema:      b.schema,
		PageSize:    b.pageSize,
		Orientation: b.orientation,
	}, nil
}

// Render renders to dest; a nil dest keeps the document in Result.Data.
func (b *Builder) Render(ctx context.Context, dest output.Destination) (*Result, error) {
	req, err := b.Request()
	if err != nil {
		return nil, err
	}
	req.Dest = dest
	return b.engine.Render(ctx, req)
}

// RenderTo writes the document to w in a single write once it is complete.
func (b *Builder) RenderTo(ctx context.Context, w io.Writer) (*Result, error) {
	return b.Render(ctx, output.Stream(w))
}

// RenderToFile writes the document to path, replacing it atomically.
func (b *Builder) RenderToFile(ctx context.Context, path string) (*Result, error) {
	return b.Render(ctx, output.File(path))
}

// RenderBytes returns the document bytes.
func (b *Builder) RenderBytes(ctx context.Context) ([]byte, error) {
	res, err := b.Render(ctx, nil)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// RenderReport renders template with data to dest using a one-off engine
// built from cfg. A nil dest keeps the document in Result.Data. Callers
// rendering repeatedly should keep an Engine so resources stay cached.
func RenderReport(ctx context.Context, template string, data any, dest output.Destination, cfg Config) (*Result, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return e.Render(ctx, Request{Template: template, Data: data, Dest: dest})
}
