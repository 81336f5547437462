package layout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/report/resource"
)

// Renderer lays out markup into paginated documents. It is safe for
// concurrent use; every Layout call works on its own state.
type Renderer struct {
	provider   *resource.Provider
	newMetrics func() Metrics
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithMetrics sets the factory for the Metrics used by each layout. The
// serializer that will write the document should supply it.
func WithMetrics(fn func() Metrics) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.newMetrics = fn
		}
	}
}

// NewRenderer returns a Renderer resolving fonts and images through p.
func NewRenderer(p *resource.Provider, opts ...Option) *Renderer {
	r := &Renderer{
		provider:   p,
		newMetrics: func() Metrics { return FixedMetrics{Advance: 0.5} },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Layout parses markup and paginates it. cfg overlays DefaultPageConfig;
// <page> directives in the markup overlay cfg. Warnings record font
// fallbacks and text the chosen fonts cannot draw. On error no document is
// returned.
func (r *Renderer) Layout(ctx context.Context, markup string, cfg PageConfig) (*Document, []Warning, error) {
	base := DefaultPageConfig()
	applyPageConfig(&base, cfg)
	if err := base.Validate(); err != nil {
		return nil, nil, err
	}
	root, err := parseMarkup(markup)
	if err != nil {
		return nil, nil, err
	}
	secs, header, footer, err := splitSections(root, base)
	if err != nil {
		return nil, nil, err
	}
	s := &state{
		ctx:      ctx,
		r:        r,
		cfg:      secs[0].cfg,
		palette:  base.Theme.Palette(),
		metrics:  r.newMetrics(),
		families: make(map[string]string),
		doc: &Document{
			Size:       secs[0].cfg.Size,
			Margins:    secs[0].cfg.Margins,
			FontSize:   base.FontSize,
			LineHeight: base.LineHeight,
			Images:     make(map[string]*ImageResource),
		},
	}
	if s.defaultFamily, err = s.loadFamily(base.DefaultFont, Pos{}); err != nil {
		return nil, nil, err
	}
	for _, sec := range secs {
		if err := s.layoutSection(sec, header, footer); err != nil {
			return nil, nil, err
		}
	}
	s.glyphWarnings()
	return s.doc, s.warnings, nil
}

type state struct {
	ctx     context.Context
	r       *Renderer
	cfg     PageConfig
	palette Palette
	metrics Metrics
	doc     *Document

	defaultFamily string
	// families maps requested font names to loaded families.
	families map[string]string
	// rerouted records core families that gave words to the Unicode font.
	rerouted map[string]bool
	// missing collects, per family, runes it has no glyph for.
	missing  map[string]map[rune]bool
	warnings []Warning
	// maxHeight bounds image height while laying out.
	maxHeight float64
}

// section is a run of top-level content sharing one page geometry.
type section struct {
	cfg     PageConfig
	body    []*node
	content bool
}

// splitSections separates the top-level nodes into sections at <page>
// directives. A directive before any content shapes the first section; a
// later one starts a new page with its own geometry. Attributes a directive
// leaves out carry over from the section before it.
func splitSections(root *node, base PageConfig) (secs []section, header, footer *node, err error) {
	cur := section{cfg: base}
	directive := false
	for _, n := range flatten(root) {
		switch n.tag {
		case "header":
			if header != nil {
				return nil, nil, nil, &MarkupError{Pos: n.pos, Msg: "duplicate <header>"}
			}
			header = n
			continue
		case "footer":
			if footer != nil {
				return nil, nil, nil, &MarkupError{Pos: n.pos, Msg: "duplicate <footer>"}
			}
			footer = n
			continue
		case "page":
			if directive && !cur.content {
				return nil, nil, nil, &MarkupError{Pos: n.pos, Msg: "duplicate <page>"}
			}
			if cur.content {
				secs = append(secs, cur)
				cur = section{cfg: cur.cfg}
			}
			if err := applyPageDirective(&cur.cfg, n); err != nil {
				return nil, nil, nil, err
			}
			directive = true
			continue
		}
		if n.tag != "" || strings.TrimSpace(n.text) != "" {
			cur.content = true
		}
		cur.body = append(cur.body, n)
	}
	if cur.content || len(secs) == 0 {
		secs = append(secs, cur)
	}
	return secs, header, footer, nil
}

// layoutSection lays out one section onto fresh pages, repeating header and
// footer laid out for its geometry.
func (s *state) layoutSection(sec section, header, footer *node) error {
	s.cfg = sec.cfg
	st := s.baseStyle()
	left, width := s.cfg.Margins.Left, s.cfg.BodyWidth()
	s.maxHeight = s.cfg.BodyHeight()

	var headerUnits, footerUnits []unit
	var err error
	if header != nil {
		if headerUnits, err = s.container(header.kids, st, left, width); err != nil {
			return err
		}
	}
	if footer != nil {
		if footerUnits, err = s.container(footer.kids, st, left, width); err != nil {
			return err
		}
	}
	headerItems, headerH := stack(headerUnits)
	footerItems, footerH := stack(footerUnits)

	p := &paginator{
		cfg:    s.cfg,
		first:  len(s.doc.Pages),
		top:    s.cfg.Margins.Top + headerH,
		bottom: s.cfg.Size.Height - s.cfg.Margins.Bottom - footerH,
	}
	if p.bottom-p.top <= 0 {
		return &OverflowError{What: "header and footer", Height: headerH + footerH, Available: s.cfg.BodyHeight()}
	}
	for _, it := range headerItems {
		p.header = append(p.header, it.shifted(0, s.cfg.Margins.Top))
	}
	for _, it := range footerItems {
		p.footer = append(p.footer, it.shifted(0, p.bottom))
	}

	s.maxHeight = p.bottom - p.top
	units, err := s.container(sec.body, st, left, width)
	if err != nil {
		return err
	}
	pages, err := p.paginate(units)
	if err != nil {
		return err
	}
	s.doc.Pages = append(s.doc.Pages, pages...)
	return nil
}

// flatten returns the top-level nodes with root wrappers removed.
func flatten(n *node) []*node {
	var out []*node
	for _, k := range n.kids {
		if elements[k.tag] == elemRoot {
			out = append(out, flatten(k)...)
			continue
		}
		out = append(out, k)
	}
	return out
}

func applyPageDirective(cfg *PageConfig, n *node) error {
	size := cfg.Size
	if v, ok := n.attr("size"); ok {
		parsed, err := ParsePageSize(v)
		if err != nil {
			return &MarkupError{Pos: n.pos, Msg: err.Error()}
		}
		size = parsed
	}
	if v, ok := n.attr("orientation"); ok {
		oriented, err := size.Orient(v)
		if err != nil {
			return &MarkupError{Pos: n.pos, Msg: err.Error()}
		}
		size = oriented
	}
	cfg.Size = size
	if v, ok := n.attr("margin"); ok {
		m, err := ParseMargins(v)
		if err != nil {
			return &MarkupError{Pos: n.pos, Msg: err.Error()}
		}
		cfg.Margins = m
	}
	sides := []struct {
		key string
		dst *float64
	}{
		{"margin-top", &cfg.Margins.Top},
		{"margin-right", &cfg.Margins.Right},
		{"margin-bottom", &cfg.Margins.Bottom},
		{"margin-left", &cfg.Margins.Left},
	}
	for _, side := range sides {
		if v, ok := n.attr(side.key); ok {
			l, err := ParseLength(v)
			if err != nil {
				return &MarkupError{Pos: n.pos, Msg: err.Error()}
			}
			*side.dst = l
		}
	}
	if err := cfg.Validate(); err != nil {
		return &MarkupError{Pos: n.pos, Msg: err.Error()}
	}
	return nil
}

var coreFonts = map[string]string{
	"courier":      "Courier",
	"helvetica":    "Helvetica",
	"times":        "Times",
	"symbol":       "Symbol",
	"zapfdingbats": "ZapfDingbats",
}

var fontStyles = []struct {
	style  string
	suffix string
}{
	{"", ""},
	{"B", "-Bold"},
	{"I", "-Italic"},
	{"BI", "-BoldItalic"},
}

// family returns the loaded family for a requested font name, falling back
// to the default font with a warning when the font cannot be found.
func (s *state) family(name string, pos Pos) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.defaultFamily, nil
	}
	if fam, ok := s.families[name]; ok {
		return fam, nil
	}
	fam, err := s.loadFamily(name, pos)
	var ue *UnresolvedError
	if err != nil && errors.As(err, &ue) && errors.Is(err, resource.ErrNotFound) && !s.cfg.StrictResources {
		s.warnings = append(s.warnings, Warning{
			Resource: name,
			Message:  fmt.Sprintf("font not found, using %s", s.defaultFamily),
		})
		s.families[name] = s.defaultFamily
		return s.defaultFamily, nil
	}
	if err != nil {
		return "", err
	}
	return fam, nil
}

// loadFamily resolves a font and registers its faces with the metrics and
// the document. A family without a face for some style reuses the regular
// face.
func (s *state) loadFamily(name string, pos Pos) (string, error) {
	if core, ok := coreFonts[strings.ToLower(name)]; ok {
		s.families[name] = core
		return core, nil
	}
	regular, err := s.r.provider.Resolve(s.ctx, name, resource.KindFont)
	if err != nil {
		return "", s.resourceErr(name, resource.KindFont, pos, err)
	}
	family := regular.Name()
	if i := strings.LastIndexByte(family, '/'); i >= 0 {
		family = family[i+1:]
	}
	family = strings.TrimSuffix(family, ".ttf")
	for _, f := range s.doc.Fonts {
		if f.Family == family {
			s.families[name] = family
			return family, nil
		}
	}
	for _, fs := range fontStyles {
		face := regular
		if fs.suffix != "" {
			h, err := s.r.provider.Resolve(s.ctx, name+fs.suffix, resource.KindFont)
			switch {
			case err == nil:
				face = h
			case !errors.Is(err, resource.ErrNotFound):
				return "", s.resourceErr(name+fs.suffix, resource.KindFont, pos, err)
			}
		}
		if err := s.metrics.LoadFont(family, fs.style, face.Bytes()); err != nil {
			return "", &UnresolvedError{Name: face.Name(), Kind: resource.KindFont, Pos: pos, Err: err}
		}
		s.doc.Fonts = append(s.doc.Fonts, FontFace{Family: family, Style: fs.style, Data: face.Bytes()})
	}
	s.families[name] = family
	return family, nil
}

// resourceErr keeps read failures distinct from missing resources.
func (s *state) resourceErr(name string, kind resource.Kind, pos Pos, err error) error {
	var re *resource.ReadError
	if errors.As(err, &re) {
		return fmt.Errorf("layout: %s %q: %w", kind, name, err)
	}
	return &UnresolvedError{Name: name, Kind: kind, Pos: pos, Err: err}
}
