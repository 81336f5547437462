// Package expand resolves report templates through a resource.Provider and
// expands them against bound data into markup.
package expand

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"pkt.systems/report/model"
	"pkt.systems/report/resource"
	"pkt.systems/report/tmpl"
)

// Ref names a template. Version and Locale are optional; when set they are
// tried before the plain name, most specific first:
//
//	invoice@2.de-CH, invoice@2.de, invoice@2, invoice.de-CH, invoice.de, invoice
type Ref struct {
	Name    string
	Version string
	Locale  string
}

func (r Ref) String() string {
	s := r.Name
	if r.Version != "" {
		s += "@" + r.Version
	}
	if r.Locale != "" {
		s += "#" + r.Locale
	}
	return s
}

// ParseRef parses "name[@version][#locale]".
func ParseRef(s string) (Ref, error) {
	var r Ref
	s = strings.TrimSpace(s)
	s, r.Locale, _ = strings.Cut(s, "#")
	r.Name, r.Version, _ = strings.Cut(s, "@")
	if r.Name == "" {
		return Ref{}, fmt.Errorf("expand: empty template name in %q", s)
	}
	if r.Locale != "" {
		if _, err := language.Parse(r.Locale); err != nil {
			return Ref{}, fmt.Errorf("expand: bad locale %q: %w", r.Locale, err)
		}
	}
	return r, nil
}

// Candidates returns the resource names tried for r, in order.
func (r Ref) Candidates() []string {
	locales := localeChain(r.Locale)
	var bases []string
	if r.Version != "" {
		bases = append(bases, r.Name+"@"+r.Version)
	}
	bases = append(bases, r.Name)
	var out []string
	for _, b := range bases {
		for _, l := range locales {
			out = append(out, b+"."+l)
		}
		out = append(out, b)
	}
	return out
}

func localeChain(locale string) []string {
	if locale == "" {
		return nil
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return []string{locale}
	}
	var out []string
	for tag != language.Und {
		out = append(out, tag.String())
		tag = tag.Parent()
	}
	return out
}

// Markup is the result of expanding a template.
type Markup struct {
	Ref Ref
	// Template is the resource name that satisfied Ref.
	Template string
	// Digest is the content digest of the resolved template.
	Digest string
	Text   string
}

// Options configures an Expander.
type Options struct {
	Policy          tmpl.Policy
	Default         string
	MaxIncludeDepth int
}

// Expander expands templates. It is safe for concurrent use.
type Expander struct {
	provider *resource.Provider
	opts     Options
	parsed   sync.Map // name + "\x00" + digest -> *tmpl.Template
}

// New returns an Expander resolving templates through p.
func New(p *resource.Provider, opts Options) *Expander {
	return &Expander{provider: p, opts: opts}
}

// Expand resolves ref and expands it against data.
func (e *Expander) Expand(ctx context.Context, ref Ref, data model.Value) (Markup, error) {
	if err := ctx.Err(); err != nil {
		return Markup{}, err
	}
	h, err := e.resolve(ctx, ref)
	if err != nil {
		return Markup{}, err
	}
	t, err := e.parse(h)
	if err != nil {
		return Markup{}, err
	}
	tag, _ := language.Parse(ref.Locale)
	opts := tmpl.ExecOptions{
		Policy:          e.opts.Policy,
		Default:         e.opts.Default,
		MaxIncludeDepth: e.opts.MaxIncludeDepth,
		Locale:          tag,
		Includes: func(name string) (*tmpl.Template, error) {
			inc := Ref{Name: name, Locale: ref.Locale}
			h, err := e.resolve(ctx, inc)
			if err != nil {
				return nil, err
			}
			return e.parse(h)
		},
	}
	text, err := t.ExecuteString(data, opts)
	if err != nil {
		return Markup{}, err
	}
	return Markup{Ref: ref, Template: h.Name(), Digest: h.Digest(), Text: text}, nil
}

func (e *Expander) resolve(ctx context.Context, ref Ref) (*resource.Handle, error) {
	if strings.TrimSpace(ref.Name) == "" {
		return nil, &resource.NotFoundError{Name: ref.String(), Kind: resource.KindTemplate}
	}
	tried := 0
	for _, name := range ref.Candidates() {
		h, err := e.provider.Resolve(ctx, name, resource.KindTemplate)
		if err == nil {
			return h, nil
		}
		var nf *resource.NotFoundError
		if !errors.As(err, &nf) {
			return nil, err
		}
		tried += nf.Tried
	}
	return nil, &resource.NotFoundError{Name: ref.String(), Kind: resource.KindTemplate, Tried: tried}
}

func (e *Expander) parse(h *resource.Handle) (*tmpl.Template, error) {
	key := h.Name() + "\x00" + h.Digest()
	if t, ok := e.parsed.Load(key); ok {
		return t.(*tmpl.Template), nil
	}
	t, err := tmpl.Parse(h.Name(), h.Bytes())
	if err != nil {
		return nil, err
	}
	actual, _ := e.parsed.LoadOrStore(key, t)
	return actual.(*tmpl.Template), nil
}

// Forget drops parsed templates. Call it together with Provider.Clear.
func (e *Expander) Forget() {
	e.parsed.Range(func(k, _ any) bool {
		e.parsed.Delete(k)
		return true
	})
}
