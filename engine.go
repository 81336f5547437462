package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pkt.systems/report/expand"
	"pkt.systems/report/layout"
	"pkt.systems/report/model"
	"pkt.systems/report/output"
	"pkt.systems/report/pdf"
	"pkt.systems/report/plaintext"
	"pkt.systems/report/resource"
	"pkt.systems/report/tmpl"
)

// Engine renders reports. Its configuration and resource cache persist
// across calls; everything else belongs to a single call. An Engine is safe
// for concurrent use.
type Engine struct {
	cfg        Config
	pageCfg    layout.PageConfig
	provider   *resource.Provider
	expander   *expand.Expander
	renderer   *layout.Renderer
	serializer output.Serializer
	logger     *slog.Logger

	sources []resource.Source
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used when the render context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSources adds resource sources searched after the configured search
// paths and before the builtin templates.
func WithSources(sources ...resource.Source) Option {
	return func(e *Engine) {
		e.sources = append(e.sources, sources...)
	}
}

// WithProvider replaces the resource provider. Search paths, WithSources
// and the builtin templates are ignored; p decides everything. Engines may
// share a provider to share its cache.
func WithProvider(p *resource.Provider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// New returns an Engine for cfg. Zero fields of cfg take their
// DefaultConfig value; booleans are taken as given.
func New(cfg Config, opts ...Option) (*Engine, error) {
	full := DefaultConfig()
	applyConfig(&full, cfg)
	full.Format = strings.ToLower(full.Format)
	if err := full.Validate(); err != nil {
		return nil, err
	}
	pc, err := full.pageConfig()
	if err != nil {
		return nil, err
	}
	policy, err := tmpl.ParsePolicy(full.UndefinedPolicy)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	e := &Engine{cfg: full, pageCfg: pc, logger: discardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	if e.provider == nil {
		var sources []resource.Source
		for _, dir := range full.TemplateSearchPaths {
			if !resource.IsURL(dir) {
				sources = append(sources, resource.Dir(dir))
				continue
			}
			src, err := resource.HTTP(dir, nil)
			if err != nil {
				return nil, fmt.Errorf("report: search path: %w", err)
			}
			sources = append(sources, src)
		}
		sources = append(sources, e.sources...)
		sources = append(sources, BuiltinSource(), BuiltinFontSource())
		e.provider = resource.New(sources...)
	}
	e.expander = expand.New(e.provider, expand.Options{
		Policy:  policy,
		Default: full.UndefinedDefault,
	})

	switch full.Format {
	case FormatText:
		e.renderer = layout.NewRenderer(e.provider, layout.WithMetrics(func() layout.Metrics {
			return plaintext.NewMetrics(full.FontSize)
		}))
		e.serializer = plaintext.Serializer{Config: plaintext.Config{
			Encoding: full.OutputEncoding,
			ANSI:     full.ANSI,
		}}
	default:
		e.renderer = layout.NewRenderer(e.provider, layout.WithMetrics(pdf.LayoutMetrics))
		e.serializer = pdf.Serializer{Config: full.pdfConfig()}
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.TemplateSearchPaths = append([]string(nil), e.cfg.TemplateSearchPaths...)
	return cfg
}

// Provider returns the resource provider, for eviction and statistics.
func (e *Engine) Provider() *resource.Provider { return e.provider }

// Format is the output format, "pdf" or "text".
func (e *Engine) Format() string { return e.serializer.Format() }

// ContentType is the MIME type of the output.
func (e *Engine) ContentType() string { return e.serializer.ContentType() }

// Evict drops one cached resource. Later renders read it again.
func (e *Engine) Evict(name string, kind resource.Kind) bool {
	return e.provider.Evict(name, kind)
}

// EvictPath drops every cached resource loaded from the file at path and
// reports how many were dropped.
func (e *Engine) EvictPath(path string) int {
	return e.provider.EvictPath(path)
}

// ClearCache drops every cached resource and parsed template.
func (e *Engine) ClearCache() {
	e.provider.Clear()
	e.expander.Forget()
}

// Request is one render call.
type Request struct {
	// Template is "name[@version][#locale]".
	Template string
	// Data is the raw data model; see model.Bind for accepted shapes.
	Data   any
	Schema model.Schema
	// Dest receives the document. Nil keeps it in memory and returns the
	// bytes in Result.Data.
	Dest output.Destination
	// PageSize and Orientation override the configured page for this call.
	// A <page> directive in the template still wins.
	PageSize    string
	Orientation string
}

// Result describes a completed render.
type Result struct {
	Artifact output.Artifact
	// Data holds the document when Request.Dest was nil.
	Data []byte
	// Template is the resource that satisfied the template reference.
	Template string
	Pages    int
	// PageSize is the first page's size after overrides and page
	// directives.
	PageSize layout.Size
	// Warnings record non-fatal substitutions such as font fallbacks.
	Warnings []layout.Warning
	Trace    []State
	Duration time.Duration
}

// call is the per-render context. It is created by Render and never shared.
type call struct {
	req     Request
	ref     expand.Ref
	pageCfg layout.PageConfig
	dest    output.Destination

	data     model.Value
	markup   expand.Markup
	doc      *layout.Document
	warnings []layout.Warning
	artifact output.Artifact
}

type stage struct {
	state State
	run   func(context.Context, *call) error
}

func (e *Engine) stages() []stage {
	return []stage{
		{Binding, e.bind},
		{Expanding, e.expand},
		{LayingOut, e.layout},
		{Writing, e.write},
	}
}

// Render runs one report through binding, expansion, layout and writing.
// Stages run strictly in order and the first failure ends the call with an
// *Error naming the stage. A deadline on ctx or Config.Timeout is checked
// between stages; a stage that has started always runs to completion.
//
// Request problems that no stage could fix (an empty template name, a bad
// page override) are reported before binding as plain errors.
func (e *Engine) Render(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	c, err := e.newCall(req)
	if err != nil {
		return nil, err
	}
	logger := e.loggerFor(ctx)
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	m := newMachine()
	for _, st := range e.stages() {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(logger, m, c, st.state, fmt.Errorf("deadline passed before %s: %w", st.state, err))
		}
		if err := m.advance(st.state); err != nil {
			return nil, err
		}
		t0 := time.Now()
		if err := st.run(context.WithoutCancel(ctx), c); err != nil {
			return nil, e.fail(logger, m, c, st.state, err)
		}
		logger.Debug("stage done",
			"stage", st.state.String(),
			"template", req.Template,
			"duration", time.Since(t0),
		)
	}
	if err := m.advance(Done); err != nil {
		return nil, err
	}

	res := &Result{
		Artifact: c.artifact,
		Template: c.markup.Template,
		Pages:    len(c.doc.Pages),
		PageSize: c.doc.Size,
		Warnings: c.warnings,
		Trace:    m.Trace(),
		Duration: time.Since(start),
	}
	if mem, ok := c.dest.(*output.MemoryDest); ok && req.Dest == nil {
		res.Data = mem.Bytes()
	}
	for _, w := range c.warnings {
		logger.Warn("render warning", "template", req.Template, "warning", w.String())
	}
	logger.Info("report rendered",
		"template", res.Template,
		"dest", c.artifact.Destination,
		"pages", res.Pages,
		"bytes", c.artifact.Bytes,
		"warnings", len(res.Warnings),
		"duration", res.Duration,
	)
	return res, nil
}

// RenderBytes renders req into memory and returns the document bytes.
// req.Dest is ignored.
func (e *Engine) RenderBytes(ctx context.Context, req Request) ([]byte, error) {
	req.Dest = nil
	res, err := e.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (e *Engine) newCall(req Request) (*call, error) {
	ref, err := expand.ParseRef(req.Template)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	pc, err := e.requestPage(req)
	if err != nil {
		return nil, err
	}
	dest := req.Dest
	if dest == nil {
		dest = output.Memory()
	}
	return &call{req: req, ref: ref, pageCfg: pc, dest: dest}, nil
}

// requestPage applies the page overrides of req to the configured page.
func (e *Engine) requestPage(req Request) (layout.PageConfig, error) {
	pc := e.pageCfg
	if req.PageSize == "" && req.Orientation == "" {
		return pc, nil
	}
	size := e.cfg.PageSize
	if req.PageSize != "" {
		parsed, err := layout.ParsePageSize(req.PageSize)
		if err != nil {
			return layout.PageConfig{}, fmt.Errorf("report: %w", err)
		}
		size = parsed
	}
	orientation := e.cfg.Orientation
	if req.Orientation != "" {
		orientation = req.Orientation
	}
	oriented, err := size.Orient(orientation)
	if err != nil {
		return layout.PageConfig{}, fmt.Errorf("report: %w", err)
	}
	pc.Size = oriented
	if err := pc.Validate(); err != nil {
		return layout.PageConfig{}, fmt.Errorf("report: %w", err)
	}
	return pc, nil
}

func (e *Engine) bind(_ context.Context, c *call) error {
	var opts []model.Option
	if c.req.Schema != nil {
		opts = append(opts, model.WithSchema(c.req.Schema))
	}
	v, err := model.Bind(c.req.Data, opts...)
	if err != nil {
		return err
	}
	c.data = v
	return nil
}

func (e *Engine) expand(ctx context.Context, c *call) error {
	markup, err := e.expander.Expand(ctx, c.ref, c.data)
	if err != nil {
		return err
	}
	c.markup = markup
	return nil
}

func (e *Engine) layout(ctx context.Context, c *call) error {
	doc, warnings, err := e.renderer.Layout(ctx, c.markup.Text, c.pageCfg)
	if err != nil {
		return err
	}
	doc.Meta = layout.Meta{
		Title:   e.cfg.Title,
		Author:  e.cfg.Author,
		Subject: e.cfg.Subject,
		Date:    e.cfg.Date,
	}
	c.doc, c.warnings = doc, warnings
	return nil
}

func (e *Engine) write(_ context.Context, c *call) error {
	artifact, err := output.Write(c.doc, e.serializer, c.dest)
	if err != nil {
		return err
	}
	c.artifact = artifact
	return nil
}

func (e *Engine) fail(logger *slog.Logger, m *machine, c *call, at State, err error) error {
	re := classify(at, err)
	_ = m.fail()
	re.Trace = m.Trace()
	logger.Error("render failed",
		"template", c.req.Template,
		"stage", re.Stage.String(),
		"kind", re.Kind.String(),
		"position", re.Position.String(),
		"error", re.Cause,
	)
	return re
}

func (e *Engine) loggerFor(ctx context.Context) *slog.Logger {
	if logger, ok := LoggerFromContext(ctx); ok {
		return logger
	}
	return e.logger
}
