package report

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pkt.systems/report/layout"
	"pkt.systems/report/pdf"
	"pkt.systems/report/plaintext"
	"pkt.systems/report/tmpl"
)

// Output formats.
const (
	FormatPDF  = "pdf"
	FormatText = "text"
)

// Config holds engine settings. It persists across render calls.
type Config struct {
	// TemplateSearchPaths are directories or http(s) base URLs searched in
	// order for templates, fonts and images. Builtin templates are searched
	// last.
	TemplateSearchPaths []string `mapstructure:"template_search_paths" yaml:"template_search_paths"`
	DefaultFont         string   `mapstructure:"default_font" yaml:"default_font"`
	// PageSize accepts a name (A4, Letter, ...) or "WIDTHxHEIGHT" when loaded
	// through viper.
	PageSize    layout.Size    `mapstructure:"page_size" yaml:"page_size"`
	Orientation string         `mapstructure:"orientation" yaml:"orientation"`
	// Margins overlay field by field only when some side is non-zero; set
	// NoMargins for a page without margins.
	Margins     layout.Margins `mapstructure:"margins" yaml:"margins"`
	NoMargins   bool           `mapstructure:"no_margins" yaml:"no_margins"`
	FontSize    float64        `mapstructure:"font_size" yaml:"font_size"`
	LineHeight  float64        `mapstructure:"line_height" yaml:"line_height"`
	// UndefinedPolicy is "fail" or "default".
	UndefinedPolicy  string        `mapstructure:"undefined_policy" yaml:"undefined_policy"`
	UndefinedDefault string        `mapstructure:"undefined_default" yaml:"undefined_default"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Format           string        `mapstructure:"format" yaml:"format"`
	// OutputEncoding applies to the text format.
	OutputEncoding  string `mapstructure:"output_encoding" yaml:"output_encoding"`
	ANSI            bool   `mapstructure:"ansi" yaml:"ansi"`
	StrictResources bool   `mapstructure:"strict_resources" yaml:"strict_resources"`
	Theme           string `mapstructure:"theme" yaml:"theme"`
	// UnicodeFont takes over PDF text the core fonts cannot encode. The
	// default is the builtin Go font family.
	UnicodeFont string `mapstructure:"unicode_font" yaml:"unicode_font"`

	// IgnoreColors draws PDF text and rules in TextColor and drops fills.
	IgnoreColors bool   `mapstructure:"ignore_colors" yaml:"ignore_colors"`
	TextColor    string `mapstructure:"text_color" yaml:"text_color"`
	// Background paints every PDF page in this colour. Empty leaves pages
	// unpainted.
	Background string `mapstructure:"background" yaml:"background"`

	Title   string `mapstructure:"title" yaml:"title"`
	Author  string `mapstructure:"author" yaml:"author"`
	Subject string `mapstructure:"subject" yaml:"subject"`
	// Date is stamped into PDF metadata. Zero keeps a fixed date so output
	// stays reproducible.
	Date     time.Time `mapstructure:"date" yaml:"date"`
	Compress bool      `mapstructure:"compress" yaml:"compress"`
}

// DefaultConfig returns A4 portrait PDF output with 12pt Helvetica and the
// fail-fast undefined policy.
func DefaultConfig() Config {
	page := layout.DefaultPageConfig()
	return Config{
		DefaultFont:     page.DefaultFont,
		PageSize:        page.Size,
		Orientation:     "portrait",
		Margins:         page.Margins,
		FontSize:        page.FontSize,
		LineHeight:      page.LineHeight,
		UndefinedPolicy: tmpl.PolicyFail.String(),
		Format:          FormatPDF,
		OutputEncoding:  "utf-8",
		Theme:           "default",
		UnicodeFont:     BuiltinUnicodeFont,
		TextColor:       "black",
		Compress:        true,
	}
}

// applyConfig overlays the non-zero fields of src onto dst. Booleans are
// copied as given.
func applyConfig(dst *Config, src Config) {
	if len(src.TemplateSearchPaths) > 0 {
		dst.TemplateSearchPaths = append([]string(nil), src.TemplateSearchPaths...)
	}
	if src.DefaultFont != "" {
		dst.DefaultFont = src.DefaultFont
	}
	if src.PageSize.Width > 0 && src.PageSize.Height > 0 {
		dst.PageSize = src.PageSize
	}
	if src.Orientation != "" {
		dst.Orientation = src.Orientation
	}
	if src.Margins != (layout.Margins{}) {
		dst.Margins = src.Margins
	}
	if src.FontSize > 0 {
		dst.FontSize = src.FontSize
	}
	if src.LineHeight > 0 {
		dst.LineHeight = src.LineHeight
	}
	if src.UndefinedPolicy != "" {
		dst.UndefinedPolicy = src.UndefinedPolicy
	}
	if src.UndefinedDefault != "" {
		dst.UndefinedDefault = src.UndefinedDefault
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.OutputEncoding != "" {
		dst.OutputEncoding = src.OutputEncoding
	}
	if src.Theme != "" {
		dst.Theme = src.Theme
	}
	if src.UnicodeFont != "" {
		dst.UnicodeFont = src.UnicodeFont
	}
	if src.TextColor != "" {
		dst.TextColor = src.TextColor
	}
	if src.Background != "" {
		dst.Background = src.Background
	}
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Author != "" {
		dst.Author = src.Author
	}
	if src.Subject != "" {
		dst.Subject = src.Subject
	}
	if !src.Date.IsZero() {
		dst.Date = src.Date
	}
	dst.ANSI = src.ANSI
	dst.StrictResources = src.StrictResources
	dst.Compress = src.Compress
	dst.NoMargins = src.NoMargins
	dst.IgnoreColors = src.IgnoreColors
}

// Validate reports settings no render could succeed with.
func (c Config) Validate() error {
	if _, err := c.pageConfig(); err != nil {
		return err
	}
	if _, err := tmpl.ParsePolicy(c.UndefinedPolicy); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	switch strings.ToLower(c.Format) {
	case FormatPDF, FormatText:
	default:
		return fmt.Errorf("report: unknown format %q (use pdf or text)", c.Format)
	}
	if _, err := plaintext.LookupEncoding(c.OutputEncoding); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("report: negative timeout %s", c.Timeout)
	}
	if _, err := c.colors(); err != nil {
		return err
	}
	return nil
}

type pdfColors struct {
	text       layout.Color
	background layout.Color
	painted    bool
}

func (c Config) colors() (pdfColors, error) {
	var out pdfColors
	if c.TextColor != "" {
		col, err := layout.ParseColor(c.TextColor)
		if err != nil {
			return out, fmt.Errorf("report: text color: %w", err)
		}
		out.text = col
	}
	if c.Background != "" {
		col, err := layout.ParseColor(c.Background)
		if err != nil {
			return out, fmt.Errorf("report: background: %w", err)
		}
		out.background, out.painted = col, true
	}
	return out, nil
}

// pdfConfig derives the PDF writer settings. c must be valid.
func (c Config) pdfConfig() pdf.Config {
	colors, _ := c.colors()
	return pdf.Config{
		Uncompressed:      !c.Compress,
		IgnoreColors:      c.IgnoreColors,
		TextRGB:           [3]int(colors.text),
		BackgroundEnabled: colors.painted,
		BackgroundRGB:     [3]int(colors.background),
	}
}

// pageConfig derives the layout geometry.
func (c Config) pageConfig() (layout.PageConfig, error) {
	theme, ok := layout.ThemeByName(c.Theme)
	if !ok {
		return layout.PageConfig{}, fmt.Errorf("report: unknown theme %q (available: %s)", c.Theme, strings.Join(layout.AvailableThemes(), ", "))
	}
	size, err := c.PageSize.Orient(c.Orientation)
	if err != nil {
		return layout.PageConfig{}, fmt.Errorf("report: %w", err)
	}
	pc := layout.DefaultPageConfig()
	pc.Size = size
	pc.Margins = c.Margins
	if c.NoMargins {
		pc.Margins = layout.Margins{}
		pc.NoMargins = true
	}
	pc.DefaultFont = c.DefaultFont
	pc.FontSize = c.FontSize
	pc.LineHeight = c.LineHeight
	pc.Theme = theme
	pc.StrictResources = c.StrictResources
	pc.UnicodeFont = c.UnicodeFont
	if err := pc.Validate(); err != nil {
		return layout.PageConfig{}, fmt.Errorf("report: %w", err)
	}
	return pc, nil
}

// ParseLength parses a length such as "2cm", "0.5in", "12pt" or "12" into
// points.
func ParseLength(s string) (float64, error) {
	return layout.ParseLength(s)
}

var configKeys = []string{
	"template_search_paths", "default_font", "page_size", "orientation", "margins",
	"font_size", "line_height", "undefined_policy", "undefined_default", "timeout",
	"format", "output_encoding", "ansi", "strict_resources", "theme",
	"title", "author", "subject", "date", "compress", "no_margins",
	"unicode_font", "ignore_colors", "text_color", "background",
}

// NewViper returns a viper instance that knows every Config key and reads
// REPORT_ prefixed environment overrides, e.g. REPORT_PAGE_SIZE=letter.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("REPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// ConfigFromViper decodes v over DefaultConfig and validates the result.
// Lengths accept units, page sizes accept names and margins accept either
// CSS shorthand ("2cm 1cm") or a top/right/bottom/left mapping.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return Config{}, fmt.Errorf("report: config: %w", err)
	}
	if v.IsSet("margins") && cfg.Margins == (layout.Margins{}) {
		cfg.NoMargins = true
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToSliceHookFunc(","),
		lengthHook,
	)
}

var (
	sizeType    = reflect.TypeOf(layout.Size{})
	marginsType = reflect.TypeOf(layout.Margins{})
	floatType   = reflect.TypeOf(float64(0))
)

func lengthHook(from, to reflect.Type, data any) (any, error) {
	switch to {
	case sizeType:
		if s, ok := data.(string); ok {
			return layout.ParsePageSize(s)
		}
	case marginsType:
		switch d := data.(type) {
		case string:
			return layout.ParseMargins(d)
		case map[string]any:
			return marginsFromMap(d)
		case int, int64, float64:
			return layout.ParseMargins(fmt.Sprint(d))
		}
	case floatType:
		if s, ok := data.(string); ok && from.Kind() == reflect.String {
			return layout.ParseLength(s)
		}
	}
	return data, nil
}

func marginsFromMap(m map[string]any) (layout.Margins, error) {
	var out layout.Margins
	sides := map[string]*float64{"top": &out.Top, "right": &out.Right, "bottom": &out.Bottom, "left": &out.Left}
	for key, raw := range m {
		dst, ok := sides[strings.ToLower(key)]
		if !ok {
			return layout.Margins{}, fmt.Errorf("unknown margin %q", key)
		}
		v, err := layout.ParseLength(fmt.Sprint(raw))
		if err != nil {
			return layout.Margins{}, fmt.Errorf("margin %s: %w", key, err)
		}
		*dst = v
	}
	return out, nil
}
