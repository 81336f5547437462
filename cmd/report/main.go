package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"pkt.systems/report"
	"pkt.systems/report/layout"
	"pkt.systems/report/model"
	"pkt.systems/report/output"
	"pkt.systems/version"
)

func init() {
	version.SetDefaultModule("pkt.systems/report")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// flagKeys maps command line flags onto report.Config keys.
var flagKeys = map[string]string{
	"search-path":       "template_search_paths",
	"font":              "default_font",
	"page-size":         "page_size",
	"orientation":       "orientation",
	"margins":           "margins",
	"font-size":         "font_size",
	"line-height":       "line_height",
	"undefined":         "undefined_policy",
	"undefined-default": "undefined_default",
	"timeout":           "timeout",
	"format":            "format",
	"encoding":          "output_encoding",
	"strict":            "strict_resources",
	"theme":             "theme",
	"title":             "title",
	"author":            "author",
	"subject":           "subject",
	"compress":          "compress",
	"no-margins":        "no_margins",
	"unicode-font":      "unicode_font",
	"ignore-colors":     "ignore_colors",
	"text-color":        "text_color",
	"background":        "background",
}

type options struct {
	configPath    string
	dataPath      string
	schemaPath    string
	outPath       string
	sets          []string
	ansi          string
	watch         bool
	listTemplates bool
	listThemes    bool
	showVersion   bool
	logLevel      string
	logFormat     string
}

func newFlagSet(opts *options, stderr io.Writer) *pflag.FlagSet {
	defaults := report.DefaultConfig()
	flags := pflag.NewFlagSet("report", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file (YAML); report.yaml in the working directory is used when present")
	flags.StringVarP(&opts.dataPath, "data", "d", "", "Data file (JSON or YAML, - for stdin, file:// or http(s):// URL)")
	flags.StringVar(&opts.schemaPath, "schema", "", "Schema file (YAML mapping of data paths to kinds)")
	flags.StringVarP(&opts.outPath, "output", "o", "", "Output file instead of stdout")
	flags.StringArrayVar(&opts.sets, "set", nil, "Set a top-level data value (key=value, repeatable)")
	flags.StringVar(&opts.ansi, "ansi", "auto", "ANSI styling for text output: auto|on|off")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "Re-render when templates, resources or the data file change")
	flags.BoolVar(&opts.listTemplates, "list-templates", false, "List builtin templates")
	flags.BoolVar(&opts.listThemes, "list-themes", false, "List available themes")
	flags.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format: text|json")

	flags.StringSliceP("search-path", "I", nil, "Template search path (repeatable, searched in order)")
	flags.StringP("format", "f", defaults.Format, "Output format: pdf|text")
	flags.String("page-size", "A4", "Page size: A3|A4|A5|Letter|Legal or WIDTHxHEIGHT")
	flags.String("orientation", defaults.Orientation, "Page orientation: portrait|landscape")
	flags.String("margins", formatLength(defaults.Margins.Top), "Page margins, CSS shorthand with units (e.g. \"2cm 1cm\")")
	flags.Bool("no-margins", false, "Lay out pages without margins")
	flags.String("font", defaults.DefaultFont, "Default font (core font name or font resource)")
	flags.String("unicode-font", defaults.UnicodeFont, "Font for PDF text the core fonts cannot encode")
	flags.String("font-size", formatLength(defaults.FontSize), "Base font size")
	flags.Float64("line-height", defaults.LineHeight, "Line height multiplier")
	flags.String("theme", defaults.Theme, "Theme name")
	flags.String("undefined", defaults.UndefinedPolicy, "Undefined reference policy: fail|default")
	flags.String("undefined-default", "", "Substitute for undefined references with --undefined=default")
	flags.Duration("timeout", 0, "Render deadline checked between stages (0 disables)")
	flags.String("encoding", defaults.OutputEncoding, "Text output encoding: utf-8|iso-8859-1|windows-1252")
	flags.Bool("strict", false, "Fail on unresolvable fonts instead of falling back")
	flags.Bool("compress", defaults.Compress, "Compress PDF streams")
	flags.Bool("ignore-colors", false, "Draw PDF text and rules in --text-color and drop fills")
	flags.String("text-color", defaults.TextColor, "Text colour with --ignore-colors")
	flags.String("background", "", "PDF page background colour (e.g. \"#fffbe6\")")
	flags.String("title", "", "Document title")
	flags.String("author", "", "Document author")
	flags.String("subject", "", "Document subject")

	flags.SetInterspersed(true)
	flags.Usage = func() {
		fmt.Fprintln(stderr, version.Module(), version.Current())
		fmt.Fprintf(stderr, "Usage: report [flags] TEMPLATE\n")
		fmt.Fprintln(stderr, "\nTEMPLATE is name[@version][#locale], resolved through the search paths and")
		fmt.Fprintln(stderr, "then the builtin templates. Settings come from flags, REPORT_* environment")
		fmt.Fprintln(stderr, "variables and the config file, in that order.")
		fmt.Fprintln(stderr, "\nFlags:")
		flags.PrintDefaults()
	}
	return flags
}

func formatLength(pt float64) string {
	return strconv.FormatFloat(pt, 'f', -1, 64) + "pt"
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	flags := newFlagSet(&opts, stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.showVersion {
		fmt.Fprintln(stdout, version.Module(), version.Current())
		return 0
	}
	if opts.listTemplates {
		for _, name := range report.BuiltinTemplates() {
			fmt.Fprintln(stdout, name)
		}
		return 0
	}
	if opts.listThemes {
		for _, name := range layout.AvailableThemes() {
			fmt.Fprintln(stdout, name)
		}
		return 0
	}

	logger, err := newLogger(stderr, opts.logLevel, opts.logFormat)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return 2
	}
	template := flags.Arg(0)

	v, err := newViper(flags, opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	if !v.IsSet("format") && strings.HasSuffix(strings.ToLower(opts.outPath), ".txt") {
		fmt.Fprintf(stderr, "warning: output %q ends with .txt; using --format=text\n", opts.outPath)
		v.Set("format", report.FormatText)
	}
	cfg, err := report.ConfigFromViper(v)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	if cfg.Date.IsZero() {
		if cfg.Date, err = sourceDateEpoch(); err != nil {
			fmt.Fprintf(stderr, "SOURCE_DATE_EPOCH: %v\n", err)
			return 2
		}
	}

	var stdoutFile *os.File
	if f, ok := stdout.(*os.File); ok {
		stdoutFile = f
	}
	toTerminal := opts.outPath == "" && stdoutFile != nil && term.IsTerminal(int(stdoutFile.Fd()))
	if strings.EqualFold(cfg.Format, report.FormatPDF) && toTerminal {
		fmt.Fprintln(stderr, "refusing to write PDF to terminal; use -o/--output")
		return 2
	}
	ansi, err := resolveANSI(opts.ansi, toTerminal)
	if err != nil {
		fmt.Fprintf(stderr, "invalid --ansi %q: %v\n", opts.ansi, err)
		return 2
	}
	cfg.ANSI = ansi && opts.outPath == ""

	if opts.watch && opts.outPath == "" {
		fmt.Fprintln(stderr, "--watch needs -o/--output")
		return 2
	}

	engine, err := report.New(cfg, report.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	var schema model.Schema
	if opts.schemaPath != "" {
		raw, err := os.ReadFile(normalizePath(opts.schemaPath))
		if err != nil {
			fmt.Fprintf(stderr, "schema: %v\n", err)
			return 2
		}
		if schema, err = model.LoadSchemaYAML(raw); err != nil {
			fmt.Fprintf(stderr, "schema: %v\n", err)
			return 2
		}
	}

	j := &job{
		engine:   engine,
		template: template,
		dataPath: opts.dataPath,
		sets:     opts.sets,
		schema:   schema,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		outPath:  opts.outPath,
		logger:   logger,
	}
	err = j.render(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", describe(err))
		if !opts.watch {
			return 1
		}
	}
	if !opts.watch {
		return 0
	}
	if err := watch(ctx, j, cfg.TemplateSearchPaths); err != nil {
		fmt.Fprintf(stderr, "watch: %v\n", err)
		return 1
	}
	return 0
}

func newViper(flags *pflag.FlagSet, configPath string) (*viper.Viper, error) {
	v := report.NewViper()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, err
		}
	}
	if configPath != "" {
		v.SetConfigFile(normalizePath(configPath))
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		return v, nil
	}
	v.SetConfigName("report")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return v, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: expected debug|info|warn|error", level)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return nil, fmt.Errorf("invalid --log-format %q: expected text|json", format)
}

func resolveANSI(mode string, terminal bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		return terminal && os.Getenv("NO_COLOR") == "", nil
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected auto|on|off")
	}
}

// sourceDateEpoch reads SOURCE_DATE_EPOCH for reproducible builds. Unset
// yields the zero time.
func sourceDateEpoch() (time.Time, error) {
	raw := strings.TrimSpace(os.Getenv("SOURCE_DATE_EPOCH"))
	if raw == "" {
		return time.Time{}, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected unix seconds, got %q", raw)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// describe renders a pipeline failure with its stage and position.
func describe(err error) string {
	var re *report.Error
	if !errors.As(err, &re) {
		return err.Error()
	}
	msg := fmt.Sprintf("%s failed (%s): %v", re.Stage, re.Kind, re.Cause)
	if !re.Position.IsZero() {
		msg += "\n  at " + re.Position.String()
	}
	return msg
}

// job is one configured render, repeated on every change in watch mode.
type job struct {
	engine   *report.Engine
	template string
	dataPath string
	sets     []string
	schema   model.Schema
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	outPath  string
	logger   *slog.Logger
}

func (j *job) render(ctx context.Context) error {
	data, err := loadData(j.dataPath, j.stdin)
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if data, err = applySets(data, j.sets); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	var dest output.Destination = output.Stream(j.stdout)
	if j.outPath != "" {
		dest = output.File(normalizePath(j.outPath))
	}
	_, err = j.engine.Render(ctx, report.Request{
		Template: j.template,
		Data:     data,
		Schema:   j.schema,
		Dest:     dest,
	})
	return err
}

// loadData reads the data model. YAML is recognised by extension; anything
// else is parsed as JSON. An empty path means no data.
func loadData(path string, stdin io.Reader) (any, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		src, err := makeInputSource(path)
		if err != nil {
			return nil, err
		}
		reader, closer, err := src.open()
		if err != nil {
			return nil, err
		}
		if closer != nil {
			defer func() { _ = closer.Close() }()
		}
		r = reader
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(trimQuery(path))) {
	case ".yaml", ".yml":
		return model.LoadYAML(raw)
	}
	return model.LoadJSON(bytes.NewReader(raw))
}

func trimQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}

// applySets overlays key=value pairs onto the top-level data mapping.
// Values are strings.
func applySets(data any, sets []string) (any, error) {
	if len(sets) == 0 {
		return data, nil
	}
	var fields model.Fields
	switch d := data.(type) {
	case nil:
	case model.Fields:
		fields = append(fields, d...)
	default:
		return nil, fmt.Errorf("--set needs the data to be a mapping, got %T", data)
	}
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q: expected key=value", s)
		}
		replaced := false
		for i := range fields {
			if fields[i].Name == key {
				fields[i].Value = value
				replaced = true
			}
		}
		if !replaced {
			fields = append(fields, model.Field{Name: key, Value: value})
		}
	}
	return fields, nil
}

type inputSource struct {
	open func() (io.Reader, io.Closer, error)
}

func makeInputSource(raw string) (inputSource, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return inputSource{}, fmt.Errorf("empty input argument")
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme != "" {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return inputSource{open: func() (io.Reader, io.Closer, error) {
				return openURL(raw)
			}}, nil
		case "file":
			path := u.Path
			if path == "" {
				path = u.Host
			}
			if unescaped, err := url.PathUnescape(path); err == nil {
				path = unescaped
			}
			return inputSource{open: func() (io.Reader, io.Closer, error) {
				return openFile(path)
			}}, nil
		}
	}
	return inputSource{open: func() (io.Reader, io.Closer, error) {
		return openFile(raw)
	}}, nil
}

func openURL(raw string) (io.Reader, io.Closer, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, raw, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, nil, fmt.Errorf("http %s: %s", raw, resp.Status)
	}
	return resp.Body, resp.Body, nil
}

func openFile(path string) (io.Reader, io.Closer, error) {
	f, err := os.Open(normalizePath(path))
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

func normalizePath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				path = home
			} else {
				path = filepath.Join(home, path[2:])
			}
		}
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		return abs
	}
	return path
}
