package report

import (
	"embed"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"

	"pkt.systems/report/resource"
)

//go:embed builtin/templates/*.tmpl
var builtinFS embed.FS

// BuiltinSourceName names the source serving the embedded templates.
const BuiltinSourceName = "builtin"

// BuiltinSource serves the embedded templates (invoice, sample-report and
// landscape-report plus their partials). New appends it after every other
// source, so a search path can shadow any builtin.
func BuiltinSource() resource.Source {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		panic(err)
	}
	return resource.FS(BuiltinSourceName, sub)
}

// BuiltinUnicodeFont is the family BuiltinFontSource serves. The Go fonts
// cover Latin, Greek and Cyrillic, well beyond the Windows-1252 of the core
// PDF fonts, but not CJK.
const BuiltinUnicodeFont = "go"

// BuiltinFontSource serves the Go fonts as fonts/go.ttf plus the -Bold,
// -Italic and -BoldItalic faces. New appends it after BuiltinSource.
func BuiltinFontSource() resource.Source {
	return resource.Memory(BuiltinSourceName+"-fonts", map[string][]byte{
		"fonts/" + BuiltinUnicodeFont + ".ttf":            goregular.TTF,
		"fonts/" + BuiltinUnicodeFont + "-Bold.ttf":       gobold.TTF,
		"fonts/" + BuiltinUnicodeFont + "-Italic.ttf":     goitalic.TTF,
		"fonts/" + BuiltinUnicodeFont + "-BoldItalic.ttf": gobolditalic.TTF,
	})
}

// BuiltinTemplates lists the embedded template names.
func BuiltinTemplates() []string {
	entries, err := builtinFS.ReadDir("builtin/templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".tmpl"))
	}
	sort.Strings(names)
	return names
}
