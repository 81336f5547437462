package plaintext

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding is a supported output character set.
type Encoding struct {
	name string
	cm   *charmap.Charmap
}

// Name returns the canonical name.
func (e Encoding) Name() string {
	if e.name == "" {
		return "utf-8"
	}
	return e.name
}

// UTF8 reports whether e is UTF-8.
func (e Encoding) UTF8() bool { return e.cm == nil }

var encodings = map[string]Encoding{
	"utf-8":        {name: "utf-8"},
	"utf8":         {name: "utf-8"},
	"iso-8859-1":   {name: "iso-8859-1", cm: charmap.ISO8859_1},
	"latin1":       {name: "iso-8859-1", cm: charmap.ISO8859_1},
	"latin-1":      {name: "iso-8859-1", cm: charmap.ISO8859_1},
	"windows-1252": {name: "windows-1252", cm: charmap.Windows1252},
	"cp1252":       {name: "windows-1252", cm: charmap.Windows1252},
}

// LookupEncoding resolves an encoding name; empty means UTF-8.
func LookupEncoding(name string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return encodings["utf-8"], nil
	}
	enc, ok := encodings[key]
	if !ok {
		return Encoding{}, fmt.Errorf("plaintext: unsupported encoding %q (use utf-8, iso-8859-1 or windows-1252)", name)
	}
	return enc, nil
}

// substitutes stand in for common typographic runes a code page lacks.
var substitutes = map[rune]byte{
	'•': '*',
	'–': '-',
	'—': '-',
	'‘': '\'',
	'’': '\'',
	'“': '"',
	'”': '"',
	'…': '.',
	'─': '-',
	'│': '|',
	'┼': '+',
}

// encode converts UTF-8 text to e. Runes without a mapping become '?'.
func (e Encoding) encode(s string) []byte {
	if e.cm == nil {
		return []byte(s)
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if b, ok := e.cm.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		if b, ok := substitutes[r]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}
