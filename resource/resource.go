package resource

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
)

// Kind classifies a resource. The kind selects default file extensions and
// the conventional subdirectory searched within each source.
type Kind uint8

const (
	KindTemplate Kind = iota + 1
	KindFont
	KindImage
	KindStyle
)

func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindFont:
		return "font"
	case KindImage:
		return "image"
	case KindStyle:
		return "style"
	default:
		return "unknown"
	}
}

func (k Kind) extensions() []string {
	switch k {
	case KindTemplate:
		return []string{".tmpl", ".html", ".xhtml"}
	case KindFont:
		return []string{".ttf"}
	case KindImage:
		return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".webp"}
	case KindStyle:
		return []string{".css"}
	default:
		return nil
	}
}

func (k Kind) subdir() string {
	switch k {
	case KindTemplate:
		return "templates"
	case KindFont:
		return "fonts"
	case KindImage:
		return "images"
	case KindStyle:
		return "styles"
	default:
		return ""
	}
}

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("resource not found")

// NotFoundError reports that no source yields bytes for a name.
type NotFoundError struct {
	Name  string
	Kind  Kind
	Tried int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found (%d candidates tried)", e.Kind, e.Name, e.Tried)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ReadError reports an I/O failure while reading a resource from a source.
type ReadError struct {
	Name   string
	Kind   Kind
	Source string
	Path   string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s %q from %s (%s): %v", e.Kind, e.Name, e.Source, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Handle is an immutable resolved resource. The byte slice is owned by the
// Provider that produced it; callers borrow it and must not modify it.
type Handle struct {
	name        string
	kind        Kind
	source      string
	path        string
	contentType string
	digest      string
	data        []byte
}

func newHandle(name string, kind Kind, source, matched string, data []byte) *Handle {
	sum := sha256.Sum256(data)
	return &Handle{
		name:        name,
		kind:        kind,
		source:      source,
		path:        matched,
		contentType: detectContentType(kind, matched, data),
		digest:      hex.EncodeToString(sum[:]),
		data:        data,
	}
}

// Name returns the logical name the handle was resolved for.
func (h *Handle) Name() string { return h.name }

// Kind returns the resource kind.
func (h *Handle) Kind() Kind { return h.kind }

// Source returns the name of the source that served the bytes.
func (h *Handle) Source() string { return h.source }

// Path returns the candidate path that matched within the source.
func (h *Handle) Path() string { return h.path }

// ContentType returns a MIME type for the content.
func (h *Handle) ContentType() string { return h.contentType }

// Digest returns the hex SHA-256 of the content.
func (h *Handle) Digest() string { return h.digest }

// Bytes returns the borrowed content.
func (h *Handle) Bytes() []byte { return h.data }

// Len returns the content length in bytes.
func (h *Handle) Len() int { return len(h.data) }

// Reader returns a fresh reader over the content.
func (h *Handle) Reader() *bytes.Reader { return bytes.NewReader(h.data) }

// Equal reports whether two handles carry identical content for the same
// name and kind.
func (h *Handle) Equal(o *Handle) bool {
	if h == nil || o == nil {
		return h == o
	}
	return h.name == o.name && h.kind == o.kind && h.digest == o.digest
}

func detectContentType(kind Kind, matched string, data []byte) string {
	switch kind {
	case KindTemplate:
		return "text/plain; charset=utf-8"
	case KindStyle:
		return "text/css; charset=utf-8"
	case KindFont:
		return "font/ttf"
	}
	switch strings.ToLower(path.Ext(matched)) {
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}

// candidates returns the paths probed within a single source, in order.
func candidates(name string, kind Kind) []string {
	clean := cleanName(name)
	if clean == "" {
		return nil
	}
	bases := []string{clean}
	if !hasExtension(clean, kind) {
		for _, ext := range kind.extensions() {
			bases = append(bases, clean+ext)
		}
	}
	out := make([]string, 0, len(bases)*2)
	out = append(out, bases...)
	if dir := kind.subdir(); dir != "" && !strings.HasPrefix(clean, dir+"/") {
		for _, b := range bases {
			out = append(out, dir+"/"+b)
		}
	}
	return out
}

func cleanName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	if clean == "." {
		return ""
	}
	return clean
}

func hasExtension(name string, kind Kind) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range kind.extensions() {
		if e == ext {
			return true
		}
	}
	return false
}
