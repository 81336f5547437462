package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Source yields resource bytes by slash-separated relative path.
//
// ReadFile must return an error matching fs.ErrNotExist when the path is
// absent; any other error is reported to the caller as a read failure.
type Source interface {
	Name() string
	ReadFile(path string) ([]byte, error)
}

// Fingerprinter is implemented by sources whose identity is more specific
// than their name. The fingerprint is part of every cache key.
type Fingerprinter interface {
	Fingerprint() string
}

func fingerprint(s Source) string {
	if f, ok := s.(Fingerprinter); ok {
		return f.Fingerprint()
	}
	return s.Name()
}

type fsSource struct {
	name string
	fsys fs.FS
}

// FS returns a source backed by an fs.FS (for example an embed.FS).
func FS(name string, fsys fs.FS) Source {
	return &fsSource{name: name, fsys: fsys}
}

func (s *fsSource) Name() string { return s.name }

func (s *fsSource) ReadFile(p string) ([]byte, error) {
	if !fs.ValidPath(p) {
		return nil, fs.ErrNotExist
	}
	return fs.ReadFile(s.fsys, p)
}

type dirSource struct {
	root string
}

// Dir returns a source rooted at a filesystem directory. Names never escape
// the root.
func Dir(root string) Source {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &dirSource{root: abs}
}

func (s *dirSource) Name() string        { return "dir:" + s.root }
func (s *dirSource) Fingerprint() string { return "dir:" + s.root }

func (s *dirSource) ReadFile(p string) ([]byte, error) {
	full := filepath.Join(s.root, filepath.FromSlash(p))
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}
	return os.ReadFile(full)
}

type memorySource struct {
	name  string
	files map[string][]byte
	fp    string
}

// Memory returns a source serving a fixed set of files. The map and its
// byte slices are copied.
func Memory(name string, files map[string][]byte) Source {
	copied := make(map[string][]byte, len(files))
	keys := make([]string, 0, len(files))
	for k, v := range files {
		clean := cleanName(k)
		if clean == "" {
			continue
		}
		copied[clean] = append([]byte(nil), v...)
		keys = append(keys, clean)
	}
	sort.Strings(keys)
	return &memorySource{
		name:  name,
		files: copied,
		fp:    fmt.Sprintf("mem:%s:%s", name, strings.Join(keys, ",")),
	}
}

func (s *memorySource) Name() string        { return s.name }
func (s *memorySource) Fingerprint() string { return s.fp }

func (s *memorySource) ReadFile(p string) ([]byte, error) {
	data, ok := s.files[p]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

type aferoSource struct {
	name string
	fs   afero.Fs
}

// Afero returns a source backed by an afero filesystem.
func Afero(name string, fsys afero.Fs) Source {
	return &aferoSource{name: name, fs: fsys}
}

func (s *aferoSource) Name() string { return s.name }

func (s *aferoSource) ReadFile(p string) ([]byte, error) {
	info, err := s.fs.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}
	return afero.ReadFile(s.fs, p)
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid)
}
