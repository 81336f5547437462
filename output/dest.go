package output

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// FileDest commits to a file by writing a temporary file in the same
// directory and renaming it over the target.
type FileDest struct {
	fs   afero.Fs
	path string
	perm os.FileMode
}

// File returns a destination on the operating system filesystem.
func File(path string) *FileDest {
	return FileOn(afero.NewOsFs(), path)
}

// FileOn returns a destination on fs.
func FileOn(fs afero.Fs, path string) *FileDest {
	return &FileDest{fs: fs, path: filepath.Clean(path), perm: 0o644}
}

func (d *FileDest) String() string { return d.path }

// Path is the target file.
func (d *FileDest) Path() string { return d.path }

func (d *FileDest) Commit(data []byte) (err error) {
	dir := filepath.Dir(d.path)
	if err := d.fs.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Dest: d.path, Op: "mkdir", Err: err}
	}
	tmp, err := afero.TempFile(d.fs, dir, "."+filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return &WriteError{Dest: d.path, Op: "create temp", Err: err}
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = d.fs.Remove(name)
		}
	}()
	n, err := tmp.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &WriteError{Dest: d.path, Op: "write temp", Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &WriteError{Dest: d.path, Op: "sync", Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &WriteError{Dest: d.path, Op: "close", Err: err}
	}
	if err = d.fs.Chmod(name, d.perm); err != nil {
		return &WriteError{Dest: d.path, Op: "chmod", Err: err}
	}
	if err = d.fs.Rename(name, d.path); err != nil {
		return &WriteError{Dest: d.path, Op: "rename", Err: err}
	}
	return nil
}

// StreamDest commits with a single write to w. A stream cannot be rolled
// back, so nothing reaches it until the document is fully serialized.
type StreamDest struct {
	w    io.Writer
	name string
}

// Stream returns a destination writing to w.
func Stream(w io.Writer) *StreamDest {
	name := "stream"
	if f, ok := w.(interface{ Name() string }); ok {
		name = f.Name()
	}
	return &StreamDest{w: w, name: name}
}

func (d *StreamDest) String() string { return d.name }

func (d *StreamDest) Commit(data []byte) error {
	n, err := d.w.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &WriteError{Dest: d.name, Op: "write", Err: err}
	}
	return nil
}

// MemoryDest keeps the committed bytes.
type MemoryDest struct {
	mu   sync.Mutex
	data []byte
}

// Memory returns an in-memory destination.
func Memory() *MemoryDest { return &MemoryDest{} }

func (d *MemoryDest) String() string { return "memory" }

func (d *MemoryDest) Commit(data []byte) error {
	d.mu.Lock()
	d.data = append([]byte(nil), data...)
	d.mu.Unlock()
	return nil
}

// Bytes returns a copy of the last committed artifact.
func (d *MemoryDest) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.data...)
}
