package output

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/report/layout"
)

type lineSerializer struct {
	fail error
}

func (lineSerializer) Format() string      { return "lines" }
func (lineSerializer) ContentType() string { return "text/plain" }

func (s lineSerializer) Serialize(w io.Writer, doc *layout.Document) error {
	if s.fail != nil {
		return s.fail
	}
	for _, p := range doc.Pages {
		for _, it := range p.Items {
			if t, ok := it.(*layout.Text); ok {
				if _, err := io.WriteString(w, t.Text+"\n"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func testDoc(text string) *layout.Document {
	return &layout.Document{
		Size: layout.Size{Width: 200, Height: 200},
		Pages: []*layout.Page{{
			Number: 1,
			Items: []layout.Item{&layout.Text{
				Box:      layout.Box{X: 10, Y: 10, W: 50, H: 14},
				Baseline: 20,
				Text:     text,
				Font:     layout.Font{Family: "Helvetica", Size: 12},
			}},
		}},
	}
}

// failFs fails writes to temporary files after the first n bytes.
type failFs struct {
	afero.Fs
	limit   int
	rename  bool
	created []string
}

func (f *failFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	f.created = append(f.created, name)
	return &failFile{File: file, left: f.limit}, nil
}

func (f *failFs) Rename(oldname, newname string) error {
	if f.rename {
		return errors.New("rename refused")
	}
	return f.Fs.Rename(oldname, newname)
}

type failFile struct {
	afero.File
	left int
}

func (f *failFile) Write(p []byte) (int, error) {
	if f.left < 0 {
		return f.File.Write(p)
	}
	if len(p) > f.left {
		n, _ := f.File.Write(p[:f.left])
		f.left = 0
		return n, errors.New("disk full")
	}
	f.left -= len(p)
	return f.File.Write(p)
}

func TestWriteMemory(t *testing.T) {
	dest := Memory()
	art, err := Write(testDoc("hello"), lineSerializer{}, dest)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(dest.Bytes()))
	assert.Equal(t, "memory", art.Destination)
	assert.Equal(t, "lines", art.Format)
	assert.Equal(t, "text/plain", art.ContentType)
	assert.Equal(t, 6, art.Bytes)
	assert.Len(t, art.Digest, 64)
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/report.txt", []byte("old\n"), 0o644))

	art, err := Write(testDoc("new"), lineSerializer{}, FileOn(fs, "/out/report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/out/report.txt", art.Destination)

	got, err := afero.ReadFile(fs, "/out/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(got))

	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Write(testDoc("x"), lineSerializer{}, FileOn(fs, "/a/b/c.txt"))
	require.NoError(t, err)
	ok, err := afero.Exists(fs, "/a/b/c.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteFailurePreservesPriorContent(t *testing.T) {
	for name, fs := range map[string]*failFs{
		"short write": {Fs: afero.NewMemMapFs(), limit: 2},
		"rename":      {Fs: afero.NewMemMapFs(), limit: -1, rename: true},
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, afero.WriteFile(fs.Fs, "/out/report.txt", []byte("prior\n"), 0o644))

			_, err := Write(testDoc("replacement"), lineSerializer{}, FileOn(fs, "/out/report.txt"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrWrite)
			var we *WriteError
			require.ErrorAs(t, err, &we)
			assert.Equal(t, "/out/report.txt", we.Dest)

			got, err := afero.ReadFile(fs.Fs, "/out/report.txt")
			require.NoError(t, err)
			assert.Equal(t, "prior\n", string(got))

			for _, tmp := range fs.created {
				ok, _ := afero.Exists(fs.Fs, tmp)
				assert.False(t, ok, "temporary file %s not removed", tmp)
			}
		})
	}
}

func TestWriteFileOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.txt")
	_, err := Write(testDoc("disk"), lineSerializer{}, File(path))
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "disk\n", string(got))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestSerializationFailureTouchesNothing(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(testDoc("x"), lineSerializer{fail: errors.New("boom")}, Stream(&buf))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.NotErrorIs(t, err, ErrWrite)
	assert.Zero(t, buf.Len())
}

func TestInvalidDocumentIsSerializationError(t *testing.T) {
	doc := testDoc("x")
	doc.Pages = nil
	dest := Memory()
	_, err := Write(doc, lineSerializer{}, dest)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.Empty(t, dest.Bytes())

	_, err = Write(nil, lineSerializer{}, dest)
	assert.ErrorIs(t, err, ErrSerialization)
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestStreamErrors(t *testing.T) {
	_, err := Write(testDoc("abcdef"), lineSerializer{}, Stream(shortWriter{}))
	require.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, io.ErrShortWrite)

	_, err = Write(testDoc("abcdef"), lineSerializer{}, Stream(errWriter{}))
	require.ErrorIs(t, err, ErrWrite)
	assert.Contains(t, err.Error(), "pipe closed")
}

func TestStreamNamesFiles(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stream")
	require.NoError(t, err)
	defer f.Close()
	art, err := Write(testDoc("s"), lineSerializer{}, Stream(f))
	require.NoError(t, err)
	assert.Equal(t, f.Name(), art.Destination)
}
