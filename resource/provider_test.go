package resource

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	Source
	reads atomic.Int64
	gate  chan struct{}
}

func (c *countingSource) ReadFile(p string) ([]byte, error) {
	if c.gate != nil {
		<-c.gate
	}
	data, err := c.Source.ReadFile(p)
	if err == nil {
		c.reads.Add(1)
	}
	return data, err
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }
func (brokenSource) ReadFile(string) ([]byte, error) {
	return nil, fs.ErrPermission
}

func TestResolveFirstSourceWins(t *testing.T) {
	first := Memory("first", map[string][]byte{"greeting.tmpl": []byte("from first")})
	second := Memory("second", map[string][]byte{
		"greeting.tmpl": []byte("from second"),
		"other.tmpl":    []byte("only second"),
	})
	p := New(first, second)

	h, err := p.Resolve(context.Background(), "greeting", KindTemplate)
	require.NoError(t, err)
	assert.Equal(t, "from first", string(h.Bytes()))
	assert.Equal(t, "first", h.Source())
	assert.Equal(t, "greeting.tmpl", h.Path())

	h, err = p.Resolve(context.Background(), "other", KindTemplate)
	require.NoError(t, err)
	assert.Equal(t, "only second", string(h.Bytes()))
}

func TestResolveKindSubdirectory(t *testing.T) {
	fsys := fstest.MapFS{
		"fonts/Body.ttf":  {Data: []byte("ttf")},
		"images/logo.png": {Data: []byte("\x89PNG\r\n\x1a\n")},
	}
	p := New(FS("embedded", fsys))

	h, err := p.Resolve(context.Background(), "Body", KindFont)
	require.NoError(t, err)
	assert.Equal(t, "fonts/Body.ttf", h.Path())
	assert.Equal(t, "font/ttf", h.ContentType())

	h, err = p.Resolve(context.Background(), "logo.png", KindImage)
	require.NoError(t, err)
	assert.Equal(t, "image/png", h.ContentType())
}

func TestResolveNotFound(t *testing.T) {
	p := New(Memory("m", nil))
	_, err := p.Resolve(context.Background(), "missing", KindTemplate)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.Name)
	assert.Greater(t, nf.Tried, 0)
	assert.Equal(t, 0, p.Len())
}

func TestResolveReadError(t *testing.T) {
	p := New(brokenSource{}, Memory("m", map[string][]byte{"a.tmpl": []byte("a")}))
	_, err := p.Resolve(context.Background(), "a", KindTemplate)
	var re *ReadError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "broken", re.Source)
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestResolveDoesNotEscapeDir(t *testing.T) {
	root := t.TempDir()
	inner := filepath.Join(root, "inner")
	require.NoError(t, os.MkdirAll(inner, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.tmpl"), []byte("secret"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inner, "ok.tmpl"), []byte("ok"), 0o644))

	p := New(Dir(inner))
	h, err := p.Resolve(context.Background(), "ok", KindTemplate)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(h.Bytes()))

	_, err = p.Resolve(context.Background(), "../secret", KindTemplate)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAferoSource(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "templates/invoice.tmpl", []byte("invoice"), 0o644))
	p := New(Afero("afero", mem))
	h, err := p.Resolve(context.Background(), "invoice", KindTemplate)
	require.NoError(t, err)
	assert.Equal(t, "invoice", string(h.Bytes()))
}

func TestCacheIsStableUntilEvicted(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "page.tmpl")
	require.NoError(t, os.WriteFile(file, []byte("v1"), 0o644))
	p := New(Dir(root))
	ctx := context.Background()

	h1, err := p.Resolve(ctx, "page", KindTemplate)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, []byte("v2"), 0o644))

	h2, err := p.Resolve(ctx, "page", KindTemplate)
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, "v1", string(h2.Bytes()))

	assert.True(t, p.Evict("page", KindTemplate))
	assert.False(t, p.Evict("page", KindTemplate))
	h3, err := p.Resolve(ctx, "page", KindTemplate)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(h3.Bytes()))
	assert.False(t, h1.Equal(h3))

	assert.Equal(t, 1, p.EvictPath("page.tmpl"))
	assert.Equal(t, 0, p.Len())

	_, err = p.Resolve(ctx, "page", KindTemplate)
	require.NoError(t, err)
	p.Clear()
	assert.Equal(t, 0, p.Len())
}

func TestKindsAreCachedSeparately(t *testing.T) {
	p := New(Memory("m", map[string][]byte{
		"logo.tmpl": []byte("template"),
		"logo.png":  []byte("image"),
	}))
	ctx := context.Background()
	tpl, err := p.Resolve(ctx, "logo", KindTemplate)
	require.NoError(t, err)
	img, err := p.Resolve(ctx, "logo", KindImage)
	require.NoError(t, err)
	assert.Equal(t, "template", string(tpl.Bytes()))
	assert.Equal(t, "image", string(img.Bytes()))
	assert.Equal(t, 2, p.Len())
}

func TestConcurrentFirstResolutionReadsOnce(t *testing.T) {
	src := &countingSource{
		Source: Memory("m", map[string][]byte{"logo.png": []byte("png-bytes")}),
		gate:   make(chan struct{}),
	}
	p := New(src)

	const n = 64
	handles := make([]*Handle, n)
	errs := make([]error, n)
	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			handles[i], errs[i] = p.Resolve(context.Background(), "logo.png", KindImage)
		}(i)
	}
	started.Wait()
	close(src.gate)
	done.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
	assert.Equal(t, int64(1), src.reads.Load())
	assert.Equal(t, uint64(1), p.Stats().Misses)
}

func TestMemorySourceCopiesInput(t *testing.T) {
	files := map[string][]byte{"a.tmpl": []byte("abc")}
	p := New(Memory("m", files))
	files["a.tmpl"][0] = 'X'
	h, err := p.Resolve(context.Background(), "a", KindTemplate)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(h.Bytes()))
}

func TestResolveHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Memory("m", nil)).Resolve(ctx, "x", KindTemplate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCandidates(t *testing.T) {
	got := candidates("report", KindStyle)
	assert.Equal(t, []string{"report", "report.css", "styles/report", "styles/report.css"}, got)
	assert.Nil(t, candidates("  ", KindStyle))
	assert.Equal(t, []string{"etc/passwd", "etc/passwd.css", "styles/etc/passwd", "styles/etc/passwd.css"}, candidates("../../etc/passwd", KindStyle))
}
