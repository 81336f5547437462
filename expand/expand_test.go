package expand

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/report/model"
	"pkt.systems/report/resource"
	"pkt.systems/report/tmpl"
)

func data(t *testing.T, raw any) model.Value {
	t.Helper()
	v, err := model.Bind(raw)
	require.NoError(t, err)
	return v
}

func TestExpandHello(t *testing.T) {
	p := resource.New(resource.Memory("m", map[string][]byte{"hello.tmpl": []byte("Hello {{name}}")}))
	e := New(p, Options{})
	m, err := e.Expand(context.Background(), Ref{Name: "hello"}, data(t, map[string]any{"name": "Ana"}))
	require.NoError(t, err)
	assert.Equal(t, "Hello Ana", m.Text)
	assert.Equal(t, "hello", m.Template)
	assert.NotEmpty(t, m.Digest)
}

func TestExpandUndefinedReference(t *testing.T) {
	p := resource.New(resource.Memory("m", map[string][]byte{"hello.tmpl": []byte("Hello {{name}}")}))
	_, err := New(p, Options{}).Expand(context.Background(), Ref{Name: "hello"}, data(t, map[string]any{}))
	var ue *tmpl.UndefinedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "hello", ue.Template)
	assert.Equal(t, tmpl.Pos{Line: 1, Column: 7}, ue.Pos)

	m, err := New(p, Options{Policy: tmpl.PolicyDefault, Default: "?"}).
		Expand(context.Background(), Ref{Name: "hello"}, data(t, map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "Hello ?", m.Text)
}

func TestExpandMissingTemplate(t *testing.T) {
	p := resource.New(resource.Memory("m", nil))
	_, err := New(p, Options{}).Expand(context.Background(), Ref{Name: "nope", Locale: "de"}, model.Null())
	assert.True(t, errors.Is(err, resource.ErrNotFound))
	var nf *resource.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope#de", nf.Name)

	_, err = New(p, Options{}).Expand(context.Background(), Ref{}, model.Null())
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestExpandLocaleAndVersionFallback(t *testing.T) {
	p := resource.New(resource.Memory("m", map[string][]byte{
		"invoice.tmpl":    []byte("plain"),
		"invoice.de.tmpl": []byte("deutsch"),
		"invoice@2.tmpl":  []byte("v2"),
	}))
	e := New(p, Options{})
	ctx := context.Background()

	cases := []struct {
		ref  Ref
		want string
	}{
		{Ref{Name: "invoice"}, "plain"},
		{Ref{Name: "invoice", Locale: "de-CH"}, "deutsch"},
		{Ref{Name: "invoice", Locale: "fr"}, "plain"},
		{Ref{Name: "invoice", Version: "2", Locale: "de"}, "v2"},
		{Ref{Name: "invoice", Version: "3"}, "plain"},
	}
	for _, tc := range cases {
		m, err := e.Expand(ctx, tc.ref, model.Null())
		require.NoError(t, err, tc.ref.String())
		assert.Equal(t, tc.want, m.Text, tc.ref.String())
	}
}

func TestCandidates(t *testing.T) {
	r := Ref{Name: "invoice", Version: "2", Locale: "de-CH"}
	assert.Equal(t, []string{
		"invoice@2.de-CH", "invoice@2.de", "invoice@2",
		"invoice.de-CH", "invoice.de", "invoice",
	}, r.Candidates())
}

func TestParseRef(t *testing.T) {
	r, err := ParseRef("invoice@2#de-CH")
	require.NoError(t, err)
	assert.Equal(t, Ref{Name: "invoice", Version: "2", Locale: "de-CH"}, r)
	assert.Equal(t, "invoice@2#de-CH", r.String())

	_, err = ParseRef("@2")
	assert.Error(t, err)
	_, err = ParseRef("x#not a locale")
	assert.Error(t, err)
}

func TestExpandIncludesResolveThroughProvider(t *testing.T) {
	p := resource.New(resource.Memory("m", map[string][]byte{
		"page.tmpl":          []byte(`<report>{{include "footer"}}</report>`),
		"footer.tmpl":        []byte(`<footer>{{company}}</footer>`),
		"footer.nb.tmpl":     []byte(`<footer>{{company}} AS</footer>`),
		"broken.tmpl":        []byte(`{{include "missing-part"}}`),
		"syntax.tmpl":        []byte(`{{include "bad-syntax"}}`),
		"bad-syntax.tmpl":    []byte("\n{{if x}}"),
		"templates/x/y.tmpl": []byte("nested"),
	}))
	e := New(p, Options{})
	ctx := context.Background()
	d := data(t, map[string]any{"company": "Acme"})

	m, err := e.Expand(ctx, Ref{Name: "page"}, d)
	require.NoError(t, err)
	assert.Equal(t, "<report><footer>Acme</footer></report>", m.Text)

	m, err = e.Expand(ctx, Ref{Name: "page", Locale: "nb"}, d)
	require.NoError(t, err)
	assert.Equal(t, "<report><footer>Acme AS</footer></report>", m.Text)

	_, err = e.Expand(ctx, Ref{Name: "broken"}, d)
	assert.ErrorIs(t, err, resource.ErrNotFound)
	var ee *tmpl.ExecError
	assert.ErrorAs(t, err, &ee)

	_, err = e.Expand(ctx, Ref{Name: "syntax"}, d)
	var se *tmpl.SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "bad-syntax", se.Template)
	assert.Equal(t, 2, se.Pos.Line)

	m, err = e.Expand(ctx, Ref{Name: "x/y"}, d)
	require.NoError(t, err)
	assert.Equal(t, "nested", m.Text)
}

func TestForgetReparsesCachedHandle(t *testing.T) {
	files := map[string][]byte{"t.tmpl": []byte("one")}
	src := resource.Memory("m", files)
	p := resource.New(src)
	e := New(p, Options{})
	ctx := context.Background()

	m, err := e.Expand(ctx, Ref{Name: "t"}, model.Null())
	require.NoError(t, err)
	assert.Equal(t, "one", m.Text)

	// The provider still holds the handle, so only the parse is redone.
	e.Forget()
	m, err = e.Expand(ctx, Ref{Name: "t"}, model.Null())
	require.NoError(t, err)
	assert.Equal(t, "one", m.Text)
}
