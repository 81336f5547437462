package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindScalarsAndContainers(t *testing.T) {
	issued := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	raw := map[string]any{
		"name":   "Ana",
		"count":  3,
		"ratio":  0.25,
		"paid":   true,
		"issued": issued,
		"tags":   []string{"a", "b"},
		"none":   nil,
		"nested": map[string]any{"z": 1, "a": json.Number("2.5")},
	}
	v, err := Bind(raw)
	require.NoError(t, err)
	require.Equal(t, KindMap, v.Kind())
	assert.Equal(t, []string{"count", "issued", "name", "nested", "none", "paid", "ratio", "tags"}, v.Keys())

	name, _ := v.Get("name")
	s, ok := name.Str()
	assert.True(t, ok)
	assert.Equal(t, "Ana", s)

	count, _ := v.Get("count")
	assert.True(t, count.IsInt())
	assert.Equal(t, "3", count.String())

	ratio, _ := v.Get("ratio")
	assert.Equal(t, "0.25", ratio.String())

	tags, _ := v.Get("tags")
	assert.Equal(t, 2, tags.Len())

	nested, _ := v.Get("nested")
	assert.Equal(t, []string{"a", "z"}, nested.Keys())
	a, _ := nested.Get("a")
	f, _ := a.Float()
	assert.InDelta(t, 2.5, f, 1e-9)

	when, _ := v.Get("issued")
	tv, ok := when.TimeValue()
	assert.True(t, ok)
	assert.True(t, tv.Equal(issued))

	none, _ := v.Get("none")
	assert.True(t, none.IsNull())
}

func TestBindStructTags(t *testing.T) {
	type line struct {
		Desc   string  `report:"description"`
		Total  float64 `json:"total,omitempty"`
		Secret string  `json:"-"`
		hidden string
	}
	type invoice struct {
		Number string
		Lines  []line `json:"lines"`
	}
	v, err := Bind(&invoice{Number: "INV-1", Lines: []line{{Desc: "Widget", Total: 9.5, Secret: "x", hidden: "y"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Number", "lines"}, v.Keys())
	p, err := ParsePath("lines[0]")
	require.NoError(t, err)
	first, ok := v.Lookup(p)
	require.True(t, ok)
	assert.Equal(t, []string{"description", "total"}, first.Keys())
}

func TestBindRejectsCycles(t *testing.T) {
	m := map[string]any{"name": "loop"}
	m["self"] = m
	_, err := Bind(m)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	var ie *InvalidError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "self", ie.Path)
	assert.Contains(t, ie.Reason, "cycle")

	s := []any{1, nil}
	s[1] = s
	_, err = Bind(map[string]any{"items": s})
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "items[1]", ie.Path)

	type node struct {
		Name string
		Next *node
	}
	n := &node{Name: "a"}
	n.Next = &node{Name: "b", Next: n}
	_, err = Bind(n)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "Next.Next", ie.Path)
}

func TestBindAllowsSharedSubtrees(t *testing.T) {
	shared := map[string]any{"city": "Oslo"}
	v, err := Bind(map[string]any{"billing": shared, "shipping": shared})
	require.NoError(t, err)
	b, _ := v.Get("billing")
	s, _ := v.Get("shipping")
	assert.True(t, b.Equal(s))
}

func TestBindDuplicateKeys(t *testing.T) {
	_, err := Bind(Fields{{Name: "a", Value: 1}, {Name: "b", Value: 2}, {Name: "a", Value: 3}})
	var ie *InvalidError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, `duplicate key "a"`)

	// Composed and decomposed forms collide after normalisation.
	_, err = Bind(map[string]any{"caf\u00e9": 1, "cafe\u0301": 2})
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, "duplicate key")
}

func TestBindPathReporting(t *testing.T) {
	raw := map[string]any{
		"items": []any{
			map[string]any{"total": 1.0},
			map[string]any{"total": 2.0},
			map[string]any{"total": func() {}},
		},
	}
	_, err := Bind(raw)
	var ie *InvalidError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "items[2].total", ie.Path)
	assert.Equal(t, "invalid model at items[2].total: unsupported type func()", err.Error())
}

func TestBindRejectsNonFiniteAndBadKeys(t *testing.T) {
	var ie *InvalidError
	_, err := Bind(map[string]any{"x": []float64{1, nan()}})
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "x[1]", ie.Path)

	_, err = Bind(map[int]string{1: "a"})
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, "mapping keys must be strings")
}

func TestBindDoesNotMutateInput(t *testing.T) {
	raw := map[string]any{"name": "cafe\u0301", "items": []any{"b", "a"}}
	_, err := Bind(raw)
	require.NoError(t, err)
	assert.Equal(t, "cafe\u0301", raw["name"])
	assert.Equal(t, []any{"b", "a"}, raw["items"])
}

func TestBindMaxDepth(t *testing.T) {
	var raw any = "leaf"
	for i := 0; i < 10; i++ {
		raw = []any{raw}
	}
	_, err := Bind(raw, WithMaxDepth(5))
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Bind(raw, WithMaxDepth(20))
	assert.NoError(t, err)
}

func TestBindSchema(t *testing.T) {
	schema := Schema{
		"customer.name": KindString,
		"items[].total": KindNumber,
		"issued":        KindTime,
	}
	good := map[string]any{
		"customer": map[string]any{"name": "Ana"},
		"items":    []any{map[string]any{"total": 1}, map[string]any{"total": nil}},
	}
	_, err := Bind(good, WithSchema(schema))
	require.NoError(t, err)

	bad := map[string]any{
		"items": []any{map[string]any{"total": 1}, map[string]any{"total": "12"}},
	}
	_, err = Bind(bad, WithSchema(schema))
	var ie *InvalidError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "items[1].total", ie.Path)
	assert.Equal(t, "expected number, got string", ie.Reason)

	_, err = Bind(good, WithSchema(Schema{"items[": KindNumber}))
	assert.Error(t, err)
}

func TestBindAcceptsBoundValues(t *testing.T) {
	inner := Map(Entry{Key: "total", Value: String("x")})
	_, err := Bind(map[string]any{"line": inner}, WithSchema(Schema{"line.total": KindNumber}))
	var ie *InvalidError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "line.total", ie.Path)
}

func TestLoadSchemaYAML(t *testing.T) {
	s, err := LoadSchemaYAML([]byte("customer.name: string\nitems[].total: number\nissued: datetime\n"))
	require.NoError(t, err)
	assert.Equal(t, Schema{"customer.name": KindString, "items[].total": KindNumber, "issued": KindTime}, s)

	_, err = LoadSchemaYAML([]byte("a: decimal\n"))
	assert.ErrorContains(t, err, "unknown kind")
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath(`items[2].meta["content-type"]`)
	require.NoError(t, err)
	assert.Equal(t, Path{{Key: "items"}, {Index: 2, IsIndex: true}, {Key: "meta"}, {Key: "content-type"}}, p)
	assert.Equal(t, "items[2].meta.content-type", p.String())

	for _, bad := range []string{"", "a.", ".a", "a[", "a[x]", "a[0]b", "a..b", "a.[0]"} {
		_, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestValueHelpers(t *testing.T) {
	v := Map(Entry{Key: "a", Value: Int(1)}, Entry{Key: "b", Value: List(String("x"), Bool(true))})
	assert.Equal(t, `{a: 1, b: ["x", true]}`, v.String())
	v2 := v.With("c", Number(1.5))
	assert.Equal(t, []string{"a", "b", "c"}, v2.Keys())
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, map[string]any{"a": int64(1), "b": []any{"x", true}, "c": 1.5}, v2.Interface())
	assert.False(t, Null().Truthy())
	assert.False(t, String("").Truthy())
	assert.True(t, List(Null()).Truthy())
	assert.True(t, strings.HasPrefix(Time(time.Unix(0, 0).UTC()).String(), "1970-01-01T"))
}
