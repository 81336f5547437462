package model

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return math.NaN() }

func TestLoadJSONPreservesOrderAndDuplicates(t *testing.T) {
	raw, err := LoadJSON(strings.NewReader(`{"z": 1, "a": [true, null, "x"], "n": 12345678901234567890}`))
	require.NoError(t, err)
	fields, ok := raw.(Fields)
	require.True(t, ok)
	require.Len(t, fields, 3)
	assert.Equal(t, "z", fields[0].Name)

	v, err := Bind(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "n"}, v.Keys())
	n, _ := v.Get("n")
	assert.Equal(t, KindNumber, n.Kind())

	raw, err = LoadJSON(strings.NewReader(`{"a": 1, "a": 2}`))
	require.NoError(t, err)
	_, err = Bind(raw)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadJSONErrors(t *testing.T) {
	for _, in := range []string{``, `{"a":`, `{"a": 1} {"b": 2}`, `[1,]`} {
		_, err := LoadJSON(strings.NewReader(in))
		assert.Error(t, err, in)
	}
}

func TestLoadYAML(t *testing.T) {
	doc := `
base: &base
  currency: EUR
  country: DK
invoice:
  <<: *base
  country: SE
  number: 42
  paid: false
  issued: 2024-03-01
  ratio: 0.5
  lines:
    - {desc: Widget, qty: 2}
    - {desc: Gadget, qty: 1}
`
	raw, err := LoadYAML([]byte(doc))
	require.NoError(t, err)
	v, err := Bind(raw)
	require.NoError(t, err)

	get := func(path string) Value {
		p, err := ParsePath(path)
		require.NoError(t, err)
		got, ok := v.Lookup(p)
		require.True(t, ok, path)
		return got
	}
	assert.Equal(t, "SE", get("invoice.country").String())
	assert.Equal(t, "EUR", get("invoice.currency").String())
	assert.True(t, get("invoice.number").IsInt())
	assert.Equal(t, KindBool, get("invoice.paid").Kind())
	assert.Equal(t, KindTime, get("invoice.issued").Kind())
	assert.Equal(t, "Gadget", get("invoice.lines[1].desc").String())
	assert.Equal(t, []string{"country", "number", "paid", "issued", "ratio", "lines", "currency"}, get("invoice").Keys())
}

func TestLoadYAMLDuplicateKeysFailAtBind(t *testing.T) {
	raw, err := LoadYAML([]byte("a: 1\nb: 2\na: 3\n"))
	if err != nil {
		// Some yaml.v3 releases reject duplicates while parsing.
		assert.Contains(t, err.Error(), "already defined")
		return
	}
	_, err = Bind(raw)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadYAMLEmpty(t *testing.T) {
	raw, err := LoadYAML([]byte("  \n"))
	require.NoError(t, err)
	v, err := Bind(raw)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}
