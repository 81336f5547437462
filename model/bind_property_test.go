//go:build property
// +build property

package model

import (
	"errors"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// chain builds a nested map of the given depth and returns the root and the
// innermost map.
func chain(depth int) (map[string]any, map[string]any) {
	root := map[string]any{}
	cur := root
	for i := 0; i < depth; i++ {
		next := map[string]any{"i": i}
		cur["n"+strconv.Itoa(i)] = next
		cur = next
	}
	return root, cur
}

func TestBindProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("cycles are always rejected", prop.ForAll(
		func(depth, target int) bool {
			root, leaf := chain(depth)
			// Link the leaf back to an ancestor chosen by target.
			anc := root
			for i := 0; i < target%(depth+1); i++ {
				anc = anc["n"+strconv.Itoa(i)].(map[string]any)
			}
			leaf["back"] = anc
			_, err := Bind(root)
			return errors.Is(err, ErrInvalid)
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
	))

	properties.Property("acyclic chains bind and keep their depth", prop.ForAll(
		func(depth int) bool {
			root, _ := chain(depth)
			v, err := Bind(root)
			if err != nil {
				return false
			}
			d := 0
			for {
				next, ok := v.Get("n" + strconv.Itoa(d))
				if !ok {
					break
				}
				v = next
				d++
			}
			return d == depth
		},
		gen.IntRange(0, 100),
	))

	properties.Property("invalid leaves report their index", prop.ForAll(
		func(n, bad int) bool {
			items := make([]any, n)
			for i := range items {
				items[i] = map[string]any{"total": float64(i)}
			}
			idx := bad % n
			items[idx] = map[string]any{"total": make(chan int)}
			_, err := Bind(map[string]any{"items": items})
			var ie *InvalidError
			if !errors.As(err, &ie) {
				return false
			}
			return ie.Path == "items["+strconv.Itoa(idx)+"].total"
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
