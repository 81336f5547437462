package tmpl

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"pkt.systems/report/model"
)

type pipeSpec struct {
	args  int
	check func(args []model.Value) error
	apply func(s *state, v model.Value, args []model.Value) (model.Value, error)
}

var pipes map[string]pipeSpec

func init() {
	pipes = map[string]pipeSpec{
		"raw":     {},
		"upper":   {apply: textPipe(strings.ToUpper)},
		"lower":   {apply: textPipe(strings.ToLower)},
		"trim":    {apply: textPipe(strings.TrimSpace)},
		"title":   {apply: titlePipe},
		"default": {args: 1, apply: defaultPipe},
		"number":  {args: 1, check: checkDecimals, apply: numberPipe},
		"date":    {args: 1, check: checkString, apply: datePipe},
		"join":    {args: 1, check: checkString, apply: joinPipe},
		"len":     {apply: lenPipe},
	}
}

func textPipe(fn func(string) string) func(*state, model.Value, []model.Value) (model.Value, error) {
	return func(_ *state, v model.Value, _ []model.Value) (model.Value, error) {
		s, ok := v.Text()
		if !ok {
			return model.Value{}, fmt.Errorf("expected a scalar, got %s", v.Kind())
		}
		return model.String(fn(s)), nil
	}
}

func titlePipe(st *state, v model.Value, _ []model.Value) (model.Value, error) {
	s, ok := v.Text()
	if !ok {
		return model.Value{}, fmt.Errorf("expected a scalar, got %s", v.Kind())
	}
	return model.String(cases.Title(st.opts.Locale).String(s)), nil
}

func defaultPipe(_ *state, v model.Value, args []model.Value) (model.Value, error) {
	if s, isStr := v.Str(); v.IsNull() || (isStr && s == "") {
		return args[0], nil
	}
	return v, nil
}

func checkDecimals(args []model.Value) error {
	if !args[0].IsInt() {
		return errors.New("expected an integer number of decimals")
	}
	if f, _ := args[0].Float(); f < 0 || f > 12 {
		return errors.New("decimals must be between 0 and 12")
	}
	return nil
}

func checkString(args []model.Value) error {
	if _, ok := args[0].Str(); !ok {
		return errors.New("expected a string argument")
	}
	return nil
}

func numberPipe(_ *state, v model.Value, args []model.Value) (model.Value, error) {
	decimals, _ := args[0].Float()
	f, ok := v.Float()
	if !ok {
		s, isStr := v.Str()
		if !isStr {
			return model.Value{}, fmt.Errorf("expected a number, got %s", v.Kind())
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return model.Value{}, fmt.Errorf("expected a number, got %q", s)
		}
		f = parsed
	}
	return model.String(strconv.FormatFloat(f, 'f', int(decimals), 64)), nil
}

var dateInputLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func datePipe(_ *state, v model.Value, args []model.Value) (model.Value, error) {
	layout, _ := args[0].Str()
	t, ok := v.TimeValue()
	if !ok {
		s, isStr := v.Str()
		if !isStr {
			return model.Value{}, fmt.Errorf("expected a date, got %s", v.Kind())
		}
		var err error
		for _, l := range dateInputLayouts {
			if t, err = time.Parse(l, strings.TrimSpace(s)); err == nil {
				break
			}
		}
		if err != nil {
			return model.Value{}, fmt.Errorf("expected a date, got %q", s)
		}
	}
	return model.String(t.Format(layout)), nil
}

func joinPipe(_ *state, v model.Value, args []model.Value) (model.Value, error) {
	sep, _ := args[0].Str()
	if v.Kind() != model.KindList {
		return model.Value{}, fmt.Errorf("expected a list, got %s", v.Kind())
	}
	items := v.Items()
	parts := make([]string, len(items))
	for i, it := range items {
		s, ok := it.Text()
		if !ok {
			return model.Value{}, fmt.Errorf("item %d is a %s", i, it.Kind())
		}
		parts[i] = s
	}
	return model.String(strings.Join(parts, sep)), nil
}

func lenPipe(_ *state, v model.Value, _ []model.Value) (model.Value, error) {
	switch v.Kind() {
	case model.KindList, model.KindMap:
		return model.Int(int64(v.Len())), nil
	case model.KindString:
		s, _ := v.Str()
		return model.Int(int64(utf8.RuneCountInString(s))), nil
	case model.KindNull:
		return model.Int(0), nil
	}
	return model.Value{}, fmt.Errorf("%s has no length", v.Kind())
}
