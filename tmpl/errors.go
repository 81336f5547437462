package tmpl

import (
	"errors"
	"fmt"
)

// Pos is a 1-based position in a template source. A zero Line means the
// position is unknown.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	switch {
	case p.Line > 0 && p.Column > 0:
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	case p.Line > 0:
		return fmt.Sprintf("%d", p.Line)
	}
	return ""
}

func location(name string, p Pos) string {
	if s := p.String(); s != "" {
		return name + ":" + s
	}
	return name
}

// SyntaxError reports a template that cannot be parsed.
type SyntaxError struct {
	Template string
	Pos      Pos
	Msg      string
	Err      error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template %s: syntax error: %s", location(e.Template, e.Pos), e.Msg)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// UndefinedError reports a reference to a name the data model does not
// bind while the undefined policy is PolicyFail.
type UndefinedError struct {
	Template string
	Pos      Pos
	Name     string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("template %s: undefined reference %q", location(e.Template, e.Pos), e.Name)
}

// ExecError reports a failure while executing a well-formed template, such
// as iterating over a scalar or an include cycle.
type ExecError struct {
	Template string
	Pos      Pos
	Msg      string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("template %s: %s: %v", location(e.Template, e.Pos), e.Msg, e.Err)
	}
	return fmt.Sprintf("template %s: %s", location(e.Template, e.Pos), e.Msg)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Position extracts the template name and position carried by err, if any.
func Position(err error) (string, Pos, bool) {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se.Template, se.Pos, true
	}
	var ue *UndefinedError
	if errors.As(err, &ue) {
		return ue.Template, ue.Pos, true
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Template, ee.Pos, true
	}
	return "", Pos{}, false
}
