package layout

import (
	"errors"
	"fmt"

	"pkt.systems/report/resource"
)

var (
	// ErrMalformedMarkup matches *MarkupError.
	ErrMalformedMarkup = errors.New("malformed markup")
	// ErrUnresolved matches *UnresolvedError.
	ErrUnresolved = errors.New("unresolved resource")
	// ErrOverflow matches *OverflowError.
	ErrOverflow = errors.New("content overflow")
)

// Pos is a 1-based markup position. The zero value means unknown.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// MarkupError reports markup that is not well formed or uses unknown
// elements or attributes.
type MarkupError struct {
	Pos Pos
	Msg string
}

func (e *MarkupError) Error() string {
	if e.Pos.Line == 0 {
		return "malformed markup: " + e.Msg
	}
	return fmt.Sprintf("malformed markup at %s: %s", e.Pos, e.Msg)
}

func (e *MarkupError) Is(target error) bool { return target == ErrMalformedMarkup }

// UnresolvedError reports a font or image reference no source could
// satisfy, or whose bytes could not be used.
type UnresolvedError struct {
	Name string
	Kind resource.Kind
	Pos  Pos
	Err  error
}

func (e *UnresolvedError) Error() string {
	msg := fmt.Sprintf("unresolved %s %q", e.Kind, e.Name)
	if e.Pos.Line != 0 {
		msg += " at " + e.Pos.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnresolvedError) Unwrap() error { return e.Err }

func (e *UnresolvedError) Is(target error) bool { return target == ErrUnresolved }

// OverflowError reports an atomic unit taller than the page body.
type OverflowError struct {
	What      string
	Pos       Pos
	Height    float64
	Available float64
}

func (e *OverflowError) Error() string {
	msg := fmt.Sprintf("%s is %.1fpt tall but a page body holds %.1fpt", e.What, e.Height, e.Available)
	if e.Pos.Line != 0 {
		msg += " (markup " + e.Pos.String() + ")"
	}
	return msg
}

func (e *OverflowError) Is(target error) bool { return target == ErrOverflow }
