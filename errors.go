package report

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/report/layout"
	"pkt.systems/report/model"
	"pkt.systems/report/output"
	"pkt.systems/report/resource"
	"pkt.systems/report/tmpl"
)

// Kind classifies a render failure.
type Kind uint8

const (
	KindResourceNotFound Kind = iota + 1
	KindResourceReadError
	KindInvalidModel
	KindTemplateSyntaxError
	KindUndefinedReference
	KindMalformedMarkup
	KindUnresolvedResource
	KindContentOverflow
	KindSerializationError
	KindWriteError
	KindTimeout
)

var kindNames = map[Kind]string{
	KindResourceNotFound:    "ResourceNotFound",
	KindResourceReadError:   "ResourceReadError",
	KindInvalidModel:        "InvalidModel",
	KindTemplateSyntaxError: "TemplateSyntaxError",
	KindUndefinedReference:  "UndefinedReference",
	KindMalformedMarkup:     "MalformedMarkup",
	KindUnresolvedResource:  "UnresolvedResource",
	KindContentOverflow:     "ContentOverflow",
	KindSerializationError:  "SerializationError",
	KindWriteError:          "WriteError",
	KindTimeout:             "Timeout",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Sentinels for errors.Is. Each matches an *Error of the same Kind.
var (
	ErrResourceNotFound   = errors.New("resource not found")
	ErrResourceRead       = errors.New("resource read error")
	ErrInvalidModel       = errors.New("invalid model")
	ErrTemplateSyntax     = errors.New("template syntax error")
	ErrUndefinedReference = errors.New("undefined reference")
	ErrMalformedMarkup    = errors.New("malformed markup")
	ErrUnresolvedResource = errors.New("unresolved resource")
	ErrContentOverflow    = errors.New("content overflow")
	ErrSerialization      = errors.New("serialization error")
	ErrWrite              = errors.New("write error")
	ErrTimeout            = errors.New("timeout")
)

var sentinels = map[Kind]error{
	KindResourceNotFound:    ErrResourceNotFound,
	KindResourceReadError:   ErrResourceRead,
	KindInvalidModel:        ErrInvalidModel,
	KindTemplateSyntaxError: ErrTemplateSyntax,
	KindUndefinedReference:  ErrUndefinedReference,
	KindMalformedMarkup:     ErrMalformedMarkup,
	KindUnresolvedResource:  ErrUnresolvedResource,
	KindContentOverflow:     ErrContentOverflow,
	KindSerializationError:  ErrSerialization,
	KindWriteError:          ErrWrite,
	KindTimeout:             ErrTimeout,
}

// Position locates a fault. Source is a template name or "markup"; Path is a
// data model path such as items[2].total. Unknown parts are left zero.
type Position struct {
	Source string
	Line   int
	Column int
	Path   string
}

// IsZero reports whether nothing is known about the position.
func (p Position) IsZero() bool { return p == Position{} }

func (p Position) String() string {
	if p.Path != "" {
		return p.Path
	}
	s := p.Source
	if p.Line > 0 {
		s += fmt.Sprintf(":%d", p.Line)
		if p.Column > 0 {
			s += fmt.Sprintf(":%d", p.Column)
		}
	}
	return s
}

// Error is the single failure outcome of a render call.
type Error struct {
	Stage    State
	Kind     Kind
	Position Position
	Cause    error
	// Trace lists the states the call went through, ending in Failed.
	Trace []State
}

func (e *Error) Error() string {
	return fmt.Sprintf("report: %s: %s: %v", e.Stage, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// classify maps a stage failure onto the error taxonomy. Checks run from the
// most specific wrapper outwards: an unresolved font wraps a not-found error
// and must stay UnresolvedResource.
func classify(stage State, err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	e := &Error{Stage: stage, Cause: err}
	var (
		readErr    *resource.ReadError
		notFound   *resource.NotFoundError
		invalid    *model.InvalidError
		syntax     *tmpl.SyntaxError
		undefined  *tmpl.UndefinedError
		execErr    *tmpl.ExecError
		markup     *layout.MarkupError
		unresolved *layout.UnresolvedError
		overflow   *layout.OverflowError
		serialize  *output.SerializationError
		write      *output.WriteError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		e.Kind = KindTimeout
	case errors.As(err, &readErr):
		e.Kind = KindResourceReadError
	case errors.As(err, &unresolved):
		e.Kind = KindUnresolvedResource
		e.Position = markupPosition(unresolved.Pos)
	case errors.As(err, &notFound):
		e.Kind = KindResourceNotFound
	case errors.As(err, &invalid):
		e.Kind = KindInvalidModel
		e.Position = Position{Path: invalid.Path}
	case errors.As(err, &undefined):
		e.Kind = KindUndefinedReference
	case errors.As(err, &syntax), errors.As(err, &execErr):
		e.Kind = KindTemplateSyntaxError
	case errors.As(err, &markup):
		e.Kind = KindMalformedMarkup
		e.Position = markupPosition(markup.Pos)
	case errors.As(err, &overflow):
		e.Kind = KindContentOverflow
		e.Position = markupPosition(overflow.Pos)
	case errors.As(err, &serialize):
		e.Kind = KindSerializationError
	case errors.As(err, &write):
		e.Kind = KindWriteError
	default:
		e.Kind = stageKind(stage)
	}
	if e.Position.IsZero() {
		if name, pos, ok := tmpl.Position(err); ok {
			e.Position = Position{Source: name, Line: pos.Line, Column: pos.Column}
		}
	}
	return e
}

// stageKind is the kind reported for a failure no stage package typed.
func stageKind(stage State) Kind {
	switch stage {
	case Binding:
		return KindInvalidModel
	case Expanding:
		return KindTemplateSyntaxError
	case LayingOut:
		return KindMalformedMarkup
	default:
		return KindWriteError
	}
}

func markupPosition(p layout.Pos) Position {
	if p.Line == 0 {
		return Position{}
	}
	return Position{Source: "markup", Line: p.Line, Column: p.Column}
}
