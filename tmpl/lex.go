package tmpl

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"
)

var errUnterminated = errors.New("unterminated string")

type tokenType uint8

const (
	tokText tokenType = iota
	tokOutput
	tokIf
	tokElsif
	tokElse
	tokUnless
	tokFor
	tokEnd
	tokInclude
)

var keywords = map[string]tokenType{
	"if":      tokIf,
	"elsif":   tokElsif,
	"else":    tokElse,
	"unless":  tokUnless,
	"for":     tokFor,
	"end":     tokEnd,
	"include": tokInclude,
}

func (t tokenType) String() string {
	for k, v := range keywords {
		if v == t {
			return "{{" + k + "}}"
		}
	}
	if t == tokOutput {
		return "output"
	}
	return "text"
}

type token struct {
	typ tokenType
	val string // tag arguments, or literal text
	pos Pos
}

// lineIndex maps byte offsets to 1-based line and rune column.
type lineIndex struct {
	src    string
	starts []int
}

func newLineIndex(src string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

func (li *lineIndex) pos(off int) Pos {
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > off }) - 1
	col := utf8.RuneCountInString(li.src[li.starts[line]:off]) + 1
	return Pos{Line: line + 1, Column: col}
}

type lexer struct {
	name string
	src  string
	idx  *lineIndex
	toks []token
}

func lex(name, src string) ([]token, error) {
	l := &lexer{name: name, src: src, idx: newLineIndex(src)}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.toks, nil
}

func (l *lexer) errorf(off int, msg string) error {
	return &SyntaxError{Template: l.name, Pos: l.idx.pos(off), Msg: msg}
}

func (l *lexer) run() error {
	i := 0
	trimNext := false
	for {
		j := strings.Index(l.src[i:], "{{")
		if j < 0 {
			l.text(l.src[i:], trimNext, false)
			return nil
		}
		start := i + j
		end, err := l.tagEnd(start)
		if err != nil {
			return err
		}
		inner := l.src[start+2 : end]
		trimPrev := false
		if strings.HasPrefix(inner, "-") && (len(inner) == 1 || isSpace(inner[1])) {
			trimPrev = true
			inner = inner[1:]
		}
		trimAfter := false
		if strings.HasSuffix(inner, "-") && (len(inner) == 1 || isSpace(inner[len(inner)-2])) {
			trimAfter = true
			inner = inner[:len(inner)-1]
		}
		l.text(l.src[i:start], trimNext, trimPrev)
		trimNext = trimAfter

		if err := l.tag(start, strings.TrimSpace(inner)); err != nil {
			return err
		}
		i = end + 2
	}
}

// tagEnd returns the offset of the "}}" closing the tag opened at start.
// Braces inside string literals do not close a tag.
func (l *lexer) tagEnd(start int) (int, error) {
	comment := strings.HasPrefix(strings.TrimLeft(l.src[start+2:], "- "), "!")
	inQuote := false
	for k := start + 2; k < len(l.src); k++ {
		c := l.src[k]
		switch {
		case comment:
			if strings.HasPrefix(l.src[k:], "}}") {
				return k, nil
			}
		case inQuote && c == '\\':
			k++
		case c == '"':
			inQuote = !inQuote
		case !inQuote && c == '{' && strings.HasPrefix(l.src[k:], "{{"):
			return 0, l.errorf(start, "unclosed tag")
		case !inQuote && c == '}' && strings.HasPrefix(l.src[k:], "}}"):
			return k, nil
		}
	}
	if inQuote {
		return 0, l.errorf(start, "unterminated string in tag")
	}
	return 0, l.errorf(start, "unclosed tag")
}

func (l *lexer) text(s string, trimLeading, trimTrailing bool) {
	if trimLeading {
		s = strings.TrimLeft(s, " \t\r\n")
	}
	if trimTrailing {
		s = strings.TrimRight(s, " \t\r\n")
	}
	if s == "" {
		return
	}
	if n := len(l.toks); n > 0 && l.toks[n-1].typ == tokText {
		l.toks[n-1].val += s
		return
	}
	l.toks = append(l.toks, token{typ: tokText, val: s})
}

func (l *lexer) tag(off int, inner string) error {
	pos := l.idx.pos(off)
	if inner == "" {
		return l.errorf(off, "empty tag")
	}
	if inner[0] == '!' {
		return nil
	}
	word, rest := inner, ""
	if k := strings.IndexAny(inner, " \t\r\n"); k >= 0 {
		word, rest = inner[:k], inner[k+1:]
	}
	if typ, ok := keywords[word]; ok {
		l.toks = append(l.toks, token{typ: typ, val: strings.TrimSpace(rest), pos: pos})
		return nil
	}
	l.toks = append(l.toks, token{typ: tokOutput, val: inner, pos: pos})
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// splitArgs splits tag arguments into lexemes. String literals keep their
// quotes; "|", ",", "==" and "!=" are separate lexemes.
func splitArgs(s string) ([]string, error) {
	var out []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case c == '"':
			j := i + 1
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(s) {
				return nil, errUnterminated
			}
			out = append(out, s[i:j+1])
			i = j + 1
		case c == '|' || c == ',':
			out = append(out, string(c))
			i++
		case (c == '=' || c == '!') && i+1 < len(s) && s[i+1] == '=':
			out = append(out, s[i:i+2])
			i += 2
		default:
			j := i
			for j < len(s) && !isSpace(s[j]) && s[j] != '|' && s[j] != ',' && s[j] != '"' &&
				!((s[j] == '=' || s[j] == '!') && j+1 < len(s) && s[j+1] == '=') {
				j++
			}
			out = append(out, s[i:j])
			i = j
		}
	}
	return out, nil
}
