package tmpl

import (
	"errors"
	"unicode/utf8"
)

var (
	// ErrInvalidUTF8 reports template source that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8 input")
	// ErrBinaryInput reports template source that appears to be binary.
	ErrBinaryInput = errors.New("binary input detected")
)

const (
	minBinarySample = 64
	maxControlPct   = 2
)

// ValidateSource returns an error if src is not valid UTF-8 or appears
// binary. The returned position locates the first offending byte.
func ValidateSource(src []byte) (Pos, error) {
	line, col := 1, 1
	var total, control int
	firstControl := Pos{}
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		if r == utf8.RuneError && size == 1 {
			return Pos{Line: line, Column: col}, ErrInvalidUTF8
		}
		if r == 0 {
			return Pos{Line: line, Column: col}, ErrBinaryInput
		}
		total += size
		if isControlRune(r) {
			if control == 0 {
				firstControl = Pos{Line: line, Column: col}
			}
			control++
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		i += size
	}
	if total >= minBinarySample && control*100 >= total*maxControlPct {
		return firstControl, ErrBinaryInput
	}
	return Pos{}, nil
}

func isControlRune(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' || r == '\f' {
		return false
	}
	return r < 0x20 || r == 0x7F
}
