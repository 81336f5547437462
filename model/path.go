package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: a mapping key or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path addresses a node of a bound tree, for example items[2].total.
type Path []Segment

// ParsePath parses dotted keys and bracketed indexes. Quoted keys are
// accepted inside brackets: meta["content-type"].
func ParsePath(s string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("model: empty path")
	}
	var p Path
	i := 0
	expectKey := true
	for i < len(s) {
		switch c := s[i]; {
		case c == '.':
			if expectKey {
				return nil, fmt.Errorf("model: path %q: unexpected '.' at %d", s, i)
			}
			expectKey = true
			i++
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("model: path %q: unterminated '['", s)
			}
			inner := strings.TrimSpace(s[i+1 : i+end])
			if q, err := strconv.Unquote(inner); err == nil && len(inner) > 0 && (inner[0] == '"' || inner[0] == '`') {
				p = append(p, Segment{Key: q})
			} else {
				n, err := strconv.Atoi(inner)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("model: path %q: bad index %q", s, inner)
				}
				p = append(p, Segment{Index: n, IsIndex: true})
			}
			if expectKey && len(p) > 1 {
				return nil, fmt.Errorf("model: path %q: unexpected '[' after '.'", s)
			}
			expectKey = false
			i += end + 1
		default:
			if !expectKey {
				return nil, fmt.Errorf("model: path %q: missing '.' at %d", s, i)
			}
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			key := s[i:j]
			if strings.TrimSpace(key) != key || key == "" {
				return nil, fmt.Errorf("model: path %q: bad key %q", s, key)
			}
			p = append(p, Segment{Key: key})
			expectKey = false
			i = j
		}
	}
	if expectKey {
		return nil, fmt.Errorf("model: path %q: trailing '.'", s)
	}
	return p, nil
}

func (p Path) String() string {
	var sb strings.Builder
	for _, seg := range p {
		if seg.IsIndex {
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(seg.Index))
			sb.WriteByte(']')
			continue
		}
		writeKey(&sb, seg.Key)
	}
	return sb.String()
}

func (p Path) child(key string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Key: key})
}

func (p Path) index(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Index: i, IsIndex: true})
}

// pattern renders p with list indexes erased, as used by Schema keys.
func (p Path) pattern() string {
	var sb strings.Builder
	for _, seg := range p {
		if seg.IsIndex {
			sb.WriteString("[]")
			continue
		}
		writeKey(&sb, seg.Key)
	}
	return sb.String()
}

func writeKey(sb *strings.Builder, key string) {
	if plainKey(key) {
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(key)
		return
	}
	sb.WriteByte('[')
	sb.WriteString(strconv.Quote(key))
	sb.WriteByte(']')
}

func plainKey(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r == '.' || r == '[' || r == ']' || r == '"' || r == ' ' || r == '\t' || r == '\n' {
			return false
		}
	}
	return true
}
