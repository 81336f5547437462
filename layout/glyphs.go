package layout

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// maxListedGlyphs bounds the runes named in one missing glyph warning.
const maxListedGlyphs = 16

// cover settles the family of every word when the metrics report glyph
// coverage. A word a core font cannot draw moves to the Unicode font if that
// font draws more of it. Runes still without a glyph are kept for
// glyphWarnings.
func (s *state) cover(pieces []piece, pos Pos) error {
	cov, ok := s.metrics.(Coverage)
	if !ok {
		return nil
	}
	for i := range pieces {
		p := &pieces[i]
		if p.space || p.brk {
			continue
		}
		fam := p.st.font.Family
		missing := cov.Missing(fam, p.text)
		if len(missing) == 0 {
			continue
		}
		if isCoreFont(fam) && s.cfg.UnicodeFont != "" {
			uf, err := s.family(s.cfg.UnicodeFont, pos)
			if err != nil {
				return err
			}
			if left := cov.Missing(uf, p.text); uf != fam && len(left) < len(missing) {
				s.reroute(fam, uf)
				p.st.font.Family = uf
				fam, missing = uf, left
			}
		}
		s.noteMissing(fam, missing)
	}
	return nil
}

func (s *state) reroute(from, to string) {
	if s.rerouted == nil {
		s.rerouted = make(map[string]bool)
	}
	if s.rerouted[from] {
		return
	}
	s.rerouted[from] = true
	s.warnings = append(s.warnings, Warning{
		Resource: from,
		Message:  fmt.Sprintf("text the font cannot encode set in %s", to),
	})
}

func (s *state) noteMissing(family string, runes []rune) {
	if len(runes) == 0 {
		return
	}
	if s.missing == nil {
		s.missing = make(map[string]map[rune]bool)
	}
	set := s.missing[family]
	if set == nil {
		set = make(map[rune]bool)
		s.missing[family] = set
	}
	for _, r := range runes {
		set[r] = true
	}
}

// glyphWarnings adds one warning per family with undrawable runes.
func (s *state) glyphWarnings() {
	families := make([]string, 0, len(s.missing))
	for fam := range s.missing {
		families = append(families, fam)
	}
	sort.Strings(families)
	for _, fam := range families {
		runes := make([]rune, 0, len(s.missing[fam]))
		for r := range s.missing[fam] {
			runes = append(runes, r)
		}
		sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
		s.warnings = append(s.warnings, Warning{Resource: fam, Message: missingMessage(fam, runes)})
	}
}

func missingMessage(family string, runes []rune) string {
	listed := runes
	if len(listed) > maxListedGlyphs {
		listed = listed[:maxListedGlyphs]
	}
	var b strings.Builder
	for _, r := range listed {
		if !unicode.IsPrint(r) {
			fmt.Fprintf(&b, "%U", r)
			continue
		}
		b.WriteRune(r)
	}
	msg := fmt.Sprintf("no glyph for %q", b.String())
	if n := len(runes) - len(listed); n > 0 {
		msg += fmt.Sprintf(" and %d more", n)
	}
	if isCoreFont(family) {
		msg += ", drawn as ?"
	}
	return msg
}
