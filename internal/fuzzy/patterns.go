// SPDX-License-Identifier: MIT

package fuzzy

import (
	"regexp"
	"sort"
	"strings"

	unorm "golang.org/x/text/unicode/norm"

	"github.com/teamarr/teamarr/internal/domain"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize folds a string for matching: NFC composition, lowercase,
// re-composition (lowercasing can create new combining sequences),
// collapsed whitespace.
func Normalize(s string) string {
	s = unorm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = unorm.NFC.String(s)
	return spaceRe.ReplaceAllString(s, " ")
}

// TeamPatterns builds the deduplicated, normalized pattern set for a
// team: full name, short name, abbreviation, city-only and mascot-only
// splits when the mascot is vocabulary-known, fighter surnames for
// individual sports, and alias short forms. Patterns shorter than two
// characters are dropped.
func TeamPatterns(team domain.Team) []string {
	set := newPatternSet()

	full := Normalize(team.Name)
	set.add(full)
	set.add(Normalize(team.ShortName))
	set.add(Normalize(team.Abbreviation))

	fields := strings.Fields(full)
	if len(fields) >= 2 {
		last := fields[len(fields)-1]
		if MascotWords[last] {
			set.add(strings.Join(fields[:len(fields)-1], " "))
			set.add(last)
		} else if team.Sport == domain.SportMMA {
			// Fight cards list fighters by surname.
			set.add(last)
		}
	}

	for _, alias := range Abbreviations[full] {
		set.add(Normalize(alias))
	}
	return set.list()
}

// EventPatterns builds patterns for a free event name. Besides the full
// name, anything before a colon becomes its own pattern so "UFC Fight
// Night: Royval vs. Kape" still hits a title that only carries the
// series part.
func EventPatterns(name string) []string {
	set := newPatternSet()

	full := Normalize(name)
	set.add(full)
	if prefix, _, found := strings.Cut(full, ":"); found {
		set.add(strings.TrimSpace(prefix))
	}
	return set.list()
}

type patternSet struct {
	seen map[string]bool
	out  []string
}

func newPatternSet() *patternSet {
	return &patternSet{seen: make(map[string]bool)}
}

func (s *patternSet) add(p string) {
	p = strings.TrimSpace(p)
	if len(p) < 2 || s.seen[p] {
		return
	}
	s.seen[p] = true
	s.out = append(s.out, p)
}

func (s *patternSet) list() []string {
	sort.Strings(s.out)
	return s.out
}
