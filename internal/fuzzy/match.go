// SPDX-License-Identifier: MIT

package fuzzy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Match is a scored match decision on the canonical 0-100 scale.
type Match struct {
	Matched bool
	Score   int
	// Pattern is the pattern that produced the score.
	Pattern string
}

// MatchAny scores every pattern against the haystack and returns the
// best hit. Scores reward longer patterns and clean token boundaries;
// a hit that starts or ends inside a word is penalized ("dal" inside
// "dallas" must not look like the abbreviation).
func MatchAny(patterns []string, haystack string) Match {
	h := Normalize(haystack)

	best := Match{}
	for _, p := range patterns {
		score := matchScore(p, h)
		if score > best.Score {
			best = Match{Matched: true, Score: score, Pattern: p}
		}
	}
	return best
}

func matchScore(pattern, haystack string) int {
	if pattern == "" {
		return 0
	}
	if pattern == haystack {
		return 100
	}

	if !strings.Contains(haystack, pattern) {
		return 0
	}

	// Walk every occurrence; a later occurrence may sit on cleaner
	// boundaries than the first.
	bestBase := 0
	for idx := 0; ; {
		rel := strings.Index(haystack[idx:], pattern)
		if rel < 0 {
			break
		}
		idx += rel
		end := idx + len(pattern)

		startOK := idx == 0 || !isWordRune(lastRune(haystack[:idx]))
		endOK := end == len(haystack) || !isWordRune(firstRune(haystack[end:]))

		base := 45
		switch {
		case startOK && endOK:
			base = 75
		case startOK || endOK:
			base = 55
		}
		if base > bestBase {
			bestBase = base
		}
		idx++
	}

	// Longer patterns are rarer and worth more; "dallas cowboys" beats
	// "dal" even when both sit on boundaries.
	bonus := len(pattern)
	if bonus > 20 {
		bonus = 20
	}

	score := bestBase + bonus
	if score > 100 {
		score = 100
	}
	return score
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
