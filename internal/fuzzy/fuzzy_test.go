// SPDX-License-Identifier: MIT

package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/domain"
)

func TestTeamPatterns_FranchiseSplits(t *testing.T) {
	team := domain.Team{
		Name:         "Dallas Cowboys",
		ShortName:    "Cowboys",
		Abbreviation: "DAL",
		Sport:        domain.SportFootball,
	}

	patterns := TeamPatterns(team)
	assert.ElementsMatch(t, []string{"dallas cowboys", "cowboys", "dal", "dallas"}, patterns)
}

func TestTeamPatterns_AliasesAndNoUnsafeSplit(t *testing.T) {
	team := domain.Team{
		Name:         "Manchester United",
		ShortName:    "Man United",
		Abbreviation: "MAN",
		Sport:        domain.SportSoccer,
	}

	patterns := TeamPatterns(team)
	assert.Contains(t, patterns, "manchester united")
	assert.Contains(t, patterns, "man utd")
	assert.NotContains(t, patterns, "united", "United is not a safe mascot split")
	assert.NotContains(t, patterns, "manchester", "city split is gated on the mascot vocabulary")
}

func TestTeamPatterns_FighterSurname(t *testing.T) {
	fighter := domain.Team{
		Name:      "Alexandre Pantoja",
		ShortName: "A. Pantoja",
		Sport:     domain.SportMMA,
	}

	patterns := TeamPatterns(fighter)
	assert.Contains(t, patterns, "pantoja")
	assert.Contains(t, patterns, "alexandre pantoja")
}

func TestTeamPatterns_DropsShortAndDuplicates(t *testing.T) {
	team := domain.Team{
		Name:         "Cowboys",
		ShortName:    "Cowboys",
		Abbreviation: "D",
	}

	patterns := TeamPatterns(team)
	assert.Equal(t, []string{"cowboys"}, patterns)
}

func TestEventPatterns_ColonPrefix(t *testing.T) {
	patterns := EventPatterns("UFC Fight Night: Royval vs. Kape")
	assert.Contains(t, patterns, "ufc fight night: royval vs. kape")
	assert.Contains(t, patterns, "ufc fight night")
}

func TestNormalize_NFC(t *testing.T) {
	// "é" composed vs "e" + combining acute must fold to the same string.
	composed := "Atlético Madrid"
	decomposed := "Atlético Madrid"
	assert.Equal(t, Normalize(composed), Normalize(decomposed))
	assert.Equal(t, "atlético madrid", Normalize("  ATLÉTICO   Madrid "))
}

func TestMatchAny_BoundaryBeatsEmbedded(t *testing.T) {
	// "dal" as its own token is a real abbreviation hit; inside
	// "dallas" it is an artifact.
	token := MatchAny([]string{"dal"}, "DAL @ NYG")
	embedded := MatchAny([]string{"dal"}, "dallas invitational")

	require.True(t, token.Matched)
	require.True(t, embedded.Matched)
	assert.Greater(t, token.Score, embedded.Score)
}

func TestMatchAny_LongerPatternWins(t *testing.T) {
	res := MatchAny([]string{"dal", "dallas cowboys"}, "NFL 01: Dallas Cowboys vs Giants")
	assert.Equal(t, "dallas cowboys", res.Pattern)
	assert.GreaterOrEqual(t, res.Score, 85)
}

func TestMatchAny_NoHit(t *testing.T) {
	res := MatchAny([]string{"packers", "green bay"}, "NFL 01: Cowboys vs Giants")
	assert.False(t, res.Matched)
	assert.Zero(t, res.Score)
}

func TestMatchAny_ExactTitle(t *testing.T) {
	res := MatchAny([]string{"dallas cowboys"}, "Dallas Cowboys")
	assert.Equal(t, 100, res.Score)
}

func TestMatchAny_CaseAndAccentsFold(t *testing.T) {
	res := MatchAny([]string{Normalize("Atlético Madrid")}, "ATLÉTICO MADRID vs Real")
	assert.True(t, res.Matched)
	assert.GreaterOrEqual(t, res.Score, 75)
}

func TestMatchScore_SecondOccurrenceOnBoundary(t *testing.T) {
	// First "dal" is embedded in "daldal-feed", the standalone one later
	// must still earn the boundary base.
	score := matchScore("dal", "daldal-feed dal nyg")
	assert.GreaterOrEqual(t, score, 75)
}
