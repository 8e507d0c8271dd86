// SPDX-License-Identifier: MIT

package domain

import "strings"

// Team is a competitor within a league. For individual sports (MMA) the
// "team" is the fighter; the matcher treats both uniformly.
type Team struct {
	ID           string   `json:"id"`
	Provider     Provider `json:"provider"`
	Name         string   `json:"name"`
	ShortName    string   `json:"short_name,omitempty"`
	Abbreviation string   `json:"abbreviation,omitempty"`
	League       League   `json:"league"`
	Sport        Sport    `json:"sport"`
	LogoURL      string   `json:"logo_url,omitempty"`
	Color        string   `json:"color,omitempty"`
}

// TeamStats is per-team season context resolved at enrichment time and
// consumed by template variables. All fields are optional; providers fill
// what they have.
type TeamStats struct {
	Record     string `json:"record,omitempty"`
	Streak     string `json:"streak,omitempty"`
	Rank       int    `json:"rank,omitempty"`
	Seed       int    `json:"seed,omitempty"`
	Conference string `json:"conference,omitempty"`
	Division   string `json:"division,omitempty"`
}

// DisplayName prefers the short name when present.
func (t Team) DisplayName() string {
	if t.ShortName != "" {
		return t.ShortName
	}
	return t.Name
}

// Mascot returns the last word of the team name, the conventional mascot
// for North American franchises ("Dallas Cowboys" -> "Cowboys"). Single
// word names return themselves.
func (t Team) Mascot() string {
	fields := strings.Fields(t.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// City returns everything before the mascot ("Dallas Cowboys" -> "Dallas").
// Single-word names return the empty string.
func (t Team) City() string {
	fields := strings.Fields(t.Name)
	if len(fields) < 2 {
		return ""
	}
	return strings.Join(fields[:len(fields)-1], " ")
}
