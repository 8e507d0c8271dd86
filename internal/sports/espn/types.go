// SPDX-License-Identifier: MIT

package espn

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"
)

// Wire structs for the site API. Only the fields the normalizer reads
// are declared; everything else in the payload is ignored.

type scoreboardResponse struct {
	Events []eventJSON `json:"events"`
}

type scheduleResponse struct {
	Events []eventJSON `json:"events"`
}

type summaryResponse struct {
	Header     headerJSON   `json:"header"`
	GameInfo   gameInfoJSON `json:"gameInfo"`
	Pickcenter []oddsJSON   `json:"pickcenter"`
}

type headerJSON struct {
	ID           string            `json:"id"`
	Season       seasonJSON        `json:"season"`
	Competitions []competitionJSON `json:"competitions"`
}

type gameInfoJSON struct {
	Venue venueJSON `json:"venue"`
}

type eventJSON struct {
	ID           string            `json:"id"`
	Date         string            `json:"date"`
	Name         string            `json:"name"`
	ShortName    string            `json:"shortName"`
	Season       seasonJSON        `json:"season"`
	Competitions []competitionJSON `json:"competitions"`
	Status       statusJSON        `json:"status"`
}

type seasonJSON struct {
	Year int    `json:"year"`
	Type int    `json:"type"`
	Slug string `json:"slug"`
}

type competitionJSON struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	Venue       venueJSON        `json:"venue"`
	Competitors []competitorJSON `json:"competitors"`
	Odds        []oddsJSON       `json:"odds"`
	Broadcasts  []broadcastJSON  `json:"broadcasts"`
	Status      statusJSON       `json:"status"`
}

type competitorJSON struct {
	ID       string     `json:"id"`
	HomeAway string     `json:"homeAway"`
	Order    int        `json:"order"`
	Score    scoreValue `json:"score"`
	Team     teamJSON   `json:"team"`
	// Athlete replaces Team on MMA cards.
	Athlete athleteJSON `json:"athlete"`
	// Records on the scoreboard, Record on the summary header.
	Records     []recordJSON `json:"records"`
	Record      []recordJSON `json:"record"`
	CuratedRank rankJSON     `json:"curatedRank"`
}

type athleteJSON struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	ShortName   string `json:"shortName"`
}

type teamJSON struct {
	ID               string     `json:"id"`
	Location         string     `json:"location"`
	Name             string     `json:"name"`
	DisplayName      string     `json:"displayName"`
	ShortDisplayName string     `json:"shortDisplayName"`
	Abbreviation     string     `json:"abbreviation"`
	Color            string     `json:"color"`
	Logo             string     `json:"logo"`
	Logos            []logoJSON `json:"logos"`
}

type logoJSON struct {
	Href string `json:"href"`
}

type recordJSON struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Summary string     `json:"summary"`
	Stats   []statJSON `json:"stats"`
}

type statJSON struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	DisplayValue string  `json:"displayValue"`
}

type rankJSON struct {
	Current int `json:"current"`
}

type venueJSON struct {
	FullName string      `json:"fullName"`
	Address  addressJSON `json:"address"`
}

type addressJSON struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type oddsJSON struct {
	Details   string  `json:"details"`
	OverUnder float64 `json:"overUnder"`
}

type broadcastJSON struct {
	Names []string  `json:"names"`
	Media mediaJSON `json:"media"`
}

type mediaJSON struct {
	ShortName string `json:"shortName"`
}

type statusJSON struct {
	Clock        float64        `json:"clock"`
	DisplayClock string         `json:"displayClock"`
	Period       int            `json:"period"`
	Type         statusTypeJSON `json:"type"`
}

type statusTypeJSON struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Completed   bool   `json:"completed"`
	Detail      string `json:"detail"`
	ShortDetail string `json:"shortDetail"`
}

type teamResponse struct {
	Team teamDetailJSON `json:"team"`
}

type teamsResponse struct {
	Sports []sportWrapJSON `json:"sports"`
}

type sportWrapJSON struct {
	Leagues []leagueWrapJSON `json:"leagues"`
}

type leagueWrapJSON struct {
	Teams []teamEntryJSON `json:"teams"`
}

type teamEntryJSON struct {
	Team teamJSON `json:"team"`
}

type teamDetailJSON struct {
	teamJSON
	Record          teamRecordJSON `json:"record"`
	StandingSummary string         `json:"standingSummary"`
	Rank            int            `json:"rank"`
}

type teamRecordJSON struct {
	Items []recordJSON `json:"items"`
}

// scoreValue absorbs the API's two score encodings: the scoreboard
// sends a plain string ("24"), the team schedule an object
// {"value": 24.0, "displayValue": "24"}.
type scoreValue struct {
	set   bool
	value int
}

func (s *scoreValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '{' {
		var obj struct {
			Value        float64 `json:"value"`
			DisplayValue string  `json:"displayValue"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		s.set = true
		s.value = int(obj.Value)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Cricket scores ("183/5") and similar never parse as a plain
		// int; treat them as unset rather than failing the event.
		return nil
	}
	s.set = true
	s.value = n
	return nil
}

// Int returns the score as *int, nil when the feed sent none.
func (s scoreValue) Int() *int {
	if !s.set {
		return nil
	}
	v := s.value
	return &v
}
