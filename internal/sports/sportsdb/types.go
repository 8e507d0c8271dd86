// SPDX-License-Identifier: MIT

package sportsdb

// eventsResponse is the envelope shared by the event endpoints. Most of
// them answer under "events"; eventslast.php answers under "results".
type eventsResponse struct {
	Events  []eventJSON `json:"events"`
	Results []eventJSON `json:"results"`
}

func (r eventsResponse) list() []eventJSON {
	if r.Events != nil {
		return r.Events
	}
	return r.Results
}

type eventJSON struct {
	IDEvent          string  `json:"idEvent"`
	StrEvent         string  `json:"strEvent"`
	StrLeague        string  `json:"strLeague"`
	IDLeague         string  `json:"idLeague"`
	StrSeason        string  `json:"strSeason"`
	StrHomeTeam      string  `json:"strHomeTeam"`
	IDHomeTeam       string  `json:"idHomeTeam"`
	StrAwayTeam      string  `json:"strAwayTeam"`
	IDAwayTeam       string  `json:"idAwayTeam"`
	IntHomeScore     *string `json:"intHomeScore"`
	IntAwayScore     *string `json:"intAwayScore"`
	StrStatus        string  `json:"strStatus"`
	StrProgress      string  `json:"strProgress"`
	DateEvent        string  `json:"dateEvent"`
	StrTime          string  `json:"strTime"`
	StrTimestamp     string  `json:"strTimestamp"`
	StrVenue         string  `json:"strVenue"`
	IntRound         string  `json:"intRound"`
	StrHomeTeamBadge string  `json:"strHomeTeamBadge"`
	StrAwayTeamBadge string  `json:"strAwayTeamBadge"`
}

type teamsResponse struct {
	Teams []teamJSON `json:"teams"`
}

type teamJSON struct {
	IDTeam       string `json:"idTeam"`
	StrTeam      string `json:"strTeam"`
	StrTeamShort string `json:"strTeamShort"`
	StrLeague    string `json:"strLeague"`
	IDLeague     string `json:"idLeague"`
	StrBadge     string `json:"strBadge"`
	StrTeamBadge string `json:"strTeamBadge"`
	StrStadium   string `json:"strStadium"`
	StrCountry   string `json:"strCountry"`
}
