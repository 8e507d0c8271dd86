// SPDX-License-Identifier: MIT

package espn

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/domain"
)

// timeLayouts covers the API's date encodings; the scoreboard drops
// seconds, the schedule keeps them.
var timeLayouts = []string{
	"2006-01-02T15:04Z",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}

// toEvent normalizes a scoreboard or schedule event.
func (c *Client) toEvent(raw eventJSON, league domain.League) (domain.Event, error) {
	if raw.ID == "" {
		return domain.Event{}, fmt.Errorf("event without id")
	}

	var comp competitionJSON
	if len(raw.Competitions) > 0 {
		comp = raw.Competitions[0]
	}

	dateStr := raw.Date
	if dateStr == "" {
		dateStr = comp.Date
	}
	start, err := parseTime(dateStr)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event %s: %w", raw.ID, err)
	}

	status := raw.Status
	if status.Type.State == "" && status.Type.Name == "" {
		status = comp.Status
	}

	ev := domain.Event{
		ID:         raw.ID,
		Provider:   domain.ProviderESPN,
		Name:       raw.Name,
		ShortName:  raw.ShortName,
		StartTime:  start,
		Status:     canonicalStatus(status),
		League:     league,
		Sport:      league.SportOf(),
		SeasonYear: raw.Season.Year,
		SeasonType: seasonTypeName(raw.Season),
	}

	if league.SportOf() == domain.SportMMA {
		fillCard(&ev, comp, league)
	} else {
		if err := fillCompetitors(&ev, comp.Competitors, league); err != nil {
			return domain.Event{}, fmt.Errorf("event %s: %w", raw.ID, err)
		}
	}

	if v := normalizeVenue(comp.Venue); v != nil {
		ev.Venue = v
	}
	ev.Broadcasts = normalizeBroadcasts(comp.Broadcasts)
	if len(comp.Odds) > 0 {
		ev.Odds = normalizeOdds(comp.Odds[0])
	}
	return ev, nil
}

// fromSummary normalizes the single-event summary payload. The header
// carries no event name, so it is rebuilt from the competitors.
func (c *Client) fromSummary(resp summaryResponse, league domain.League) (domain.Event, error) {
	if resp.Header.ID == "" {
		return domain.Event{}, fmt.Errorf("summary without event id")
	}
	if len(resp.Header.Competitions) == 0 {
		return domain.Event{}, fmt.Errorf("event %s: summary without competitions", resp.Header.ID)
	}
	comp := resp.Header.Competitions[0]

	start, err := parseTime(comp.Date)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event %s: %w", resp.Header.ID, err)
	}

	ev := domain.Event{
		ID:         resp.Header.ID,
		Provider:   domain.ProviderESPN,
		StartTime:  start,
		Status:     canonicalStatus(comp.Status),
		League:     league,
		Sport:      league.SportOf(),
		SeasonYear: resp.Header.Season.Year,
		SeasonType: seasonTypeName(resp.Header.Season),
	}

	if league.SportOf() == domain.SportMMA {
		fillCard(&ev, comp, league)
	} else {
		if err := fillCompetitors(&ev, comp.Competitors, league); err != nil {
			return domain.Event{}, fmt.Errorf("event %s: %w", resp.Header.ID, err)
		}
		ev.Name = ev.AwayTeam.Name + " at " + ev.HomeTeam.Name
		if ev.AwayTeam.Abbreviation != "" && ev.HomeTeam.Abbreviation != "" {
			ev.ShortName = ev.AwayTeam.Abbreviation + " @ " + ev.HomeTeam.Abbreviation
		}
	}

	if v := normalizeVenue(resp.GameInfo.Venue); v != nil {
		ev.Venue = v
	}
	ev.Broadcasts = normalizeBroadcasts(comp.Broadcasts)
	if len(resp.Pickcenter) > 0 {
		ev.Odds = normalizeOdds(resp.Pickcenter[0])
	} else if len(comp.Odds) > 0 {
		ev.Odds = normalizeOdds(comp.Odds[0])
	}
	return ev, nil
}

// fillCompetitors resolves home and away for team sports.
func fillCompetitors(ev *domain.Event, competitors []competitorJSON, league domain.League) error {
	var home, away *competitorJSON
	for i := range competitors {
		switch competitors[i].HomeAway {
		case "home":
			home = &competitors[i]
		case "away":
			away = &competitors[i]
		}
	}
	if home == nil || away == nil {
		return fmt.Errorf("missing home/away competitors")
	}

	ev.HomeTeam = normalizeTeam(home.Team, league)
	ev.AwayTeam = normalizeTeam(away.Team, league)
	ev.HomeScore = home.Score.Int()
	ev.AwayScore = away.Score.Int()
	ev.HomeStats = competitorStats(*home)
	ev.AwayStats = competitorStats(*away)
	return nil
}

// fillCard treats an MMA competition as a card: the first listed fight
// is the main event and its fighters stand in for home and away. Cards
// announced without a bout order keep empty fighters.
func fillCard(ev *domain.Event, comp competitionJSON, league domain.League) {
	sport := league.SportOf()
	ev.HomeTeam = domain.Team{Provider: domain.ProviderESPN, League: league, Sport: sport}
	ev.AwayTeam = domain.Team{Provider: domain.ProviderESPN, League: league, Sport: sport}
	if len(comp.Competitors) < 2 {
		return
	}
	ev.HomeTeam.ID = comp.Competitors[0].Athlete.ID
	ev.HomeTeam.Name = comp.Competitors[0].Athlete.DisplayName
	ev.HomeTeam.ShortName = comp.Competitors[0].Athlete.ShortName
	ev.AwayTeam.ID = comp.Competitors[1].Athlete.ID
	ev.AwayTeam.Name = comp.Competitors[1].Athlete.DisplayName
	ev.AwayTeam.ShortName = comp.Competitors[1].Athlete.ShortName
}

func normalizeTeam(t teamJSON, league domain.League) domain.Team {
	name := t.DisplayName
	if name == "" {
		name = strings.TrimSpace(t.Location + " " + t.Name)
	}
	logo := t.Logo
	if logo == "" && len(t.Logos) > 0 {
		logo = t.Logos[0].Href
	}
	return domain.Team{
		ID:           t.ID,
		Provider:     domain.ProviderESPN,
		Name:         name,
		ShortName:    t.ShortDisplayName,
		Abbreviation: t.Abbreviation,
		League:       league,
		Sport:        league.SportOf(),
		LogoURL:      logo,
		Color:        t.Color,
	}
}

// competitorStats lifts the inline scoreboard context (record, rank)
// onto TeamStats. Full stats come from the team endpoint.
func competitorStats(c competitorJSON) *domain.TeamStats {
	records := c.Records
	if len(records) == 0 {
		records = c.Record
	}

	stats := domain.TeamStats{}
	for _, r := range records {
		if r.Type == "total" || r.Name == "overall" {
			stats.Record = r.Summary
			break
		}
	}
	if stats.Record == "" && len(records) > 0 {
		stats.Record = records[0].Summary
	}
	// Rank 99 is the API's "not ranked" placeholder.
	if c.CuratedRank.Current > 0 && c.CuratedRank.Current < 99 {
		stats.Rank = c.CuratedRank.Current
	}

	if stats == (domain.TeamStats{}) {
		return nil
	}
	return &stats
}

// statsFromTeam resolves the team endpoint's record block.
func statsFromTeam(t teamDetailJSON) *domain.TeamStats {
	stats := domain.TeamStats{Rank: t.Rank}

	var total *recordJSON
	for i := range t.Record.Items {
		if t.Record.Items[i].Type == "total" {
			total = &t.Record.Items[i]
			break
		}
	}
	if total == nil && len(t.Record.Items) > 0 {
		total = &t.Record.Items[0]
	}
	if total != nil {
		stats.Record = total.Summary
		for _, st := range total.Stats {
			switch st.Name {
			case "streak":
				stats.Streak = streakText(st)
			case "playoffSeed":
				if st.Value > 0 {
					stats.Seed = int(st.Value)
				}
			}
		}
	}

	conference, division := splitStanding(t.StandingSummary)
	stats.Conference = conference
	stats.Division = division

	if stats == (domain.TeamStats{}) {
		return nil
	}
	return &stats
}

// streakText renders the streak stat: the API sends a signed count
// (3 = won three straight, -2 = lost two).
func streakText(st statJSON) string {
	if st.DisplayValue != "" {
		return st.DisplayValue
	}
	n := int(st.Value)
	switch {
	case n > 0:
		return fmt.Sprintf("W%d", n)
	case n < 0:
		return fmt.Sprintf("L%d", -n)
	default:
		return ""
	}
}

// splitStanding parses "1st in NFC East" into conference "NFC" and
// division "NFC East". Standings without " in " yield nothing.
func splitStanding(summary string) (string, string) {
	_, after, found := strings.Cut(summary, " in ")
	if !found {
		return "", ""
	}
	division := strings.TrimSpace(after)
	conference := division
	if fields := strings.Fields(division); len(fields) > 1 {
		conference = fields[0]
	}
	return conference, division
}

func normalizeVenue(v venueJSON) *domain.Venue {
	if v.FullName == "" {
		return nil
	}
	return &domain.Venue{
		Name:    v.FullName,
		City:    v.Address.City,
		State:   v.Address.State,
		Country: v.Address.Country,
	}
}

func normalizeBroadcasts(raw []broadcastJSON) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, b := range raw {
		for _, n := range b.Names {
			add(n)
		}
		add(b.Media.ShortName)
	}
	return out
}

// normalizeOdds keeps the spread line verbatim and extracts the favored
// abbreviation from lines like "DAL -3.5". "EVEN" carries no favorite.
func normalizeOdds(o oddsJSON) *domain.Odds {
	if o.Details == "" && o.OverUnder == 0 {
		return nil
	}
	odds := &domain.Odds{Spread: o.Details, OverUnder: o.OverUnder}
	fields := strings.Fields(o.Details)
	if len(fields) == 2 && strings.HasPrefix(fields[1], "-") {
		odds.Favorite = fields[0]
	}
	return odds
}

// canonicalStatus folds the two status vocabularies: the STATUS_* name
// wins when it maps onto a definite state, the coarse pre/in/post state
// covers names the registry does not know.
func canonicalStatus(st statusJSON) domain.EventStatus {
	state := domain.CanonicalState(st.Type.State)
	if st.Type.Name != "" {
		if byName := domain.CanonicalState(st.Type.Name); byName != domain.StateScheduled || st.Type.Name == "STATUS_SCHEDULED" {
			state = byName
		}
	}

	detail := st.Type.ShortDetail
	if detail == "" {
		detail = st.Type.Detail
	}

	return domain.EventStatus{
		State:  state,
		Detail: detail,
		Period: st.Period,
		Clock:  st.DisplayClock,
	}
}

// seasonTypeName prefers the API's slug; the numeric type is the
// fallback vocabulary.
func seasonTypeName(s seasonJSON) string {
	if s.Slug != "" {
		return s.Slug
	}
	switch s.Type {
	case 1:
		return "preseason"
	case 2:
		return "regular-season"
	case 3:
		return "postseason"
	}
	return ""
}

func sortEvents(events []domain.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
}
