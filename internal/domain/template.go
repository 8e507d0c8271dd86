// SPDX-License-Identifier: MIT

package domain

import "strings"

// GameDurationMode selects how long the main event programme runs.
type GameDurationMode string

const (
	// DurationCustom uses the template's override hours; a nil override
	// falls back to DurationSport.
	DurationCustom GameDurationMode = "custom"
	// DurationSport uses the per-sport setting.
	DurationSport GameDurationMode = "sport"
	// DurationDefault uses the global default.
	DurationDefault GameDurationMode = "default"
)

// CategoryTarget names a programme family categories may apply to.
// CategoriesApplyTo holds a comma-joined set of these, or "all".
const (
	CategoryAll      = "all"
	CategoryEvents   = "events"
	CategoryPregame  = "pregame"
	CategoryPostgame = "postgame"
)

// ConditionalDescription is one entry of a template's condition list. The
// lowest Priority whose Condition evaluates true over the context wins.
type ConditionalDescription struct {
	Condition string `json:"condition"`
	Template  string `json:"template"`
	Priority  int    `json:"priority"`
}

// PostgameConditional is the two-way postgame switch, keyed off whether
// the event reached a final state. It overrides the condition list.
type PostgameConditional struct {
	Enabled  bool   `json:"enabled"`
	Final    string `json:"final"`
	NotFinal string `json:"not_final"`
}

// FillerContent describes the pregame/postgame/idle blocks that pad a
// channel's day around the event programme.
type FillerContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Subtitle    string `json:"subtitle,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// XMLTVFlags carries the per-programme-kind <live>/<new> emission flags.
// Flags are template-driven, never hardcoded by the emitter.
type XMLTVFlags struct {
	LiveOnEvents  bool `json:"live_on_events"`
	NewOnEvents   bool `json:"new_on_events"`
	NewOnPregame  bool `json:"new_on_pregame"`
	NewOnPostgame bool `json:"new_on_postgame"`
}

// Template bundles every format string and policy knob that shapes a
// channel's rendered schedule. Format strings use {name} placeholders
// resolved against a TemplateContext; see the template package.
type Template struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	ChannelNameTemplate string `json:"channel_name_template"`
	TitleTemplate       string `json:"title_template"`
	SubtitleTemplate    string `json:"subtitle_template,omitempty"`
	DescriptionTemplate string `json:"description_template"`

	EnablePregame  bool `json:"enable_pregame"`
	EnablePostgame bool `json:"enable_postgame"`
	PregameMinutes int  `json:"pregame_minutes"`

	PregameFallback  FillerContent       `json:"pregame_fallback"`
	PostgameFallback FillerContent       `json:"postgame_fallback"`
	PostgameSwitch   PostgameConditional `json:"postgame_conditional"`

	IdleContent     FillerContent            `json:"idle_content"`
	IdleConditional []ConditionalDescription `json:"idle_conditional,omitempty"`

	ConditionalDescriptions []ConditionalDescription `json:"conditional_descriptions,omitempty"`

	XMLTVFlags        XMLTVFlags `json:"xmltv_flags"`
	XMLTVCategories   []string   `json:"xmltv_categories,omitempty"`
	CategoriesApplyTo string     `json:"categories_apply_to"`

	GameDurationMode     GameDurationMode `json:"game_duration_mode"`
	GameDurationOverride *float64         `json:"game_duration_override,omitempty"`
}

// DurationHours resolves the event programme length for a league under
// the template's duration mode. sportHours and defaultHours come from
// settings; a custom mode with no override falls back to sport.
func (t Template) DurationHours(league League, sportHours map[Sport]float64, defaultHours float64) float64 {
	sportOf := func() float64 {
		if h, ok := sportHours[league.SportOf()]; ok && h > 0 {
			return h
		}
		return league.DefaultDuration()
	}
	switch t.GameDurationMode {
	case DurationCustom:
		if t.GameDurationOverride != nil && *t.GameDurationOverride > 0 {
			return *t.GameDurationOverride
		}
		return sportOf()
	case DurationSport:
		return sportOf()
	default:
		if defaultHours > 0 {
			return defaultHours
		}
		return league.DefaultDuration()
	}
}

// CategoriesFor returns the categories to emit for a programme kind,
// honoring CategoriesApplyTo.
func (t Template) CategoriesFor(kind ProgrammeKind) []string {
	if len(t.XMLTVCategories) == 0 {
		return nil
	}
	if t.appliesTo(kind) {
		return t.XMLTVCategories
	}
	return nil
}

func (t Template) appliesTo(kind ProgrammeKind) bool {
	if t.CategoriesApplyTo == "" || t.CategoriesApplyTo == CategoryAll {
		return true
	}
	want := string(kind)
	if kind == KindEvent {
		want = CategoryEvents
	}
	for _, part := range strings.Split(t.CategoriesApplyTo, ",") {
		if strings.TrimSpace(part) == want {
			return true
		}
	}
	return false
}
