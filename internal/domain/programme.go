// SPDX-License-Identifier: MIT

package domain

import "time"

// ProgrammeKind distinguishes the four programme families a managed
// channel's schedule is built from.
type ProgrammeKind string

const (
	KindPregame  ProgrammeKind = "pregame"
	KindEvent    ProgrammeKind = "event"
	KindPostgame ProgrammeKind = "postgame"
	KindFiller   ProgrammeKind = "filler"
)

// Programme is one XMLTV <programme> entry, already rendered: titles and
// descriptions are final strings, times are wall-clock UTC.
type Programme struct {
	ChannelID   string
	Title       string
	Start       time.Time
	Stop        time.Time
	Description string
	Subtitle    string
	Categories  []string
	Icon        string
	EpisodeNum  string
	Live        bool
	New         bool
	Kind        ProgrammeKind
}

// Duration returns the programme length.
func (p Programme) Duration() time.Duration { return p.Stop.Sub(p.Start) }

// Overlaps reports whether p and q share any time on the same channel.
func (p Programme) Overlaps(q Programme) bool {
	if p.ChannelID != q.ChannelID {
		return false
	}
	return p.Start.Before(q.Stop) && q.Start.Before(p.Stop)
}
