// SPDX-License-Identifier: MIT

// Package epg renders the generation pipeline's output: XMLTV documents
// for team schedule channels and per-group event channels, plus the
// consolidator that merges the fragments into the final guide.
package epg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/version"
)

// Synthetic channel id prefixes. Event channels carry the provider event
// id so reconciliation can recognize ours upstream by tvg_id prefix.
const (
	EventIDPrefix     = "teamarr-event-"
	TeamIDPrefix      = "teamarr-team-"
	ExceptionIDPrefix = "teamarr-exception-"
)

// EventChannelID returns the XMLTV channel id for a matched event.
func EventChannelID(eventID string) string { return EventIDPrefix + eventID }

// StreamChannelID returns the channel id for one stream of a
// separate-mode group, where every stream gets its own channel even when
// several matched the same event.
func StreamChannelID(eventID string, streamID int) string {
	return fmt.Sprintf("%s%s-s%d", EventIDPrefix, eventID, streamID)
}

// TeamChannelID returns the channel id for a followed team's channel.
func TeamChannelID(teamID int64) string {
	return fmt.Sprintf("%s%d", TeamIDPrefix, teamID)
}

// ExceptionChannelID returns the channel id for a group's
// exception-keyword channel.
func ExceptionChannelID(groupID int64, keyword string) string {
	return fmt.Sprintf("%s%d-%s", ExceptionIDPrefix, groupID, slug(keyword))
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = slugStrip.ReplaceAllString(strings.ToLower(s), ".")
	return strings.Trim(s, ".")
}

// TV is one XMLTV document. Field order fixes element order: every
// <channel> precedes every <programme>.
type TV struct {
	XMLName    xml.Name    `xml:"tv"`
	Date       string      `xml:"date,attr,omitempty"`
	Generator  string      `xml:"generator-info-name,attr,omitempty"`
	Channels   []Channel   `xml:"channel"`
	Programmes []Programme `xml:"programme"`
}

// Channel is one XMLTV <channel>.
type Channel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
	Icon        *Icon    `xml:"icon,omitempty"`
}

// Icon is an XMLTV icon reference.
type Icon struct {
	Src string `xml:"src,attr"`
}

// EpisodeNum carries the episode numbering with its system attribute.
type EpisodeNum struct {
	System string `xml:"system,attr,omitempty"`
	Value  string `xml:",chardata"`
}

// Programme is one XMLTV <programme>. Live and New are presence-only
// flags; a non-nil pointer emits the empty element.
type Programme struct {
	Start      string      `xml:"start,attr"`
	Stop       string      `xml:"stop,attr"`
	Channel    string      `xml:"channel,attr"`
	Title      string      `xml:"title"`
	SubTitle   string      `xml:"sub-title,omitempty"`
	Desc       string      `xml:"desc,omitempty"`
	Categories []string    `xml:"category,omitempty"`
	Icon       *Icon       `xml:"icon,omitempty"`
	EpisodeNum *EpisodeNum `xml:"episode-num,omitempty"`
	Live       *struct{}   `xml:"live,omitempty"`
	New        *struct{}   `xml:"new,omitempty"`
}

// NewTV returns an empty document stamped with the generator banner and
// the run time.
func NewTV(at time.Time) *TV {
	tv := &TV{Generator: version.Banner()}
	if !at.IsZero() {
		tv.Date = FormatTime(at)
	}
	return tv
}

// FormatTime renders t in XMLTV time syntax, always in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format("20060102150405 +0000")
}

// ParseTime reads an XMLTV timestamp in any zone offset.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("20060102150405 -0700", s)
}

var present = struct{}{}

// FromProgramme converts a rendered domain programme into its XMLTV
// form.
func FromProgramme(p domain.Programme) Programme {
	out := Programme{
		Start:      FormatTime(p.Start),
		Stop:       FormatTime(p.Stop),
		Channel:    p.ChannelID,
		Title:      p.Title,
		SubTitle:   p.Subtitle,
		Desc:       p.Description,
		Categories: p.Categories,
	}
	if p.Icon != "" {
		out.Icon = &Icon{Src: p.Icon}
	}
	if p.EpisodeNum != "" {
		out.EpisodeNum = &EpisodeNum{System: "onscreen", Value: p.EpisodeNum}
	}
	if p.Live {
		out.Live = &present
	}
	if p.New {
		out.New = &present
	}
	return out
}

// Append adds a channel and its programmes to the document.
func (tv *TV) Append(ch Channel, progs []domain.Programme) {
	tv.Channels = append(tv.Channels, ch)
	for _, p := range progs {
		tv.Programmes = append(tv.Programmes, FromProgramme(p))
	}
}

const xmlPreamble = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<!DOCTYPE tv SYSTEM "xmltv.dtd">` + "\n"

// Bytes serializes the document with header and DOCTYPE.
func (tv *TV) Bytes() ([]byte, error) {
	body, err := xml.MarshalIndent(tv, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal xmltv: %w", err)
	}
	out := make([]byte, 0, len(xmlPreamble)+len(body)+1)
	out = append(out, xmlPreamble...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

// WriteFile writes the document atomically: temp file, fsync, rename.
// Readers never observe a partial guide.
func WriteFile(path string, tv *TV) error {
	data, err := tv.Bytes()
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending xmltv file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write xmltv data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace xmltv file: %w", err)
	}
	return nil
}

// maxXMLSize caps fragment reads; a guide past this is corrupt.
const maxXMLSize = 50 * 1024 * 1024

// ReadFile parses an XMLTV document. Parsing is strict with entity
// expansion disabled.
func ReadFile(path string) (*TV, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec := xml.NewDecoder(io.LimitReader(f, maxXMLSize))
	dec.Strict = true
	dec.Entity = make(map[string]string)

	var tv TV
	if err := dec.Decode(&tv); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode xmltv %s: %w", filepath.Base(path), err)
	}
	return &tv, nil
}
