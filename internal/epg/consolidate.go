// SPDX-License-Identifier: MIT

package epg

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
)

// Guide file layout inside the data directory.
const (
	TeamsFileName  = "teams.xml"
	OutputFileName = "teamarr.xml"
)

// TeamsPath returns the team fragment path.
func TeamsPath(dir string) string { return filepath.Join(dir, TeamsFileName) }

// EventPath returns a group's event fragment path.
func EventPath(dir string, groupID int64) string {
	return filepath.Join(dir, fmt.Sprintf("event_epg_%d.xml", groupID))
}

// OutputPath returns the final consolidated guide path.
func OutputPath(dir string) string { return filepath.Join(dir, OutputFileName) }

// ConsolidateResult summarizes one merge pass.
type ConsolidateResult struct {
	Channels   int
	Programmes int
	Fragments  int
	// Skipped lists fragment files that failed to parse and were left
	// out of the merge.
	Skipped []string
}

// Consolidator merges the teams fragment and every per-group event
// fragment into the final guide. Event fragments are archived to .bak
// after a successful merge; teams.xml never is, so a partial refresh
// that only regenerates event groups still carries the team channels.
type Consolidator struct {
	dir    string
	logger zerolog.Logger
}

// NewConsolidator builds a consolidator over the data directory.
func NewConsolidator(dir string) *Consolidator {
	return &Consolidator{dir: dir, logger: log.WithComponent("epg.consolidate")}
}

// Consolidate merges fragments and writes the guide atomically.
// Channels deduplicate by id, first occurrence wins, with teams.xml
// merged first; programmes concatenate in fragment order. A fragment
// that fails to parse is skipped with a warning rather than failing the
// merge.
func (c *Consolidator) Consolidate(at time.Time) (ConsolidateResult, error) {
	var res ConsolidateResult
	merged := NewTV(at)
	seen := make(map[string]bool)

	appendDoc := func(tv *TV) {
		for _, ch := range tv.Channels {
			if seen[ch.ID] {
				continue
			}
			seen[ch.ID] = true
			merged.Channels = append(merged.Channels, ch)
		}
		merged.Programmes = append(merged.Programmes, tv.Programmes...)
	}

	teams := TeamsPath(c.dir)
	switch tv, err := ReadFile(teams); {
	case err == nil:
		appendDoc(tv)
		res.Fragments++
	case os.IsNotExist(err):
		c.logger.Debug().Msg("no teams fragment")
	default:
		c.logger.Warn().Err(err).Str("file", TeamsFileName).Msg("skipping unreadable fragment")
		res.Skipped = append(res.Skipped, TeamsFileName)
	}

	fragments, err := filepath.Glob(filepath.Join(c.dir, "event_epg_*.xml"))
	if err != nil {
		return res, fmt.Errorf("list event fragments: %w", err)
	}
	sort.Strings(fragments)

	var archivable []string
	for _, f := range fragments {
		tv, err := ReadFile(f)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", filepath.Base(f)).Msg("skipping unreadable fragment")
			res.Skipped = append(res.Skipped, filepath.Base(f))
			continue
		}
		appendDoc(tv)
		res.Fragments++
		archivable = append(archivable, f)
	}

	res.Channels = len(merged.Channels)
	res.Programmes = len(merged.Programmes)

	writeErr := WriteFile(OutputPath(c.dir), merged)
	metrics.RecordXMLTV(res.Channels, res.Programmes, writeErr)
	if writeErr != nil {
		return res, writeErr
	}

	for _, f := range archivable {
		if err := os.Rename(f, f+".bak"); err != nil {
			c.logger.Warn().Err(err).Str("file", filepath.Base(f)).Msg("archive failed")
		}
	}

	c.logger.Info().
		Int("channels", res.Channels).
		Int("programmes", res.Programmes).
		Int("fragments", res.Fragments).
		Msg("guide consolidated")
	return res, nil
}

// Sweep removes event fragment backups last modified before the cutoff,
// leaving backups archived during the current cycle in place. The
// pattern never touches teams.xml.bak.
func (c *Consolidator) Sweep(before time.Time) (int, error) {
	baks, err := filepath.Glob(filepath.Join(c.dir, "event_epg_*.xml.bak"))
	if err != nil {
		return 0, fmt.Errorf("list fragment backups: %w", err)
	}
	removed := 0
	for _, f := range baks {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if !info.ModTime().Before(before) {
			continue
		}
		if err := os.Remove(f); err != nil {
			c.logger.Warn().Err(err).Str("file", filepath.Base(f)).Msg("sweep failed")
			continue
		}
		removed++
	}
	return removed, nil
}
