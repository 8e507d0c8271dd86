// SPDX-License-Identifier: MIT

// Package teamindex maintains a badger-backed reverse lookup from a team
// id to the soccer competitions the team appears in. Soccer teams play
// several competitions at once; the EPG team generator uses the lookup to
// pull schedules beyond the team's primary league.
package teamindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/log"
)

const (
	teamPrefix = "team:"
	metaKey    = "meta:refreshed"

	// entryTTL expires entries a little after the weekly refresh cadence
	// so a skipped refresh degrades to "no additional competitions"
	// instead of serving stale mappings forever.
	entryTTL = 7 * 24 * time.Hour
)

// TeamListFunc fetches a league's full team directory.
type TeamListFunc func(ctx context.Context, league domain.League) ([]domain.Team, error)

// Index is the persistent reverse lookup. Safe for concurrent use.
type Index struct {
	db     *badger.DB
	logger zerolog.Logger
}

// Open opens or creates the index at path.
func Open(path string) (*Index, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("teamindex: open %s: %w", path, err)
	}
	return &Index{db: db, logger: log.WithComponent("teamindex")}, nil
}

func (x *Index) Close() error { return x.db.Close() }

// Competitions returns the leagues the team is indexed under, sorted.
// A team that is not indexed returns nil with no error.
func (x *Index) Competitions(teamID string) ([]domain.League, error) {
	key := []byte(teamPrefix + teamID)
	var leagues []domain.League
	err := x.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &leagues)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return leagues, nil
}

// Refresh rebuilds the index from the given leagues' team directories
// and returns the number of indexed teams. A league whose directory
// cannot be fetched is logged and skipped; Refresh fails only when every
// league fails.
func (x *Index) Refresh(ctx context.Context, leagues []domain.League, list TeamListFunc) (int, error) {
	byTeam := make(map[string][]domain.League)
	var fetched int

	for _, league := range leagues {
		teams, err := list(ctx, league)
		if err != nil {
			x.logger.Warn().
				Err(err).
				Str("event", "teamindex.league.failed").
				Str("league", string(league)).
				Msg("skipping league during refresh")
			continue
		}
		fetched++
		for _, t := range teams {
			if t.ID == "" {
				continue
			}
			byTeam[t.ID] = append(byTeam[t.ID], league)
		}
	}

	if fetched == 0 && len(leagues) > 0 {
		return 0, fmt.Errorf("teamindex: refresh failed for all %d leagues", len(leagues))
	}

	err := x.db.Update(func(txn *badger.Txn) error {
		for teamID, teamLeagues := range byTeam {
			sort.Slice(teamLeagues, func(i, j int) bool { return teamLeagues[i] < teamLeagues[j] })
			buf, err := json.Marshal(teamLeagues)
			if err != nil {
				return err
			}
			entry := badger.NewEntry([]byte(teamPrefix+teamID), buf).WithTTL(entryTTL)
			if err := txn.SetEntry(entry); err != nil {
				return err
			}
		}
		stamp, err := json.Marshal(time.Now().UTC())
		if err != nil {
			return err
		}
		return txn.Set([]byte(metaKey), stamp)
	})
	if err != nil {
		return 0, fmt.Errorf("teamindex: write refresh: %w", err)
	}

	x.logger.Info().
		Str("event", "teamindex.refreshed").
		Int("teams", len(byTeam)).
		Int("leagues", fetched).
		Msg("team index refreshed")
	return len(byTeam), nil
}

// LastRefresh returns when Refresh last completed, zero if never.
func (x *Index) LastRefresh() (time.Time, error) {
	var stamp time.Time
	err := x.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stamp)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return stamp, nil
}

// Stale reports whether the index needs a refresh.
func (x *Index) Stale(maxAge time.Duration) bool {
	last, err := x.LastRefresh()
	if err != nil {
		return true
	}
	return last.IsZero() || time.Since(last) > maxAge
}
