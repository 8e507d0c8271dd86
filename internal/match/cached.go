// SPDX-License-Identifier: MIT

package match

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/sports"
	"github.com/teamarr/teamarr/internal/store"
)

// Fingerprint identifies a stream within a group across runs. The name
// is part of the key: providers renumber stream ids, and a renamed
// stream must be rematched anyway.
func Fingerprint(groupID int64, streamID int, streamName string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d\x00%d\x00%s", groupID, streamID, streamName))
	return hex.EncodeToString(sum[:])
}

// MatchStore is the persistence the cached matcher needs; *store.Store
// satisfies it.
type MatchStore interface {
	GetMatchCache(ctx context.Context, fingerprint string) (*store.MatchCacheEntry, error)
	PutMatchCache(ctx context.Context, e store.MatchCacheEntry) error
	StampMatchCache(ctx context.Context, fingerprint string, generation int64) error
}

// CachedMatcher fronts a Matcher with the fingerprint cache. Hits skip
// all fuzzy work: the cached snapshot is replayed and only its volatile
// fields (status, scores, odds, streaks) are re-fetched. Built once per
// run with that run's generation.
type CachedMatcher struct {
	inner      Matcher
	store      MatchStore
	source     EventSource
	groupID    int64
	generation int64
	logger     zerolog.Logger
}

// NewCachedMatcher wraps inner with the fingerprint cache for one
// group's run.
func NewCachedMatcher(inner Matcher, st MatchStore, source EventSource, groupID, generation int64) *CachedMatcher {
	return &CachedMatcher{
		inner:      inner,
		store:      st,
		source:     source,
		groupID:    groupID,
		generation: generation,
		logger:     log.WithComponent("match"),
	}
}

// Match consults the cache before the inner matcher.
func (c *CachedMatcher) Match(ctx context.Context, streamID int, streamName string, date time.Time) (*domain.MatchedStream, error) {
	fp := Fingerprint(c.groupID, streamID, streamName)

	entry, err := c.store.GetMatchCache(ctx, fp)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("event", "match.cache.read_failed").
			Msg("falling back to full matching")
		entry = nil
	}

	if entry != nil {
		if result := c.replay(ctx, entry, streamID, streamName); result != nil {
			metrics.IncMatchCache("hit")
			if err := c.store.StampMatchCache(ctx, fp, c.generation); err != nil {
				c.logger.Warn().Err(err).Str("event", "match.cache.stamp_failed").Msg("stamp failed")
			}
			return result, nil
		}
	}
	metrics.IncMatchCache("miss")

	result, err := c.inner.Match(ctx, streamID, streamName, date)
	if err != nil || result == nil {
		return result, err
	}

	// Exceptions are cheap to re-detect and never cached.
	if result.Event != nil {
		snapshot, err := json.Marshal(result)
		if err == nil {
			putErr := c.store.PutMatchCache(ctx, store.MatchCacheEntry{
				Fingerprint:        fp,
				EventGroupID:       c.groupID,
				StreamID:           streamID,
				EventID:            result.Event.ID,
				League:             string(result.Event.League),
				Snapshot:           snapshot,
				LastSeenGeneration: c.generation,
			})
			if putErr != nil {
				c.logger.Warn().Err(putErr).Str("event", "match.cache.write_failed").Msg("cache write failed")
			}
		}
	}
	return result, nil
}

// replay turns a cache entry back into a match result with fresh
// volatile fields. A nil return means the entry is unusable (corrupt
// snapshot or the event no longer exists) and full matching should run.
func (c *CachedMatcher) replay(ctx context.Context, entry *store.MatchCacheEntry, streamID int, streamName string) *domain.MatchedStream {
	var cached domain.MatchedStream
	if err := json.Unmarshal(entry.Snapshot, &cached); err != nil || cached.Event == nil {
		c.logger.Warn().
			Str("event", "match.cache.snapshot_invalid").
			Str("event_id", entry.EventID).
			Msg("discarding unreadable snapshot")
		return nil
	}

	cached.StreamID = streamID
	cached.StreamName = streamName
	cached.DetectionTier = domain.TierCache

	if !c.refreshDynamic(ctx, cached.Event) {
		return nil
	}
	return &cached
}

// refreshDynamic re-fetches the fields that change between runs. The
// snapshot stays authoritative for everything else. A false return
// means the event no longer exists upstream and the entry is dead.
func (c *CachedMatcher) refreshDynamic(ctx context.Context, ev *domain.Event) bool {
	fresh, err := c.source.Event(ctx, ev.ID, ev.League)
	switch {
	case err == nil:
		ev.Status = fresh.Status
		ev.HomeScore = fresh.HomeScore
		ev.AwayScore = fresh.AwayScore
		if fresh.Odds != nil {
			ev.Odds = fresh.Odds
		}
		if !fresh.StartTime.IsZero() {
			ev.StartTime = fresh.StartTime
		}
	case errors.Is(err, sports.ErrEventNotFound):
		c.logger.Warn().
			Str("event", "match.cache.event_gone").
			Str("event_id", ev.ID).
			Msg("cached event no longer resolvable, rematching")
		return false
	default:
		// Upstream flakiness is not staleness; the snapshot still
		// describes a real event.
		c.logger.Warn().
			Err(err).
			Str("event", "match.cache.refresh_failed").
			Str("event_id", ev.ID).
			Msg("serving snapshot without refresh")
	}

	c.refreshStats(ctx, ev)
	return true
}

func (c *CachedMatcher) refreshStats(ctx context.Context, ev *domain.Event) {
	if ev.HomeTeam.ID != "" {
		if stats, err := c.source.TeamStats(ctx, ev.HomeTeam.ID, ev.League); err == nil && stats != nil {
			ev.HomeStats = stats
		}
	}
	if ev.AwayTeam.ID != "" {
		if stats, err := c.source.TeamStats(ctx, ev.AwayTeam.ID, ev.League); err == nil && stats != nil {
			ev.AwayStats = stats
		}
	}
}

var _ Matcher = (*CachedMatcher)(nil)
