// SPDX-License-Identifier: MIT

package sports

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/teamarr/teamarr/internal/cache"
	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/log"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/telemetry"
)

const (
	defaultScoreboardTTL = 2 * time.Minute
	defaultScheduleTTL   = 15 * time.Minute
)

// Service fronts the providers with league routing and a response cache.
// Scoreboard data ages quickly and gets a short TTL; schedules and stats
// are stable and cached longer. Single-event lookups bypass the cache; the
// enrichment path depends on them being fresh.
type Service struct {
	standard Provider
	cricket  Provider

	cache         cache.Cache
	scoreboardTTL time.Duration
	scheduleTTL   time.Duration
	logger        zerolog.Logger
}

// ServiceOptions wires the providers and cache. Cricket falls back to
// the standard provider when unset; a nil Cache disables caching.
type ServiceOptions struct {
	Standard      Provider
	Cricket       Provider
	Cache         cache.Cache
	ScoreboardTTL time.Duration
	ScheduleTTL   time.Duration
}

// NewService builds the routing service.
func NewService(opts ServiceOptions) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NewNoOpCache()
	}
	if opts.Cricket == nil {
		opts.Cricket = opts.Standard
	}
	if opts.ScoreboardTTL <= 0 {
		opts.ScoreboardTTL = defaultScoreboardTTL
	}
	if opts.ScheduleTTL <= 0 {
		opts.ScheduleTTL = defaultScheduleTTL
	}
	return &Service{
		standard:      opts.Standard,
		cricket:       opts.Cricket,
		cache:         opts.Cache,
		scoreboardTTL: opts.ScoreboardTTL,
		scheduleTTL:   opts.ScheduleTTL,
		logger:        log.WithComponent("sports"),
	}
}

// provider routes a league to its provider via the registry.
func (s *Service) provider(league domain.League) (Provider, error) {
	info, ok := league.Info()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLeague, league)
	}
	if info.Sport == domain.SportCricket {
		return s.cricket, nil
	}
	return s.standard, nil
}

// sourced is implemented by providers that can name the catalog behind
// them. The name feeds span labels; providers without one stay unlabelled.
type sourced interface {
	Source() domain.Provider
}

func providerName(p Provider) string {
	if s, ok := p.(sourced); ok {
		return string(s.Source())
	}
	return ""
}

// Events lists a league's events for the given day, cached per
// (league, date).
func (s *Service) Events(ctx context.Context, league domain.League, date time.Time) ([]domain.Event, error) {
	p, err := s.provider(league)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("events:%s:%s", league, date.Format("20060102"))
	var events []domain.Event
	if s.cacheGet(key, &events) {
		return events, nil
	}

	ctx, span := telemetry.Tracer("teamarr.sports").Start(ctx, "teamarr.sports.events")
	span.SetAttributes(telemetry.ProviderAttributes(providerName(p), string(league), date.Format("20060102"))...)
	defer span.End()

	events, err = p.Events(ctx, league, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	s.cacheSet(key, events, s.scoreboardTTL)
	return events, nil
}

// Event fetches one event, always from the provider.
func (s *Service) Event(ctx context.Context, id string, league domain.League) (*domain.Event, error) {
	p, err := s.provider(league)
	if err != nil {
		return nil, err
	}
	return p.Event(ctx, id, league)
}

// TeamSchedule returns the team's window of events, cached per
// (team, league, window).
func (s *Service) TeamSchedule(ctx context.Context, teamID string, league domain.League, daysAhead int) ([]domain.Event, error) {
	p, err := s.provider(league)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("schedule:%s:%s:%d", league, teamID, daysAhead)
	var events []domain.Event
	if s.cacheGet(key, &events) {
		return events, nil
	}

	ctx, span := telemetry.Tracer("teamarr.sports").Start(ctx, "teamarr.sports.schedule")
	span.SetAttributes(telemetry.ProviderAttributes(providerName(p), string(league), "")...)
	defer span.End()

	events, err = p.TeamSchedule(ctx, teamID, league, daysAhead)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	s.cacheSet(key, events, s.scheduleTTL)
	return events, nil
}

// TeamStats resolves team stats, cached per (team, league). A provider
// that has no stats yields nil; the miss is cached too so the provider is
// not re-asked every run.
func (s *Service) TeamStats(ctx context.Context, teamID string, league domain.League) (*domain.TeamStats, error) {
	p, err := s.provider(league)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("stats:%s:%s", league, teamID)
	var stats *domain.TeamStats
	if s.cacheGet(key, &stats) {
		return stats, nil
	}

	stats, err = p.TeamStats(ctx, teamID, league)
	if err != nil {
		return nil, err
	}
	s.cacheSet(key, stats, s.scheduleTTL)
	return stats, nil
}

// EnrichEvents re-fetches events dated today or yesterday in loc through
// the single-event endpoint, refreshing status, scores and odds in place.
// A failed lookup keeps the scheduled snapshot; enrichment never fails a
// run.
func (s *Service) EnrichEvents(ctx context.Context, events []domain.Event, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)

	for i := range events {
		day := events[i].LocalDate(loc)
		if !day.Equal(today) && !day.Equal(yesterday) {
			continue
		}

		fresh, err := s.Event(ctx, events[i].ID, events[i].League)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("event", "sports.enrich.failed").
				Str("event_id", events[i].ID).
				Str("league", string(events[i].League)).
				Msg("keeping scheduled snapshot")
			continue
		}
		mergeEnriched(&events[i], fresh)
	}
}

// mergeEnriched copies the volatile fields from the fresh fetch onto the
// scheduled event. Identity and schedule fields stay as fetched; names
// and team metadata from the schedule payload are usually richer than the
// single-event one.
func mergeEnriched(ev *domain.Event, fresh *domain.Event) {
	ev.Status = fresh.Status
	ev.HomeScore = fresh.HomeScore
	ev.AwayScore = fresh.AwayScore
	if fresh.Odds != nil {
		ev.Odds = fresh.Odds
	}
	if fresh.Venue != nil && ev.Venue == nil {
		ev.Venue = fresh.Venue
	}
	if len(fresh.Broadcasts) > 0 {
		ev.Broadcasts = fresh.Broadcasts
	}
	if !fresh.StartTime.IsZero() {
		// Start times move when games get flexed or delayed.
		ev.StartTime = fresh.StartTime
	}
}

func (s *Service) cacheGet(key string, target any) bool {
	buf, ok := s.cache.Get(key)
	if !ok {
		metrics.IncProviderCache("miss")
		return false
	}
	if err := json.Unmarshal(buf, target); err != nil {
		s.cache.Delete(key)
		metrics.IncProviderCache("miss")
		return false
	}
	metrics.IncProviderCache("hit")
	return true
}

func (s *Service) cacheSet(key string, value any, ttl time.Duration) {
	buf, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.cache.Set(key, buf, ttl)
}
