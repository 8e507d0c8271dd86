// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/teamarr/teamarr/internal/channels"
	"github.com/teamarr/teamarr/internal/dispatcharr"
	"github.com/teamarr/teamarr/internal/domain"
	"github.com/teamarr/teamarr/internal/match"
	"github.com/teamarr/teamarr/internal/store"
)

// ErrRunActive is returned when Run is called while another generation
// run holds the orchestrator.
var ErrRunActive = errors.New("jobs: generation run already active")

// Store is the persistence surface a generation run reads and writes.
// *store.Store satisfies it.
type Store interface {
	GetSettings(ctx context.Context) (store.Settings, error)
	NextGeneration(ctx context.Context) (int64, error)
	EnabledFollowedTeams(ctx context.Context) ([]store.FollowedTeam, error)
	EnabledEventGroups(ctx context.Context) ([]domain.EventGroup, error)
	GetTemplate(ctx context.Context, id int64) (*domain.Template, error)
	DefaultTemplate(ctx context.Context) (*domain.Template, error)
	ActiveChannels(ctx context.Context) ([]domain.ManagedChannel, error)
	SweepMatchCache(ctx context.Context, cutoffGeneration int64) (int64, error)
	RecordRun(ctx context.Context, at time.Time, status string, summary []byte) error
	match.MatchStore
}

// Upstream is the slice of the Dispatcharr client the orchestrator
// drives directly. The channel lifecycle manager holds its own.
type Upstream interface {
	RefreshAllAccounts(ctx context.Context, opts dispatcharr.RefreshOptions) (*dispatcharr.RefreshResult, error)
	Channels(ctx context.Context) ([]dispatcharr.Channel, error)
	ChannelGroups(ctx context.Context) ([]dispatcharr.ChannelGroup, error)
	StreamsForGroup(ctx context.Context, groupName string) ([]dispatcharr.Stream, error)
	TriggerEPGImport(ctx context.Context, sourceID int) error
}

// EventSource is the sports surface the matchers and generators share.
// *sports.Service satisfies it.
type EventSource interface {
	match.EventSource
	TeamSchedule(ctx context.Context, teamID string, league domain.League, daysAhead int) ([]domain.Event, error)
	EnrichEvents(ctx context.Context, events []domain.Event, loc *time.Location)
}

// Lifecycle manages channels for one run. *channels.Manager satisfies it.
type Lifecycle interface {
	Sync(ctx context.Context, in channels.SyncInput) (*channels.SyncResult, error)
	SweepDue(ctx context.Context, now time.Time) (int, []error)
	RepairEPG(ctx context.Context, upstream []dispatcharr.Channel) int
}

// CompetitionIndex mirrors epg.CompetitionIndex so callers can hand the
// badger-backed team index straight through. May be nil.
type CompetitionIndex interface {
	Competitions(teamID string) ([]domain.League, error)
}

// Deps holds everything a generation run needs. Lifecycle is a factory
// because the manager is built per run: the zone and the enabled profile
// list come out of settings.
type Deps struct {
	Store     Store
	Sports    EventSource
	Upstream  Upstream
	Lifecycle func(loc *time.Location, profileIDs []int) Lifecycle
	Comps     CompetitionIndex
	DataDir   string
	Clock     func() time.Time
	// Refresh tunes the M3U refresh fan-out; zero fields use the
	// client defaults.
	Refresh dispatcharr.RefreshOptions
}

// Run outcomes recorded in the tracker and surfaced by the API.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// GroupResult is the per-event-group slice of a run summary.
type GroupResult struct {
	GroupID       int64    `json:"group_id"`
	Group         string   `json:"group"`
	Streams       int      `json:"streams"`
	Matched       int      `json:"matched"`
	Exceptions    int      `json:"exceptions"`
	Unmatched     int      `json:"unmatched"`
	StreamErrors  int      `json:"stream_errors,omitempty"`
	Channels      int      `json:"channels"`
	Programmes    int      `json:"programmes"`
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	Deleted       int      `json:"deleted"`
	ChannelErrors []string `json:"channel_errors,omitempty"`
	Skipped       bool     `json:"skipped,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// RunResult summarizes one generation run. It is stored as the run
// tracker's JSON summary, so field names are part of the API surface.
type RunResult struct {
	Generation   int64         `json:"generation"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	DurationMS   int64         `json:"duration_ms"`
	TeamChannels int           `json:"team_channels"`
	Succeeded    int           `json:"groups_succeeded"`
	Failed       int           `json:"groups_failed"`
	Skipped      int           `json:"groups_skipped"`
	Swept        int           `json:"channels_swept"`
	Channels     int           `json:"channels"`
	Programmes   int           `json:"programmes"`
	Groups       []GroupResult `json:"groups,omitempty"`
	Errors       []string      `json:"errors,omitempty"`
}
