// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/jobs"
	"github.com/teamarr/teamarr/internal/log"
)

// GenerationRunner is the orchestrator surface the scheduler drives.
type GenerationRunner interface {
	Run(ctx context.Context) (*jobs.RunResult, error)
}

// SchedulerConfig drives the generation cadence.
type SchedulerConfig struct {
	// Interval between runs. Zero means one hour.
	Interval time.Duration
	// InitialRun fires a run immediately on start instead of waiting a
	// full interval.
	InitialRun bool
}

// Scheduler fires generation runs on a fixed cadence. A run already in
// flight (for example API-triggered) is skipped, not queued; the next
// tick picks up from there. PostRun hooks follow every completed run.
type Scheduler struct {
	cfg     SchedulerConfig
	runner  GenerationRunner
	postRun func(ctx context.Context)
	updates chan time.Duration
	logger  zerolog.Logger
}

// NewScheduler builds a scheduler. postRun may be nil; it runs after
// each run that produced a result, whatever its status.
func NewScheduler(cfg SchedulerConfig, runner GenerationRunner, postRun func(ctx context.Context)) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrMissingRunner
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		postRun: postRun,
		updates: make(chan time.Duration, 1),
		logger:  log.WithComponent("scheduler"),
	}, nil
}

// SetInterval re-arms the cadence, typically after a config reload.
// The latest value wins; zero and negative values are ignored.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case s.updates <- d:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

// Run loops until ctx is cancelled. It never returns an error: run
// failures are logged and the cadence continues.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.cfg.Interval

	if s.cfg.InitialRun {
		s.runOnce(ctx)
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("event", "scheduler.stopped").Msg("scheduler stopped")
			return nil

		case d := <-s.updates:
			if d == interval {
				continue
			}
			interval = d
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)
			s.logger.Info().
				Str("event", "scheduler.interval_changed").
				Dur("interval", interval).
				Msg("generation interval changed")

		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(interval)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	res, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, jobs.ErrRunActive):
		s.logger.Debug().
			Str("event", "scheduler.run_skipped").
			Msg("a generation run is already active")
		return
	case err != nil:
		s.logger.Error().Err(err).
			Str("event", "scheduler.run_failed").
			Msg("scheduled generation run failed")
		return
	}

	s.logger.Info().
		Str("event", "scheduler.run_complete").
		Int64("generation", res.Generation).
		Str("status", res.Status).
		Int("channels", res.Channels).
		Int("programmes", res.Programmes).
		Msg("scheduled generation run complete")

	if s.postRun != nil {
		s.postRun(ctx)
	}
}
